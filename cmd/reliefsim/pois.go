package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/poi"
)

var (
	poisOut  string
	poisMain bool
)

var poisCmd = &cobra.Command{
	Use:   "pois",
	Short: "Write the scenario's generated POIs as WKT files",
	Long: `Samples the points of interest requested under map.sites from the
scenario's road network and writes one <category>.wkt file per category.
The files can then be named under a group's poi key.`,
	RunE: writePOIs,
}

func init() {
	poisCmd.Flags().StringVarP(&poisOut, "out", "o", "pois", "Output directory")
	poisCmd.Flags().BoolVar(&poisMain, "main-points", false, "Also write every road intersection as main_point.wkt")
}

func writePOIs(cmd *cobra.Command, args []string) error {
	scn, err := loadScenario()
	if err != nil {
		return err
	}
	m, err := engine.BuildMap(scn)
	if err != nil {
		return err
	}
	sites, err := engine.SampleSites(scn, m)
	if err != nil {
		return err
	}
	if poisMain {
		sites[poi.MainPoint] = m.MainPoints()
	}

	files, err := poi.WriteFiles(poisOut, sites)
	if err != nil {
		return err
	}

	cats := make([]poi.Category, 0, len(files))
	for cat := range files {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	fmt.Printf("Wrote %d POI files to %s\n", len(files), poisOut)
	for _, cat := range cats {
		size := "?"
		if fi, err := os.Stat(files[cat]); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Printf("  - %-10s %4d points  %s\n", cat, len(sites[cat]), size)
	}
	return nil
}
