package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/persistence"
)

var (
	replayDB  string
	replayRun string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run a stored run and verify it emits the same paths",
	Long: `Re-runs the scenario of a stored run with the same seed and compares
every emitted path against the paths stored in the database. A run that was
interrupted is compared up to its last stored path.`,
	RunE: replay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDB, "db", "", "SQLite database path (overrides output.db)")
	replayCmd.Flags().StringVar(&replayRun, "run", "", "Run id (default: latest run)")
}

// collector keeps every emitted path in memory.
type collector struct{ events []engine.PathEvent }

func (c *collector) Record(ev engine.PathEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func replay(cmd *cobra.Command, args []string) error {
	scn, err := loadScenario()
	if err != nil {
		return err
	}
	path := replayDB
	if path == "" {
		path = scn.Resolve(scn.Output.DB)
	}
	if path == "" {
		return errors.New("no database: set output.db or --db")
	}
	db, err := persistence.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var run persistence.Run
	if replayRun != "" {
		run, err = db.GetRun(replayRun)
	} else {
		run, err = db.LatestRun()
	}
	if err != nil {
		return fmt.Errorf("find run: %w", err)
	}
	if run.Seed != scn.Seed || run.Days != scn.Days {
		return fmt.Errorf("run %s used seed %d over %d days, scenario has seed %d over %d days",
			run.ID, run.Seed, run.Days, scn.Seed, scn.Days)
	}
	stored, err := db.LoadPaths(run.ID)
	if err != nil {
		return err
	}
	slog.Info("replaying run", "run", run.ID, "scenario", run.Scenario, "stored_paths", len(stored))

	sim, err := engine.Build(scn)
	if err != nil {
		return fmt.Errorf("failed to build simulation: %w", err)
	}
	col := &collector{}
	sim.AddSink(col)

	eng := engine.NewEngine(scn.TickSeconds, scn.DayLength, scn.Days)
	eng.OnTick = func(_ uint64, now float64) error { return sim.Step(now) }
	eng.OnDay = sim.TickDay
	eng.Done = func() bool {
		return sim.Finished() || len(col.events) >= len(stored)
	}
	if err := eng.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("replay failed: %w", err)
	}

	if len(col.events) < len(stored) {
		return fmt.Errorf("replay emitted %d paths, run %s stored %d", len(col.events), run.ID, len(stored))
	}
	for i, want := range stored {
		if got := col.events[i]; !reflect.DeepEqual(got, want) {
			return fmt.Errorf("path %d differs: stored %s %s on day %d at %.0f, replayed %s %s on day %d at %.0f",
				want.Seq, want.Agent, want.Activity, want.Day, want.Time,
				got.Agent, got.Activity, got.Day, got.Time)
		}
	}
	fmt.Printf("Run %s replayed: %s paths match\n", run.ID, humanize.Comma(int64(len(stored))))
	return nil
}
