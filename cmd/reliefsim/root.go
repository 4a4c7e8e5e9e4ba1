package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/relief-mobility/internal/config"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "reliefsim",
	Short: "Post-disaster mobility simulator",
	Long: `A CLI tool that simulates how residents and relief responders move
through a damaged city.

Each scenario file describes the road network, the points of interest and
groups of agents by role. Every agent follows a daily schedule of activities
and emits the paths it travels, which are stored, traced or streamed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "scenario.yaml", "Path to scenario file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, poisCmd, replayCmd)
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}

func loadScenario() (*config.Scenario, error) {
	scn, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	slog.Info("scenario loaded",
		"file", configFile,
		"seed", scn.Seed,
		"days", scn.Days,
		"groups", len(scn.Groups),
	)
	return scn, nil
}

func scenarioName() string {
	return strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
}
