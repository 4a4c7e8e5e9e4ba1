package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/relief-mobility/internal/api"
	"github.com/talgya/relief-mobility/internal/config"
	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/persistence"
	"github.com/talgya/relief-mobility/internal/trace"
)

var (
	runSpeed    float64
	runDB       string
	runTraceDir string
	runAPIAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long: `Runs a scenario from simulated time zero to its horizon.

Emitted paths go to every configured output: the SQLite database, the
per-day trace files and the websocket stream of the HTTP API.`,
	RunE: runScenario,
}

func init() {
	runCmd.Flags().Float64Var(&runSpeed, "speed", 0, "Simulated seconds per wall second (0 = as fast as possible)")
	runCmd.Flags().StringVar(&runDB, "db", "", "SQLite database path (overrides output.db)")
	runCmd.Flags().StringVar(&runTraceDir, "trace-dir", "", "Trace directory (overrides output.trace_dir)")
	runCmd.Flags().StringVar(&runAPIAddr, "api-addr", "", "HTTP API listen address (overrides output.api_addr)")
}

func runScenario(cmd *cobra.Command, args []string) error {
	scn, err := loadScenario()
	if err != nil {
		return err
	}
	out := scn.Output
	if runDB != "" {
		out.DB = runDB
	}
	if runTraceDir != "" {
		out.TraceDir = runTraceDir
	}
	if runAPIAddr != "" {
		out.APIAddr = runAPIAddr
	}

	sim, err := engine.Build(scn)
	if err != nil {
		return fmt.Errorf("failed to build simulation: %w", err)
	}
	slog.Info("simulation ready", "agents", len(sim.Agents), "map", sim.WorldMap.String())

	eng := engine.NewEngine(scn.TickSeconds, scn.DayLength, scn.Days)
	eng.Speed = runSpeed
	sched, err := scn.Checkpoints()
	if err != nil {
		return err
	}
	eng.SetCheckpoints(sched)

	// ── Outputs ───────────────────────────────────────────────────────
	var (
		db       *persistence.DB
		recorder *persistence.Recorder
		run      persistence.Run
	)
	if out.DB != "" {
		path := scn.Resolve(out.DB)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		db, err = persistence.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		run = persistence.NewRun(scenarioName(), scn.Seed, scn.Days, scn.DayLength)
		if err := db.SaveRun(run); err != nil {
			return err
		}
		recorder = persistence.NewRecorder(db, run.ID)
		sim.AddSink(recorder)
		slog.Info("database opened", "path", path, "run", run.ID)
	}

	var tw *trace.Writer
	traceDir := scn.Resolve(out.TraceDir)
	if out.TraceDir != "" {
		tw = trace.NewWriter(traceDir)
		defer func() {
			if err := tw.Close(); err != nil {
				slog.Error("trace close failed", "error", err)
			}
		}()
		sim.AddSink(tw)
		slog.Info("tracing paths", "dir", traceDir)
	}

	if out.APIAddr != "" {
		hub := api.NewHub(0)
		sim.AddSink(hub)
		srv := &api.Server{
			Sim:   sim,
			Eng:   eng,
			DB:    db,
			RunID: run.ID,
			Addr:  out.APIAddr,
			Hub:   hub,
		}
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
			}
		}()
	}

	// ── Tick layers ───────────────────────────────────────────────────
	var checkpointErr error
	eng.OnTick = func(_ uint64, now float64) error {
		return sim.Step(now)
	}
	eng.OnDay = sim.TickDay
	eng.Done = sim.Finished
	eng.OnCheckpoint = func(now float64) {
		if recorder == nil {
			return
		}
		if err := recorder.Checkpoint(sim, now); err != nil {
			slog.Error("checkpoint failed", "error", err)
			checkpointErr = err
			eng.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	err = eng.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Warn("run interrupted", "sim_time", engine.SimTime(eng.Now, scn.DayLength))
		err = nil
	}
	if err == nil {
		err = checkpointErr
	}
	if tw != nil {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trace: %w", cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	printSummary(scn, sim, recorder, tw, traceDir, time.Since(started))
	return nil
}

func printSummary(scn *config.Scenario, sim *engine.Simulation, rec *persistence.Recorder, tw *trace.Writer, traceDir string, elapsed time.Duration) {
	stats, now, day := sim.Snapshot()
	fmt.Printf("Scenario %s finished at %s (day %d of %d)\n", scenarioName(), engine.SimTime(now, scn.DayLength), day, scn.Days)
	fmt.Printf("  - Agents: %d (%d finished, %d halted)\n", stats.Agents, stats.Finished, stats.Halted)
	fmt.Printf("  - Paths emitted: %s\n", humanize.Comma(int64(stats.Paths)))
	fmt.Printf("  - Wall time: %s\n", elapsed.Round(time.Millisecond))
	if rec != nil {
		fmt.Printf("  - Paths stored: %s\n", humanize.Comma(int64(rec.Saved())))
	}
	if tw == nil {
		return
	}
	files, err := trace.Files(traceDir)
	if err != nil {
		return
	}
	var total uint64
	for _, f := range files {
		if fi, err := os.Stat(f); err == nil {
			total += uint64(fi.Size())
		}
	}
	fmt.Printf("  - Trace: %d files, %s lines, %s\n", len(files), humanize.Comma(int64(tw.Lines())), humanize.Bytes(total))
}
