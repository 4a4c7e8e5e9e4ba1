// Package engine provides the tick-based host loop that polls every agent
// in simulated seconds.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Epoch is the wall-clock instant simulated time zero maps to. Checkpoint
// schedules are evaluated against Epoch plus the simulated seconds.
var Epoch = time.Unix(0, 0).UTC()

// Engine drives the simulation forward.
type Engine struct {
	Tick      uint64  // Current tick counter (monotonic, never resets)
	Now       float64 // Simulated seconds at the current tick
	Step      float64 // Simulated seconds per tick
	DayLength float64
	Days      int

	// Speed is the multiplier against real time: 1.0 runs one simulated
	// second per wall second, 0 runs as fast as possible.
	Speed float64

	// Callbacks for each tick layer, populated during setup.
	OnTick       func(tick uint64, now float64) error // Every tick
	OnDay        func(day int, now float64)           // Every day boundary
	OnCheckpoint func(now float64)                    // Every checkpoint schedule match

	// Done, when set, is asked after every tick whether the run can stop
	// before the horizon.
	Done func() bool

	checkpoints    cron.Schedule
	nextCheckpoint float64
	day            int
	running        atomic.Bool
}

// NewEngine creates an engine that runs days simulated days of dayLength
// seconds in ticks of step seconds.
func NewEngine(step, dayLength float64, days int) *Engine {
	return &Engine{
		Step:      step,
		DayLength: dayLength,
		Days:      days,
	}
}

// SetCheckpoints installs a checkpoint schedule.
func (e *Engine) SetCheckpoints(s cron.Schedule) {
	e.checkpoints = s
	e.nextCheckpoint = e.advanceCheckpoint(0)
}

func (e *Engine) advanceCheckpoint(now float64) float64 {
	at := Epoch.Add(time.Duration(now * float64(time.Second)))
	next := e.checkpoints.Next(at)
	if next.IsZero() {
		return -1
	}
	return next.Sub(Epoch).Seconds()
}

// Horizon returns the simulated second after which no agent moves.
func (e *Engine) Horizon() float64 {
	return float64(e.Days) * e.DayLength
}

// Run polls from simulated time zero until one tick past the horizon, the
// context is cancelled, Stop is called or OnTick fails. A final checkpoint
// is always taken.
func (e *Engine) Run(ctx context.Context) error {
	if e.Step <= 0 || e.DayLength <= 0 {
		return fmt.Errorf("engine: step %g and day length %g must be positive", e.Step, e.DayLength)
	}
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "step", e.Step, "days", e.Days, "speed", e.Speed)

	var err error
	limit := e.Horizon() + e.Step
	for e.Now <= limit && e.running.Load() {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			break
		}
		start := time.Now()

		if err = e.step(); err != nil {
			break
		}
		if e.Done != nil && e.Done() {
			slog.Info("all agents finished", "sim_time", SimTime(e.Now, e.DayLength))
			break
		}
		e.Tick++
		e.Now = float64(e.Tick) * e.Step

		if e.Speed > 0 {
			target := time.Duration(e.Step / e.Speed * float64(time.Second))
			if elapsed := time.Since(start); elapsed < target {
				select {
				case <-ctx.Done():
				case <-time.After(target - elapsed):
				}
			}
		}
	}

	if e.OnCheckpoint != nil {
		e.OnCheckpoint(e.Now)
	}
	slog.Info("simulation engine stopped", "tick", e.Tick, "sim_time", SimTime(e.Now, e.DayLength))
	return err
}

// Stop halts the simulation loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// step runs the callbacks of one tick.
func (e *Engine) step() error {
	if e.day < e.Days && e.Now > float64(e.day+1)*e.DayLength {
		e.day++
		if e.OnDay != nil {
			e.OnDay(e.day, e.Now)
		}
	}

	if e.OnTick != nil {
		if err := e.OnTick(e.Tick, e.Now); err != nil {
			return err
		}
	}

	if e.checkpoints != nil && e.nextCheckpoint >= 0 && e.Now >= e.nextCheckpoint {
		if e.OnCheckpoint != nil {
			e.OnCheckpoint(e.Now)
		}
		e.nextCheckpoint = e.advanceCheckpoint(e.Now)
	}
	return nil
}

// SimTime renders simulated seconds as day and time of day.
func SimTime(now, dayLength float64) string {
	if dayLength <= 0 {
		dayLength = 86400
	}
	day := int(now / dayLength)
	rem := int(now - float64(day)*dayLength)
	return fmt.Sprintf("Day %d, %02d:%02d:%02d", day, rem/3600, rem%3600/60, rem%60)
}
