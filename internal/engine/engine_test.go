package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/config"
	"github.com/talgya/relief-mobility/internal/engine"
)

func TestEngineRun_DaysAndCheckpoints(t *testing.T) {
	e := engine.NewEngine(3600, 86400, 2)
	sched, err := cron.ParseStandard("0 */12 * * *")
	require.NoError(t, err)
	e.SetCheckpoints(sched)

	var ticks int
	var days []int
	var checkpoints []float64
	e.OnTick = func(uint64, float64) error { ticks++; return nil }
	e.OnDay = func(day int, _ float64) { days = append(days, day) }
	e.OnCheckpoint = func(now float64) { checkpoints = append(checkpoints, now) }

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 50, ticks)
	assert.Equal(t, []int{1, 2}, days)
	assert.Equal(t, []float64{43200, 86400, 129600, 172800, 180000}, checkpoints)
	assert.False(t, e.Running())
}

func TestEngineRun_Cancelled(t *testing.T) {
	e := engine.NewEngine(1, 86400, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	final := false
	e.OnCheckpoint = func(float64) { final = true }
	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, final, "a final checkpoint is taken on cancellation")
}

func TestEngineRun_TickError(t *testing.T) {
	boom := errors.New("boom")
	e := engine.NewEngine(60, 86400, 1)
	e.OnTick = func(tick uint64, _ float64) error {
		if tick == 5 {
			return boom
		}
		return nil
	}
	assert.ErrorIs(t, e.Run(context.Background()), boom)
	assert.Equal(t, uint64(5), e.Tick)
}

func TestEngineRun_StopsWhenDone(t *testing.T) {
	e := engine.NewEngine(60, 86400, 3)
	e.Done = func() bool { return e.Now >= 600 }
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(10), e.Tick)
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 0, 00:00:00", engine.SimTime(0, 86400))
	assert.Equal(t, "Day 1, 01:01:01", engine.SimTime(86400+3661, 86400))
}

const scenarioDoc = `
seed: 3
days: 1
map:
  generate: {columns: 8, rows: 6, spacing: 100}
  sites: {home: 4, hospital: 2, airport: 1, rdc: 1, osocc: 1, base_camp: 1, town_hall: 1, burial: 2, food: 2}
groups:
  - {role: Healthy, count: 3, sleep_time_min: 21600, sleep_time_max: 28800, places_to_visit: 2}
  - {role: UN, count: 2, sleep_time_min: 21600, sleep_time_max: 28800, places_to_visit: 1}
  - {role: Injured, count: 2, sleep_time_min: 21600, sleep_time_max: 28800}
`

type collector struct{ events []engine.PathEvent }

func (c *collector) Record(ev engine.PathEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func runScenario(t *testing.T) (*engine.Simulation, []engine.PathEvent) {
	t.Helper()
	scn, err := config.Parse([]byte(scenarioDoc))
	require.NoError(t, err)
	sim, err := engine.Build(scn)
	require.NoError(t, err)

	col := &collector{}
	sim.AddSink(col)
	e := engine.NewEngine(10, scn.DayLength, scn.Days)
	e.OnTick = func(_ uint64, now float64) error { return sim.Step(now) }
	e.OnDay = sim.TickDay
	e.Done = sim.Finished
	require.NoError(t, e.Run(context.Background()))
	return sim, col.events
}

func TestSimulation_RunsScenario(t *testing.T) {
	sim, events := runScenario(t)
	require.Len(t, sim.Agents, 7)
	require.NotEmpty(t, events)

	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.NotEmpty(t, ev.Waypoints)
		assert.Equal(t, 0, ev.Day)
	}
	stats, _, day := sim.Snapshot()
	assert.Equal(t, uint64(len(events)), stats.Paths)
	assert.Equal(t, 7, stats.Agents)
	assert.Zero(t, stats.Halted)
	assert.Equal(t, 1, day)
	assert.True(t, sim.Finished())

	views := sim.Views("UN")
	require.Len(t, views, 2)
	v, ok := sim.View(views[0].ID)
	require.True(t, ok)
	assert.Equal(t, "UN", v.Role)
	assert.NotEmpty(t, sim.RecentEvents(5))
}

func TestSimulation_Deterministic(t *testing.T) {
	_, a := runScenario(t)
	_, b := runScenario(t)
	assert.Equal(t, a, b)
}
