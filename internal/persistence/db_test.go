package persistence_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/config"
	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/persistence"
	"github.com/talgya/relief-mobility/internal/world"
)

func openDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRuns(t *testing.T) {
	db := openDB(t)
	run := persistence.NewRun("quake.yaml", 7, 3, 86400)
	require.NotEmpty(t, run.ID)
	require.NoError(t, db.SaveRun(run))

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	_, err = db.GetRun("missing")
	assert.Error(t, err)
}

func TestPathsRoundTrip(t *testing.T) {
	db := openDB(t)
	in := []engine.PathEvent{
		{Seq: 1, AgentID: 3, Agent: "Healthy2", Role: "Healthy", Activity: "Healthy", Day: 0, Time: 30000, Speed: 1.2,
			Waypoints: []world.Coord{{X: 0, Y: 0}, {X: 100, Y: 0}}},
		{Seq: 2, AgentID: 1, Agent: "un-0", Role: "UN", Activity: "Arrival", Day: 1, Time: 90000.5, Speed: 0.7,
			Waypoints: []world.Coord{{X: 5, Y: 5}}},
	}
	require.NoError(t, db.SavePaths("r1", in))
	require.NoError(t, db.SavePaths("r2", in[:1]))

	out, err := db.LoadPaths("r1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	n, err := db.CountPaths("r2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMeta(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.SaveMeta("r1", "last_time", "100"))
	require.NoError(t, db.SaveMeta("r1", "last_time", "200"))
	v, err := db.GetMeta("r1", "last_time")
	require.NoError(t, err)
	assert.Equal(t, "200", v)
}

const scenarioDoc = `
seed: 5
days: 1
map:
  generate: {columns: 6, rows: 5, spacing: 100}
  sites: {home: 3, food: 2}
groups:
  - {role: Healthy, count: 4, sleep_time_min: 20000, sleep_time_max: 30000, places_to_visit: 1}
`

func TestRecorderCheckpoints(t *testing.T) {
	db := openDB(t)
	scn, err := config.Parse([]byte(scenarioDoc))
	require.NoError(t, err)
	sim, err := engine.Build(scn)
	require.NoError(t, err)

	run := persistence.NewRun("inline", scn.Seed, scn.Days, scn.DayLength)
	require.NoError(t, db.SaveRun(run))
	rec := persistence.NewRecorder(db, run.ID)
	sim.AddSink(rec)

	sched, err := scn.Checkpoints()
	require.NoError(t, err)
	e := engine.NewEngine(30, scn.DayLength, scn.Days)
	e.SetCheckpoints(sched)
	e.OnTick = func(_ uint64, now float64) error { return sim.Step(now) }
	e.OnDay = sim.TickDay
	e.OnCheckpoint = func(now float64) { require.NoError(t, rec.Checkpoint(sim, now)) }
	require.NoError(t, e.Run(context.Background()))

	stats, _, _ := sim.Snapshot()
	require.Positive(t, stats.Paths)
	assert.Equal(t, int(stats.Paths), rec.Saved())

	paths, err := db.LoadPaths(run.ID)
	require.NoError(t, err)
	assert.Len(t, paths, rec.Saved())

	events, err := db.RecentEvents(run.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "day", events[0].Category)

	last, err := db.GetMeta(run.ID, "last_time")
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}
