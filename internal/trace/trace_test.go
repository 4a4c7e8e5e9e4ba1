package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/engine"
	"github.com/talgya/relief-mobility/internal/trace"
	"github.com/talgya/relief-mobility/internal/world"
)

func TestWriterRotatesPerDay(t *testing.T) {
	dir := t.TempDir()
	w := trace.NewWriter(dir)

	day0 := []engine.PathEvent{
		{Seq: 1, Agent: "a", Day: 0, Time: 10, Speed: 1, Waypoints: []world.Coord{{X: 1}, {X: 2}}},
		{Seq: 2, Agent: "b", Day: 0, Time: 20, Speed: 1, Waypoints: []world.Coord{{X: 3}}},
	}
	day1 := engine.PathEvent{Seq: 3, Agent: "a", Day: 1, Time: 90000, Speed: 2, Waypoints: []world.Coord{{Y: 4}}}

	for _, ev := range day0 {
		require.NoError(t, w.Record(ev))
	}
	require.NoError(t, w.Record(day1))
	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Lines())

	files, err := trace.Files(dir)
	require.NoError(t, err)
	require.Equal(t, []string{trace.DayPath(dir, 0), trace.DayPath(dir, 1)}, files)

	got, err := trace.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, day0, got)

	got, err = trace.ReadFile(files[1])
	require.NoError(t, err)
	assert.Equal(t, []engine.PathEvent{day1}, got)
}

func TestCloseWithoutWrites(t *testing.T) {
	w := trace.NewWriter(t.TempDir())
	assert.NoError(t, w.Close())
}

func TestWriterReplacesEarlierRun(t *testing.T) {
	dir := t.TempDir()
	old := engine.PathEvent{Seq: 1, Agent: "old", Day: 0, Time: 5, Speed: 1, Waypoints: []world.Coord{{X: 9}}}
	first := trace.NewWriter(dir)
	require.NoError(t, first.Record(old))
	require.NoError(t, first.Close())

	fresh := []engine.PathEvent{
		{Seq: 1, Agent: "new", Day: 0, Time: 7, Speed: 1, Waypoints: []world.Coord{{X: 1}}},
		{Seq: 2, Agent: "new", Day: 0, Time: 8, Speed: 1, Waypoints: []world.Coord{{X: 2}}},
	}
	second := trace.NewWriter(dir)
	require.NoError(t, second.Record(fresh[0]))
	require.NoError(t, second.Close())
	// Reopening the same day within one writer keeps what it wrote.
	require.NoError(t, second.Record(fresh[1]))
	require.NoError(t, second.Close())

	got, err := trace.ReadFile(trace.DayPath(dir, 0))
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
}
