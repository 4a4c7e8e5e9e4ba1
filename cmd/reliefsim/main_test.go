package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/persistence"
	"github.com/talgya/relief-mobility/internal/trace"
)

const testScenario = `
seed: 11
days: 2
tick_seconds: 30
map:
  generate: {columns: 6, rows: 5, spacing: 100}
  sites: {home: 3, hospital: 1, airport: 1, rdc: 1, osocc: 1, base_camp: 1, town_hall: 1, food: 1, burial: 1}
groups:
  - {role: Healthy, count: 2, sleep_time_min: 21600, sleep_time_max: 28800, places_to_visit: 1}
  - {role: Scientist, count: 1, sleep_time_min: 21600, sleep_time_max: 28800, places_to_visit: 1}
  - {role: SnR, count: 1, sleep_time_min: 21600, sleep_time_max: 28800, places_to_visit: 1}
output:
  db: out/run.db
  trace_dir: out/trace
`

func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "quake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScenario), 0o644))
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return Execute()
}

func TestRunThenReplay(t *testing.T) {
	path := writeScenario(t)
	dir := filepath.Dir(path)

	require.NoError(t, execute(t, "run", "--config", path, "--log-level", "warn"))

	db, err := persistence.Open(filepath.Join(dir, "out", "run.db"))
	require.NoError(t, err)
	run, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "quake", run.Scenario)
	assert.Equal(t, int64(11), run.Seed)
	stored, err := db.CountPaths(run.ID)
	require.NoError(t, err)
	assert.Positive(t, stored)
	require.NoError(t, db.Close())

	files, err := trace.Files(filepath.Join(dir, "out", "trace"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	var traced int
	for _, f := range files {
		evs, err := trace.ReadFile(f)
		require.NoError(t, err)
		traced += len(evs)
	}
	assert.Equal(t, stored, traced)

	require.NoError(t, execute(t, "replay", "--config", path, "--log-level", "warn"))
}

func TestReplayRejectsOtherSeed(t *testing.T) {
	path := writeScenario(t)
	require.NoError(t, execute(t, "run", "--config", path, "--log-level", "error"))

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = append([]byte("seed: 12\n"), data[len("\nseed: 11\n"):]...)
	require.NoError(t, os.WriteFile(other, data, 0o644))

	assert.Error(t, execute(t, "replay", "--config", other, "--log-level", "error"))
}

func TestPOIs(t *testing.T) {
	path := writeScenario(t)
	out := filepath.Join(t.TempDir(), "pois")

	require.NoError(t, execute(t, "pois", "--config", path, "--out", out, "--main-points", "--log-level", "error"))
	for _, name := range []string{"home.wkt", "airport.wkt", "main_point.wkt"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	poisMain = false
}

func TestBadLogLevel(t *testing.T) {
	path := writeScenario(t)
	assert.Error(t, execute(t, "pois", "--config", path, "--log-level", "loud"))
}
