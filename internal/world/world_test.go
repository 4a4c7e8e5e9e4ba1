package world_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/world"
)

// line builds a straight street of n nodes spaced 100 m apart along x.
func line(n int) *world.Map {
	m := world.NewMap()
	prev := m.AddNode(world.Coord{})
	for i := 1; i < n; i++ {
		cur := m.AddNode(world.Coord{X: float64(i) * 100})
		m.Connect(prev, cur)
		prev = cur
	}
	return m
}

func TestConnect_IgnoresDuplicatesAndSelfLoops(t *testing.T) {
	m := world.NewMap()
	a := m.AddNode(world.Coord{X: 0})
	b := m.AddNode(world.Coord{X: 1})
	m.Connect(a, b)
	m.Connect(b, a)
	m.Connect(a, a)
	assert.Equal(t, 1, m.EdgeCount())
	assert.Equal(t, a, m.AddNode(world.Coord{X: 0}))
}

func TestShortestPath(t *testing.T) {
	m := line(5)
	p := m.ShortestPath(world.Coord{X: 0}, world.Coord{X: 400})
	require.Len(t, p, 5)
	assert.Equal(t, world.Coord{X: 0}, p[0])
	assert.Equal(t, world.Coord{X: 400}, p[4])
}

func TestShortestPath_SnapsAndSameNode(t *testing.T) {
	m := line(3)
	p := m.ShortestPath(world.Coord{X: 4, Y: 3}, world.Coord{X: 1})
	assert.Equal(t, []world.Coord{{X: 0}}, p)
}

func TestShortestPath_Unreachable(t *testing.T) {
	m := line(2)
	m.AddNode(world.Coord{X: 1000, Y: 1000})
	assert.Nil(t, m.ShortestPath(world.Coord{}, world.Coord{X: 1000, Y: 1000}))
}

func TestShortestPath_PrefersShorterRoute(t *testing.T) {
	m := world.NewMap()
	a := m.AddNode(world.Coord{X: 0, Y: 0})
	b := m.AddNode(world.Coord{X: 100, Y: 0})
	c := m.AddNode(world.Coord{X: 0, Y: 500})
	d := m.AddNode(world.Coord{X: 200, Y: 0})
	m.Connect(a, b)
	m.Connect(b, d)
	m.Connect(a, c)
	m.Connect(c, d)
	p := m.ShortestPath(world.Coord{}, world.Coord{X: 200})
	assert.Equal(t, []world.Coord{{X: 0}, {X: 100}, {X: 200}}, p)
}

func TestNeighbors(t *testing.T) {
	m := line(3)
	assert.ElementsMatch(t, []world.Coord{{X: 0}, {X: 200}}, m.Neighbors(world.Coord{X: 100}))

	m.AddNode(world.Coord{X: 5000})
	assert.Empty(t, m.Neighbors(world.Coord{X: 5000}))
}

func TestGenerate_IntactGrid(t *testing.T) {
	cfg := world.SmallTestConfig()
	m := world.Generate(cfg)
	assert.Len(t, m.Nodes, cfg.Columns*cfg.Rows)
	// (c-1)*r horizontal + c*(r-1) vertical segments.
	assert.Equal(t, (cfg.Columns-1)*cfg.Rows+cfg.Columns*(cfg.Rows-1), m.EdgeCount())
	assert.Empty(t, world.DeadEnds(m))
	assert.Len(t, m.MainPoints(), len(m.Nodes))
}

func TestGenerate_RubbleIsDeterministic(t *testing.T) {
	cfg := world.DefaultGenConfig()
	cfg.Seed = 7
	cfg.Rubble = 0.3
	a := world.Generate(cfg)
	b := world.Generate(cfg)
	assert.Equal(t, a.EdgeCount(), b.EdgeCount())

	cfg.Rubble = 0
	intact := world.Generate(cfg)
	assert.LessOrEqual(t, a.EdgeCount(), intact.EdgeCount())
}

func TestPlaceSites(t *testing.T) {
	m := world.Generate(world.SmallTestConfig())
	sites := world.PlaceSites(m, 3, []world.SiteRequest{{Count: 3, MinDist: 150}, {Count: 2, MinDist: 0}})
	require.Len(t, sites, 2)
	assert.Len(t, sites[0], 3)
	assert.Len(t, sites[1], 2)
	for i := range sites[0] {
		for j := i + 1; j < len(sites[0]); j++ {
			assert.GreaterOrEqual(t, world.Distance(sites[0][i], sites[0][j]), 150.0)
		}
	}
	again := world.PlaceSites(m, 3, []world.SiteRequest{{Count: 3, MinDist: 150}, {Count: 2, MinDist: 0}})
	assert.Equal(t, sites, again)
}

func TestLoadWKT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.wkt")
	src := "LINESTRING (0 0, 100 0, 200 0)\nLINESTRING (100 0, 100 100)\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	m, err := world.LoadWKT(path)
	require.NoError(t, err)
	assert.Len(t, m.Nodes, 4)
	assert.Equal(t, 3, m.EdgeCount())
	assert.Len(t, m.Neighbors(world.Coord{X: 100}), 3)
}

func TestLoadWKT_Missing(t *testing.T) {
	_, err := world.LoadWKT(filepath.Join(t.TempDir(), "nope.wkt"))
	assert.Error(t, err)
}

func TestPathLength(t *testing.T) {
	p := &world.Path{Waypoints: []world.Coord{{X: 0}, {X: 3, Y: 4}, {X: 3, Y: 10}}, Speed: 1}
	assert.InDelta(t, 11.0, p.Length(), 1e-9)
	assert.Equal(t, world.Coord{X: 3, Y: 10}, p.Destination())
	assert.Equal(t, world.Coord{}, p.Origin())
}
