// City generation using layered simplex noise.
// Builds a grid street network and closes the street segments that the
// damage field marks as blocked by rubble.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Columns int     // Intersections per row
	Rows    int     // Intersections per column
	Spacing float64 // Block edge length in metres
	Rubble  float64 // Share of the damage range that blocks a street (0 = intact city)
	Seed    int64   // Noise seed (0 = random)
}

// DefaultGenConfig returns a district-sized city with moderate damage.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Columns: 40,
		Rows:    30,
		Spacing: 120,
		Rubble:  0.12,
		Seed:    0,
	}
}

// SmallTestConfig returns a tiny intact grid for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Columns: 6,
		Rows:    5,
		Spacing: 100,
		Rubble:  0,
		Seed:    42,
	}
}

// Generate creates the street graph. Intersections sit exactly on multiples
// of Spacing so that points sampled from the map snap without error.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	damage := opensimplex.NewNormalized(seed)

	m := NewMap()
	ids := make([][]NodeID, cfg.Rows)
	for r := 0; r < cfg.Rows; r++ {
		ids[r] = make([]NodeID, cfg.Columns)
		for c := 0; c < cfg.Columns; c++ {
			ids[r][c] = m.AddNode(Coord{X: float64(c) * cfg.Spacing, Y: float64(r) * cfg.Spacing})
		}
	}

	threshold := 1 - cfg.Rubble
	for r := 0; r < cfg.Rows; r++ {
		for c := 0; c < cfg.Columns; c++ {
			// East and north segments; sample damage at the segment midpoint.
			if c+1 < cfg.Columns && !blocked(damage, float64(c)+0.5, float64(r), threshold, cfg.Rubble) {
				m.Connect(ids[r][c], ids[r][c+1])
			}
			if r+1 < cfg.Rows && !blocked(damage, float64(c), float64(r)+0.5, threshold, cfg.Rubble) {
				m.Connect(ids[r][c], ids[r+1][c])
			}
		}
	}
	return m
}

func blocked(noise opensimplex.Noise, x, y, threshold, rubble float64) bool {
	if rubble <= 0 {
		return false
	}
	return octaveNoise(noise, x, y, 3, 0.15, 0.5) > threshold
}

// octaveNoise samples several octaves of noise and normalises back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// DeadEnds returns the nodes that have no usable street at all.
func DeadEnds(m *Map) []NodeID {
	var out []NodeID
	for i := range m.Nodes {
		if len(m.Nodes[i].Neighbors) == 0 {
			out = append(out, NodeID(i))
		}
	}
	return out
}
