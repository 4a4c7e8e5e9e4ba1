package world

import (
	"fmt"
	"os"

	"github.com/talgya/relief-mobility/internal/wkt"
)

// LoadWKT builds a road graph from a file of LINESTRING geometries. Every
// vertex becomes a node and every consecutive vertex pair a road segment.
// Vertices shared between linestrings join the streets into one network.
func LoadWKT(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map %s: %w", path, err)
	}
	defer f.Close()

	lines, err := wkt.ReadLineStrings(f)
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("read map %s: no linestrings", path)
	}

	m := NewMap()
	for _, line := range lines {
		prev := m.AddNode(Coord{X: line[0].X, Y: line[0].Y})
		for _, p := range line[1:] {
			cur := m.AddNode(Coord{X: p.X, Y: p.Y})
			m.Connect(prev, cur)
			prev = cur
		}
	}
	return m, nil
}

// MainPoints returns the positions of every node that has at least one road.
// Activities draw their random destinations from this set.
func (m *Map) MainPoints() []Coord {
	out := make([]Coord, 0, len(m.Nodes))
	for i := range m.Nodes {
		if len(m.Nodes[i].Neighbors) > 0 {
			out = append(out, m.Nodes[i].Pos)
		}
	}
	return out
}
