// Package world provides the road network, planar coordinates, and the
// shortest-path provider that activities request travel paths from.
package world

import (
	"fmt"
	"math"
)

// Coord is a planar map position in metres.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two coordinates.
func Distance(a, b Coord) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// String renders the coordinate the way it appears in logs.
func (c Coord) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", c.X, c.Y)
}

// Path is an ordered, non-empty sequence of waypoints travelled at a fixed
// speed (metres per second). A Path is not modified after it has been handed
// to the host loop.
type Path struct {
	Waypoints []Coord `json:"waypoints"`
	Speed     float64 `json:"speed"`
}

// Destination returns the last waypoint.
func (p *Path) Destination() Coord {
	return p.Waypoints[len(p.Waypoints)-1]
}

// Origin returns the first waypoint.
func (p *Path) Origin() Coord {
	return p.Waypoints[0]
}

// Length returns the travelled distance along the waypoints.
func (p *Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p.Waypoints); i++ {
		total += Distance(p.Waypoints[i-1], p.Waypoints[i])
	}
	return total
}
