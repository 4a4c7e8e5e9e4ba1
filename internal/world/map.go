package world

import (
	"container/heap"
	"fmt"
	"math"
)

// NodeID indexes a node in Map.Nodes.
type NodeID int32

// Node is a road-network vertex.
type Node struct {
	ID        NodeID   `json:"id"`
	Pos       Coord    `json:"pos"`
	Neighbors []NodeID `json:"neighbors"`
}

// Map is an undirected road graph. Once built it is only read, so one Map is
// shared by every agent.
type Map struct {
	Nodes []Node

	index map[Coord]NodeID
}

// NewMap creates an empty road graph.
func NewMap() *Map {
	return &Map{index: make(map[Coord]NodeID)}
}

// AddNode returns the node at pos, creating it if needed.
func (m *Map) AddNode(pos Coord) NodeID {
	if id, ok := m.index[pos]; ok {
		return id
	}
	id := NodeID(len(m.Nodes))
	m.Nodes = append(m.Nodes, Node{ID: id, Pos: pos})
	m.index[pos] = id
	return id
}

// Connect links two nodes in both directions. Duplicate links and self loops
// are ignored.
func (m *Map) Connect(a, b NodeID) {
	if a == b {
		return
	}
	for _, n := range m.Nodes[a].Neighbors {
		if n == b {
			return
		}
	}
	m.Nodes[a].Neighbors = append(m.Nodes[a].Neighbors, b)
	m.Nodes[b].Neighbors = append(m.Nodes[b].Neighbors, a)
}

// NodeAt returns the node exactly at pos.
func (m *Map) NodeAt(pos Coord) (NodeID, bool) {
	id, ok := m.index[pos]
	return id, ok
}

// Snap returns the node at pos, or the nearest node when no node sits
// exactly there. It returns false only for an empty map.
func (m *Map) Snap(pos Coord) (NodeID, bool) {
	if id, ok := m.index[pos]; ok {
		return id, true
	}
	if len(m.Nodes) == 0 {
		return 0, false
	}
	best := NodeID(0)
	bestDist := math.Inf(1)
	for i := range m.Nodes {
		if d := Distance(pos, m.Nodes[i].Pos); d < bestDist {
			bestDist = d
			best = NodeID(i)
		}
	}
	return best, true
}

// Neighbors returns the positions of the graph neighbours of the node nearest
// to at. A dead end returns an empty slice.
func (m *Map) Neighbors(at Coord) []Coord {
	id, ok := m.Snap(at)
	if !ok {
		return nil
	}
	ns := m.Nodes[id].Neighbors
	out := make([]Coord, len(ns))
	for i, n := range ns {
		out[i] = m.Nodes[n].Pos
	}
	return out
}

// ShortestPath returns the waypoints of the shortest road route from one
// position to another, both snapped to their nearest nodes. The result starts
// at from's node and ends at to's node. No route yields nil, never an error.
func (m *Map) ShortestPath(from, to Coord) []Coord {
	src, ok := m.Snap(from)
	if !ok {
		return nil
	}
	dst, _ := m.Snap(to)
	if src == dst {
		return []Coord{m.Nodes[src].Pos}
	}

	dist := make([]float64, len(m.Nodes))
	prev := make([]NodeID, len(m.Nodes))
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0

	pq := &nodeQueue{{id: src}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queued)
		if cur.dist > dist[cur.id] {
			continue
		}
		if cur.id == dst {
			break
		}
		for _, n := range m.Nodes[cur.id].Neighbors {
			d := cur.dist + Distance(m.Nodes[cur.id].Pos, m.Nodes[n].Pos)
			if d < dist[n] {
				dist[n] = d
				prev[n] = cur.id
				heap.Push(pq, queued{id: n, dist: d})
			}
		}
	}
	if math.IsInf(dist[dst], 1) {
		return nil
	}

	var rev []Coord
	for at := dst; at != -1; at = prev[at] {
		rev = append(rev, m.Nodes[at].Pos)
	}
	out := make([]Coord, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// EdgeCount returns the number of undirected road segments.
func (m *Map) EdgeCount() int {
	total := 0
	for i := range m.Nodes {
		total += len(m.Nodes[i].Neighbors)
	}
	return total / 2
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(nodes=%d, edges=%d)", len(m.Nodes), m.EdgeCount())
}

type queued struct {
	id   NodeID
	dist float64
}

type nodeQueue []queued

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist == q[j].dist {
		return q[i].id < q[j].id
	}
	return q[i].dist < q[j].dist
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queued)) }
func (q *nodeQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}
