// Site placement: picks well-connected intersections for the facilities of a
// disaster area (hospitals, camps, distribution points, ...).
package world

import (
	"math/rand"
	"sort"
)

// SiteRequest asks for Count sites at least MinDist metres from every site
// already placed for the same request.
type SiteRequest struct {
	Count   int
	MinDist float64
}

// PlaceSites returns one coordinate list per request. Candidates are scored by
// street connectivity with a seeded jitter, so the same seed always yields the
// same layout. Dead-end intersections are never chosen. A request may receive
// fewer sites than asked when the map is too small for its spacing.
func PlaceSites(m *Map, seed int64, reqs []SiteRequest) [][]Coord {
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		id    NodeID
		score float64
	}
	var candidates []scored
	for i := range m.Nodes {
		deg := len(m.Nodes[i].Neighbors)
		if deg == 0 {
			continue
		}
		candidates = append(candidates, scored{NodeID(i), siteScore(deg) + rng.Float64()})
	}

	// Sort by score descending; ties keep node order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([][]Coord, len(reqs))
	for r, req := range reqs {
		// Each request walks the candidates from a different offset so that
		// categories do not all cluster on the best intersections.
		start := 0
		if len(candidates) > 0 {
			start = rng.Intn(len(candidates))
		}
		var sites []Coord
		for k := 0; k < len(candidates) && len(sites) < req.Count; k++ {
			c := candidates[(start+k)%len(candidates)]
			pos := m.Nodes[c.id].Pos
			if tooClose(pos, sites, req.MinDist) {
				continue
			}
			sites = append(sites, pos)
		}
		out[r] = sites
	}
	return out
}

// siteScore prefers busy crossings: four-way intersections score highest.
func siteScore(degree int) float64 {
	switch {
	case degree >= 4:
		return 3.0
	case degree == 3:
		return 2.0
	default:
		return 0.5
	}
}

func tooClose(pos Coord, existing []Coord, minDist float64) bool {
	for _, s := range existing {
		if Distance(pos, s) < minDist {
			return true
		}
	}
	return false
}
