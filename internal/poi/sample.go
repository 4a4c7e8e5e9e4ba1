package poi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/talgya/relief-mobility/internal/wkt"
	"github.com/talgya/relief-mobility/internal/world"
)

// Sample places count points of each requested category on intersections of
// m. Sites of one category keep at least minDist apart when the map allows.
// Main points are not sampled: every road node already is one.
func Sample(m *world.Map, seed int64, counts map[Category]int, minDist float64) map[Category][]world.Coord {
	cats := make([]Category, 0, len(counts))
	for _, cat := range All() {
		if n, ok := counts[cat]; ok && n > 0 && cat != MainPoint {
			cats = append(cats, cat)
		}
	}
	reqs := make([]world.SiteRequest, len(cats))
	for i, cat := range cats {
		reqs[i] = world.SiteRequest{Count: counts[cat], MinDist: minDist}
	}
	sites := world.PlaceSites(m, seed, reqs)

	out := make(map[Category][]world.Coord, len(cats))
	for i, cat := range cats {
		out[cat] = sites[i]
	}
	return out
}

// WriteFiles writes one <category>.wkt file per category into dir and
// returns the file paths keyed by category.
func WriteFiles(dir string, points map[Category][]world.Coord) (map[Category]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create poi dir: %w", err)
	}
	files := make(map[Category]string, len(points))
	for cat, pts := range points {
		path := filepath.Join(dir, cat.String()+".wkt")
		if err := writeFile(path, pts); err != nil {
			return nil, fmt.Errorf("write %s: %w", cat, err)
		}
		files[cat] = path
	}
	return files, nil
}

func writeFile(path string, pts []world.Coord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	out := make([]wkt.Point, len(pts))
	for i, p := range pts {
		out[i] = wkt.Point{X: p.X, Y: p.Y}
	}
	if err := wkt.WritePoints(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
