package poi

import (
	"errors"
	"fmt"
	"os"

	"github.com/talgya/relief-mobility/internal/wkt"
	"github.com/talgya/relief-mobility/internal/world"
)

var (
	// ErrUnreadable reports a POI file that could not be opened or parsed.
	ErrUnreadable = errors.New("poi file unreadable")
	// ErrEmptyCategory reports a required category with no points.
	ErrEmptyCategory = errors.New("poi category empty")
)

// Registry is an immutable set of coordinates per category.
type Registry struct {
	points [numCategories][]world.Coord
}

// New builds a registry from in-memory points. The slices are copied.
func New(points map[Category][]world.Coord) *Registry {
	r := &Registry{}
	for cat, pts := range points {
		if cat < numCategories {
			r.points[cat] = append([]world.Coord(nil), pts...)
		}
	}
	return r
}

// Load reads one WKT file per category. Every category in required must end
// up with at least one point.
func Load(files map[Category]string, required []Category) (*Registry, error) {
	points := make(map[Category][]world.Coord, len(files))
	for cat, path := range files {
		pts, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cat, err)
		}
		if len(pts) == 0 {
			return nil, fmt.Errorf("%s (%s): %w", cat, path, ErrEmptyCategory)
		}
		points[cat] = pts
	}
	r := New(points)
	if err := r.Require(required...); err != nil {
		return nil, err
	}
	return r, nil
}

func loadFile(path string) ([]world.Coord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	pts, err := wkt.ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	out := make([]world.Coord, len(pts))
	for i, p := range pts {
		out[i] = world.Coord{X: p.X, Y: p.Y}
	}
	return out, nil
}

// Require checks that each listed category holds at least one point.
func (r *Registry) Require(cats ...Category) error {
	for _, cat := range cats {
		if len(r.Points(cat)) == 0 {
			return fmt.Errorf("%s: %w", cat, ErrEmptyCategory)
		}
	}
	return nil
}

// Points returns the coordinates of a category. Callers must not modify the
// returned slice.
func (r *Registry) Points(cat Category) []world.Coord {
	if cat >= numCategories {
		return nil
	}
	return r.points[cat]
}

// WithDefault returns a registry that uses pts for cat when cat is empty.
// The receiver is left untouched.
func (r *Registry) WithDefault(cat Category, pts []world.Coord) *Registry {
	if cat >= numCategories || len(r.points[cat]) > 0 {
		return r
	}
	cp := *r
	cp.points[cat] = append([]world.Coord(nil), pts...)
	return &cp
}

// Pick returns one point of cat chosen with intn. ok is false for an empty
// category.
func (r *Registry) Pick(cat Category, intn func(int) int) (world.Coord, bool) {
	pts := r.Points(cat)
	if len(pts) == 0 {
		return world.Coord{}, false
	}
	return pts[intn(len(pts))], true
}
