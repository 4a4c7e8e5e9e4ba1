// Package poi holds the points of interest an agent draws its destinations
// from. A Registry is built once per group and shared read-only by every
// agent of that group.
package poi

import (
	"fmt"
	"strings"
)

// Category is a semantic class of candidate coordinates.
type Category uint8

const (
	Home Category = iota
	Hospital
	Airport
	RDC // Reception and Departure Centre
	OSOCC
	BaseCamp
	TownHall
	Burial
	Food
	MainPoint
	numCategories
)

var categoryNames = [numCategories]string{
	Home:      "home",
	Hospital:  "hospital",
	Airport:   "airport",
	RDC:       "rdc",
	OSOCC:     "osocc",
	BaseCamp:  "base_camp",
	TownHall:  "town_hall",
	Burial:    "burial",
	Food:      "food",
	MainPoint: "main_point",
}

// String returns the configuration key of the category.
func (c Category) String() string {
	if c < numCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory maps a configuration key to its Category.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == key {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown poi category %q", s)
}

// All returns every category in declaration order.
func All() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}
