package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/relief-mobility/internal/entropy"
	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

// Settings are the per-group parameters every activity of an agent reads.
// Times are simulated seconds.
type Settings struct {
	Days        int     // horizon in simulated days
	DayLength   float64 // seconds per simulated day
	StartOffset float64 // delay before the first night ends or the first arrival

	SleepMin float64
	SleepMax float64

	PlacesToVisit    int
	NeighborsToVisit int

	VolunteeringProb float64
	TooInjuredProb   float64

	SpeedMin float64
	SpeedMax float64

	ShortWait float64
	LongWait  float64
}

// DefaultWait returns the short and long wait bounds of a role.
func DefaultWait(r Role) (short, long float64) {
	switch r {
	case RoleInjured:
		return 2000, 20000
	case RoleUN, RoleGovernment, RoleDRO:
		return 8000, 20000
	case RoleSnR:
		return 6000, 12000
	default:
		return 2000, 5000
	}
}

// DefaultSettings returns settings with every optional value filled in.
func DefaultSettings(r Role, days int) Settings {
	short, long := DefaultWait(r)
	return Settings{
		Days:      days,
		DayLength: 86400,
		SleepMin:  6 * 3600,
		SleepMax:  9 * 3600,
		SpeedMin:  0.5,
		SpeedMax:  1.5,
		ShortWait: short,
		LongWait:  long,
	}
}

func (s Settings) validate() error {
	switch {
	case s.Days < 1:
		return fmt.Errorf("days must be at least 1, got %d", s.Days)
	case s.DayLength <= 0:
		return fmt.Errorf("day length must be positive, got %g", s.DayLength)
	case s.SleepMin < 0 || s.SleepMax < s.SleepMin:
		return fmt.Errorf("sleep range [%g, %g] is invalid", s.SleepMin, s.SleepMax)
	case s.SpeedMin <= 0 || s.SpeedMax < s.SpeedMin:
		return fmt.Errorf("speed range [%g, %g] is invalid", s.SpeedMin, s.SpeedMax)
	case s.ShortWait < 0 || s.LongWait < 0:
		return fmt.Errorf("wait bounds must not be negative")
	case s.PlacesToVisit < 0 || s.NeighborsToVisit < 0:
		return fmt.Errorf("visit counts must not be negative")
	}
	return nil
}

// Navigator is the path provider. An empty result means no route.
type Navigator interface {
	ShortestPath(from, to world.Coord) []world.Coord
	Neighbors(at world.Coord) []world.Coord
}

// Deps is everything a scheduler needs besides its role. POIs and Nav are
// shared read-only; Rand must belong to this agent alone.
type Deps struct {
	Name     string
	Settings Settings
	POIs     *poi.Registry
	Nav      Navigator
	Rand     *entropy.Source
}

// env is the per-agent environment threaded through every step.
type env struct {
	name string
	set  Settings
	pois *poi.Registry
	nav  Navigator
	rng  *entropy.Source
	log  *slog.Logger
}

func (c *env) float() float64 { return c.rng.Float() }

func (c *env) shortWait() float64 { return c.float() * c.set.ShortWait }

func (c *env) longWait() float64 { return c.float() * c.set.LongWait }

func (c *env) speed() float64 { return c.rng.Between(c.set.SpeedMin, c.set.SpeedMax) }

func (c *env) pick(cat poi.Category) world.Coord {
	p, _ := c.pois.Pick(cat, c.rng.Intn)
	return p
}

func (c *env) dayEnd(day int) float64 { return float64(day+1) * c.set.DayLength }
