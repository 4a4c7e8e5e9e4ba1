package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

// Scheduler drives exactly one activity at a time for one agent and hands
// over between activities as the role's transition table dictates.
type Scheduler struct {
	role Role
	env  env

	acts [numKinds]*Activity // nil for kinds the role never uses
	cur  ActivityKind
	day  int
	done bool
}

// NewScheduler builds the scheduler of one agent. Every random draw that
// fixes the agent's anchors and preferences happens here, in a fixed order,
// from deps.Rand.
func NewScheduler(role Role, deps Deps) (*Scheduler, error) {
	if role >= numRoles {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err := deps.Settings.validate(); err != nil {
		return nil, fmt.Errorf("%s settings: %w", role, err)
	}
	if deps.POIs == nil || deps.Nav == nil || deps.Rand == nil {
		return nil, fmt.Errorf("%s scheduler: missing dependency", role)
	}
	if err := deps.POIs.Require(RequiredCategories(role)...); err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}

	s := &Scheduler{
		role: role,
		env: env{
			name: deps.Name,
			set:  deps.Settings,
			pois: deps.POIs,
			nav:  deps.Nav,
			rng:  deps.Rand,
			log:  slog.Default(),
		},
	}
	c := &s.env

	var pl anchors
	pl.home = c.pick(poi.Home)
	pl.airport = c.pick(poi.Airport)
	pl.rdc = c.pick(poi.RDC)
	pl.osocc = c.pick(poi.OSOCC)
	pl.townHall = c.pick(poi.TownHall)
	pl.baseCamp = c.pick(poi.BaseCamp)
	pl.food = c.pick(poi.Food)

	start := pl.home
	if len(c.pois.Points(poi.Home)) == 0 {
		start = pl.baseCamp
	}

	for _, k := range roleKinds(role) {
		a := &Activity{Kind: k, places: pl, initial: start, last: start}
		switch k {
		case KindArrival:
			a.initial, a.last = pl.airport, pl.airport
			a.jitter = c.float() * c.set.StartOffset / 2
		case KindScientific:
			a.volunteer = c.float()*c.set.VolunteeringProb*2 < 0.5
		case KindHealthy:
			a.volunteer = c.float()*c.set.VolunteeringProb*2 <= 0.5
		case KindInjured:
			a.noHosp = c.float()*c.set.TooInjuredProb <= 0.15
		case KindOfficials:
			a.mode = modeRecon
		}
		s.acts[k] = a
	}

	s.cur = initialKinds[role]
	first := s.acts[s.cur]
	first.active = true
	first.activate(0)
	return s, nil
}

// Tick advances the agent to simulated time now and returns the path it
// starts travelling, if any. Errors are fatal for this agent.
func (s *Scheduler) Tick(now float64) (*world.Path, error) {
	horizon := s.env.set.Days
	if s.day != horizon && now > s.env.dayEnd(s.day) {
		s.day++
		if sl := s.acts[KindSleep]; sl != nil {
			sl.day = s.day
		}
		s.env.log.Debug("day boundary", "agent", s.env.name, "day", s.day)
	}
	if s.day >= horizon || s.done {
		return nil, nil
	}

	cur := s.acts[s.cur]
	p, err := cur.poll(&s.env, now)
	if err != nil || p != nil || !cur.ready {
		return p, err
	}

	t, ok := LookupTransition(s.role, s.cur)
	if !ok {
		return nil, fmt.Errorf("%w: %s after %s", ErrUndefinedTransition, s.role, s.cur)
	}
	if t.Terminal {
		s.done = true
		return nil, nil
	}

	nextKind := t.Next
	from := cur
	carry := t.Carry
	if t.Diverts && s.acts[t.Next] != nil && s.acts[t.Next].leave {
		from = s.acts[t.Next]
		nextKind = t.Divert
		carry = true
	}
	next := s.acts[nextKind]
	if next == nil {
		return nil, fmt.Errorf("%w: %s has no %s activity", ErrInvalidState, s.role, nextKind)
	}

	cur.active = false
	if carry {
		next.last = from.last
	}
	next.active = true
	next.activate(s.day)
	s.cur = nextKind

	s.env.log.Debug("activity switch",
		"agent", s.env.name,
		"from", cur.Kind,
		"to", nextKind,
		"day", s.day,
	)
	return next.poll(&s.env, now)
}

// InitialLocation is where the agent stands before its first path.
func (s *Scheduler) InitialLocation() world.Coord {
	return s.acts[initialKinds[s.role]].initial
}

// Day returns the day counter.
func (s *Scheduler) Day() int { return s.day }

// Current returns the kind of the active activity.
func (s *Scheduler) Current() ActivityKind { return s.cur }

// Role returns the scheduler's role.
func (s *Scheduler) Role() Role { return s.role }

// Finished reports whether the agent has left the area or the horizon has
// been reached. A finished scheduler never emits another path.
func (s *Scheduler) Finished() bool {
	return s.done || s.day >= s.env.set.Days
}

// ActiveCount returns how many activities are currently active. It is
// always one.
func (s *Scheduler) ActiveCount() int {
	n := 0
	for _, a := range s.acts {
		if a != nil && a.active {
			n++
		}
	}
	return n
}

// Activity exposes one of the scheduler's activities, or nil when the role
// does not use that kind.
func (s *Scheduler) Activity(k ActivityKind) *Activity {
	if k >= numKinds {
		return nil
	}
	return s.acts[k]
}
