package agents

import (
	"fmt"

	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

// ActivityKind names one daily behaviour.
type ActivityKind uint8

const (
	KindSleep ActivityKind = iota
	KindArrival
	KindGoToAirport
	KindScientific
	KindInjured
	KindHealthy
	KindSearchAndRescue
	KindOfficials
	KindDisasterRelief
	numKinds
)

var kindNames = [numKinds]string{
	KindSleep:           "Sleep",
	KindArrival:         "Arrival",
	KindGoToAirport:     "GoToAirport",
	KindScientific:      "Scientific",
	KindInjured:         "Injured",
	KindHealthy:         "Healthy",
	KindSearchAndRescue: "SearchAndRescue",
	KindOfficials:       "Officials",
	KindDisasterRelief:  "DisasterRelief",
}

func (k ActivityKind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Activity(%d)", uint8(k))
}

// Kinds returns every activity kind in declaration order.
func Kinds() []ActivityKind {
	out := make([]ActivityKind, numKinds)
	for i := range out {
		out[i] = ActivityKind(i)
	}
	return out
}

// state is the discrete position inside an activity's state graph. Values
// are shared by all kinds; each kind uses its own subset.
type state uint8

const (
	stBegin state = iota
	stArrive
	stToRDC
	stToOSOCC
	stBriefing
	stToTownHall
	stToBaseCamp
	stToAirport
	stWalkFirst
	stWalk
	stFood
	stRound
	stCollect
	stVolunteer
	stOperation
	stSearch
	stPatrol
	stToHospital
	stAtHospital
	stTooIll
	stGoHome
	stIdle
	stDayIdle
	stGone
)

// mode selects the sub-behaviour of a day.
type mode uint8

const (
	modeCollect mode = iota
	modeVolunteer
	modePatrol
	modeFood
	modeBurial
	modeRecon
)

// anchors are the fixed places an activity returns to. They are drawn once
// when the agent is built.
type anchors struct {
	home     world.Coord
	airport  world.Coord
	rdc      world.Coord
	osocc    world.Coord
	townHall world.Coord
	baseCamp world.Coord
	food     world.Coord
}

// Activity is one resumable state machine. All kinds share this struct; the
// behaviour is selected by Kind through the ops table.
type Activity struct {
	Kind ActivityKind

	state state
	mode  mode

	active  bool // owned by the scheduler
	start   bool // set by activate, consumed by the next poll
	running bool // begun and not yet ready
	ready   bool

	day     int
	started float64
	wait    float64

	initial world.Coord
	last    world.Coord
	next    world.Coord

	count int
	hops  int // neighbour hops taken in the current round

	places    anchors
	sleep     float64 // per-night sleep duration, fixed once drawn
	entered   bool    // first activation done
	walked    bool    // first-day neighbourhood walk done
	leave     bool    // ask the scheduler to route to GoToAirport
	volunteer bool    // fixed per-agent branch preference
	noHosp    bool    // fixed per-agent: never reaches a hospital
	jitter    float64 // extra arrival delay
}

// activate marks the activity to restart from its first state on the next
// poll. Calling it again for the same day before the activity completes
// changes nothing.
func (a *Activity) activate(day int) {
	if a.running && !a.ready && a.day == day {
		return
	}
	a.running = false
	a.start = true
	a.ready = false
	a.day = day
}

// Ready reports whether the activity has completed its day.
func (a *Activity) Ready() bool { return a.ready }

// Active reports whether the scheduler currently drives this activity.
func (a *Activity) Active() bool { return a.active }

// Day returns the day index the activity was last activated with.
func (a *Activity) Day() int { return a.day }

// InitialPosition returns where the activity starts on its first day.
func (a *Activity) InitialPosition() world.Coord { return a.initial }

// LastPosition returns the destination of the last emitted path, or the
// initial position when no path was emitted yet.
func (a *Activity) LastPosition() world.Coord { return a.last }

// Leaving reports whether the activity asked to leave via the airport.
func (a *Activity) Leaving() bool { return a.leave }

// poll returns a path when the activity is active, the horizon is not
// exhausted and the current wait has elapsed. A nil path with a nil error
// means "nothing this tick".
func (a *Activity) poll(c *env, now float64) (*world.Path, error) {
	if !a.active || a.ready || a.day >= c.set.Days {
		return nil, nil
	}
	op := ops[a.Kind]
	if a.start {
		a.start = false
		op.begin(a, c, now)
		a.entered = true
		a.running = true
	}
	return op.step(a, c, now)
}

func (a *Activity) waited(now float64) bool {
	return now-a.started >= a.wait
}

func (a *Activity) beginWait(now, d float64) {
	a.started = now
	a.wait = d
}

// dayOver reports whether simulated time has passed the boundary of the day
// this activity was activated for.
func (a *Activity) dayOver(c *env, now float64) bool {
	return now > c.dayEnd(a.day)
}

// travel requests a route from the last position to to. When no route
// exists it logs, leaves the state untouched and returns nil so the same
// step is retried on the next poll.
func (a *Activity) travel(c *env, to world.Coord) *world.Path {
	wps := c.nav.ShortestPath(a.last, to)
	if len(wps) == 0 {
		c.log.Debug("no route",
			"agent", c.name,
			"activity", a.Kind,
			"from", a.last,
			"to", to,
		)
		return nil
	}
	a.next = to
	a.last = wps[len(wps)-1]
	return &world.Path{Waypoints: wps, Speed: c.speed()}
}

// hop moves to the graph neighbour of the current position whose index
// choose returns. A dead end falls back to a fresh random main point.
func (a *Activity) hop(c *env, choose func(ns []world.Coord) int) *world.Path {
	ns := c.nav.Neighbors(a.last)
	if len(ns) == 0 {
		c.log.Debug("dead end, reselecting anchor", "agent", c.name, "activity", a.Kind, "at", a.last)
		return a.travel(c, c.pick(poi.MainPoint))
	}
	return a.travel(c, ns[choose(ns)])
}

func invalid(a *Activity) error {
	return fmt.Errorf("%w: %s in state %d", ErrInvalidState, a.Kind, a.state)
}
