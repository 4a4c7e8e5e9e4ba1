// Per-kind behaviour: each activity kind is a begin function, run when the
// activity is (re)activated, and a step function, run on every poll.
package agents

import (
	"sort"

	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

// Arrival and departure run on fixed multiples of this scale, whatever the
// role's own wait bounds are.
const transitScale = 2000

type kindOps struct {
	begin func(a *Activity, c *env, now float64)
	step  func(a *Activity, c *env, now float64) (*world.Path, error)
}

var ops = [numKinds]kindOps{
	KindSleep:           {beginSleep, stepSleep},
	KindArrival:         {beginArrival, stepArrival},
	KindGoToAirport:     {beginGoToAirport, stepGoToAirport},
	KindScientific:      {beginScientific, stepScientific},
	KindInjured:         {beginInjured, stepInjured},
	KindHealthy:         {beginHealthy, stepHealthy},
	KindSearchAndRescue: {beginSearchAndRescue, stepSearchAndRescue},
	KindOfficials:       {beginOfficials, stepOfficials},
	KindDisasterRelief:  {beginDisasterRelief, stepDisasterRelief},
}

// ── Sleep ───────────────────────────────────────────────────────────────

func beginSleep(a *Activity, c *env, now float64) {
	if !a.entered {
		s := c.set.SleepMax*c.float() + c.set.SleepMin*c.float()
		a.sleep = clamp(s, c.set.SleepMin, c.set.SleepMax)
	}
	a.state = stIdle
}

// stepSleep never emits a path. It completes once the time since the start
// of the current day exceeds the sleep duration. The scheduler moves a.day
// forward at every day boundary, so the check always uses the latest day.
func stepSleep(a *Activity, c *env, now float64) (*world.Path, error) {
	wake := float64(a.day)*c.set.DayLength + a.sleep
	if a.day == 0 {
		wake += c.set.StartOffset
	}
	if now > wake {
		a.ready = true
	}
	return nil, nil
}

// ── Arrival: airport, RDC, OSOCC, base camp ─────────────────────────────

func beginArrival(a *Activity, c *env, now float64) {
	a.state = stArrive
	a.beginWait(now, transitScale*2+c.set.StartOffset+a.jitter)
}

func stepArrival(a *Activity, c *env, now float64) (*world.Path, error) {
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stArrive:
		a.state = stToRDC
		a.beginWait(now, transitScale/2)
		return nil, nil
	case stToRDC:
		return a.leg(c, now, a.places.rdc, stToOSOCC, transitScale*10), nil
	case stToOSOCC:
		return a.leg(c, now, a.places.osocc, stToBaseCamp, transitScale*10), nil
	case stToBaseCamp:
		return a.leg(c, now, a.places.baseCamp, stIdle, transitScale*10), nil
	case stIdle:
		a.ready = true
		return nil, nil
	}
	return nil, invalid(a)
}

// ── GoToAirport ─────────────────────────────────────────────────────────

func beginGoToAirport(a *Activity, c *env, now float64) {
	a.state = stToAirport
	a.beginWait(now, transitScale)
}

func stepGoToAirport(a *Activity, c *env, now float64) (*world.Path, error) {
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stToAirport:
		return a.leg(c, now, c.pick(poi.Airport), stIdle, transitScale*5), nil
	case stIdle:
		a.ready = true
		a.state = stGone
		return nil, nil
	case stGone:
		return nil, nil
	}
	return nil, invalid(a)
}

// ── Scientific ──────────────────────────────────────────────────────────

func beginScientific(a *Activity, c *env, now float64) {
	a.count = 0
	if a.day+1 >= c.set.Days {
		a.leave = true
	}
	if a.mode == modeVolunteer {
		a.state = stVolunteer
	} else {
		a.state = stCollect
	}
	a.beginWait(now, c.shortWait())
}

func stepScientific(a *Activity, c *env, now float64) (*world.Path, error) {
	switch a.state {
	case stCollect:
		if !a.waited(now) {
			return nil, nil
		}
		if a.count >= c.set.PlacesToVisit {
			return a.goHome(c, now), nil
		}
		p := a.travel(c, c.pick(poi.MainPoint))
		if p != nil {
			a.count++
			a.beginWait(now, c.shortWait())
		}
		return p, nil
	case stVolunteer:
		if !a.waited(now) {
			return nil, nil
		}
		p, done := a.round(c, now, c.longWait, func(int, world.Coord, []world.Coord) int {
			return -1
		})
		if done {
			return a.goHome(c, now), nil
		}
		return p, nil
	case stDayIdle:
		if a.dayOver(c, now) {
			scientistBranch(a, c)
			a.ready = true
		}
		return nil, nil
	}
	return nil, invalid(a)
}

// scientistBranch picks tomorrow's behaviour. The chance to keep collecting
// shrinks with every day spent; the last two days always end in departure.
func scientistBranch(a *Activity, c *env) {
	if a.day+2 >= c.set.Days {
		a.leave = true
		return
	}
	r := c.float()
	switch {
	case r/float64(a.day+1) >= 0.5:
		a.mode = modeCollect
	case a.volunteer:
		a.mode = modeVolunteer
	default:
		a.leave = true
	}
}

// ── Injured ─────────────────────────────────────────────────────────────

func beginInjured(a *Activity, c *env, now float64) {
	if a.noHosp {
		a.state = stTooIll
	} else {
		a.state = stToHospital
	}
	a.beginWait(now, c.shortWait())
}

func stepInjured(a *Activity, c *env, now float64) (*world.Path, error) {
	switch a.state {
	case stTooIll, stDayIdle:
		if a.dayOver(c, now) {
			a.ready = true
		}
		return nil, nil
	case stToHospital:
		if !a.waited(now) {
			return nil, nil
		}
		return a.leg(c, now, c.pick(poi.Hospital), stAtHospital, c.longWait()), nil
	case stAtHospital:
		if !a.waited(now) {
			return nil, nil
		}
		return a.goHome(c, now), nil
	}
	return nil, invalid(a)
}

// ── Healthy ─────────────────────────────────────────────────────────────

func beginHealthy(a *Activity, c *env, now float64) {
	a.count = 0
	a.state = stFood
	if !a.walked {
		a.walked = true
		if c.set.NeighborsToVisit > 0 {
			a.state = stWalkFirst
		}
	}
	a.beginWait(now, c.shortWait())
}

func stepHealthy(a *Activity, c *env, now float64) (*world.Path, error) {
	if a.state == stDayIdle {
		if a.dayOver(c, now) {
			a.ready = true
		}
		return nil, nil
	}
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stWalkFirst:
		p := a.hop(c, func([]world.Coord) int { return 0 })
		if p != nil {
			a.state = stWalk
			a.count = 0
			a.beginWait(now, c.shortWait())
		}
		return p, nil
	case stWalk:
		if a.count >= c.set.NeighborsToVisit {
			a.state = stFood
			return a.stepFood(c, now), nil
		}
		p := a.hop(c, func(ns []world.Coord) int { return c.rng.Intn(len(ns)) })
		if p != nil {
			a.count++
			a.beginWait(now, c.shortWait())
		}
		return p, nil
	case stFood:
		return a.stepFood(c, now), nil
	case stRound:
		choose := alternate(nearest, farthest)
		if a.volunteer {
			choose = randomNeighbor
		}
		p, done := a.round(c, now, c.longWait, choose)
		if done {
			return a.goHome(c, now), nil
		}
		return p, nil
	}
	return nil, invalid(a)
}

func (a *Activity) stepFood(c *env, now float64) *world.Path {
	p := a.leg(c, now, a.places.food, stRound, c.shortWait())
	if p != nil {
		a.count = 0
	}
	return p
}

// ── Officials (Government and UN) ───────────────────────────────────────

func beginOfficials(a *Activity, c *env, now float64) {
	a.count = 0
	a.state = stToOSOCC
	a.beginWait(now, c.shortWait())
}

func stepOfficials(a *Activity, c *env, now float64) (*world.Path, error) {
	if a.state == stDayIdle {
		if a.dayOver(c, now) {
			a.mode = officialsMode(c.float())
			a.ready = true
		}
		return nil, nil
	}
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stToOSOCC:
		return a.leg(c, now, a.places.osocc, stToTownHall, c.longWait()), nil
	case stToTownHall:
		return a.leg(c, now, a.places.townHall, stToBaseCamp, c.shortWait()), nil
	case stToBaseCamp:
		p := a.leg(c, now, a.places.baseCamp, stOperation, c.shortWait())
		if p != nil {
			a.count = 0
		}
		return p, nil
	case stOperation:
		switch a.mode {
		case modeFood:
			if a.count >= 1 {
				return a.goHome(c, now), nil
			}
			return a.visit(c, now, poi.Food, c.longWait()), nil
		case modeBurial:
			if a.count >= c.set.PlacesToVisit {
				return a.goHome(c, now), nil
			}
			return a.visit(c, now, poi.Burial, c.shortWait()), nil
		default:
			if a.count >= c.set.PlacesToVisit {
				return a.goHome(c, now), nil
			}
			return a.visit(c, now, poi.MainPoint, c.shortWait()), nil
		}
	}
	return nil, invalid(a)
}

// officialsMode maps one uniform draw to the next day's operation.
func officialsMode(r float64) mode {
	switch {
	case r <= 0.3:
		return modeFood
	case r <= 0.6:
		return modeBurial
	default:
		return modeRecon
	}
}

// ── SearchAndRescue ─────────────────────────────────────────────────────

func beginSearchAndRescue(a *Activity, c *env, now float64) {
	a.count = 0
	a.state = stToOSOCC
	a.beginWait(now, c.shortWait())
}

func stepSearchAndRescue(a *Activity, c *env, now float64) (*world.Path, error) {
	if a.state == stDayIdle {
		if a.dayOver(c, now) {
			if a.day+2 >= c.set.Days {
				a.leave = true
			}
			a.ready = true
		}
		return nil, nil
	}
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stToOSOCC:
		return a.leg(c, now, a.places.osocc, stBriefing, c.shortWait()), nil
	case stBriefing:
		a.state = stSearch
		a.count = 0
		a.beginWait(now, c.longWait())
		return nil, nil
	case stSearch:
		p, done := a.round(c, now, c.shortWait, alternate(nearest, secondNearest))
		if done {
			return a.returnTo(c, now, a.places.baseCamp), nil
		}
		return p, nil
	}
	return nil, invalid(a)
}

// ── DisasterRelief ──────────────────────────────────────────────────────

func beginDisasterRelief(a *Activity, c *env, now float64) {
	a.count = 0
	if c.float() < 0.5 {
		a.mode = modeFood
	} else {
		a.mode = modePatrol
	}
	a.state = stToOSOCC
	a.beginWait(now, c.shortWait())
}

func stepDisasterRelief(a *Activity, c *env, now float64) (*world.Path, error) {
	if a.state == stDayIdle {
		if a.dayOver(c, now) {
			a.ready = true
		}
		return nil, nil
	}
	if !a.waited(now) {
		return nil, nil
	}
	switch a.state {
	case stToOSOCC:
		return a.leg(c, now, a.places.osocc, stToTownHall, c.longWait()), nil
	case stToTownHall:
		p := a.leg(c, now, a.places.townHall, stOperation, c.shortWait())
		if p != nil {
			a.count = 0
		}
		return p, nil
	case stOperation:
		if a.mode == modeFood {
			if a.count >= 1 {
				return a.returnTo(c, now, a.places.baseCamp), nil
			}
			return a.visit(c, now, poi.Food, c.longWait()), nil
		}
		if a.count >= c.set.PlacesToVisit {
			return a.returnTo(c, now, a.places.baseCamp), nil
		}
		choose := alternate(nearest, farthest)
		p := a.hop(c, func(ns []world.Coord) int { return choose(a.count, a.last, ns) })
		if p != nil {
			a.count++
			a.beginWait(now, c.shortWait())
		}
		return p, nil
	}
	return nil, invalid(a)
}

// ── shared steps ────────────────────────────────────────────────────────

// leg travels to to and, when a route exists, moves on to next and waits d.
func (a *Activity) leg(c *env, now float64, to world.Coord, next state, d float64) *world.Path {
	p := a.travel(c, to)
	if p != nil {
		a.state = next
		a.beginWait(now, d)
	}
	return p
}

// visit travels to a random point of cat and counts the visit.
func (a *Activity) visit(c *env, now float64, cat poi.Category, d float64) *world.Path {
	p := a.travel(c, c.pick(cat))
	if p != nil {
		a.count++
		a.beginWait(now, d)
	}
	return p
}

func (a *Activity) goHome(c *env, now float64) *world.Path {
	return a.returnTo(c, now, a.places.home)
}

// returnTo travels to the day's final stop and idles until the day ends.
func (a *Activity) returnTo(c *env, now float64, to world.Coord) *world.Path {
	return a.leg(c, now, to, stDayIdle, 0)
}

// chooser picks the index of the next neighbour for hop number i from cur.
// A negative index selects a random neighbour.
type chooser func(i int, cur world.Coord, ns []world.Coord) int

// round visits one random main point and then PlacesToVisit graph neighbours
// picked by choose. done is reported once every hop has been taken.
func (a *Activity) round(c *env, now float64, wait func() float64, choose chooser) (*world.Path, bool) {
	if a.count == 0 {
		p := a.travel(c, c.pick(poi.MainPoint))
		if p != nil {
			a.count = 1
			a.beginWait(now, wait())
		}
		return p, false
	}
	if a.count > c.set.PlacesToVisit {
		return nil, true
	}
	i := a.count - 1
	p := a.hop(c, func(ns []world.Coord) int {
		if k := choose(i, a.last, ns); k >= 0 {
			return k
		}
		return c.rng.Intn(len(ns))
	})
	if p != nil {
		a.count++
		a.beginWait(now, wait())
	}
	return p, false
}

// alternate uses even for even hops and odd for odd hops.
func alternate(even, odd func(cur world.Coord, ns []world.Coord) int) chooser {
	return func(i int, cur world.Coord, ns []world.Coord) int {
		if i%2 == 0 {
			return even(cur, ns)
		}
		return odd(cur, ns)
	}
}

func randomNeighbor(int, world.Coord, []world.Coord) int { return -1 }

func nearest(cur world.Coord, ns []world.Coord) int {
	best := 0
	for i := 1; i < len(ns); i++ {
		if world.Distance(cur, ns[i]) < world.Distance(cur, ns[best]) {
			best = i
		}
	}
	return best
}

func farthest(cur world.Coord, ns []world.Coord) int {
	best := 0
	for i := 1; i < len(ns); i++ {
		if world.Distance(cur, ns[i]) > world.Distance(cur, ns[best]) {
			best = i
		}
	}
	return best
}

func secondNearest(cur world.Coord, ns []world.Coord) int {
	if len(ns) < 2 {
		return 0
	}
	idx := make([]int, len(ns))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return world.Distance(cur, ns[idx[i]]) < world.Distance(cur, ns[idx[j]])
	})
	return idx[1]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
