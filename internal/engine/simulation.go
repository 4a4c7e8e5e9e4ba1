// Simulation holds every agent of a run and polls them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/relief-mobility/internal/agents"
	"github.com/talgya/relief-mobility/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// PathEvent is one emitted path with the context needed to replay or
// display it.
type PathEvent struct {
	Seq       uint64         `json:"seq"`
	AgentID   agents.AgentID `json:"agent_id"`
	Agent     string         `json:"agent"`
	Role      string         `json:"role"`
	Activity  string         `json:"activity"`
	Day       int            `json:"day"`
	Time      float64        `json:"time"`
	Speed     float64        `json:"speed"`
	Waypoints []world.Coord  `json:"waypoints"`
}

// PathSink receives every emitted path in emission order.
type PathSink interface {
	Record(ev PathEvent) error
}

// Event is a notable occurrence in the run.
type Event struct {
	Time        float64 `json:"time"`
	Description string  `json:"description"`
	Category    string  `json:"category"` // "halt", "leave", "day"
}

// SimStats tracks aggregate run statistics.
type SimStats struct {
	Agents     int            `json:"agents"`
	Halted     int            `json:"halted"`
	Finished   int            `json:"finished"`
	Paths      uint64         `json:"paths"`
	PathsToday int            `json:"paths_today"`
	ByActivity map[string]int `json:"by_activity"`
}

// Simulation is a flat arena of agents sharing one read-only road map.
// The mutex guards against readers on other goroutines such as the API.
type Simulation struct {
	WorldMap   *world.Map
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent
	Events     []Event
	LastTime   float64
	Day        int
	DayLength  float64

	// HaltOnError stops the run at the first halted agent.
	HaltOnError bool

	Stats SimStats

	sinks       []PathSink
	seq         uint64
	eventsTotal uint64
	mu          sync.RWMutex
}

// NewSimulation creates a Simulation from spawned agents.
func NewSimulation(m *world.Map, ag []*agents.Agent) *Simulation {
	index := make(map[agents.AgentID]*agents.Agent, len(ag))
	for _, a := range ag {
		index[a.ID] = a
	}
	sim := &Simulation{
		WorldMap:    m,
		Agents:      ag,
		AgentIndex:  index,
		HaltOnError: true,
		DayLength:   86400,
	}
	sim.updateStats()
	return sim
}

// AddSink registers a path consumer.
func (s *Simulation) AddSink(sink PathSink) {
	s.sinks = append(s.sinks, sink)
}

// Step polls every agent once at simulated time now. A fatal agent error
// halts that agent; it is returned only when HaltOnError is set. Sink
// failures are always returned.
func (s *Simulation) Step(now float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTime = now

	for _, a := range s.Agents {
		if a.Halted {
			continue
		}
		p, err := a.Tick(now)
		if err != nil {
			slog.Error("agent halted", "agent", a.Name, "role", a.Role, "error", err)
			s.addEvent(now, fmt.Sprintf("%s halted: %v", a.Name, err), "halt")
			s.Stats.Halted++
			if s.HaltOnError {
				return err
			}
			continue
		}
		if p == nil {
			continue
		}
		if err := s.emit(a, now, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) emit(a *agents.Agent, now float64, p *world.Path) error {
	s.seq++
	s.Stats.Paths++
	s.Stats.PathsToday++
	kind := a.Activity()
	if kind == agents.KindGoToAirport {
		s.addEvent(now, fmt.Sprintf("%s heads for the airport", a.Name), "leave")
	}
	ev := PathEvent{
		Seq:       s.seq,
		AgentID:   a.ID,
		Agent:     a.Name,
		Role:      a.Role.String(),
		Activity:  kind.String(),
		Day:       a.Scheduler.Day(),
		Time:      now,
		Speed:     p.Speed,
		Waypoints: p.Waypoints,
	}
	for _, sink := range s.sinks {
		if err := sink.Record(ev); err != nil {
			return fmt.Errorf("record path %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// TickDay runs at every day boundary: statistics and the daily report.
func (s *Simulation) TickDay(day int, now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateStats()
	slog.Info("daily report",
		"day", day-1,
		"time", SimTime(now, s.DayLength),
		"paths", s.Stats.PathsToday,
		"total_paths", s.Stats.Paths,
		"finished", s.Stats.Finished,
		"halted", s.Stats.Halted,
		"active_by_activity", s.Stats.ByActivity,
	)
	s.addEvent(now, fmt.Sprintf("day %d ended with %d paths", day-1, s.Stats.PathsToday), "day")
	s.Stats.PathsToday = 0
	s.Day = day
}

// Finished reports whether no agent can emit another path.
func (s *Simulation) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.Agents {
		if !a.Halted && !a.Scheduler.Finished() {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the statistics.
func (s *Simulation) Snapshot() (SimStats, float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.Stats
	st.ByActivity = make(map[string]int, len(s.Stats.ByActivity))
	for k, v := range s.Stats.ByActivity {
		st.ByActivity[k] = v
	}
	return st, s.LastTime, s.Day
}

// AgentView is the read-only view of an agent served to observers.
type AgentView struct {
	ID       agents.AgentID `json:"id"`
	Name     string         `json:"name"`
	Role     string         `json:"role"`
	Group    int            `json:"group"`
	Activity string         `json:"activity"`
	Day      int            `json:"day"`
	Position world.Coord    `json:"position"`
	Paths    int            `json:"paths"`
	Halted   bool           `json:"halted"`
	Error    string         `json:"error,omitempty"`
}

// View returns the view of one agent.
func (s *Simulation) View(id agents.AgentID) (AgentView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.AgentIndex[id]
	if !ok {
		return AgentView{}, false
	}
	return viewOf(a), true
}

// Views returns the views of every agent, optionally filtered by role.
func (s *Simulation) Views(role string) []AgentView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentView, 0, len(s.Agents))
	for _, a := range s.Agents {
		if role != "" && a.Role.String() != role {
			continue
		}
		out = append(out, viewOf(a))
	}
	return out
}

// RecentEvents returns up to n of the latest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if len(s.Events) > n {
		start = len(s.Events) - n
	}
	return append([]Event(nil), s.Events[start:]...)
}

// EventsSince returns the events recorded after the first seen events and
// the new total. Events already trimmed from memory are skipped.
func (s *Simulation) EventsSince(seen uint64) ([]Event, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fresh := s.eventsTotal - seen
	if fresh > uint64(len(s.Events)) {
		fresh = uint64(len(s.Events))
	}
	return append([]Event(nil), s.Events[uint64(len(s.Events))-fresh:]...), s.eventsTotal
}

func viewOf(a *agents.Agent) AgentView {
	v := AgentView{
		ID:       a.ID,
		Name:     a.Name,
		Role:     a.Role.String(),
		Group:    a.Group,
		Activity: a.Activity().String(),
		Day:      a.Scheduler.Day(),
		Position: a.Position,
		Paths:    a.Paths,
		Halted:   a.Halted,
	}
	if a.Err != nil {
		v.Error = a.Err.Error()
	}
	return v
}

func (s *Simulation) addEvent(now float64, desc, category string) {
	s.Events = append(s.Events, Event{Time: now, Description: desc, Category: category})
	s.eventsTotal++
	// Trim old events to prevent unbounded growth.
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

func (s *Simulation) updateStats() {
	byActivity := make(map[string]int)
	finished := 0
	for _, a := range s.Agents {
		if a.Halted {
			continue
		}
		if a.Scheduler.Finished() {
			finished++
			continue
		}
		byActivity[a.Activity().String()]++
	}
	s.Stats.Agents = len(s.Agents)
	s.Stats.Finished = finished
	s.Stats.ByActivity = byActivity
}
