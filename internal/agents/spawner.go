// Agent spawning: builds the agents of each configured group. The POI
// registry and navigator of a group are shared; every agent gets its own
// random stream derived from the run seed and its index.
package agents

import (
	"fmt"

	"github.com/talgya/relief-mobility/internal/entropy"
	"github.com/talgya/relief-mobility/internal/poi"
)

// Group describes a batch of agents that share a role and settings.
type Group struct {
	Index    int
	Role     Role
	Count    int
	IDPrefix string
	Settings Settings
	POIs     *poi.Registry
}

// Spawner creates agents for the simulation.
type Spawner struct {
	seed   int64
	nav    Navigator
	nextID AgentID
}

// NewSpawner creates a spawner for a run with the given seed.
func NewSpawner(seed int64, nav Navigator) *Spawner {
	return &Spawner{seed: seed, nav: nav, nextID: 1}
}

// Spawn creates all agents of a group. Agent IDs continue across groups, so
// the same scenario always assigns the same stream to the same agent.
func (s *Spawner) Spawn(g Group) ([]*Agent, error) {
	if g.Role >= numRoles {
		return nil, fmt.Errorf("group %d: %w: %s", g.Index, ErrUnknownRole, g.Role)
	}
	prefix := g.IDPrefix
	if prefix == "" {
		prefix = g.Role.String()
	}

	out := make([]*Agent, 0, g.Count)
	for i := 0; i < g.Count; i++ {
		id := s.nextID
		name := fmt.Sprintf("%s%d", prefix, i)
		sched, err := NewScheduler(g.Role, Deps{
			Name:     name,
			Settings: g.Settings,
			POIs:     g.POIs,
			Nav:      s.nav,
			Rand:     entropy.ForAgent(s.seed, int(id)),
		})
		if err != nil {
			return nil, fmt.Errorf("group %d agent %s: %w", g.Index, name, err)
		}
		s.nextID++
		out = append(out, &Agent{
			ID:        id,
			Name:      name,
			Role:      g.Role,
			Group:     g.Index,
			Position:  sched.InitialLocation(),
			Scheduler: sched,
		})
	}
	return out, nil
}
