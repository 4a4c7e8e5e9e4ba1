// Package agents provides the per-agent activity state machines and the role
// scheduler that switches between them across the simulated days.
package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

var (
	// ErrUnknownRole is returned for a role outside the fixed enumeration.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUndefinedTransition is returned when the transition table has no
	// entry for the role and the activity that just completed.
	ErrUndefinedTransition = errors.New("undefined transition")
	// ErrInvalidState is returned when an activity reaches a state it has
	// no handler for.
	ErrInvalidState = errors.New("invalid activity state")
)

// AgentID is a unique identifier for an agent within a run.
type AgentID uint32

// Role is the behavioural category of an agent.
type Role uint8

const (
	RoleHealthy Role = iota
	RoleInjured
	RoleScientist
	RoleUN
	RoleGovernment
	RoleSnR // search and rescue
	RoleDRO // disaster relief organisation
	numRoles
)

var roleNames = [numRoles]string{
	RoleHealthy:    "Healthy",
	RoleInjured:    "Injured",
	RoleScientist:  "Scientist",
	RoleUN:         "UN",
	RoleGovernment: "Government",
	RoleSnR:        "SnR",
	RoleDRO:        "DRO",
}

func (r Role) String() string {
	if r < numRoles {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole maps a configured role name to its Role. Matching ignores case.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, numRoles)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}

// RequiredCategories lists the POI categories a role's activities draw
// from. Main points may also be supplied by the road network.
func RequiredCategories(r Role) []poi.Category {
	switch r {
	case RoleHealthy:
		return []poi.Category{poi.Home, poi.Food, poi.MainPoint}
	case RoleInjured:
		return []poi.Category{poi.Home, poi.Hospital}
	case RoleScientist:
		return []poi.Category{poi.Home, poi.MainPoint, poi.Airport}
	case RoleGovernment:
		return []poi.Category{poi.Home, poi.OSOCC, poi.TownHall, poi.BaseCamp, poi.Food, poi.Burial, poi.MainPoint}
	case RoleUN:
		return []poi.Category{poi.Home, poi.Airport, poi.RDC, poi.OSOCC, poi.TownHall, poi.BaseCamp, poi.Food, poi.Burial, poi.MainPoint}
	case RoleSnR:
		return []poi.Category{poi.Airport, poi.RDC, poi.OSOCC, poi.BaseCamp, poi.MainPoint}
	case RoleDRO:
		return []poi.Category{poi.Airport, poi.RDC, poi.OSOCC, poi.TownHall, poi.BaseCamp, poi.Food, poi.MainPoint}
	}
	return nil
}

// Agent is one simulated individual. The host loop owns the slice of agents;
// everything mutable about an agent lives here or in its scheduler.
type Agent struct {
	ID    AgentID `json:"id"`
	Name  string  `json:"name"`
	Role  Role    `json:"-"`
	Group int     `json:"group"`

	Position world.Coord `json:"position"`

	// Paths counts the paths emitted so far.
	Paths int `json:"paths"`

	// Halted is set once the scheduler returned a fatal error. A halted
	// agent is never ticked again.
	Halted bool  `json:"halted"`
	Err    error `json:"-"`

	Scheduler *Scheduler `json:"-"`
}

// Tick polls the agent's scheduler once and moves the agent to the
// destination of any emitted path. A fatal scheduler error halts the agent.
func (a *Agent) Tick(now float64) (*world.Path, error) {
	if a.Halted {
		return nil, nil
	}
	p, err := a.Scheduler.Tick(now)
	if err != nil {
		a.Halted = true
		a.Err = err
		return nil, fmt.Errorf("agent %s: %w", a.Name, err)
	}
	if p != nil {
		a.Position = p.Destination()
		a.Paths++
	}
	return p, nil
}

// RoleName is used for JSON output.
func (a *Agent) RoleName() string { return a.Role.String() }

// Activity returns the kind of the currently active activity.
func (a *Agent) Activity() ActivityKind { return a.Scheduler.Current() }
