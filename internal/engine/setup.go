package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/relief-mobility/internal/agents"
	"github.com/talgya/relief-mobility/internal/config"
	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

// BuildMap loads or generates the road network of a scenario.
func BuildMap(scn *config.Scenario) (*world.Map, error) {
	if gen, ok := scn.GenConfig(); ok {
		m := world.Generate(gen)
		slog.Info("city generated", "map", m.String(), "dead_ends", len(world.DeadEnds(m)))
		return m, nil
	}
	m, err := world.LoadWKT(scn.Resolve(scn.Map.WKT))
	if err != nil {
		return nil, err
	}
	slog.Info("road network loaded", "map", m.String())
	return m, nil
}

// Build assembles the simulation of a scenario: the map, one POI registry
// per group and every agent. Errors here are configuration or data errors
// and abort the run before it starts.
func Build(scn *config.Scenario) (*Simulation, error) {
	m, err := BuildMap(scn)
	if err != nil {
		return nil, err
	}

	sites, err := SampleSites(scn, m)
	if err != nil {
		return nil, err
	}
	mainPoints := m.MainPoints()

	spawner := agents.NewSpawner(scn.Seed, m)
	var all []*agents.Agent
	for i, g := range scn.Groups {
		role, err := g.AgentRole()
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		set, err := scn.Settings(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		files, err := scn.POIFiles(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		reg, err := poi.Load(files, nil)
		if err != nil {
			return nil, fmt.Errorf("group %d (%s): %w", i, role, err)
		}
		for cat, pts := range sites {
			reg = reg.WithDefault(cat, pts)
		}
		reg = reg.WithDefault(poi.MainPoint, mainPoints)

		spawned, err := spawner.Spawn(agents.Group{
			Index:    i,
			Role:     role,
			Count:    g.Count,
			IDPrefix: g.IDPrefix,
			Settings: set,
			POIs:     reg,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("group spawned", "group", i, "role", role, "agents", len(spawned))
		all = append(all, spawned...)
	}

	sim := NewSimulation(m, all)
	sim.HaltOnError = scn.HaltOnError()
	sim.DayLength = scn.DayLength
	return sim, nil
}

// SampleSites places the generated POIs a scenario asks for under map.sites.
func SampleSites(scn *config.Scenario, m *world.Map) (map[poi.Category][]world.Coord, error) {
	counts, err := scn.SiteCounts()
	if err != nil {
		return nil, err
	}
	return poi.Sample(m, scn.Seed, counts, siteSpacing(scn)), nil
}

// siteSpacing keeps generated sites of one category a few blocks apart.
func siteSpacing(scn *config.Scenario) float64 {
	if gen, ok := scn.GenConfig(); ok {
		return gen.Spacing * 3
	}
	return 0
}
