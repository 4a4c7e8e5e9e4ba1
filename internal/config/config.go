// Package config loads scenario files. A scenario is YAML, checked against an
// embedded JSON schema before it is decoded, then filled with defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/relief-mobility/internal/agents"
	"github.com/talgya/relief-mobility/internal/poi"
	"github.com/talgya/relief-mobility/internal/world"
)

var (
	// ErrMissingSetting reports a required key that is absent.
	ErrMissingSetting = errors.New("missing setting")
	// ErrInvalidSetting reports a key with an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)

//go:embed scenario.schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("scenario.schema.json", schemaSource)

// Scenario is one simulation run description.
type Scenario struct {
	Seed               int64   `yaml:"seed"`
	Days               int     `yaml:"days"`
	DayLength          float64 `yaml:"day_length"`
	TickSeconds        float64 `yaml:"tick_seconds"`
	OffsetStartDelay   float64 `yaml:"offset_start_delay"`
	HaltOnAgentError   *bool   `yaml:"halt_on_agent_error"`
	CheckpointSchedule string  `yaml:"checkpoint_schedule"`

	Map    MapConfig `yaml:"map"`
	Groups []Group   `yaml:"groups"`
	Output Output    `yaml:"output"`

	dir string
}

// MapConfig selects the road network: a WKT file or a generated city.
type MapConfig struct {
	WKT      string          `yaml:"wkt"`
	Generate *GenerateConfig `yaml:"generate"`
	// Sites asks for generated POIs per category, used by groups that name
	// no file for that category.
	Sites map[string]int `yaml:"sites"`
}

// GenerateConfig mirrors world.GenConfig.
type GenerateConfig struct {
	Columns int     `yaml:"columns"`
	Rows    int     `yaml:"rows"`
	Spacing float64 `yaml:"spacing"`
	Rubble  float64 `yaml:"rubble"`
	Seed    int64   `yaml:"seed"`
}

// Group is a batch of agents sharing a role.
type Group struct {
	Role             string            `yaml:"role"`
	Count            int               `yaml:"count"`
	IDPrefix         string            `yaml:"id_prefix"`
	SleepTimeMin     float64           `yaml:"sleep_time_min"`
	SleepTimeMax     float64           `yaml:"sleep_time_max"`
	PlacesToVisit    int               `yaml:"places_to_visit"`
	NeighborsToVisit int               `yaml:"neighbors_to_visit"`
	VolunteeringProb *float64          `yaml:"relief_volunteering_prob"`
	TooInjuredProb   *float64          `yaml:"too_injured_prob"`
	Speed            Range             `yaml:"speed"`
	Wait             Wait              `yaml:"wait"`
	POI              map[string]string `yaml:"poi"`
}

// Range is a closed interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Wait holds the short and long wait bounds in seconds.
type Wait struct {
	Short float64 `yaml:"short"`
	Long  float64 `yaml:"long"`
}

// Output names where results go. Empty values disable that output.
type Output struct {
	DB       string `yaml:"db"`
	TraceDir string `yaml:"trace_dir"`
	APIAddr  string `yaml:"api_addr"`
}

// Load reads and validates a scenario file. Relative paths inside the file
// resolve against the file's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse validates and decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// validateSchema checks the document in its JSON form, which is what the
// schema validator understands.
func validateSchema(raw any) error {
	if raw == nil {
		return fmt.Errorf("%w: empty scenario", ErrMissingSetting)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) && missing(ve) {
			return fmt.Errorf("%w: %v", ErrMissingSetting, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	return nil
}

func missing(ve *jsonschema.ValidationError) bool {
	if strings.HasSuffix(ve.KeywordLocation, "/required") {
		return true
	}
	for _, c := range ve.Causes {
		if missing(c) {
			return true
		}
	}
	return false
}

func (s *Scenario) applyDefaults() {
	if s.DayLength == 0 {
		s.DayLength = 86400
	}
	if s.TickSeconds == 0 {
		s.TickSeconds = 1
	}
	if s.HaltOnAgentError == nil {
		halt := true
		s.HaltOnAgentError = &halt
	}
	if s.CheckpointSchedule == "" {
		s.CheckpointSchedule = "@daily"
	}
	if s.Map.WKT == "" && s.Map.Generate == nil {
		d := world.DefaultGenConfig()
		s.Map.Generate = &GenerateConfig{Columns: d.Columns, Rows: d.Rows, Spacing: d.Spacing, Rubble: d.Rubble}
	}
	if g := s.Map.Generate; g != nil {
		d := world.DefaultGenConfig()
		if g.Columns == 0 {
			g.Columns = d.Columns
		}
		if g.Rows == 0 {
			g.Rows = d.Rows
		}
		if g.Spacing == 0 {
			g.Spacing = d.Spacing
		}
		if g.Seed == 0 {
			g.Seed = s.Seed
		}
	}
	for i := range s.Groups {
		g := &s.Groups[i]
		if g.Speed.Min == 0 {
			g.Speed.Min = 0.5
		}
		if g.Speed.Max == 0 {
			g.Speed.Max = 1.5
		}
		if role, err := agents.ParseRole(g.Role); err == nil {
			short, long := agents.DefaultWait(role)
			if g.Wait.Short == 0 {
				g.Wait.Short = short
			}
			if g.Wait.Long == 0 {
				g.Wait.Long = long
			}
		}
	}
}

// Validate checks the rules the schema cannot express.
func (s *Scenario) Validate() error {
	if s.Map.WKT != "" && s.Map.Generate != nil {
		return fmt.Errorf("%w: map: wkt and generate are exclusive", ErrInvalidSetting)
	}
	if _, err := s.SiteCounts(); err != nil {
		return err
	}
	if _, err := s.Checkpoints(); err != nil {
		return err
	}
	for i, g := range s.Groups {
		if _, err := agents.ParseRole(g.Role); err != nil {
			return fmt.Errorf("%w: group %d: %v", ErrInvalidSetting, i, err)
		}
		if g.SleepTimeMax < g.SleepTimeMin {
			return fmt.Errorf("%w: group %d: sleep_time_max %g below sleep_time_min %g",
				ErrInvalidSetting, i, g.SleepTimeMax, g.SleepTimeMin)
		}
		if g.Speed.Max < g.Speed.Min {
			return fmt.Errorf("%w: group %d: speed max %g below min %g", ErrInvalidSetting, i, g.Speed.Max, g.Speed.Min)
		}
		if _, err := s.POIFiles(g); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
	}
	return nil
}

// Checkpoints parses the checkpoint schedule. It is evaluated against
// simulated time.
func (s *Scenario) Checkpoints() (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(s.CheckpointSchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint_schedule: %v", ErrInvalidSetting, err)
	}
	return sched, nil
}

// HaltOnError reports whether one halted agent stops the run.
func (s *Scenario) HaltOnError() bool {
	return s.HaltOnAgentError == nil || *s.HaltOnAgentError
}

// Resolve makes a path from the scenario file absolute relative to it.
func (s *Scenario) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// GenConfig returns the city generation parameters. ok is false when the
// map comes from a file.
func (s *Scenario) GenConfig() (world.GenConfig, bool) {
	g := s.Map.Generate
	if g == nil {
		return world.GenConfig{}, false
	}
	return world.GenConfig{
		Columns: g.Columns,
		Rows:    g.Rows,
		Spacing: g.Spacing,
		Rubble:  g.Rubble,
		Seed:    g.Seed,
	}, true
}

// SiteCounts returns the generated POI counts per category.
func (s *Scenario) SiteCounts() (map[poi.Category]int, error) {
	out := make(map[poi.Category]int, len(s.Map.Sites))
	for key, n := range s.Map.Sites {
		cat, err := poi.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("%w: map.sites: %v", ErrInvalidSetting, err)
		}
		out[cat] = n
	}
	return out, nil
}

// AgentRole returns the parsed role of a group.
func (g Group) AgentRole() (agents.Role, error) {
	return agents.ParseRole(g.Role)
}

// POIFiles returns the POI files of a group keyed by category, resolved
// against the scenario directory.
func (s *Scenario) POIFiles(g Group) (map[poi.Category]string, error) {
	out := make(map[poi.Category]string, len(g.POI))
	for key, path := range g.POI {
		cat, err := poi.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("%w: poi: %v", ErrInvalidSetting, err)
		}
		out[cat] = s.Resolve(path)
	}
	return out, nil
}

// Settings converts a group into the settings its agents run with.
func (s *Scenario) Settings(g Group) (agents.Settings, error) {
	role, err := g.AgentRole()
	if err != nil {
		return agents.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	set := agents.DefaultSettings(role, s.Days)
	set.DayLength = s.DayLength
	set.StartOffset = s.OffsetStartDelay
	set.SleepMin = g.SleepTimeMin
	set.SleepMax = g.SleepTimeMax
	set.PlacesToVisit = g.PlacesToVisit
	set.NeighborsToVisit = g.NeighborsToVisit
	set.VolunteeringProb = 1
	if g.VolunteeringProb != nil {
		set.VolunteeringProb = *g.VolunteeringProb
	}
	set.TooInjuredProb = 1
	if g.TooInjuredProb != nil {
		set.TooInjuredProb = *g.TooInjuredProb
	}
	set.SpeedMin = g.Speed.Min
	set.SpeedMax = g.Speed.Max
	set.ShortWait = g.Wait.Short
	set.LongWait = g.Wait.Long
	return set, nil
}
