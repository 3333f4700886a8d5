package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

const (
	DefaultSpecies   = "acer_saccharum"
	DefaultDt        = 0.1
	DefaultDuration  = 200.0
	DefaultBiomass   = 0.5
	DefaultTolerance = 1e-6
	DefaultMinDt     = 1e-6
	DefaultMaxDt     = 1.0
)

type Config struct {
	Species     string             `yaml:"species" toml:"species"`
	Params      map[string]float64 `yaml:"params,omitempty" toml:"params,omitempty"`
	Integrator  string             `yaml:"integrator" toml:"integrator"`
	Dt          float64            `yaml:"dt" toml:"dt"`
	Duration    float64            `yaml:"duration" toml:"duration"`
	Adaptive    bool               `yaml:"adaptive" toml:"adaptive"`
	Tolerance   float64            `yaml:"tolerance" toml:"tolerance"`
	MinDt       float64            `yaml:"min_dt" toml:"min_dt"`
	MaxDt       float64            `yaml:"max_dt" toml:"max_dt"`
	Seed        int64              `yaml:"seed" toml:"seed"`
	InitState   InitStateConfig    `yaml:"init_state" toml:"init_state"`
	Competition CompetitionConfig  `yaml:"competition" toml:"competition"`
}

type InitStateConfig struct {
	Biomass  float64 `yaml:"biomass" toml:"biomass"`
	DeadWood float64 `yaml:"dead_wood" toml:"dead_wood"`
}

// CompetitionConfig describes the competitor biomass signal. An empty
// Kind keeps the constant b_other parameter.
type CompetitionConfig struct {
	Kind   string    `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Value  float64   `yaml:"value,omitempty" toml:"value,omitempty"`
	Start  float64   `yaml:"start,omitempty" toml:"start,omitempty"`
	Rate   float64   `yaml:"rate,omitempty" toml:"rate,omitempty"`
	Before float64   `yaml:"before,omitempty" toml:"before,omitempty"`
	After  float64   `yaml:"after,omitempty" toml:"after,omitempty"`
	At     float64   `yaml:"at,omitempty" toml:"at,omitempty"`
	Times  []float64 `yaml:"times,omitempty" toml:"times,omitempty"`
	Values []float64 `yaml:"values,omitempty" toml:"values,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Species:    DefaultSpecies,
		Integrator: "rk4",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		MinDt:      DefaultMinDt,
		MaxDt:      DefaultMaxDt,
		InitState: InitStateConfig{
			Biomass: DefaultBiomass,
		},
	}
}

// Load reads a YAML or TOML file (chosen by extension) over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if isTOML(path) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) Clone() *Config {
	out := *c
	out.Params = maps.Clone(c.Params)
	out.Competition.Times = slices.Clone(c.Competition.Times)
	out.Competition.Values = slices.Clone(c.Competition.Values)
	return &out
}

func (c *Config) GetInitState() dynamo.State {
	return cohort.InitialState(c.InitState.Biomass, c.InitState.DeadWood)
}

// Parameters resolves the species preset and applies the overrides.
func (c *Config) Parameters() (cohort.Parameters, error) {
	p, err := cohort.LookupSpecies(c.Species)
	if err != nil {
		return cohort.Parameters{}, err
	}
	for _, name := range slices.Sorted(maps.Keys(c.Params)) {
		if err := p.SetParam(name, c.Params[name]); err != nil {
			return cohort.Parameters{}, err
		}
	}
	if err := p.Validate(); err != nil {
		return cohort.Parameters{}, err
	}
	return p, nil
}

// Build returns the configured signal, or nil when the model should use
// its constant b_other parameter.
func (cc CompetitionConfig) Build() (cohort.Competition, error) {
	switch cc.Kind {
	case "", "none":
		return nil, nil
	case "constant":
		if cc.Value < 0 {
			return nil, &cohort.ParameterError{Name: "b_other", Value: cc.Value, Reason: "must be >= 0"}
		}
		return cohort.Constant(cc.Value), nil
	case "ramp":
		return cohort.Ramp(cc.Start, cc.Rate), nil
	case "step":
		return cohort.Step(cc.Before, cc.After, cc.At), nil
	case "schedule":
		return cohort.Schedule(cc.Times, cc.Values)
	default:
		return nil, fmt.Errorf("unknown competition kind: %s", cc.Kind)
	}
}

// Model builds the configured cohort model.
func (c *Config) Model() (*cohort.Model, error) {
	p, err := c.Parameters()
	if err != nil {
		return nil, err
	}
	comp, err := c.Competition.Build()
	if err != nil {
		return nil, err
	}

	var opts []cohort.Option
	if comp != nil {
		opts = append(opts, cohort.WithCompetition(comp))
	}
	return cohort.NewModel(p, opts...)
}

// SimConfig converts c into simulator settings. Unset step-control fields
// take the package defaults; negative values are passed through so that
// the simulator rejects them.
func (c *Config) SimConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Tolerance:     orDefault(c.Tolerance, DefaultTolerance),
		MinDt:         orDefault(c.MinDt, DefaultMinDt),
		MaxDt:         orDefault(c.MaxDt, DefaultMaxDt),
		Adaptive:      c.Adaptive,
		ValidateState: true,
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
