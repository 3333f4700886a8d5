package config

import "sort"

// preset starts from DefaultConfig so that step-control settings are
// always present, even for presets that run on fixed steps.
func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

var Presets = map[string]*Config{
	"canonical": DefaultConfig(),
	"short_lived": preset(func(c *Config) {
		c.Species = "short_lived"
		c.Duration = 150
	}),
	"competition": preset(func(c *Config) {
		c.Params = map[string]float64{"b_other": 40}
	}),
	"competition_ramp": preset(func(c *Config) {
		c.Duration = 300
		c.Competition = CompetitionConfig{Kind: "ramp", Start: 0, Rate: 0.2}
	}),
	"old_growth": preset(func(c *Config) {
		c.Integrator = "rk45"
		c.Adaptive = true
		c.Dt = 0.5
		c.Duration = 600
		c.MaxDt = 2
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
