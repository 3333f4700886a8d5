package cohort

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Shape defaults for the mortality curves.
const (
	DefaultR  = 0.08
	DefaultY0 = 0.01
	DefaultD  = 10.0
)

// Parameters are the species and site constants of one simulation run.
// Biomass values share one mass/area unit; rates are per unit time.
type Parameters struct {
	ANPPMax  float64 `yaml:"anpp_max" toml:"anpp_max" json:"anpp_max"`
	BMax     float64 `yaml:"b_max" toml:"b_max" json:"b_max"`
	BMaxSite float64 `yaml:"b_max_site" toml:"b_max_site" json:"b_max_site"`
	MaxAge   float64 `yaml:"max_age" toml:"max_age" json:"max_age"`
	R        float64 `yaml:"r" toml:"r" json:"r"`
	Y0       float64 `yaml:"y0" toml:"y0" json:"y0"`
	D        float64 `yaml:"d" toml:"d" json:"d"`
	KDecomp  float64 `yaml:"k_decomp" toml:"k_decomp" json:"k_decomp"`

	// BOther is the competitor biomass used when no time-varying
	// competition signal is supplied.
	BOther float64 `yaml:"b_other" toml:"b_other" json:"b_other"`
}

// Validate reports every violated constraint, joined. Each one matches
// ErrInvalidParameter with errors.Is.
func (p Parameters) Validate() error {
	var errs []error
	bad := func(name string, v float64, reason string) {
		errs = append(errs, &ParameterError{Name: name, Value: v, Reason: reason})
	}

	for _, kv := range p.fields() {
		if math.IsNaN(kv.value) || math.IsInf(kv.value, 0) {
			bad(kv.name, kv.value, "must be finite")
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if p.ANPPMax < 0 {
		bad("anpp_max", p.ANPPMax, "must be >= 0")
	}
	if p.BMax <= 0 {
		bad("b_max", p.BMax, "must be > 0")
	}
	if p.BMaxSite < p.BMax {
		bad("b_max_site", p.BMaxSite, fmt.Sprintf("must be >= b_max (%g)", p.BMax))
	}
	if p.MaxAge <= 0 {
		bad("max_age", p.MaxAge, "must be > 0")
	}
	if p.R <= 0 {
		bad("r", p.R, "must be > 0")
	}
	if p.Y0 <= 0 || p.Y0 >= 1 {
		bad("y0", p.Y0, "must be in (0, 1)")
	}
	if p.D <= 0 {
		bad("d", p.D, "must be > 0")
	}
	if p.KDecomp < 0 {
		bad("k_decomp", p.KDecomp, "must be >= 0")
	}
	if p.BOther < 0 {
		bad("b_other", p.BOther, "must be >= 0")
	}

	return errors.Join(errs...)
}

type field struct {
	name  string
	value float64
	ptr   *float64
}

func (p *Parameters) fields() []field {
	return []field{
		{"anpp_max", p.ANPPMax, &p.ANPPMax},
		{"b_max", p.BMax, &p.BMax},
		{"b_max_site", p.BMaxSite, &p.BMaxSite},
		{"max_age", p.MaxAge, &p.MaxAge},
		{"r", p.R, &p.R},
		{"y0", p.Y0, &p.Y0},
		{"d", p.D, &p.D},
		{"k_decomp", p.KDecomp, &p.KDecomp},
		{"b_other", p.BOther, &p.BOther},
	}
}

func (p *Parameters) GetParams() map[string]float64 {
	out := make(map[string]float64)
	for _, f := range p.fields() {
		out[f.name] = f.value
	}
	return out
}

// SetParam assigns a parameter by name. It does not validate; callers
// rebuild the model, which does.
func (p *Parameters) SetParam(name string, value float64) error {
	for _, f := range p.fields() {
		if f.name == name {
			*f.ptr = value
			return nil
		}
	}
	return fmt.Errorf("unknown param: %s", name)
}

// ParamNames lists the names accepted by SetParam, sorted.
func ParamNames() []string {
	var p Parameters
	names := make([]string, 0, 9)
	for _, f := range p.fields() {
		names = append(names, f.name)
	}
	sort.Strings(names)
	return names
}

// FreeSpace is the site biomass the species leaves to competitors before
// its own potential is reduced.
func (p Parameters) FreeSpace() float64 {
	return p.BMaxSite - p.BMax
}
