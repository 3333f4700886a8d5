package cohort

import (
	"fmt"
	"sort"
)

// Species presets are expressed in model biomass units. Published figures
// for these cohorts are reported at ten times this scale.

// AcerSaccharum is a long-lived shade-tolerant hardwood (sugar maple).
func AcerSaccharum() Parameters {
	return Parameters{
		ANPPMax:  7.45,
		BMax:     21,
		BMaxSite: 50,
		MaxAge:   400,
		R:        DefaultR,
		Y0:       DefaultY0,
		D:        DefaultD,
		KDecomp:  3,
	}
}

// ShortLived is a pioneer species that peaks early and senesces by age 80.
func ShortLived() Parameters {
	return Parameters{
		ANPPMax:  5.77,
		BMax:     15,
		BMaxSite: 50,
		MaxAge:   70,
		R:        DefaultR,
		Y0:       DefaultY0,
		D:        DefaultD,
		KDecomp:  3,
	}
}

var species = map[string]func() Parameters{
	"acer_saccharum": AcerSaccharum,
	"short_lived":    ShortLived,
}

// LookupSpecies returns a fresh copy of a named preset.
func LookupSpecies(name string) (Parameters, error) {
	fn, ok := species[name]
	if !ok {
		return Parameters{}, fmt.Errorf("unknown species: %s", name)
	}
	return fn(), nil
}

func SpeciesNames() []string {
	names := make([]string, 0, len(species))
	for name := range species {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
