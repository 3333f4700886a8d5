package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/cohortsim/internal/cohort"
)

// Sensitivity is the elasticity of peak biomass to one parameter,
// (dPeak/Peak) / (dp/p), by central differences with relative step rel.
func Sensitivity(ctx context.Context, base cohort.Parameters, name string, rel float64, opts SweepOptions) (float64, error) {
	v, ok := base.GetParams()[name]
	if !ok {
		return 0, fmt.Errorf("unknown param: %s", name)
	}
	if v == 0 || rel <= 0 {
		return 0, fmt.Errorf("sensitivity needs a non-zero %s and a positive step", name)
	}

	pts, err := Sweep(ctx, base, name, []float64{v * (1 - rel), v, v * (1 + rel)}, opts)
	if err != nil {
		return 0, err
	}
	peak := pts[1].PeakBiomass
	if peak == 0 || math.IsNaN(peak) {
		return 0, fmt.Errorf("peak biomass is zero at %s=%g", name, v)
	}
	return (pts[2].PeakBiomass - pts[0].PeakBiomass) / peak / (2 * rel), nil
}
