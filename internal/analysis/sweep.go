package analysis

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// SweepPoint summarizes one run of a parameter sweep.
type SweepPoint struct {
	Param         float64
	PeakBiomass   float64
	PeakTime      float64
	FinalBiomass  float64
	FinalDeadWood float64
}

type SweepOptions struct {
	NewIntegrator func() dynamo.Integrator
	X0            dynamo.State
	Config        dynamo.Config
	Workers       int
}

// Sweep runs one simulation per value of the named parameter, in parallel,
// and returns the points in the order of values.
func Sweep(ctx context.Context, base cohort.Parameters, name string, values []float64, opts SweepOptions) ([]SweepPoint, error) {
	runs := make([]dynamo.Run, len(values))
	for i, v := range values {
		p := base
		if err := p.SetParam(name, v); err != nil {
			return nil, err
		}
		m, err := cohort.NewModel(p)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", name, v, err)
		}
		runs[i] = dynamo.Run{Name: fmt.Sprintf("%s=%g", name, v), System: m, X0: opts.X0}
	}

	results, err := dynamo.NewEnsemble(opts.NewIntegrator, opts.Workers).Run(ctx, runs, opts.Config)
	if err != nil {
		return nil, err
	}

	pts := make([]SweepPoint, len(values))
	for i, res := range results {
		pts[i] = Summarize(res)
		pts[i].Param = values[i]
	}
	return pts, nil
}

// Summarize reduces a run to its peak and final values.
func Summarize(res *dynamo.Result) SweepPoint {
	var pt SweepPoint
	if len(res.States) == 0 {
		return pt
	}
	b := res.Series(cohort.Biomass)
	idx := floats.MaxIdx(b)
	final, _ := res.Final()

	pt.PeakBiomass = b[idx]
	pt.PeakTime = res.Times[idx]
	pt.FinalBiomass = final[cohort.Biomass]
	pt.FinalDeadWood = final[cohort.DeadWood]
	return pt
}

// SweepToASCII plots peak biomass against the swept parameter.
func SweepToASCII(data []SweepPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minVal, maxVal := data[0].PeakBiomass, data[0].PeakBiomass
	for _, p := range data {
		minVal = min(minVal, p.PeakBiomass)
		maxVal = max(maxVal, p.PeakBiomass)
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range data {
		col := i * width / len(data)
		row := height - 1 - int((p.PeakBiomass-minVal)/(maxVal-minVal)*float64(height-1))
		if row >= 0 && row < height && col < width {
			canvas[row][col] = '•'
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
