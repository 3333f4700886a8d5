package automation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cohortsim/internal/analysis"
	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// ParameterSweep varies one named parameter of a base configuration.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds one point of a parameter sweep
type SweepResult struct {
	analysis.SweepPoint
	FinalState dynamo.State
	Result     *dynamo.Result
}

func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps < 2 {
		return []float64{s.ParamMin}
	}
	return floats.Span(make([]float64, s.NumSteps), s.ParamMin, s.ParamMax)
}

// RunSweep executes the sweep in parallel. Results keep the order of
// Values.
func (r *Runner) RunSweep(ctx context.Context, sweep *ParameterSweep) ([]SweepResult, error) {
	base, err := sweep.Base.Parameters()
	if err != nil {
		return nil, err
	}

	values := sweep.Values()
	params := make([]cohort.Parameters, len(values))
	x0s := make([]dynamo.State, len(values))
	for i, v := range values {
		params[i] = base
		if err := params[i].SetParam(sweep.ParamName, v); err != nil {
			return nil, err
		}
		x0s[i] = sweep.Base.GetInitState()
	}

	r.Log.WithFields(logrus.Fields{
		"param": sweep.ParamName,
		"from":  sweep.ParamMin,
		"to":    sweep.ParamMax,
		"steps": len(values),
	}).Info("sweep started")

	results, err := r.ensemble(ctx, sweep.Base, params, x0s)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", sweep.ParamName, err)
	}

	out := make([]SweepResult, len(results))
	for i, res := range results {
		final, _ := res.Final()
		pt := analysis.Summarize(res)
		pt.Param = values[i]
		out[i] = SweepResult{SweepPoint: pt, FinalState: final, Result: res}
	}
	return out, nil
}
