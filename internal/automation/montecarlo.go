package automation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cohortsim/internal/analysis"
	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// MonteCarloConfig perturbs parameters and the initial biomass of a base
// configuration. Each perturbed value is v*(1+u) with u uniform in
// [-Perturbation, Perturbation].
type MonteCarloConfig struct {
	Base         *config.Config
	Params       []string
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult is one trial.
type MonteCarloResult struct {
	TrialID int
	Params  cohort.Parameters
	Initial dynamo.State
	analysis.SweepPoint
	Stable bool
}

// Stats summarizes one quantity across trials.
type Stats struct {
	Mean, Std        float64
	Min, Max         float64
	P05, Median, P95 float64
}

type MonteCarloSummary struct {
	Trials        []MonteCarloResult
	PeakBiomass   Stats
	PeakTime      Stats
	FinalDeadWood Stats
	Stable        int
}

func (r *Runner) RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig) (*MonteCarloSummary, error) {
	if mc.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo needs at least one trial")
	}
	if mc.Perturbation < 0 || mc.Perturbation >= 1 {
		return nil, fmt.Errorf("perturbation must be in [0, 1), got %g", mc.Perturbation)
	}
	base, err := mc.Base.Parameters()
	if err != nil {
		return nil, err
	}

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	perturb := func(v float64) float64 {
		return v * (1 + (rng.Float64()*2-1)*mc.Perturbation)
	}

	params := make([]cohort.Parameters, mc.NumTrials)
	x0s := make([]dynamo.State, mc.NumTrials)
	for trial := range params {
		p := base
		for _, name := range mc.Params {
			v, ok := p.GetParams()[name]
			if !ok {
				return nil, fmt.Errorf("unknown param: %s", name)
			}
			if err := p.SetParam(name, perturb(v)); err != nil {
				return nil, err
			}
		}
		params[trial] = p

		x0 := mc.Base.GetInitState()
		x0[cohort.Biomass] = perturb(x0[cohort.Biomass])
		x0s[trial] = x0
	}

	r.Log.WithFields(logrus.Fields{"trials": mc.NumTrials, "seed": seed, "params": mc.Params}).Info("monte carlo started")

	results, err := r.ensemble(ctx, mc.Base, params, x0s)
	if err != nil {
		return nil, err
	}

	summary := &MonteCarloSummary{Trials: make([]MonteCarloResult, len(results))}
	peaks := make([]float64, len(results))
	peakTimes := make([]float64, len(results))
	finalD := make([]float64, len(results))
	for i, res := range results {
		pt := analysis.Summarize(res)
		stable := stableTrial(res)
		if stable {
			summary.Stable++
		}
		summary.Trials[i] = MonteCarloResult{
			TrialID:    i,
			Params:     params[i],
			Initial:    x0s[i],
			SweepPoint: pt,
			Stable:     stable,
		}
		peaks[i], peakTimes[i], finalD[i] = pt.PeakBiomass, pt.PeakTime, pt.FinalDeadWood
	}

	summary.PeakBiomass = Summarize(peaks)
	summary.PeakTime = Summarize(peakTimes)
	summary.FinalDeadWood = Summarize(finalD)
	return summary, nil
}

// stableTrial reports whether a run finished without step errors and kept
// every sample finite and non-negative.
func stableTrial(res *dynamo.Result) bool {
	if res == nil || len(res.Errors) > 0 || len(res.States) == 0 {
		return false
	}
	if v, ok := res.Metrics["non_negative"]; ok && v != 1 {
		return false
	}
	for _, x := range res.States {
		if !x.IsValid() {
			return false
		}
		for _, v := range x {
			if v < 0 {
				return false
			}
		}
	}
	return true
}

// Summarize computes Stats over xs, which it does not modify.
func Summarize(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Stats{
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		P05:    stat.Quantile(0.05, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(sorted, nil)
	} else {
		s.Mean = sorted[0]
	}
	return s
}
