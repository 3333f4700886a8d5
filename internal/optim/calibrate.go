package optim

import (
	"context"
	"maps"
	"math"

	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
)

// Target is one observed quantity a calibration should reproduce.
type Target struct {
	Metric string  `yaml:"metric"`
	Value  float64 `yaml:"value"`
	Weight float64 `yaml:"weight"`
}

// MetricObjective minimizes a single run metric.
func MetricObjective(name string) Objective {
	return func(res *dynamo.Result) float64 {
		v, ok := res.Metrics[name]
		if !ok || math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}
}

// TargetObjective is the weighted sum of squared relative errors against
// targets. A zero weight counts as one.
func TargetObjective(targets []Target) Objective {
	return func(res *dynamo.Result) float64 {
		loss := 0.0
		for _, tg := range targets {
			v, ok := res.Metrics[tg.Metric]
			if !ok || math.IsNaN(v) {
				return math.Inf(1)
			}
			w := tg.Weight
			if w == 0 {
				w = 1
			}
			scale := math.Abs(tg.Value)
			if scale == 0 {
				scale = 1
			}
			rel := (v - tg.Value) / scale
			loss += w * rel * rel
		}
		return loss
	}
}

// Calibrate grid-searches parameter overrides on top of base.
func Calibrate(ctx context.Context, base *config.Config, grid *GridSearch, targets []Target, opts ...experiment.Option) (*Best, error) {
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		maps.Copy(cfg.Params, params)
		return experiment.New(cfg, opts...)
	}
	return grid.Search(ctx, build, TargetObjective(targets))
}
