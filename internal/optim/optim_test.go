package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
)

func TestNewGridSearchValidation(t *testing.T) {
	if _, err := NewGridSearch([]string{"a", "b"}, [][]float64{{1}}); err == nil {
		t.Error("expected error for mismatched ranges")
	}
	if _, err := NewGridSearch([]string{"a"}, [][]float64{{}}); err == nil {
		t.Error("expected error for empty range")
	}
	g, err := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2, 3}, {4, 5}})
	if err != nil || g.Size() != 6 {
		t.Errorf("Size = %v, %v; want 6", g.Size(), err)
	}
}

func TestCalibrateRecoversPreset(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 150

	grid, err := NewGridSearch(
		[]string{"anpp_max", "b_max"},
		[][]float64{{5, 7.45, 10}, {18, 21, 24}},
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := experiment.New(base)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ref.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	targets := []Target{
		{Metric: "peak_biomass", Value: res.Metrics["peak_biomass"]},
		{Metric: "peak_time_biomass", Value: res.Metrics["peak_time_biomass"], Weight: 0.5},
	}

	best, err := Calibrate(context.Background(), base, grid, targets)
	if err != nil {
		t.Fatalf("calibrate failed: %v", err)
	}
	if best.Params["anpp_max"] != 7.45 || best.Params["b_max"] != 21 {
		t.Errorf("recovered %v, want anpp_max=7.45 b_max=21", best.Params)
	}
	if best.Score > 1e-12 || best.Evaluated != 9 || best.Failed != 0 {
		t.Errorf("unexpected search summary %+v", best)
	}
}

func TestSearchSkipsInvalidPoints(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 50

	grid, _ := NewGridSearch([]string{"y0"}, [][]float64{{-1, 0.01, 2}})
	best, err := Calibrate(context.Background(), base, grid, []Target{{Metric: "peak_biomass", Value: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if best.Failed != 2 || best.Params["y0"] != 0.01 {
		t.Errorf("unexpected result %+v", best)
	}

	grid, _ = NewGridSearch([]string{"y0"}, [][]float64{{-1, 2}})
	if _, err := Calibrate(context.Background(), base, grid, nil); err == nil {
		t.Error("expected error when every point fails")
	}
}

func TestSearchCountsNonFiniteScores(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 20
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		cfg.Params = params
		return experiment.New(cfg)
	}

	grid, _ := NewGridSearch([]string{"b_max"}, [][]float64{{19, 20, 21}})
	nan := func(*dynamo.Result) float64 { return math.NaN() }
	best, err := grid.Search(context.Background(), build, nan)
	if err == nil || best != nil {
		t.Fatalf("expected error when every score is NaN, got %+v", best)
	}

	// A missing metric scores +Inf and must not count as a success.
	_, err = grid.Search(context.Background(), build, MetricObjective("no_such_metric"))
	if err == nil {
		t.Error("expected error when every score is infinite")
	}

	calls := 0
	mixed := func(res *dynamo.Result) float64 {
		calls++
		if calls == 2 {
			return 1
		}
		return math.Inf(-1)
	}
	best, err = grid.Search(context.Background(), build, mixed)
	if err != nil {
		t.Fatal(err)
	}
	if best.Evaluated != 3 || best.Failed != 2 || best.Score != 1 || best.Params["b_max"] != 20 {
		t.Errorf("unexpected search summary %+v", best)
	}
}

func TestSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid, _ := NewGridSearch([]string{"b_max"}, [][]float64{{20, 21}})
	_, err := Calibrate(ctx, config.DefaultConfig(), grid, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestObjectives(t *testing.T) {
	res := &dynamo.Result{Metrics: map[string]float64{"peak_biomass": 22, "spread_dead_wood": 0.3}}

	if got := MetricObjective("spread_dead_wood")(res); got != 0.3 {
		t.Errorf("MetricObjective = %v", got)
	}
	if got := MetricObjective("missing")(res); !math.IsInf(got, 1) {
		t.Errorf("missing metric should score +Inf, got %v", got)
	}

	got := TargetObjective([]Target{{Metric: "peak_biomass", Value: 20, Weight: 2}})(res)
	if math.Abs(got-2*0.01) > 1e-12 {
		t.Errorf("TargetObjective = %v, want 0.02", got)
	}
}
