package automation

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

const scenarioYAML = `
name: maple vs pioneer
description: two species on an open site, then maple on a crowded one
runs:
  - name: maple
    preset: canonical
    duration: 100
  - name: pioneer
    species: short_lived
    duration: 100
  - name: crowded maple
    preset: competition
    duration: 100
    params:
      max_age: 350
    save_as: crowded
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(s.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(s.Runs))
	}

	pioneer := s.Runs[1].Config
	if pioneer.Species != "short_lived" || pioneer.Dt != config.DefaultDt || pioneer.Duration != 100 {
		t.Errorf("defaults not overlaid: %+v", pioneer)
	}

	crowded := s.Runs[2]
	if crowded.SaveAs != "crowded" || crowded.Config.Params["b_other"] != 40 || crowded.Config.Params["max_age"] != 350 {
		t.Errorf("preset not overlaid: %+v %+v", crowded, crowded.Config.Params)
	}
	if config.Presets["competition"].Params["max_age"] != 0 {
		t.Error("scenario mutated a shared preset")
	}
}

func TestParseScenarioErrors(t *testing.T) {
	if _, err := ParseScenario([]byte("name: empty\n")); err == nil {
		t.Error("expected error for a scenario without runs")
	}
	if _, err := ParseScenario([]byte("runs:\n  - preset: nope\n")); err == nil || !strings.Contains(err.Error(), "unknown preset") {
		t.Errorf("expected unknown preset error, got %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := NewRunner(nil).RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	maple := outcomes[0].Result.Metrics["peak_biomass"]
	crowded := outcomes[2].Result.Metrics["peak_biomass"]
	if crowded >= maple {
		t.Errorf("crowded peak %v should be below open-site peak %v", crowded, maple)
	}
}

func TestRunScenarioStopsOnError(t *testing.T) {
	s := &Scenario{Name: "bad", Runs: []ScenarioRun{
		{Name: "ok", Config: config.DefaultConfig()},
		{Name: "broken", Config: &config.Config{Species: "acer_saccharum", Integrator: "midpoint", Dt: 0.1, Duration: 1}},
	}}
	s.Runs[0].Config.Duration = 5

	outcomes, err := NewRunner(nil).RunScenario(context.Background(), s)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected error naming the failing run, got %v", err)
	}
	if len(outcomes) != 1 {
		t.Errorf("expected the completed run to be returned, got %d", len(outcomes))
	}
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 150

	sweep := &ParameterSweep{Base: base, ParamName: "b_other", ParamMin: 30, ParamMax: 45, NumSteps: 4}
	results, err := NewRunner(nil).RunSweep(context.Background(), sweep)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Param <= results[i-1].Param {
			t.Errorf("results out of order: %v then %v", results[i-1].Param, results[i].Param)
		}
		if results[i].PeakBiomass >= results[i-1].PeakBiomass {
			t.Errorf("peak did not fall with more competitors at %v", results[i].Param)
		}
	}

	sweep.ParamName = "height"
	if _, err := NewRunner(nil).RunSweep(context.Background(), sweep); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 150

	mc := &MonteCarloConfig{
		Base:         base,
		Params:       []string{"anpp_max", "b_max"},
		Perturbation: 0.1,
		NumTrials:    12,
		Seed:         7,
	}
	r := NewRunner(nil)
	r.Workers = 3

	summary, err := r.RunMonteCarlo(context.Background(), mc)
	if err != nil {
		t.Fatalf("monte carlo failed: %v", err)
	}
	if len(summary.Trials) != 12 || summary.Stable != 12 {
		t.Errorf("expected 12 stable trials, got %d/%d", summary.Stable, len(summary.Trials))
	}

	pb := summary.PeakBiomass
	if pb.Min > pb.Median || pb.Median > pb.Max || pb.Std <= 0 {
		t.Errorf("inconsistent stats %+v", pb)
	}
	if pb.Mean < 20 || pb.Mean > 28 {
		t.Errorf("mean peak %v outside the plausible band", pb.Mean)
	}

	ref := cohort.AcerSaccharum()
	for _, tr := range summary.Trials {
		if tr.Params.KDecomp != ref.KDecomp {
			t.Error("unperturbed parameter changed")
		}
		if d := tr.Params.ANPPMax/ref.ANPPMax - 1; d < -0.1 || d > 0.1 {
			t.Errorf("perturbation out of range: %v", d)
		}
	}

	again, err := r.RunMonteCarlo(context.Background(), mc)
	if err != nil {
		t.Fatal(err)
	}
	if again.PeakBiomass != summary.PeakBiomass {
		t.Error("same seed gave different results")
	}
}

func TestStableTrial(t *testing.T) {
	ok := []dynamo.State{{0.5, 0}, {20, 2}, {24, 2.5}}
	tests := []struct {
		name string
		res  *dynamo.Result
		want bool
	}{
		{"clean run", &dynamo.Result{States: ok}, true},
		{"step error", &dynamo.Result{States: ok, Errors: []error{dynamo.ErrStepTooSmall}}, false},
		{"nan pool", &dynamo.Result{States: []dynamo.State{{0.5, 0}, {math.NaN(), 1}}}, false},
		{"infinite dead wood", &dynamo.Result{States: []dynamo.State{{0.5, 0}, {3, math.Inf(1)}}}, false},
		{"negative sample", &dynamo.Result{States: []dynamo.State{{0.5, 0}, {-0.1, 1}, {0, 1}}}, false},
		{"negative metric", &dynamo.Result{States: ok, Metrics: map[string]float64{"non_negative": 0.9}}, false},
		{"no samples", &dynamo.Result{}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stableTrial(tt.res); got != tt.want {
				t.Errorf("stableTrial = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunMonteCarloInvalid(t *testing.T) {
	r := NewRunner(nil)
	if _, err := r.RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: config.DefaultConfig(), NumTrials: 0}); err == nil {
		t.Error("expected error for zero trials")
	}
	if _, err := r.RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: config.DefaultConfig(), NumTrials: 1, Perturbation: 1.5}); err == nil {
		t.Error("expected error for perturbation >= 1")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2, 5})
	if s.Min != 1 || s.Max != 5 || s.Median != 3 || s.Mean != 3 {
		t.Errorf("unexpected stats %+v", s)
	}
	if one := Summarize([]float64{2}); one.Mean != 2 || one.Std != 0 {
		t.Errorf("single sample stats %+v", one)
	}
}
