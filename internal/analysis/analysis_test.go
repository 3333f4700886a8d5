package analysis

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/integrators"
)

func sweepOpts(duration float64) SweepOptions {
	return SweepOptions{
		NewIntegrator: func() dynamo.Integrator { return integrators.NewRK4() },
		X0:            cohort.InitialState(0.5, 0),
		Config:        dynamo.Config{Dt: 0.1, Duration: duration},
		Workers:       4,
	}
}

func TestResponseCurves(t *testing.T) {
	p := cohort.AcerSaccharum()
	pts := ResponseCurves(p, 301, 3)

	if len(pts) != 301 || pts[0].Ratio != 0 || math.Abs(pts[300].Ratio-3) > 1e-12 {
		t.Fatalf("unexpected grid: %d points, %v..%v", len(pts), pts[0].Ratio, pts[len(pts)-1].Ratio)
	}
	if math.Abs(pts[100].ANPP-p.ANPPMax) > 1e-9 {
		t.Errorf("ANPP at ratio 1 = %v, want %v", pts[100].ANPP, p.ANPPMax)
	}

	// A seedling cohort loses mass until ANPP catches up with mortality.
	if pts[0].Net >= 0 {
		t.Errorf("expected negative net growth at ratio 0, got %v", pts[0].Net)
	}
	eq := Equilibrium(pts)
	if eq < 1 || eq > 1.3 {
		t.Errorf("equilibrium ratio = %v, want just above 1", eq)
	}
}

func TestAgeCurve(t *testing.T) {
	pts := AgeCurve(cohort.ShortLived(), 11, 1)
	if math.Abs(pts[10].Fraction-1) > 1e-9 {
		t.Errorf("M_AGE/B at max age = %v, want 1", pts[10].Fraction)
	}
	if math.Abs(pts[0].Fraction-math.Exp(-cohort.DefaultD)) > 1e-15 {
		t.Errorf("M_AGE/B at establishment = %v", pts[0].Fraction)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Fraction <= pts[i-1].Fraction {
			t.Fatalf("age curve not increasing at %d", i)
		}
	}
}

func TestCompetitionSweep(t *testing.T) {
	values := []float64{0, 20, 29, 35, 40, 45}
	pts, err := Sweep(context.Background(), cohort.AcerSaccharum(), "b_other", values, sweepOpts(150))
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(pts) != len(values) {
		t.Fatalf("expected %d points, got %d", len(values), len(pts))
	}

	// No penalty until competitors exceed the free space of 29.
	for i := 1; i <= 2; i++ {
		if math.Abs(pts[i].PeakBiomass-pts[0].PeakBiomass) > 1e-9 {
			t.Errorf("peak changed below free space: %v vs %v", pts[i].PeakBiomass, pts[0].PeakBiomass)
		}
	}
	for i := 3; i < len(pts); i++ {
		if pts[i].PeakBiomass >= pts[i-1].PeakBiomass {
			t.Errorf("peak not decreasing at b_other=%v", pts[i].Param)
		}
	}

	plot := SweepToASCII(pts, 30, 8)
	if strings.Count(plot, "\n") != 8 || !strings.Contains(plot, "•") {
		t.Errorf("unexpected plot:\n%s", plot)
	}
}

func TestSweepInvalidParameter(t *testing.T) {
	if _, err := Sweep(context.Background(), cohort.AcerSaccharum(), "y0", []float64{2}, sweepOpts(10)); err == nil {
		t.Error("expected validation error")
	}
	if _, err := Sweep(context.Background(), cohort.AcerSaccharum(), "height", []float64{2}, sweepOpts(10)); err == nil {
		t.Error("expected unknown parameter error")
	}
}

func TestSettlingTime(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	series := []float64{0, 5, 9, 10.5, 9.8, 10.1}

	ts, ok := SettlingTime(times, series, 10, 0.6)
	if !ok || ts != 3 {
		t.Errorf("SettlingTime = %v, %v; want 3, true", ts, ok)
	}

	if _, ok := SettlingTime(times, []float64{0, 0, 0, 0, 0, 5}, 0, 1); ok {
		t.Error("expected not settled when the last sample is outside the band")
	}
	if ts, ok := SettlingTime(times, []float64{1, 1, 1, 1, 1, 1}, 1, 0); !ok || ts != 0 {
		t.Errorf("constant series should settle at t=0, got %v %v", ts, ok)
	}
}

func TestPlateau(t *testing.T) {
	res := &dynamo.Result{
		States: []dynamo.State{{0, 0}, {1, 24}, {1, 25}, {1, 26}},
		Times:  []float64{0, 50, 100, 150},
	}
	mean, std := Plateau(res, cohort.DeadWood, 50)
	if math.Abs(mean-25) > 1e-12 || math.Abs(std-1) > 1e-12 {
		t.Errorf("Plateau = %v ± %v, want 25 ± 1", mean, std)
	}
	if mean, _ := Plateau(res, cohort.DeadWood, 500); !math.IsNaN(mean) {
		t.Errorf("expected NaN for an empty window, got %v", mean)
	}
}

func TestSensitivity(t *testing.T) {
	e, err := Sensitivity(context.Background(), cohort.AcerSaccharum(), "b_max", 0.05, sweepOpts(150))
	if err != nil {
		t.Fatalf("sensitivity failed: %v", err)
	}
	// Peak biomass scales with the species asymptote.
	if math.Abs(e-1) > 0.1 {
		t.Errorf("elasticity to b_max = %v, want ~1", e)
	}

	if _, err := Sensitivity(context.Background(), cohort.AcerSaccharum(), "b_other", 0.05, sweepOpts(10)); err == nil {
		t.Error("expected error for a zero-valued parameter")
	}
}

func TestPhasePortrait(t *testing.T) {
	res := &dynamo.Result{
		States: []dynamo.State{{0.5, 0}, {10, 5}, {20, 20}, {22, 24}},
		Times:  []float64{0, 10, 20, 30},
	}
	pp := NewPhasePortrait(res, cohort.Biomass, cohort.DeadWood)
	if pp == nil || len(pp.Points) != 4 || pp.Points[2] != (Point{20, 20}) {
		t.Fatalf("unexpected portrait %+v", pp)
	}

	art := PhasePortraitToASCII(pp, 20, 10)
	if strings.Count(art, "\n") != 10 || !strings.Contains(art, "o") {
		t.Errorf("unexpected art:\n%s", art)
	}

	if NewPhasePortrait(res, 0, 5) != nil {
		t.Error("expected nil for out-of-range index")
	}
}
