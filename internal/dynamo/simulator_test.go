package dynamo

import (
	"context"
	"errors"
	"math"
	"testing"
)

// decay is dx/dt = -x.
type decay struct{}

func (d *decay) Derive(x State, time float64) State { return State{-x[0]} }
func (d *decay) StateDim() int                      { return 1 }

// drain removes mass at a constant rate and must not go below zero.
type drain struct{ rate float64 }

func (d *drain) Derive(x State, time float64) State { return State{-d.rate} }
func (d *drain) StateDim() int                      { return 1 }
func (d *drain) Constrain(x State) bool {
	if x[0] < 0 {
		x[0] = 0
		return true
	}
	return false
}

type testIntegrator struct{}

func (t *testIntegrator) Step(sys System, x State, time float64, dt float64) State {
	dx := sys.Derive(x, time)
	return State{x[0] + dt*dx[0]}
}

func TestSimulatorRun(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	cfg := Config{
		Dt:       0.1,
		Duration: 1.0,
	}

	x0 := State{1.0}
	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}

	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}

	if result.Times[10] != 1.0 {
		t.Errorf("expected final time 1.0, got %v", result.Times[10])
	}

	finalState := result.States[len(result.States)-1][0]
	expected := 1.0 * math.Exp(-1.0)
	if math.Abs(finalState-expected) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, finalState)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"adaptive without tolerance", Config{Dt: 0.1, Duration: 1.0, Adaptive: true, MinDt: 1e-6, MaxDt: 1}},
		{"adaptive without bounds", Config{Dt: 0.1, Duration: 1.0, Adaptive: true, Tolerance: 1e-6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := State{1.0}
			_, err := sim.Run(context.Background(), x0, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSimulatorDimensionMismatch(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})
	_, err := sim.Run(context.Background(), State{1, 2}, Config{Dt: 0.1, Duration: 1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimulatorConstrain(t *testing.T) {
	sim := New(&drain{rate: 1}, &testIntegrator{})

	result, err := sim.Run(context.Background(), State{0.35}, Config{Dt: 0.1, Duration: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, s := range result.States {
		if s[0] < 0 {
			t.Fatalf("state %d went negative: %v", i, s[0])
		}
	}
	if result.Clamped == 0 {
		t.Error("expected clamped steps to be counted")
	}
	if final, _ := result.Final(); final[0] != 0 {
		t.Errorf("expected drained state to rest at zero, got %v", final[0])
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	metric := &testMetric{}
	sim.AddMetric(metric)

	cfg := Config{Dt: 0.1, Duration: 1.0}
	x0 := State{1.0}

	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}

	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}
}

func TestSimulatorAdaptiveStepDoubling(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	cfg := Config{
		Dt:        0.5,
		Duration:  2.0,
		Tolerance: 1e-3,
		MinDt:     1e-6,
		MaxDt:     0.5,
		Adaptive:  true,
	}

	result, err := sim.Run(context.Background(), State{1.0}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Rejected == 0 {
		t.Error("expected the coarse initial step to be rejected")
	}

	final, tEnd := result.Final()
	if math.Abs(tEnd-2.0) > 1e-6 {
		t.Errorf("expected run to end at t=2, got %v", tEnd)
	}
	if math.Abs(final[0]-math.Exp(-2)) > 0.02 {
		t.Errorf("expected ~%.4f, got %.4f", math.Exp(-2), final[0])
	}

	for i := 1; i < len(result.Times); i++ {
		if result.Times[i] <= result.Times[i-1] {
			t.Fatalf("times not increasing at %d: %v", i, result.Times[i-1:i+1])
		}
	}
}

func TestSimulatorCanceled(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, State{1.0}, Config{Dt: 0.1, Duration: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunWithCallback(t *testing.T) {
	sim := New(&decay{}, &testIntegrator{})

	calls := 0
	err := sim.RunWithCallback(context.Background(), State{1.0}, Config{Dt: 0.1, Duration: 1}, func(x State, time float64) bool {
		calls++
		return time < 0.45
	})
	if err != nil {
		t.Fatalf("callback run failed: %v", err)
	}
	if calls != 6 {
		t.Errorf("expected callback to stop after 6 calls, got %d", calls)
	}
}
