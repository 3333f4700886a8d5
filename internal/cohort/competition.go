package cohort

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// Competition gives competitor biomass on the site at time t.
type Competition func(t float64) float64

func Constant(v float64) Competition {
	return func(float64) float64 { return v }
}

// Ramp grows linearly from start at rate per unit time, never below zero.
func Ramp(start, rate float64) Competition {
	return func(t float64) float64 {
		return math.Max(0, start+rate*t)
	}
}

// Step switches from before to after at time at.
func Step(before, after, at float64) Competition {
	return func(t float64) float64 {
		if t < at {
			return before
		}
		return after
	}
}

// Schedule interpolates linearly between (times[i], values[i]) knots and
// holds the end values outside them. times must be strictly increasing.
func Schedule(times, values []float64) (Competition, error) {
	if len(times) == 0 || len(times) != len(values) {
		return nil, &ParameterError{
			Name:   "b_other",
			Value:  float64(len(values)),
			Reason: fmt.Sprintf("schedule needs matching non-empty knots, got %d times", len(times)),
		}
	}
	for i, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParameterError{Name: "b_other", Value: v, Reason: fmt.Sprintf("knot %d must be finite and >= 0", i)}
		}
		if i > 0 && !(times[i] > times[i-1]) {
			return nil, &ParameterError{Name: "b_other", Value: times[i], Reason: fmt.Sprintf("knot %d time must increase", i)}
		}
	}
	if len(times) == 1 {
		return Constant(values[0]), nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(times, values); err != nil {
		return nil, fmt.Errorf("cohort: fit schedule: %w", err)
	}
	lo, hi := times[0], times[len(times)-1]
	return func(t float64) float64 {
		return pl.Predict(math.Min(math.Max(t, lo), hi))
	}, nil
}
