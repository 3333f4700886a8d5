package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

type Result struct {
	States     []State
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
	Rejected   int
	Clamped    int
	Errors     []error
}

// Final returns the last recorded state and its time.
func (r *Result) Final() (State, float64) {
	if len(r.States) == 0 {
		return nil, 0
	}
	n := len(r.States) - 1
	return r.States[n], r.Times[n]
}

// Series extracts one state component over the whole trajectory.
func (r *Result) Series(index int) []float64 {
	out := make([]float64, len(r.States))
	for i, s := range r.States {
		if index < len(s) {
			out[i] = s[index]
		}
	}
	return out
}

// At returns the state at time t, interpolating linearly between
// recorded samples.
func (r *Result) At(t float64) (State, error) {
	states, err := r.Sample([]float64{t})
	if err != nil {
		return nil, err
	}
	return states[0], nil
}

// Sample evaluates the trajectory at each of the requested times.
func (r *Result) Sample(times []float64) ([]State, error) {
	if len(r.States) == 0 {
		return nil, fmt.Errorf("sample: %w", ErrOutOfRange)
	}
	first, last := r.Times[0], r.Times[len(r.Times)-1]
	for _, t := range times {
		if t < first || t > last {
			return nil, fmt.Errorf("sample t=%g not in [%g, %g]: %w", t, first, last, ErrOutOfRange)
		}
	}

	out := make([]State, len(times))
	if len(r.States) == 1 {
		for i := range out {
			out[i] = r.States[0].Clone()
		}
		return out, nil
	}

	dim := len(r.States[0])
	fits := make([]interp.PiecewiseLinear, dim)
	for j := 0; j < dim; j++ {
		if err := fits[j].Fit(r.Times, r.Series(j)); err != nil {
			return nil, fmt.Errorf("sample component %d: %w", j, err)
		}
	}
	for i, t := range times {
		s := make(State, dim)
		for j := range fits {
			s[j] = fits[j].Predict(t)
		}
		out[i] = s
	}
	return out, nil
}
