package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

// tableau holds the coefficients of an explicit Runge-Kutta method. Row s
// of a has s entries: the weights of the earlier stage slopes.
type tableau struct {
	a [][]float64
	b []float64
	c []float64
}

// Explicit is a fixed-step explicit Runge-Kutta integrator. Slope buffers
// are reused across steps, so one Explicit must not be shared between
// goroutines.
type Explicit struct {
	tab   tableau
	k     []dynamo.State
	stage dynamo.State
}

func newExplicit(tab tableau) *Explicit {
	return &Explicit{tab: tab}
}

// Stages is the number of derivative evaluations per step.
func (e *Explicit) Stages() int { return len(e.tab.b) }

func (e *Explicit) resize(n int) {
	if len(e.stage) == n {
		return
	}
	e.stage = make(dynamo.State, n)
	e.k = make([]dynamo.State, len(e.tab.b))
	for i := range e.k {
		e.k[i] = make(dynamo.State, n)
	}
}

// Step returns a new state; x is left untouched.
func (e *Explicit) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	e.resize(len(x))

	for s, row := range e.tab.a {
		copy(e.stage, x)
		for j, w := range row {
			if w != 0 {
				floats.AddScaled(e.stage, dt*w, e.k[j])
			}
		}
		// Systems may hand back a shared buffer.
		copy(e.k[s], sys.Derive(e.stage, t+e.tab.c[s]*dt))
	}

	next := x.Clone()
	for s, w := range e.tab.b {
		floats.AddScaled(next, dt*w, e.k[s])
	}
	return next
}
