package integrators

// NewRK4 is the classical fourth-order Runge-Kutta method.
func NewRK4() *Explicit {
	return newExplicit(tableau{
		a: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		c: []float64{0, 0.5, 0.5, 1},
	})
}
