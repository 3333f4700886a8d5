package integrators

// NewEuler is the first-order forward Euler method. It is only accurate
// for small steps and mainly serves as a baseline in comparisons.
func NewEuler() *Explicit {
	return newExplicit(tableau{
		a: [][]float64{{}},
		b: []float64{1},
		c: []float64{0},
	})
}
