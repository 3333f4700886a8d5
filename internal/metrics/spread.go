package metrics

import (
	"math"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

// Spread is max minus min of one component over samples at or after a
// settle time. A plateau shows up as a small spread.
type Spread struct {
	name     string
	index    int
	after    float64
	min, max float64
	samples  int
}

func NewSpread(index int, after float64) *Spread {
	return &Spread{name: "spread_" + label(index), index: index, after: after}
}

func (s *Spread) Name() string { return s.name }

func (s *Spread) Observe(x dynamo.State, t float64) {
	if t < s.after || s.index >= len(x) {
		return
	}
	v := x[s.index]
	if s.samples == 0 {
		s.min, s.max = v, v
	} else {
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.samples++
}

func (s *Spread) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.max - s.min
}

func (s *Spread) Reset() {
	s.min, s.max, s.samples = 0, 0, 0
}
