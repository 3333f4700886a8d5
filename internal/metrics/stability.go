package metrics

import (
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// NonNegative is the fraction of samples with every pool >= 0.
type NonNegative struct {
	name       string
	violations int
	samples    int
}

func NewNonNegative() *NonNegative {
	return &NonNegative{
		name: "non_negative",
	}
}

func (s *NonNegative) Name() string {
	return s.name
}

func (s *NonNegative) Observe(x dynamo.State, t float64) {
	s.samples++
	for _, val := range x {
		if val < 0 {
			s.violations++
			break
		}
	}
}

func (s *NonNegative) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *NonNegative) Reset() {
	s.violations = 0
	s.samples = 0
}

// Default is the metric set attached to every cohort run.
func Default() []dynamo.Metric {
	return []dynamo.Metric{
		NewPeak(0),
		NewPeakTime(0),
		NewPeak(1),
		NewSpread(1, 50),
		NewNonNegative(),
	}
}
