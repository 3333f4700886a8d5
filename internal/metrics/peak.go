package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

func label(index int) string {
	switch index {
	case cohort.Biomass:
		return "biomass"
	case cohort.DeadWood:
		return "dead_wood"
	default:
		return fmt.Sprintf("x%d", index)
	}
}

// Peak tracks the largest value of one state component.
type Peak struct {
	name  string
	index int
	max   float64
	at    float64
	seen  bool
}

func NewPeak(index int) *Peak {
	return &Peak{name: "peak_" + label(index), index: index}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, t float64) {
	if p.index >= len(x) {
		return
	}
	if !p.seen || x[p.index] > p.max {
		p.max = x[p.index]
		p.at = t
		p.seen = true
	}
}

func (p *Peak) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.max
}

// Time returns when the peak was first reached.
func (p *Peak) Time() float64 { return p.at }

func (p *Peak) Reset() {
	p.max, p.at, p.seen = 0, 0, false
}

// PeakTime reports the time of the peak as its value.
type PeakTime struct {
	Peak
}

func NewPeakTime(index int) *PeakTime {
	pt := &PeakTime{Peak: *NewPeak(index)}
	pt.name = "peak_time_" + label(index)
	return pt
}

func (p *PeakTime) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.at
}
