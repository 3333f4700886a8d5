package cohort

import (
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// State indices.
const (
	Biomass  = 0
	DeadWood = 1
)

type Model struct {
	params      Parameters
	competitors Competition
}

type Option func(*Model)

// WithCompetition replaces the constant p.BOther with a time-varying
// competitor signal.
func WithCompetition(c Competition) Option {
	return func(m *Model) {
		m.competitors = c
	}
}

func NewModel(p Parameters, opts ...Option) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Model{params: p}
	for _, opt := range opts {
		opt(m)
	}
	if m.competitors == nil {
		m.competitors = Constant(p.BOther)
	}
	return m, nil
}

func (m *Model) Parameters() Parameters { return m.params }

// Competitors returns the competitor biomass seen at time t.
func (m *Model) Competitors(t float64) float64 { return m.competitors(t) }

func (m *Model) StateDim() int { return 2 }

func (m *Model) Fluxes(t, b, dWood float64) Fluxes {
	return Evaluate(m.params, m.competitors(t), t, b, dWood)
}

func (m *Model) Derivative(t, b, dWood float64) (float64, float64) {
	f := m.Fluxes(t, b, dWood)
	return f.DB, f.DD
}

func (m *Model) Derive(x dynamo.State, t float64) dynamo.State {
	dB, dD := m.Derivative(t, x[Biomass], x[DeadWood])
	return dynamo.State{dB, dD}
}

// Constrain clips both pools at zero after an accepted step.
func (m *Model) Constrain(x dynamo.State) bool {
	clamped := false
	for _, i := range [...]int{Biomass, DeadWood} {
		if x[i] < 0 {
			x[i] = 0
			clamped = true
		}
	}
	return clamped
}

// InitialState is the usual starting point of a cohort simulation.
func InitialState(b0, d0 float64) dynamo.State {
	return dynamo.State{b0, d0}
}
