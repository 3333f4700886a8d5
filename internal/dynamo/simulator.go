package dynamo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

type Simulator struct {
	sys        System
	integrator Integrator
	metrics    []Metric
	observers  []Observer
	log        logrus.FieldLogger
}

func New(sys System, integrator Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		log:        discardLogger(),
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// SetLogger routes run diagnostics to l. A nil logger silences them.
func (s *Simulator) SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = discardLogger()
	}
	s.log = l
}

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	capacity := int(math.Round(cfg.Duration/cfg.Dt)) + 1
	result := &Result{
		States:  make([]State, 0, capacity),
		Times:   make([]float64, 0, capacity),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	s.record(result, x, 0)

	var err error
	if cfg.Adaptive {
		err = s.runAdaptive(ctx, result, x, cfg)
	} else {
		err = s.runFixed(ctx, result, x, cfg)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.WithFields(logrus.Fields{
		"steps":    result.StepsTaken,
		"rejected": result.Rejected,
		"clamped":  result.Clamped,
		"errors":   len(result.Errors),
	}).Debug("simulation finished")

	return result, err
}

func (s *Simulator) runFixed(ctx context.Context, result *Result, x State, cfg Config) error {
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	t := 0.0

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		newX := s.integrator.Step(s.sys, x, t, cfg.Dt)
		if !s.accept(result, newX, t, i, cfg) {
			return nil
		}

		x = newX
		t = float64(i+1) * cfg.Dt
		s.record(result, x, t)
	}
	return nil
}

func (s *Simulator) runAdaptive(ctx context.Context, result *Result, x State, cfg Config) error {
	t := 0.0
	dt := cfg.Dt

	for i := 0; cfg.Duration-t > cfg.MinDt; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dt = math.Min(dt, cfg.Duration-t)
		newX, used, next, err := s.adaptiveStep(x, t, dt, cfg, result)
		if err != nil {
			simErr := &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
			result.Errors = append(result.Errors, simErr)
			return simErr
		}
		if !s.accept(result, newX, t, i, cfg) {
			return nil
		}

		x = newX
		t += used
		dt = next
		s.record(result, x, t)
	}
	return nil
}

// accept applies the state constraint and validation to a freshly
// computed step. It returns false when the run has to stop.
func (s *Simulator) accept(result *Result, newX State, t float64, step int, cfg Config) bool {
	if c, ok := s.sys.(Constrained); ok && c.Constrain(newX) {
		result.Clamped++
	}

	if cfg.ValidateState && !newX.IsValid() {
		err := SimError{Time: t, Step: step, Message: "invalid state (NaN/Inf)"}
		result.Errors = append(result.Errors, err)
		s.log.WithField("t", t).Warn("simulation stopped on invalid state")
		return false
	}

	result.StepsTaken++
	return true
}

func (s *Simulator) record(result *Result, x State, t float64) {
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, t)
	}
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f: %w", cfg.Dt, ErrInvalidConfig)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f: %w", cfg.Duration, ErrInvalidConfig)
	}
	if cfg.Adaptive {
		if cfg.Tolerance <= 0 {
			return fmt.Errorf("tolerance must be positive for adaptive stepping: %w", ErrInvalidConfig)
		}
		if cfg.MinDt <= 0 || cfg.MaxDt < cfg.MinDt {
			return fmt.Errorf("step bounds [%g, %g] are not usable: %w", cfg.MinDt, cfg.MaxDt, ErrInvalidConfig)
		}
	}
	if len(x0) != s.sys.StateDim() {
		return fmt.Errorf("initial state has %d components, system wants %d: %w", len(x0), s.sys.StateDim(), ErrDimensionMismatch)
	}
	if !x0.IsValid() {
		return fmt.Errorf("initial state: %w", ErrInvalidState)
	}
	return nil
}

// adaptiveStep advances x by one accepted step. It returns the new state,
// the step size actually used and the size proposed for the next step.
func (s *Simulator) adaptiveStep(x State, t, dt float64, cfg Config, result *Result) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		for {
			newX, next, err := adaptive.StepAdaptive(s.sys, x, t, dt, cfg.Tolerance)
			switch {
			case errors.Is(err, ErrStepRejected):
				result.Rejected++
				if next < cfg.MinDt {
					return nil, dt, next, ErrStepTooSmall
				}
				dt = next
				continue
			case err != nil:
				return nil, dt, dt, err
			}
			return newX, dt, clamp(next, cfg.MinDt, cfg.MaxDt), nil
		}
	}

	// Step doubling for integrators without an embedded error estimate.
	for {
		x1 := s.integrator.Step(s.sys, x, t, dt)
		xHalf := s.integrator.Step(s.sys, x, t, dt/2)
		x2 := s.integrator.Step(s.sys, xHalf, t+dt/2, dt/2)

		errEst := x1.Sub(x2).Norm()
		if errEst > cfg.Tolerance {
			result.Rejected++
			if dt/2 < cfg.MinDt {
				return nil, dt, dt / 2, ErrStepTooSmall
			}
			dt /= 2
			continue
		}

		next := dt
		if errEst < cfg.Tolerance/10 {
			next = dt * 2
		}
		return x2, dt, clamp(next, cfg.MinDt, cfg.MaxDt), nil
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(State, float64) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	steps := int(math.Round(cfg.Duration / cfg.Dt))

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt
		if !callback(x, t) || i == steps {
			return nil
		}

		x = s.integrator.Step(s.sys, x, t, cfg.Dt)
		if c, ok := s.sys.(Constrained); ok {
			c.Constrain(x)
		}

		if cfg.ValidateState && !x.IsValid() {
			return fmt.Errorf("invalid state at t=%.4f: %w", t+cfg.Dt, ErrInvalidState)
		}
	}

	return nil
}
