package experiment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// Recorder receives a summary of every finished run.
type Recorder interface {
	RecordRun(species string, res *dynamo.Result, elapsed time.Duration)
}

type Experiment struct {
	cfg       *config.Config
	model     *cohort.Model
	simulator *dynamo.Simulator
	log       logrus.FieldLogger
	recorder  Recorder
}

type Option func(*options)

type options struct {
	registry  *Registry
	log       logrus.FieldLogger
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	recorder  Recorder
}

func WithRegistry(r *Registry) Option { return func(o *options) { o.registry = r } }

func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// WithMetrics replaces the default metric set.
func WithMetrics(ms ...dynamo.Metric) Option { return func(o *options) { o.metrics = ms } }

func WithObserver(obs dynamo.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func WithRecorder(r Recorder) Option { return func(o *options) { o.recorder = r } }

// New builds the model, integrator and simulator a configuration
// describes.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.log = l
	}
	if o.metrics == nil {
		o.metrics = o.registry.DefaultMetrics()
	}

	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}
	integrator, err := o.registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	log := o.log.WithFields(logrus.Fields{
		"species":    cfg.Species,
		"integrator": cfg.Integrator,
	})

	sim := dynamo.New(model, integrator)
	sim.SetLogger(log)
	for _, m := range o.metrics {
		sim.AddMetric(m)
	}
	for _, obs := range o.observers {
		sim.AddObserver(obs)
	}

	return &Experiment{
		cfg:       cfg,
		model:     model,
		simulator: sim,
		log:       log,
		recorder:  o.recorder,
	}, nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	start := time.Now()
	res, err := e.simulator.Run(ctx, e.cfg.GetInitState(), e.cfg.SimConfig())
	if err != nil {
		e.log.WithError(err).Error("run failed")
		return nil, err
	}
	elapsed := time.Since(start)

	e.log.WithFields(logrus.Fields{
		"steps":   res.StepsTaken,
		"clamped": res.Clamped,
		"elapsed": elapsed,
	}).Info("run finished")

	if e.recorder != nil {
		e.recorder.RecordRun(e.cfg.Species, res, elapsed)
	}
	return res, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Model() *cohort.Model { return e.model }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *dynamo.Simulator {
	return e.simulator
}
