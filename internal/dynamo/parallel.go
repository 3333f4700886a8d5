package dynamo

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Run is one member of an ensemble: a system and the state it starts from.
type Run struct {
	Name   string
	System System
	X0     State
}

// Ensemble executes independent runs concurrently. Systems are shared
// read-only; every run gets its own integrator and metric instances.
type Ensemble struct {
	newIntegrator func() Integrator
	newMetrics    func() []Metric
	workers       int
}

func NewEnsemble(newIntegrator func() Integrator, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{newIntegrator: newIntegrator, workers: workers}
}

// WithMetrics attaches a metric factory invoked once per run.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.newMetrics = fn
	return e
}

// Run returns results in the order of runs. The first failing run
// cancels the remaining ones.
func (e *Ensemble) Run(ctx context.Context, runs []Run, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, r := range runs {
		g.Go(func() error {
			s := New(r.System, e.newIntegrator())
			if e.newMetrics != nil {
				for _, m := range e.newMetrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(ctx, r.X0, cfg)
			if err != nil {
				return fmt.Errorf("run %d (%s): %w", i, r.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
