// Package telemetry exports run counters and timings in the Prometheus
// format.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

const namespace = "cohortsim"

// Recorder counts finished runs. It satisfies experiment.Recorder.
type Recorder struct {
	Runs     *prometheus.CounterVec
	Steps    *prometheus.CounterVec
	Clamped  *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Peak     *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, []string{"species"})
	}

	r := &Recorder{
		Runs:     counter("runs_total", "Finished simulation runs."),
		Steps:    counter("steps_total", "Accepted integration steps."),
		Clamped:  counter("clamped_steps_total", "Steps where a pool was clamped at zero."),
		Rejected: counter("rejected_steps_total", "Adaptive steps rejected by the error control."),
		Failures: counter("run_errors_total", "Runs that stopped on an invalid state."),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one simulation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"species"}),
		Peak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_peak_biomass",
			Help:      "Peak living biomass of the most recent run.",
		}, []string{"species"}),
	}

	for _, c := range []prometheus.Collector{r.Runs, r.Steps, r.Clamped, r.Rejected, r.Failures, r.Duration, r.Peak} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) RecordRun(species string, res *dynamo.Result, elapsed time.Duration) {
	r.Runs.WithLabelValues(species).Inc()
	r.Steps.WithLabelValues(species).Add(float64(res.StepsTaken))
	r.Clamped.WithLabelValues(species).Add(float64(res.Clamped))
	r.Rejected.WithLabelValues(species).Add(float64(res.Rejected))
	if len(res.Errors) > 0 {
		r.Failures.WithLabelValues(species).Inc()
	}
	r.Duration.WithLabelValues(species).Observe(elapsed.Seconds())
	if peak, ok := res.Metrics["peak_biomass"]; ok {
		r.Peak.WithLabelValues(species).Set(peak)
	}
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
