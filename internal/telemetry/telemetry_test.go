package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

func TestRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}

	res := &dynamo.Result{
		StepsTaken: 2000,
		Clamped:    3,
		Metrics:    map[string]float64{"peak_biomass": 24.0},
	}
	rec.RecordRun("acer_saccharum", res, 20*time.Millisecond)
	rec.RecordRun("acer_saccharum", res, 30*time.Millisecond)

	if got := testutil.ToFloat64(rec.Runs.WithLabelValues("acer_saccharum")); got != 2 {
		t.Errorf("runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.Steps.WithLabelValues("acer_saccharum")); got != 4000 {
		t.Errorf("steps = %v, want 4000", got)
	}
	if got := testutil.ToFloat64(rec.Clamped.WithLabelValues("acer_saccharum")); got != 6 {
		t.Errorf("clamped = %v, want 6", got)
	}
	if got := testutil.ToFloat64(rec.Peak.WithLabelValues("acer_saccharum")); got != 24 {
		t.Errorf("peak = %v, want 24", got)
	}
	if got := testutil.ToFloat64(rec.Failures.WithLabelValues("acer_saccharum")); got != 0 {
		t.Errorf("failures = %v, want 0", got)
	}
}

func TestDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected error registering twice")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, _ := New(reg)
	rec.RecordRun("short_lived", &dynamo.Result{StepsTaken: 10}, time.Millisecond)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `cohortsim_runs_total{species="short_lived"} 1`) {
		t.Errorf("runs counter missing from exposition:\n%s", body)
	}
}
