package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
	"github.com/san-kum/cohortsim/internal/storage"
	"github.com/san-kum/cohortsim/internal/telemetry"
)

var (
	dataDir     string
	storeKind   string
	logLevel    string
	logFormat   string
	metricsAddr string

	configFile string
	preset     string
	species    string
	integrator string
	dt         float64
	duration   float64
	biomass0   float64
	deadWood0  float64
	bOther     float64
	adaptive   bool
	tolerance  float64
	seed       int64
	overrides  map[string]string

	// figure output
	outFile string
	scale   float64
	workers int

	log      = logrus.New()
	recorder *telemetry.Recorder
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cohortsim",
		Short:         "forest cohort biomass simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}
			return setupTelemetry(cmd.Context())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "store-path", "", "run store directory (file) or database (sqlite); default .cohortsim")
	pf.StringVar(&storeKind, "store", "file", "run store backend: file|sqlite")
	pf.StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(runCommands()...)
	rootCmd.AddCommand(studyCommands()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch logFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s", logFormat)
	}
	return nil
}

func setupTelemetry(ctx context.Context) error {
	if metricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	rec, err := telemetry.New(reg)
	if err != nil {
		return err
	}
	recorder = rec

	go func() {
		if err := telemetry.Serve(ctx, metricsAddr, reg, log); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return nil
}

// experimentOptions wires the shared logger and, when enabled, the
// prometheus recorder into every experiment.
func experimentOptions() []experiment.Option {
	opts := []experiment.Option{experiment.WithLogger(log)}
	if recorder != nil {
		opts = append(opts, experiment.WithRecorder(recorder))
	}
	return opts
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&species, "species", config.DefaultSpecies, "species parameter set")
	f.StringVar(&integrator, "integrator", "rk4", "integrator: euler|rk4|rk45")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep in years")
	f.Float64Var(&duration, "time", config.DefaultDuration, "simulated years")
	f.Float64Var(&biomass0, "b0", config.DefaultBiomass, "initial living biomass")
	f.Float64Var(&deadWood0, "d0", 0, "initial dead wood")
	f.Float64Var(&bOther, "b-other", 0, "constant competitor biomass")
	f.BoolVar(&adaptive, "adaptive", false, "adaptive step control (rk45)")
	f.Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive error tolerance")
	f.Int64Var(&seed, "seed", 0, "random seed recorded with the run")
	f.StringToStringVar(&overrides, "set", nil, "parameter overrides, e.g. --set max_age=300,k_decomp=0.2")
	cmd.MarkFlagsMutuallyExclusive("config", "preset")
}

// buildConfig starts from the config file, the preset or the defaults and
// applies the flags the user actually set.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	f := cmd.Flags()
	if f.Changed("species") {
		cfg.Species = species
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("b0") {
		cfg.InitState.Biomass = biomass0
	}
	if f.Changed("d0") {
		cfg.InitState.DeadWood = deadWood0
	}
	if f.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if f.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}

	if cfg.Params == nil {
		cfg.Params = make(map[string]float64)
	}
	if f.Changed("b-other") {
		cfg.Params["b_other"] = bOther
	}
	for name, raw := range overrides {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		cfg.Params[name] = v
	}

	if _, err := cfg.Parameters(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore() (storage.Backend, error) {
	path := dataDir
	if path == "" {
		path = ".cohortsim"
		if storeKind == "sqlite" {
			path = filepath.Join(path, "runs.db")
		}
	}
	if storeKind == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}

	st, err := storage.Open(storeKind, path, log)
	if err != nil {
		return nil, err
	}
	if err := st.Init(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadRun reads a stored run back as a result.
func loadRun(st storage.Backend, runID string) (*storage.RunMetadata, *dynamo.Result, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}

	result := &dynamo.Result{
		States:     make([]dynamo.State, len(states)),
		Times:      times,
		Metrics:    meta.Metrics,
		StepsTaken: meta.Steps,
		Clamped:    meta.Clamped,
	}
	for i, s := range states {
		result.States[i] = s
	}
	return meta, result, nil
}

func saveFigure(save func(path string) error, fallback string) error {
	path := outFile
	if path == "" {
		path = fallback
	}
	if err := save(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
