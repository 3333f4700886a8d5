package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/cohortsim/internal/analysis"
	"github.com/san-kum/cohortsim/internal/automation"
	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/experiment"
	"github.com/san-kum/cohortsim/internal/export"
	"github.com/san-kum/cohortsim/internal/optim"
	"github.com/san-kum/cohortsim/internal/storage"
)

var (
	curvePoints int
	maxRatio    float64
	ageCurve    bool

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int

	sensStep float64

	gridSpecs   []string
	targetSpecs []string

	saveAll bool

	mcParams  []string
	mcPerturb float64
	mcTrials  int
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func studyCommands() []*cobra.Command {
	speciesCmd := &cobra.Command{
		Use:   "species",
		Short: "list species parameter sets",
		Args:  cobra.NoArgs,
		RunE:  listSpecies,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	curvesCmd := &cobra.Command{
		Use:   "curves [species]",
		Short: "ANPP and biomass mortality against B_AP",
		Args:  cobra.MaximumNArgs(1),
		RunE:  responseCurves,
	}
	curvesCmd.Flags().IntVar(&curvePoints, "n", 13, "number of points")
	curvesCmd.Flags().Float64Var(&maxRatio, "max-ratio", 3, "largest B_AP sampled")
	curvesCmd.Flags().BoolVar(&ageCurve, "age", false, "show M_AGE/B against age fraction instead")
	curvesCmd.Flags().StringVarP(&outFile, "out", "o", "", "also write a figure")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary one parameter and report peak biomass",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "b_other", "parameter to vary")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 40, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 9, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0: GOMAXPROCS)")
	sweepCmd.Flags().StringVarP(&outFile, "out", "o", "", "also write a figure")

	sensCmd := &cobra.Command{
		Use:   "sensitivity [param...]",
		Short: "elasticity of peak biomass to each parameter",
		Args:  cobra.ArbitraryArgs,
		RunE:  runSensitivity,
	}
	addRunFlags(sensCmd)
	sensCmd.Flags().Float64Var(&sensStep, "step", 0.05, "relative perturbation")

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "grid-search parameters to match target metrics",
		Example: "  cohortsim calibrate --grid d=5:15:5 --grid max_age=300:500:5 \\\n" +
			"    --target peak_biomass=24 --target peak_time_biomass=80",
		Args: cobra.NoArgs,
		RunE: runCalibrate,
	}
	addRunFlags(calibrateCmd)
	calibrateCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "parameter range name=lo:hi:n")
	calibrateCmd.Flags().StringArrayVar(&targetSpecs, "target", nil, "metric target name=value[:weight]")
	calibrateCmd.MarkFlagRequired("grid")
	calibrateCmd.MarkFlagRequired("target")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of several runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&saveAll, "save-all", false, "store every run, not only those with save_as")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "perturb parameters and summarize the spread of outcomes",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addRunFlags(mcCmd)
	mcCmd.Flags().StringSliceVar(&mcParams, "params", []string{"anpp_max", "b_max"}, "parameters to perturb")
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 0.1, "relative perturbation half-width")
	mcCmd.Flags().IntVar(&mcTrials, "trials", 100, "number of trials")
	mcCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0: GOMAXPROCS)")

	return []*cobra.Command{speciesCmd, presetsCmd, curvesCmd, sweepCmd, sensCmd, calibrateCmd, scenarioCmd, mcCmd}
}

func listSpecies(cmd *cobra.Command, args []string) error {
	t := newTable("SPECIES", "ANPP_MAX", "B_MAX", "B_MAX_SITE", "MAX_AGE", "K_DECOMP", "R", "Y0", "D")
	for _, name := range cohort.SpeciesNames() {
		p, err := cohort.LookupSpecies(name)
		if err != nil {
			return err
		}
		t.Row(name, g(p.ANPPMax), g(p.BMax), g(p.BMaxSite), g(p.MaxAge), g(p.KDecomp), g(p.R), g(p.Y0), g(p.D))
	}
	fmt.Println(t.Render())
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	t := newTable("PRESET", "SPECIES", "INTEGRATOR", "DT", "YEARS", "COMPETITION")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		comp := cfg.Competition.Kind
		if comp == "" {
			comp = fmt.Sprintf("b_other=%g", cfg.Params["b_other"])
		}
		integ := cfg.Integrator
		if cfg.Adaptive {
			integ += " (adaptive)"
		}
		t.Row(name, cfg.Species, integ, g(cfg.Dt), g(cfg.Duration), comp)
	}
	fmt.Println(t.Render())
	return nil
}

func g(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func responseCurves(cmd *cobra.Command, args []string) error {
	name := config.DefaultSpecies
	if len(args) > 0 {
		name = args[0]
	}
	p, err := cohort.LookupSpecies(name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	if ageCurve {
		pts := analysis.AgeCurve(p, curvePoints, 1.2)
		fmt.Fprintln(w, "AGE/MAX_AGE\tM_AGE/B\t")
		for _, pt := range pts {
			fmt.Fprintf(w, "%.3f\t%.4g\t\n", pt.AgeFraction, pt.Fraction)
		}
		return w.Flush()
	}

	pts := analysis.ResponseCurves(p, curvePoints, maxRatio)
	fmt.Fprintln(w, "B_AP\tANPP\tM_BIO\tNET\t")
	net := make([]float64, len(pts))
	for i, pt := range pts {
		fmt.Fprintf(w, "%.3f\t%.4f\t%.4f\t%.4f\t\n", pt.Ratio, pt.ANPP, pt.BiomassMortality, pt.Net)
		net[i] = pt.Net
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nnet growth changes sign near B_AP = %.3f\n\n", analysis.Equilibrium(pts))
	fmt.Println(asciigraph.Plot(net, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("ANPP - M_BIO vs B_AP")))

	if outFile == "" {
		return nil
	}
	fig, err := export.ResponsePlot(name, pts)
	if err != nil {
		return err
	}
	return saveFigure(func(path string) error { return export.Save(fig, path) }, "")
}

func newRunner() *automation.Runner {
	r := automation.NewRunner(log)
	r.Workers = workers
	if recorder != nil {
		r.Recorder = recorder
	}
	return r
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	sweep := &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		ParamMin:  sweepFrom,
		ParamMax:  sweepTo,
		NumSteps:  sweepSteps,
	}
	results, err := newRunner().RunSweep(cmd.Context(), sweep)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\tPEAK B\tPEAK AT\tFINAL B\tFINAL D\t\n", strings.ToUpper(sweepParam))
	pts := make([]analysis.SweepPoint, len(results))
	for i, r := range results {
		fmt.Fprintf(w, "%.4g\t%.4f\t%.1f\t%.4f\t%.4f\t\n", r.Param, r.PeakBiomass, r.PeakTime, r.FinalBiomass, r.FinalDeadWood)
		pts[i] = r.SweepPoint
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(analysis.SweepToASCII(pts, 60, 12))

	if outFile == "" {
		return nil
	}
	fig, err := export.SweepPlot(base.Species, sweepParam, pts, 1)
	if err != nil {
		return err
	}
	return saveFigure(func(path string) error { return export.Save(fig, path) }, "")
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	p, err := cfg.Parameters()
	if err != nil {
		return err
	}
	newIntegrator, err := experiment.NewRegistry().IntegratorFactory(cfg.Integrator)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		for _, name := range cohort.ParamNames() {
			if p.GetParams()[name] != 0 {
				names = append(names, name)
			}
		}
	}

	opts := analysis.SweepOptions{
		NewIntegrator: newIntegrator,
		X0:            cfg.GetInitState(),
		Config:        cfg.SimConfig(),
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PARAM\tVALUE\tELASTICITY\t")
	for _, name := range names {
		e, err := analysis.Sensitivity(cmd.Context(), p, name, sensStep, opts)
		if err != nil {
			fmt.Fprintf(w, "%s\t\terror: %v\t\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.4g\t%+.3f\t\n", name, p.GetParams()[name], e)
	}
	return w.Flush()
}

// parseGrid reads name=lo:hi:n into evenly spaced values.
func parseGrid(spec string) (string, []float64, error) {
	name, rng, ok := strings.Cut(spec, "=")
	parts := strings.Split(rng, ":")
	if !ok || len(parts) != 3 {
		return "", nil, fmt.Errorf("bad grid %q, want name=lo:hi:n", spec)
	}
	lo, err1 := strconv.ParseFloat(parts[0], 64)
	hi, err2 := strconv.ParseFloat(parts[1], 64)
	n, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || n < 1 {
		return "", nil, fmt.Errorf("bad grid %q, want name=lo:hi:n", spec)
	}

	sweep := automation.ParameterSweep{ParamMin: lo, ParamMax: hi, NumSteps: n}
	return name, sweep.Values(), nil
}

func parseTarget(spec string) (optim.Target, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return optim.Target{}, fmt.Errorf("bad target %q, want metric=value[:weight]", spec)
	}
	value, weight, hasWeight := strings.Cut(rest, ":")

	t := optim.Target{Metric: name}
	var err error
	if t.Value, err = strconv.ParseFloat(value, 64); err != nil {
		return t, fmt.Errorf("target %s: %w", name, err)
	}
	if hasWeight {
		if t.Weight, err = strconv.ParseFloat(weight, 64); err != nil {
			return t, fmt.Errorf("target %s weight: %w", name, err)
		}
	}
	return t, nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	var names []string
	var ranges [][]float64
	for _, spec := range gridSpecs {
		name, values, err := parseGrid(spec)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	targets := make([]optim.Target, len(targetSpecs))
	for i, spec := range targetSpecs {
		if targets[i], err = parseTarget(spec); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{"points": grid.Size(), "targets": len(targets)}).Info("calibration started")
	best, err := optim.Calibrate(cmd.Context(), base, grid, targets, experimentOptions()...)
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d points (%d failed)\n", best.Evaluated, best.Failed)
	fmt.Printf("best loss: %.6g\n", best.Score)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, best.Params[name])
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Printf("  %s\n", scenario.Description)
	}
	fmt.Println()

	outcomes, runErr := newRunner().RunScenario(cmd.Context(), scenario)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSPECIES\tPEAK B\tPEAK AT\tFINAL B\tFINAL D\tSTORED AS")
	for _, o := range outcomes {
		stored := ""
		if o.Run.SaveAs != "" || saveAll {
			meta, err := storage.NewMetadata(o.Run.Config, o.Result)
			if err != nil {
				return err
			}
			if o.Run.SaveAs != "" {
				meta.ID = o.Run.SaveAs
			}
			if stored, err = st.Save(meta, o.Result); err != nil {
				return err
			}
		}

		pt := analysis.Summarize(o.Result)
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.1f\t%.4f\t%.4f\t%s\n",
			o.Run.Name, o.Run.Config.Species, pt.PeakBiomass, pt.PeakTime, pt.FinalBiomass, pt.FinalDeadWood, stored)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	summary, err := newRunner().RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:         base,
		Params:       mcParams,
		Perturbation: mcPerturb,
		NumTrials:    mcTrials,
		Seed:         base.Seed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d trials, ±%.0f%% on %s, %d stable\n\n",
		len(summary.Trials), mcPerturb*100, strings.Join(mcParams, ", "), summary.Stable)

	t := newTable("QUANTITY", "MEAN", "STD", "MIN", "P05", "MEDIAN", "P95", "MAX")
	for _, row := range []struct {
		name string
		s    automation.Stats
	}{
		{"peak B", summary.PeakBiomass},
		{"peak age", summary.PeakTime},
		{"final D", summary.FinalDeadWood},
	} {
		s := row.s
		t.Row(row.name, f4(s.Mean), f4(s.Std), f4(s.Min), f4(s.P05), f4(s.Median), f4(s.P95), f4(s.Max))
	}
	fmt.Println(t.Render())
	return nil
}

func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
