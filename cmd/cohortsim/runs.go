package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/cohortsim/internal/analysis"
	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
	"github.com/san-kum/cohortsim/internal/export"
	"github.com/san-kum/cohortsim/internal/storage"
	"github.com/san-kum/cohortsim/internal/viz"
)

const plateauAfter = 50.0

func runCommands() []*cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate one cohort and store the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "living biomass against dead wood",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}

	figureCmd := &cobra.Command{
		Use:   "figure [run_id]",
		Short: "render a stored run as PNG, SVG or PDF",
		Args:  cobra.ExactArgs(1),
		RunE:  figureRun,
	}
	figureCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file; extension picks the format (default <run_id>.png)")
	figureCmd.Flags().Float64Var(&scale, "scale", 1, "multiply pools before plotting")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trajectory to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and trajectory to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [integrator...]",
		Short: "run one configuration on several integrators",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addRunFlags(compareCmd)
	compareCmd.Flags().StringVarP(&outFile, "out", "o", "", "also write an overlay figure")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a cohort live in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	return []*cobra.Command{runCmd, listCmd, plotCmd, phaseCmd, figureCmd, exportCmd, exportCSVCmd, exportJSONCmd, compareCmd, liveCmd}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	exp, err := experiment.New(cfg, experimentOptions()...)
	if err != nil {
		return err
	}

	fmt.Printf("running %s for %.0f years...\n", cfg.Species, cfg.Duration)
	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta, err := storage.NewMetadata(cfg, result)
	if err != nil {
		return err
	}
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}

	final, _ := result.Final()
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d (clamped %d, rejected %d)\n", result.StepsTaken, result.Clamped, result.Rejected)
	fmt.Printf("final: B=%.4f D=%.4f\n", final[cohort.Biomass], final[cohort.DeadWood])
	if cfg.Duration > plateauAfter {
		mean, std := analysis.Plateau(result, cohort.DeadWood, plateauAfter)
		fmt.Printf("dead wood after year %.0f: %.4f ± %.4f\n", plateauAfter, mean, std)
	}

	fmt.Println("\nmetrics:")
	for _, name := range slices.Sorted(maps.Keys(result.Metrics)) {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSPECIES\tTIME\tYEARS\tDT\tINTEG\tSTEPS\tPEAK B")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.4g\t%s\t%d\t%.3f\n",
			run.ID,
			run.Species,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Steps,
			run.Metrics["peak_biomass"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("species: %s\n", meta.Species)
	fmt.Printf("samples: %d over %.0f years\n\n", len(result.Times), meta.Duration)

	for i, name := range storage.Columns {
		graph := asciigraph.Plot(result.Series(i),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs age"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	b, d := result.Series(cohort.Biomass), result.Series(cohort.DeadWood)
	if peak, ok := meta.Metrics["peak_biomass"]; ok {
		if at, ok := analysis.SettlingTime(result.Times, b, peak, 0.05*peak); ok {
			fmt.Printf("B within 5%% of its peak from year %.1f\n", at)
		}
	}
	if at, ok := analysis.SettlingTime(result.Times, d, d[len(d)-1], 1); ok {
		fmt.Printf("D within 1.0 of its final value from year %.1f\n", at)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	_, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}

	portrait := analysis.NewPhasePortrait(result, cohort.Biomass, cohort.DeadWood)
	if portrait == nil {
		return fmt.Errorf("run %s does not hold both pools", args[0])
	}
	fmt.Println("x: living biomass, y: dead wood, o: start")
	fmt.Println(analysis.PhasePortraitToASCII(portrait, 70, 24))
	return nil
}

func figureRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}

	p, err := export.TrajectoryPlot(meta.Species, result, scale)
	if err != nil {
		return err
	}
	return saveFigure(func(path string) error { return export.Save(p, path) }, meta.ID+".png")
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	_, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}
	return storage.ExportCSV(os.Stdout, result)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, result)
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s (dt=%.4g, %.0f years)\n\n", base.Species, base.Dt, base.Duration)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tPEAK B\tPEAK AT\tFINAL B\tFINAL D\tSTEPS\tCLAMPED\tTIME MS")

	var names []string
	var results []*dynamo.Result
	for _, name := range args {
		cfg := base.Clone()
		cfg.Integrator = name

		exp, err := experiment.New(cfg, experimentOptions()...)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}
		start := time.Now()
		res, err := exp.Run(cmd.Context())
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		pt := analysis.Summarize(res)
		fmt.Fprintf(w, "%s\t%.4f\t%.1f\t%.4f\t%.4f\t%d\t%d\t%.2f\n",
			name, pt.PeakBiomass, pt.PeakTime, pt.FinalBiomass, pt.FinalDeadWood,
			res.StepsTaken, res.Clamped, float64(elapsed.Microseconds())/1000)
		names = append(names, name)
		results = append(results, res)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if outFile == "" || len(results) == 0 {
		return nil
	}
	p, err := export.ComparePlot(base.Species, names, results, 1)
	if err != nil {
		return err
	}
	return saveFigure(func(path string) error { return export.Save(p, path) }, "")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	integ, err := experiment.NewRegistry().GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}

	var opts []cohort.Option
	comp, err := cfg.Competition.Build()
	if err != nil {
		return err
	}
	if comp != nil {
		opts = append(opts, cohort.WithCompetition(comp))
	}

	m, err := viz.NewLive(cfg.Species, params, integ, cfg.GetInitState(), cfg.Dt, cfg.Duration, opts...)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
