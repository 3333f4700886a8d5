// Package analysis derives summaries and diagnostic curves from cohort
// runs.
//
//   - [ResponseCurves]: ANPP and biomass mortality against B_AP
//   - [AgeCurve]: age mortality as a fraction of biomass against age
//   - [Sweep]: peak biomass across values of one parameter, run in parallel
//   - [SettlingTime]: when a series enters and stays in a band
//   - [Sensitivity]: elasticity of a run summary to one parameter
//   - [NewPhasePortrait]: the B-versus-D trajectory
//
// # Competition
//
// A competition sweep shows the slope -1 penalty directly:
//
//	pts, err := analysis.Sweep(ctx, p, "b_other", floats.Span(make([]float64, 11), 0, 50), opts)
//	fmt.Print(analysis.SweepToASCII(pts, 60, 15))
package analysis
