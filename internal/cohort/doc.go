// Package cohort models the biomass dynamics of a single forest
// species-age cohort.
//
// The state is a pair of pools, living aboveground biomass B and dead
// woody biomass D. Their rates of change are
//
//	dB/dt = ANPP - M_BIO - M_AGE
//	dD/dt = M_BIO + M_AGE - k_decomp * D
//
// where growth (ANPP) and biomass mortality (M_BIO) depend on the ratio
// of actual to potential biomass, B_AP = B / B_POT, and age mortality
// (M_AGE) rises exponentially as the cohort approaches its maximum age.
// The cohort is established at t = 0, so its age is the simulated time.
//
// B_POT shrinks once competitor biomass on the site exceeds the growing
// space the species leaves free (B_MAX_site - B_MAX). Competitor biomass
// is an exogenous [Competition] signal evaluated at every derivative call.
//
// [Model] is immutable once built and safe for concurrent use. It
// implements [dynamo.System] for the integrators and [dynamo.Constrained]
// to hold both pools at or above zero between steps.
package cohort
