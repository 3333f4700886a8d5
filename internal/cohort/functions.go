package cohort

import "math"

const (
	// MinPotentialBiomass keeps B_AP finite when competitors take the
	// whole site.
	MinPotentialBiomass = 1e-6

	// MaxAgeExponent caps the age-mortality exponent so exp never
	// overflows for cohorts far beyond their maximum age.
	MaxAgeExponent = 700.0
)

// PotentialBiomass returns B_POT, the biomass the species can reach
// given bOther of competitor biomass on the site.
func PotentialBiomass(bMax, bMaxSite, bOther float64) float64 {
	excess := math.Max(0, bOther-(bMaxSite-bMax))
	return math.Max(bMax-excess, MinPotentialBiomass)
}

// ANPP is aboveground net primary production. It peaks at anppMax when
// ratio is 1 and falls off on both sides.
func ANPP(anppMax, ratio float64) float64 {
	return anppMax * ratio * math.Exp(1-ratio)
}

// BiomassMortality is the logistic mortality term. It equals anppMax*y0
// at ratio 0 and saturates toward anppMax.
func BiomassMortality(anppMax, ratio, r, y0 float64) float64 {
	return anppMax * y0 / (y0 + (1-y0)*math.Exp(-(r/y0)*ratio))
}

// AgeMortality returns M_AGE for a cohort of biomass b at the given age.
// At age == maxAge it equals b.
func AgeMortality(b, age, maxAge, d float64) float64 {
	exponent := math.Min(age/maxAge*d, MaxAgeExponent)
	return b * math.Exp(exponent-d)
}

// Decomposition is the first-order loss from the dead-wood pool.
func Decomposition(dWood, k float64) float64 {
	return k * dWood
}

// Fluxes breaks down one derivative evaluation.
type Fluxes struct {
	Time             float64 `json:"time"`
	Biomass          float64 `json:"biomass"`
	DeadWood         float64 `json:"dead_wood"`
	OtherBiomass     float64 `json:"other_biomass"`
	Potential        float64 `json:"potential"`
	Ratio            float64 `json:"ratio"`
	ANPP             float64 `json:"anpp"`
	BiomassMortality float64 `json:"m_bio"`
	AgeMortality     float64 `json:"m_age"`
	Decomposition    float64 `json:"decomposition"`
	DB               float64 `json:"db"`
	DD               float64 `json:"dd"`
}

// Evaluate computes every flux for one state. Negative pool values are
// read as zero; integrator stages can dip just below zero.
func Evaluate(p Parameters, bOther, t, b, dWood float64) Fluxes {
	b = math.Max(b, 0)
	dWood = math.Max(dWood, 0)
	bOther = math.Max(bOther, 0)

	f := Fluxes{
		Time:         t,
		Biomass:      b,
		DeadWood:     dWood,
		OtherBiomass: bOther,
	}
	f.Potential = PotentialBiomass(p.BMax, p.BMaxSite, bOther)
	f.Ratio = b / f.Potential
	f.ANPP = ANPP(p.ANPPMax, f.Ratio)
	f.BiomassMortality = BiomassMortality(p.ANPPMax, f.Ratio, p.R, p.Y0)
	f.AgeMortality = AgeMortality(b, t, p.MaxAge, p.D)
	f.Decomposition = Decomposition(dWood, p.KDecomp)

	f.DB = f.ANPP - f.BiomassMortality - f.AgeMortality
	f.DD = f.BiomassMortality + f.AgeMortality - f.Decomposition
	return f
}

// Derivative returns (dB/dt, dD/dt) with competitor biomass fixed at
// p.BOther.
func Derivative(t, b, dWood float64, p Parameters) (float64, float64) {
	f := Evaluate(p, p.BOther, t, b, dWood)
	return f.DB, f.DD
}
