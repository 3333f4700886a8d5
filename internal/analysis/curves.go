package analysis

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cohortsim/internal/cohort"
)

// CurvePoint is one sample of the growth and mortality response.
type CurvePoint struct {
	Ratio            float64
	ANPP             float64
	BiomassMortality float64
	Net              float64
}

// ResponseCurves samples ANPP and M_BIO at n ratios in [0, maxRatio].
func ResponseCurves(p cohort.Parameters, n int, maxRatio float64) []CurvePoint {
	if n < 2 {
		n = 2
	}
	ratios := floats.Span(make([]float64, n), 0, maxRatio)

	pts := make([]CurvePoint, n)
	for i, x := range ratios {
		anpp := cohort.ANPP(p.ANPPMax, x)
		mbio := cohort.BiomassMortality(p.ANPPMax, x, p.R, p.Y0)
		pts[i] = CurvePoint{Ratio: x, ANPP: anpp, BiomassMortality: mbio, Net: anpp - mbio}
	}
	return pts
}

// Equilibrium returns the largest sampled ratio where net growth is still
// positive, a grid estimate of where a young cohort levels off.
func Equilibrium(pts []CurvePoint) float64 {
	eq := 0.0
	for _, pt := range pts {
		if pt.Net > 0 {
			eq = pt.Ratio
		}
	}
	return eq
}

// AgePoint is M_AGE/B at one age fraction.
type AgePoint struct {
	AgeFraction float64
	Fraction    float64
}

// AgeCurve samples M_AGE/B at n age fractions in [0, maxFraction].
func AgeCurve(p cohort.Parameters, n int, maxFraction float64) []AgePoint {
	if n < 2 {
		n = 2
	}
	fracs := floats.Span(make([]float64, n), 0, maxFraction)

	pts := make([]AgePoint, n)
	for i, f := range fracs {
		pts[i] = AgePoint{
			AgeFraction: f,
			Fraction:    cohort.AgeMortality(1, f*p.MaxAge, p.MaxAge, p.D),
		}
	}
	return pts
}
