package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cohortsim/internal/dynamo"
)

// SettlingTime returns the first time after which every sample stays
// within band of target. ok is false if the series ends outside the band.
func SettlingTime(times, series []float64, target, band float64) (t float64, ok bool) {
	if len(series) == 0 || len(times) != len(series) {
		return 0, false
	}
	last := -1
	for i := len(series) - 1; i >= 0; i-- {
		if math.Abs(series[i]-target) > band {
			last = i
			break
		}
	}
	switch {
	case last == len(series)-1:
		return 0, false
	case last < 0:
		return times[0], true
	default:
		return times[last+1], true
	}
}

// Plateau is the mean and standard deviation of one component over the
// samples at or after a settle time.
func Plateau(res *dynamo.Result, index int, after float64) (mean, std float64) {
	var xs []float64
	for i, t := range res.Times {
		if t >= after && index < len(res.States[i]) {
			xs = append(xs, res.States[i][index])
		}
	}
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
