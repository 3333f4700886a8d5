package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
)

// Objective scores a run; lower is better.
type Objective func(res *dynamo.Result) float64

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("grid needs one value range per parameter")
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Best is the winning grid point.
type Best struct {
	Params    map[string]float64
	Score     float64
	Evaluated int
	Failed    int
}

// Search evaluates every grid point. Points whose experiment fails to
// build or run, or whose score is not finite, are counted and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	objective Objective,
) (*Best, error) {
	best := &Best{Score: math.Inf(1)}

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, objective, best); err != nil {
		return nil, err
	}
	if best.Params == nil {
		return nil, fmt.Errorf("no grid point succeeded (%d failed)", best.Failed)
	}
	return best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	objective Objective,
	best *Best,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		best.Evaluated++
		exp, err := buildExperiment(current)
		if err != nil {
			best.Failed++
			return nil
		}

		result, err := exp.Run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			best.Failed++
			return nil
		}

		val := objective(result)
		if math.IsNaN(val) || math.IsInf(val, 0) {
			best.Failed++
			return nil
		}
		if val < best.Score {
			best.Score = val
			best.Params = maps.Clone(current)
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := maps.Clone(current)
		next[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, next, buildExperiment, objective, best); err != nil {
			return err
		}
	}
	return nil
}
