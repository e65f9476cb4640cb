package projection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/kailas-cloud/projector/internal/domain"
)

const curveSamples = 300

// fitAB fits the low-dimensional similarity curve 1/(1+a·d^(2b)) to the
// target: 1 below minDist, exp(-(d-minDist)/spread) beyond it, on [0, 3·spread].
// The search runs on log a and log b so both stay positive.
func fitAB(spread, minDist float64) (a, b float64, err error) {
	xs := floats.Span(make([]float64, curveSamples), 0, 3*spread)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 1
		if x >= minDist {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	residual := func(p []float64) float64 {
		a, b := math.Exp(p[0]), math.Exp(p[1])
		sum := 0.0
		for i, x := range xs {
			r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			sum += r * r
		}
		return sum
	}

	res, err := optimize.Minimize(optimize.Problem{Func: residual}, []float64{0, 0}, nil, &optimize.NelderMead{})
	if res == nil {
		return 0, 0, fmt.Errorf("%w: fit umap curve: %w", domain.ErrNonConvergence, err)
	}
	a, b = math.Exp(res.X[0]), math.Exp(res.X[1])
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: fit umap curve: a=%g b=%g", domain.ErrNonConvergence, a, b)
	}
	return a, b, nil
}
