package projection

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

// eigTol is the smallest eigenvalue, relative to the largest, that counts
// as a classical scaling axis.
const eigTol = 1e-10

// MDSProjector is metric multidimensional scaling on Euclidean distances,
// solved with SMACOF from NInit starts. The first start is classical
// (Torgerson) scaling, the rest are seeded uniform random layouts. The
// layout with the lowest raw stress wins.
type MDSProjector struct {
	params MDSParams
	logger *zap.Logger
}

// NewMDS creates an MDS projector.
func NewMDS(p MDSParams, opts ...Option) (*MDSProjector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &MDSProjector{params: p, logger: o.logger}, nil
}

// Algorithm implements Projector.
func (p *MDSProjector) Algorithm() Algorithm { return MDS }

// Project implements Projector.
func (p *MDSProjector) Project(ctx context.Context, m frame.Frame) (Result, error) {
	if err := checkInput(m); err != nil {
		return Result{}, err
	}
	n := m.Rows()
	if n == 1 {
		return twoDimResult(m.Index(), dimNames("MDS"), mat.NewDense(1, 2, nil), 0)
	}

	dis := distances(m.Data())
	var (
		best       *mat.Dense
		bestStress = math.Inf(1)
	)
	for run := 0; run < p.params.NInit; run++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		x, iters, err := smacof(ctx, dis, p.start(run, dis), p.params.MaxIter, p.params.Eps)
		if err != nil {
			return Result{}, err
		}
		s := stress(dis, x)
		p.logger.Debug("MDS run finished",
			zap.Int("run", run),
			zap.Int("iterations", iters),
			zap.Float64("stress", s),
		)
		if s < bestStress {
			best, bestStress = x, s
		}
	}
	if best == nil {
		return Result{}, fmt.Errorf("%w: mds stress is not finite in any of %d runs",
			domain.ErrNonConvergence, p.params.NInit)
	}
	return twoDimResult(m.Index(), dimNames("MDS"), best, bestStress)
}

// start returns the initial layout of a run.
func (p *MDSProjector) start(run int, dis *mat.SymDense) *mat.Dense {
	n := dis.SymmetricDim()
	if run == 0 {
		var coords mat.Dense
		k, eig := mds.TorgersonScaling(&coords, make([]float64, n), dis)
		if axes := classicalAxes(eig, k); axes > 0 {
			// Collinear input has a single informative axis. The second
			// one starts at zero.
			x := mat.NewDense(n, 2, nil)
			x.Copy(coords.Slice(0, n, 0, axes))
			return x
		}
		p.logger.Debug("Classical scaling failed, using a random start")
	}
	rng := newRand(p.params.Seed, run)
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, rng.Float64())
		x.Set(i, 1, rng.Float64())
	}
	return x
}

// classicalAxes returns how many of the leading k classical scaling axes,
// at most two, carry variance. eig is sorted in decreasing order.
func classicalAxes(eig []float64, k int) int {
	if k == 0 || eig[0] <= 0 {
		return 0
	}
	axes := 0
	for axes < min(k, 2) && eig[axes] > eigTol*eig[0] {
		axes++
	}
	return axes
}

// smacof iterates the Guttman transform until the normalized stress
// improvement drops below eps or maxIter is reached.
func smacof(ctx context.Context, dis *mat.SymDense, x *mat.Dense, maxIter int, eps float64) (*mat.Dense, int, error) {
	n, dim := x.Dims()
	b := mat.NewDense(n, n, nil)
	next := mat.NewDense(n, dim, nil)
	prev := math.Inf(1)

	it := 0
	for it < maxIter {
		if it%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, it, err
			}
		}
		it++

		s := 0.0
		for i := 0; i < n; i++ {
			b.Set(i, i, 0)
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				d := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
				delta := dis.At(i, j)
				s += (d - delta) * (d - delta)
				ratio := 0.0
				if d > 0 {
					ratio = delta / d
				}
				b.Set(i, j, -ratio)
				b.Set(j, i, -ratio)
				b.Set(i, i, b.At(i, i)+ratio)
				b.Set(j, j, b.At(j, j)+ratio)
			}
		}
		next.Mul(b, x)
		next.Scale(1/float64(n), next)
		x, next = next, x

		norm := 0.0
		for i := 0; i < n; i++ {
			norm += floats.Norm(x.RawRowView(i), 2)
		}
		if norm == 0 || math.IsNaN(s) {
			break
		}
		if prev-s/norm < eps {
			break
		}
		prev = s / norm
	}
	return mat.DenseCopyOf(x), it, nil
}

// stress is the raw stress: the sum over pairs of squared residuals
// between layout distances and input dissimilarities.
func stress(dis *mat.SymDense, x *mat.Dense) float64 {
	n, _ := x.Dims()
	s := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2) - dis.At(i, j)
			s += r * r
		}
	}
	return s
}

// twoDimResult wraps an n×2 layout into a Result with the given objective.
func twoDimResult(index, names []string, x *mat.Dense, objective float64) (Result, error) {
	emb, err := frame.New(index, names, x)
	if err != nil {
		return Result{}, fmt.Errorf("build embedding: %w", err)
	}
	return Result{Embedding: emb, Objective: &objective}, nil
}
