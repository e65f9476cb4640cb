package projection

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

// PCAProjector is principal component analysis via SVD of the centered matrix.
type PCAProjector struct {
	params PCAParams
	logger *zap.Logger
}

// NewPCA creates a PCA projector.
func NewPCA(p PCAParams, opts ...Option) (*PCAProjector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &PCAProjector{params: p, logger: o.logger}, nil
}

// Algorithm implements Projector.
func (p *PCAProjector) Algorithm() Algorithm { return PCA }

// Project returns min(MaxComponents, columns, samples) components named
// PCA1..PCAk in decreasing variance order, with loadings indexed by encoded column.
func (p *PCAProjector) Project(ctx context.Context, m frame.Frame) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := checkInput(m); err != nil {
		return Result{}, err
	}

	k := min(p.params.MaxComponents, m.Cols(), m.Rows())
	fit, err := fitPCA(m.Data(), k)
	if err != nil {
		return Result{}, err
	}

	names := make([]string, k)
	for i := range names {
		names[i] = "PCA" + strconv.Itoa(i+1)
	}
	emb, err := frame.New(m.Index(), names, fit.scores)
	if err != nil {
		return Result{}, fmt.Errorf("build embedding: %w", err)
	}
	loadings, err := frame.New(m.Columns(), names, fit.vectors)
	if err != nil {
		return Result{}, fmt.Errorf("build loadings: %w", err)
	}

	p.logger.Debug("PCA projection",
		zap.Int("samples", m.Rows()),
		zap.Int("columns", m.Cols()),
		zap.Int("components", k),
		zap.Float64s("explained_variance_ratio", fit.ratios),
	)
	return Result{
		Embedding:              emb,
		Loadings:               &loadings,
		ExplainedVarianceRatio: fit.ratios,
	}, nil
}

type pcaFit struct {
	scores  *mat.Dense // n×k
	vectors *mat.Dense // d×k, unit columns
	ratios  []float64  // k
}

// fitPCA keeps the first k components of x. Each direction is sign-normalized
// so its largest-magnitude entry is positive, which makes the output deterministic.
func fitPCA(x *mat.Dense, k int) (pcaFit, error) {
	n, d := x.Dims()

	if n < 2 {
		// A single sample has no variance: every score is zero.
		vectors := mat.NewDense(d, k, nil)
		for j := 0; j < k; j++ {
			vectors.Set(j, j, 1)
		}
		return pcaFit{scores: mat.NewDense(n, k, nil), vectors: vectors, ratios: make([]float64, k)}, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return pcaFit{}, fmt.Errorf("%w: pca decomposition failed", domain.ErrNonConvergence)
	}
	vars := pc.VarsTo(nil)
	var all mat.Dense
	pc.VectorsTo(&all)

	vectors := mat.DenseCopyOf(all.Slice(0, d, 0, k))
	for j := 0; j < k; j++ {
		col := mat.Col(nil, j, vectors)
		if col[floats.MaxIdx(absAll(col))] < 0 {
			floats.Scale(-1, col)
			vectors.SetCol(j, col)
		}
	}

	centered := mat.DenseCopyOf(x)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, centered)
		floats.AddConst(-stat.Mean(col, nil), col)
		centered.SetCol(j, col)
	}
	var scores mat.Dense
	scores.Mul(centered, vectors)

	ratios := make([]float64, k)
	if total := floats.Sum(vars); total > 0 {
		for i := range ratios {
			ratios[i] = math.Max(vars[i], 0) / total
		}
	}
	return pcaFit{scores: &scores, vectors: vectors, ratios: ratios}, nil
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}

// prereduce projects x onto its first dims principal components when dims is
// positive and strictly below both the column and the row count. Otherwise x
// is returned unchanged.
func prereduce(x *mat.Dense, dims int, logger *zap.Logger) (*mat.Dense, error) {
	n, d := x.Dims()
	if dims <= 0 || dims >= d || dims >= n {
		return x, nil
	}
	fit, err := fitPCA(x, dims)
	if err != nil {
		return nil, fmt.Errorf("pca pre-reduction: %w", err)
	}
	logger.Debug("PCA pre-reduction", zap.Int("from", d), zap.Int("to", dims))
	return fit.scores, nil
}
