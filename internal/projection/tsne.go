package projection

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

const (
	tsneExaggeration      = 12.0
	tsneExaggerationIters = 250
	tsneMinGain           = 0.01
	tsneMinGradNorm       = 1e-7
	tsneInitScale         = 1e-4
	perplexityTol         = 1e-5
	perplexitySteps       = 100
	machineEpsilon        = 2.220446049250313e-16
)

// TSNEProjector is exact t-SNE with optional PCA pre-reduction. It runs the
// optimizer NRuns times and keeps the run with the lowest KL divergence.
type TSNEProjector struct {
	params TSNEParams
	logger *zap.Logger
}

// NewTSNE creates a t-SNE projector.
func NewTSNE(p TSNEParams, opts ...Option) (*TSNEProjector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &TSNEProjector{params: p, logger: o.logger}, nil
}

// Algorithm implements Projector.
func (p *TSNEProjector) Algorithm() Algorithm { return TSNE }

// Project implements Projector. Cancellation is observed between runs and
// periodically inside each run.
func (p *TSNEProjector) Project(ctx context.Context, m frame.Frame) (Result, error) {
	if err := checkInput(m); err != nil {
		return Result{}, err
	}
	n := m.Rows()
	if p.params.Perplexity >= float64(n) {
		return Result{}, fmt.Errorf("%w: perplexity %g must be less than the number of samples %d",
			domain.ErrDimension, p.params.Perplexity, n)
	}

	x, err := prereduce(m.Data(), p.params.PCADims, p.logger)
	if err != nil {
		return Result{}, err
	}
	joint := jointProbabilities(x, p.params.Perplexity)

	var (
		best   []float64
		bestKL = math.Inf(1)
	)
	for run := 0; run < p.params.NRuns; run++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		y, kl, iters, err := p.optimize(ctx, joint, n, run)
		if err != nil {
			return Result{}, err
		}
		p.logger.Debug("t-SNE run finished",
			zap.Int("run", run),
			zap.Int("iterations", iters),
			zap.Float64("kl_divergence", kl),
		)
		if kl < bestKL {
			best, bestKL = y, kl
		}
	}
	if best == nil {
		return Result{}, fmt.Errorf("%w: t-SNE divergence is not finite in any of %d runs",
			domain.ErrNonConvergence, p.params.NRuns)
	}
	return twoDimResult(m.Index(), dimNames("tSNE"), mat.NewDense(n, 2, best), bestKL)
}

// optimize runs gradient descent with momentum and adaptive gains from a
// small Gaussian layout. It returns the row-major n×2 layout.
func (p *TSNEProjector) optimize(ctx context.Context, joint []float64, n, run int) ([]float64, float64, int, error) {
	rng := newRand(p.params.Seed, run)
	y := make([]float64, n*2)
	for i := range y {
		y[i] = tsneInitScale * rng.NormFloat64()
	}
	update := make([]float64, len(y))
	gains := make([]float64, len(y))
	for i := range gains {
		gains[i] = 1
	}
	grad := make([]float64, len(y))
	num := make([]float64, n*n)

	early := min(tsneExaggerationIters, p.params.MaxIter)
	it := 0
	for it < p.params.MaxIter {
		if it%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, it, err
			}
		}
		exaggeration, momentum := 1.0, 0.8
		if it < early {
			exaggeration, momentum = tsneExaggeration, 0.5
		}
		it++

		gradient(joint, y, n, exaggeration, num, grad)
		for k := range y {
			if update[k]*grad[k] < 0 {
				gains[k] += 0.2
			} else {
				gains[k] *= 0.8
			}
			gains[k] = math.Max(gains[k], tsneMinGain)
			update[k] = momentum*update[k] - p.params.LearningRate*gains[k]*grad[k]
			y[k] += update[k]
		}
		if it > early && floats.Norm(grad, 2) < tsneMinGradNorm {
			break
		}
	}
	return y, klDivergence(joint, y, n, num), it, nil
}

// jointProbabilities returns the symmetrized affinity matrix (row-major n×n,
// zero diagonal). Each conditional row is calibrated to the target perplexity.
func jointProbabilities(x *mat.Dense, perplexity float64) []float64 {
	n, _ := x.Dims()
	d2 := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
			d2[i*n+j], d2[j*n+i] = d*d, d*d
		}
	}

	cond := make([]float64, n*n)
	target := math.Log(perplexity)
	for i := 0; i < n; i++ {
		conditionalRow(d2[i*n:(i+1)*n], i, target, cond[i*n:(i+1)*n])
	}

	joint := make([]float64, n*n)
	norm := 2 * float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				joint[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/norm, machineEpsilon)
			}
		}
	}
	return joint
}

// conditionalRow binary-searches the Gaussian precision of sample i so the
// entropy of its neighbor distribution equals target (in nats).
func conditionalRow(d2 []float64, i int, target float64, row []float64) {
	beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
	for step := 0; step < perplexitySteps; step++ {
		sum := 0.0
		for j, d := range d2 {
			row[j] = 0
			if j != i {
				row[j] = math.Exp(-d * beta)
				sum += row[j]
			}
		}
		if sum == 0 {
			sum = 1e-8
		}
		weighted := 0.0
		for j := range row {
			row[j] /= sum
			weighted += d2[j] * row[j]
		}

		diff := math.Log(sum) + beta*weighted - target
		if math.Abs(diff) <= perplexityTol {
			return
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}
}

// studentT fills num with the Student-t kernel 1/(1+|yi-yj|²) and returns
// its sum over ordered pairs.
func studentT(y []float64, n int, num []float64) float64 {
	sum := 0.0
	for i := 0; i < n; i++ {
		num[i*n+i] = 0
		for j := i + 1; j < n; j++ {
			dx, dy := y[2*i]-y[2*j], y[2*i+1]-y[2*j+1]
			q := 1 / (1 + dx*dx + dy*dy)
			num[i*n+j], num[j*n+i] = q, q
			sum += 2 * q
		}
	}
	return sum
}

// gradient writes the KL gradient with respect to y into grad.
func gradient(joint, y []float64, n int, exaggeration float64, num, grad []float64) {
	sum := studentT(y, n, num)
	for k := range grad {
		grad[k] = 0
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			q := math.Max(num[i*n+j]/sum, machineEpsilon)
			mult := 4 * (exaggeration*joint[i*n+j] - q) * num[i*n+j]
			grad[2*i] += mult * (y[2*i] - y[2*j])
			grad[2*i+1] += mult * (y[2*i+1] - y[2*j+1])
		}
	}
}

// klDivergence is the KL divergence between the joint affinities and the Student-t similarities for layout y.
func klDivergence(joint, y []float64, n int, num []float64) float64 {
	sum := studentT(y, n, num)
	kl := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			q := math.Max(num[i*n+j]/sum, machineEpsilon)
			p := joint[i*n+j]
			kl += p * math.Log(math.Max(p, machineEpsilon)/q)
		}
	}
	return kl
}
