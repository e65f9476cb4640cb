package projection

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

const (
	umapSpread          = 1.0
	umapNegativeSamples = 5
	umapRepulsion       = 1.0
	umapGradClip        = 4.0
	umapLayoutScale     = 10.0
	umapLargeDataset    = 10000
	umapSmallEpochs     = 200
	umapDefaultEpochs   = 500
	smoothKNNSteps      = 64
	smoothKNNTol        = 1e-5
	minDistScale        = 1e-3
	// spectralMaxSamples bounds the dense eigendecomposition used for the
	// initial layout. Larger inputs start from a random layout.
	spectralMaxSamples = 2000
)

// UMAPProjector is UMAP on an exact k-nearest-neighbor graph with optional
// PCA pre-reduction.
type UMAPProjector struct {
	params UMAPParams
	logger *zap.Logger
}

// NewUMAP creates a UMAP projector.
func NewUMAP(p UMAPParams, opts ...Option) (*UMAPProjector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &UMAPProjector{params: p, logger: o.logger}, nil
}

// Algorithm implements Projector.
func (p *UMAPProjector) Algorithm() Algorithm { return UMAP }

// Project implements Projector. NNeighbors is clamped to the sample count minus one.
func (p *UMAPProjector) Project(ctx context.Context, m frame.Frame) (Result, error) {
	if err := checkInput(m); err != nil {
		return Result{}, err
	}
	n := m.Rows()
	if n < 2 {
		return Result{}, fmt.Errorf("%w: umap needs at least 2 samples, got %d", domain.ErrDimension, n)
	}

	x, err := prereduce(m.Data(), p.params.PCADims, p.logger)
	if err != nil {
		return Result{}, err
	}
	k := min(p.params.NNeighbors, n-1)
	edges := fuzzyGraph(nearestNeighbors(x, k))

	a, b, err := fitAB(umapSpread, p.params.MinDist)
	if err != nil {
		return Result{}, err
	}

	epochs := p.params.Epochs
	if epochs == 0 {
		epochs = umapDefaultEpochs
		if n > umapLargeDataset {
			epochs = umapSmallEpochs
		}
	}

	rng := newRand(p.params.Seed, 0)
	layout, spectral := spectralLayout(edges, n)
	if !spectral {
		layout = randomLayout(n, rng)
	}
	y := initialLayout(layout, spectral, rng)

	p.logger.Debug("UMAP layout start",
		zap.Int("samples", n),
		zap.Int("neighbors", k),
		zap.Int("edges", len(edges)),
		zap.Bool("spectral_init", spectral),
		zap.Float64("a", a),
		zap.Float64("b", b),
		zap.Int("epochs", epochs),
	)

	if err := optimizeLayout(ctx, y, n, edges, a, b, epochs, rng); err != nil {
		return Result{}, err
	}
	if floats.HasNaN(y) {
		return Result{}, fmt.Errorf("%w: umap layout diverged", domain.ErrNonConvergence)
	}

	emb, err := frame.New(m.Index(), dimNames("UMAP"), mat.NewDense(n, 2, y))
	if err != nil {
		return Result{}, fmt.Errorf("build embedding: %w", err)
	}
	return Result{Embedding: emb}, nil
}

// nearestNeighbors returns, per sample, the indices and distances of its k
// nearest other samples in ascending distance. Ties break on index.
func nearestNeighbors(x *mat.Dense, k int) ([][]int, [][]float64) {
	n, _ := x.Dims()
	dis := distances(x)
	idx := make([][]int, n)
	dist := make([][]float64, n)
	order := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		order = order[:0]
		for j := 0; j < n; j++ {
			if j != i {
				order = append(order, j)
			}
		}
		slices.SortFunc(order, func(a, b int) int {
			if c := cmp.Compare(dis.At(i, a), dis.At(i, b)); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		idx[i] = slices.Clone(order[:k])
		dist[i] = make([]float64, k)
		for r, j := range idx[i] {
			dist[i][r] = dis.At(i, j)
		}
	}
	return idx, dist
}

type edge struct {
	i, j int // i < j
	w    float64
}

// fuzzyGraph calibrates each neighborhood (distance to the nearest neighbor
// and a bandwidth so memberships sum to log2(k+1)) and merges the directed
// memberships with the probabilistic union a+b-ab.
func fuzzyGraph(idx [][]int, dist [][]float64) []edge {
	n := len(idx)
	meanAll := 0.0
	count := 0
	for _, row := range dist {
		meanAll += floats.Sum(row)
		count += len(row)
	}
	if count > 0 {
		meanAll /= float64(count)
	}

	directed := make(map[[2]int]float64)
	for i := 0; i < n; i++ {
		rho, sigma := smoothKNN(dist[i], meanAll)
		for r, j := range idx[i] {
			w := 1.0
			if d := dist[i][r] - rho; d > 0 {
				w = math.Exp(-d / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	var edges []edge
	for key, w := range directed {
		i, j := key[0], key[1]
		back, ok := directed[[2]int{j, i}]
		if i > j && ok {
			continue
		}
		if i > j {
			i, j = j, i
		}
		if u := w + back - w*back; u > 0 {
			edges = append(edges, edge{i: i, j: j, w: u})
		}
	}
	slices.SortFunc(edges, func(a, b edge) int {
		if c := cmp.Compare(a.i, b.i); c != 0 {
			return c
		}
		return cmp.Compare(a.j, b.j)
	})
	return edges
}

// smoothKNN returns rho (first positive neighbor distance) and sigma for one
// ascending neighbor-distance row.
func smoothKNN(dist []float64, meanAll float64) (rho, sigma float64) {
	for _, d := range dist {
		if d > 0 {
			rho = d
			break
		}
	}

	target := math.Log2(float64(len(dist) + 1))
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for step := 0; step < smoothKNNSteps; step++ {
		sum := 0.0
		for _, d := range dist {
			if d -= rho; d > 0 {
				sum += math.Exp(-d / mid)
			} else {
				sum++
			}
		}
		if math.Abs(sum-target) < smoothKNNTol {
			break
		}
		if sum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}

	sigma = mid
	floor := minDistScale * meanAll
	if rho > 0 {
		floor = minDistScale * stat.Mean(dist, nil)
	}
	if sigma < floor {
		sigma = floor
	}
	if sigma <= 0 {
		sigma = minDistScale
	}
	return rho, sigma
}

// spectralLayout embeds a connected graph with the eigenvectors of the
// second and third smallest eigenvalues of its normalized Laplacian.
func spectralLayout(edges []edge, n int) (*mat.Dense, bool) {
	if n <= 3 || n > spectralMaxSamples || components(edges, n) != 1 {
		return nil, false
	}
	deg := make([]float64, n)
	for _, e := range edges {
		deg[e.i] += e.w
		deg[e.j] += e.w
	}
	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		lap.SetSym(i, i, 1)
	}
	for _, e := range edges {
		lap.SetSym(e.i, e.j, -e.w/math.Sqrt(deg[e.i]*deg[e.j]))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(lap, true); !ok {
		return nil, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	return mat.DenseCopyOf(vecs.Slice(0, n, 1, 3)), true
}

// components counts the connected components of the graph.
func components(edges []edge, n int) int {
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.i] = append(adj[e.i], e.j)
		adj[e.j] = append(adj[e.j], e.i)
	}
	seen := make([]bool, n)
	count := 0
	for s := 0; s < n; s++ {
		if seen[s] {
			continue
		}
		count++
		stack := []int{s}
		seen[s] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, u := range adj[v] {
				if !seen[u] {
					seen[u] = true
					stack = append(stack, u)
				}
			}
		}
	}
	return count
}

func randomLayout(n int, rng *rand.Rand) *mat.Dense {
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, rng.Float64()*20-10)
		x.Set(i, 1, rng.Float64()*20-10)
	}
	return x
}

// initialLayout flattens the start layout row-major and rescales every
// dimension to [0, 10]. Spectral layouts get a little noise to break ties.
func initialLayout(layout *mat.Dense, spectral bool, rng *rand.Rand) []float64 {
	n, _ := layout.Dims()
	y := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		y[2*i], y[2*i+1] = layout.At(i, 0), layout.At(i, 1)
	}
	if spectral {
		if peak := math.Max(math.Abs(floats.Max(y)), math.Abs(floats.Min(y))); peak > 0 {
			floats.Scale(umapLayoutScale/peak, y)
		}
		for i := range y {
			y[i] += 1e-4 * rng.NormFloat64()
		}
	}
	for d := 0; d < 2; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < n; i++ {
			lo, hi = math.Min(lo, y[2*i+d]), math.Max(hi, y[2*i+d])
		}
		for i := 0; i < n; i++ {
			if hi > lo {
				y[2*i+d] = umapLayoutScale * (y[2*i+d] - lo) / (hi - lo)
			} else {
				y[2*i+d] = 0
			}
		}
	}
	return y
}

// optimizeLayout runs stochastic gradient descent over the edges with
// negative sampling. Edges are sampled in proportion to their weight; the
// learning rate decays linearly from 1 to 0.
func optimizeLayout(ctx context.Context, y []float64, n int, edges []edge, a, b float64, epochs int, rng *rand.Rand) error {
	wmax := 0.0
	for _, e := range edges {
		wmax = math.Max(wmax, e.w)
	}

	var heads, tails []int
	var every []float64
	for _, e := range edges {
		if e.w < wmax/float64(epochs) {
			continue
		}
		per := wmax / e.w
		heads = append(heads, e.i, e.j)
		tails = append(tails, e.j, e.i)
		every = append(every, per, per)
	}

	nextSample := slices.Clone(every)
	everyNeg := make([]float64, len(every))
	for i, v := range every {
		everyNeg[i] = v / umapNegativeSamples
	}
	nextNeg := slices.Clone(everyNeg)

	for epoch := 0; epoch < epochs; epoch++ {
		if epoch%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		alpha := 1 - float64(epoch)/float64(epochs)
		now := float64(epoch)

		for e := range heads {
			if nextSample[e] > now {
				continue
			}
			j, k := heads[e], tails[e]

			coeff := 0.0
			if d2 := sqDist(y, j, k); d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for d := 0; d < 2; d++ {
				g := clip(coeff * (y[2*j+d] - y[2*k+d]))
				y[2*j+d] += g * alpha
				y[2*k+d] -= g * alpha
			}
			nextSample[e] += every[e]

			negatives := int((now - nextNeg[e]) / everyNeg[e])
			for s := 0; s < negatives; s++ {
				o := rng.IntN(n)
				if o == j {
					continue
				}
				coeff := 0.0
				if d2 := sqDist(y, j, o); d2 > 0 {
					coeff = 2 * umapRepulsion * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				}
				for d := 0; d < 2; d++ {
					g := umapGradClip
					if coeff > 0 {
						g = clip(coeff * (y[2*j+d] - y[2*o+d]))
					}
					y[2*j+d] += g * alpha
				}
			}
			nextNeg[e] += float64(negatives) * everyNeg[e]
		}
	}
	return nil
}

func sqDist(y []float64, i, j int) float64 {
	dx, dy := y[2*i]-y[2*j], y[2*i+1]-y[2*j+1]
	return dx*dx + dy*dy
}

func clip(v float64) float64 {
	return math.Max(-umapGradClip, math.Min(umapGradClip, v))
}
