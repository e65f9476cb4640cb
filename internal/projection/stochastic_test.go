package projection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/projector/internal/domain"
)

func TestMDS_RecoversPlanarDistances(t *testing.T) {
	rows := [][]float64{{0, 0}, {4, 0}, {0, 3}, {4, 3}, {2, 1}, {1, 2}}
	m := mustFrame(t, rows)
	p, err := NewMDS(MDSParams{NInit: 4, MaxIter: 300, Eps: 1e-3})
	require.NoError(t, err)

	res, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"MDS dim A", "MDS dim B"}, res.Embedding.Columns())
	assert.Equal(t, m.Index(), res.Embedding.Index())
	require.NotNil(t, res.Objective)
	assert.InDelta(t, 0, *res.Objective, 1e-6)

	want := distances(m.Data())
	got := distances(res.Embedding.Data())
	assert.True(t, mat.EqualApprox(want, got, 1e-4))
}

func TestMDS_DeterministicForSeed(t *testing.T) {
	m := blobs(t, 8, 4)
	p, err := NewMDS(MDSParams{NInit: 3, MaxIter: 100, Eps: 1e-3, Seed: 5})
	require.NoError(t, err)

	a, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	b, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Embedding.Data(), b.Embedding.Data()))
	assert.GreaterOrEqual(t, *a.Objective, 0.0)
}

func TestMDS_SingleSample(t *testing.T) {
	p, err := NewMDS(DefaultParams().MDS)
	require.NoError(t, err)
	res, err := p.Project(context.Background(), mustFrame(t, [][]float64{{3, 4}}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, res.Embedding.Row(0))
}

func TestMDS_CollinearStartHasZeroSecondAxis(t *testing.T) {
	m := mustFrame(t, [][]float64{{0}, {1}, {2}, {4}, {7}})
	dis := distances(m.Data())
	p, err := NewMDS(MDSParams{NInit: 1, MaxIter: 100, Eps: 1e-3})
	require.NoError(t, err)

	start := p.start(0, dis)
	r, c := start.Dims()
	require.Equal(t, 5, r)
	require.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.False(t, math.IsNaN(start.At(i, 0)))
		assert.Zero(t, start.At(i, 1), "row %d", i)
	}

	res, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	for i := 0; i < res.Embedding.Rows(); i++ {
		for j := 0; j < 2; j++ {
			v := res.Embedding.At(i, j)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "(%d,%d)=%v", i, j, v)
		}
	}
	assert.InDelta(t, 0, *res.Objective, 1e-6)
}

func TestClassicalAxes(t *testing.T) {
	tests := []struct {
		name string
		eig  []float64
		k    int
		want int
	}{
		{"factorization failed", []float64{0, 0, 0}, 0, 0},
		{"identical rows", []float64{0, 0, -1e-18}, 2, 0},
		{"collinear", []float64{10, 1e-15, -1e-15}, 2, 1},
		{"planar", []float64{10, 3, 1e-16}, 3, 2},
		{"capped at two", []float64{10, 5, 4}, 3, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classicalAxes(tc.eig, tc.k))
		})
	}
}

func TestSmacof_ReducesStress(t *testing.T) {
	m := blobs(t, 6, 3)
	dis := distances(m.Data())
	p, err := NewMDS(MDSParams{NInit: 2, MaxIter: 1, Eps: 1e-3, Seed: 1})
	require.NoError(t, err)

	start := p.start(1, dis)
	before := stress(dis, start)
	x, _, err := smacof(context.Background(), dis, mat.DenseCopyOf(start), 50, 1e-9)
	require.NoError(t, err)
	assert.Less(t, stress(dis, x), before)
}

func tsneParams() TSNEParams {
	return TSNEParams{PCADims: 50, Perplexity: 5, LearningRate: 200, MaxIter: 500, NRuns: 1, Seed: 3}
}

func TestTSNE_ShapeAndSeparation(t *testing.T) {
	m := blobs(t, 12, 6)
	p, err := NewTSNE(tsneParams())
	require.NoError(t, err)

	res, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"tSNE dim A", "tSNE dim B"}, res.Embedding.Columns())
	assert.Equal(t, m.Index(), res.Embedding.Index())
	assert.Equal(t, 24, res.Embedding.Rows())
	require.NotNil(t, res.Objective)
	assert.False(t, math.IsNaN(*res.Objective))
	assert.True(t, separated(res.Embedding, 12))
}

func TestTSNE_DeterministicForSeed(t *testing.T) {
	m := blobs(t, 8, 3)
	p, err := NewTSNE(tsneParams())
	require.NoError(t, err)

	a, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	b, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Embedding.Data(), b.Embedding.Data()))
}

func TestTSNE_KeepsBestRun(t *testing.T) {
	m := blobs(t, 8, 3)
	params := tsneParams()

	single, err := NewTSNE(params)
	require.NoError(t, err)
	one, err := single.Project(context.Background(), m)
	require.NoError(t, err)

	params.NRuns = 4
	core, logs := observer.New(zapcore.DebugLevel)
	multi, err := NewTSNE(params, WithLogger(zap.New(core)))
	require.NoError(t, err)
	best, err := multi.Project(context.Background(), m)
	require.NoError(t, err)

	// Run 0 of the multi-run projection is the single run.
	assert.LessOrEqual(t, *best.Objective, *one.Objective)
	entries := logs.FilterMessage("t-SNE run finished").All()
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.ContextMap()["kl_divergence"].(float64), *best.Objective)
	}
}

func TestTSNE_PerplexityTooLarge(t *testing.T) {
	params := tsneParams()
	params.Perplexity = 10
	p, err := NewTSNE(params)
	require.NoError(t, err)

	_, err = p.Project(context.Background(), blobs(t, 5, 2))
	assert.ErrorIs(t, err, domain.ErrDimension)
}

func TestJointProbabilities(t *testing.T) {
	m := blobs(t, 5, 3)
	joint := jointProbabilities(m.Data(), 3)
	n := m.Rows()

	sum := 0.0
	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, joint[i*n+i])
		for j := 0; j < n; j++ {
			assert.InDelta(t, joint[i*n+j], joint[j*n+i], 1e-15)
			sum += joint[i*n+j]
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestConditionalRow_MatchesPerplexity(t *testing.T) {
	d2 := []float64{0, 1, 4, 9, 16, 25, 36}
	row := make([]float64, len(d2))
	target := math.Log(3)
	conditionalRow(d2, 0, target, row)

	entropy := 0.0
	for _, p := range row {
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	assert.InDelta(t, target, entropy, 1e-4)
	assert.Equal(t, 0.0, row[0])
}

func umapParams() UMAPParams {
	return UMAPParams{PCADims: 50, NNeighbors: 5, MinDist: 0.1, Epochs: 200, Seed: 11}
}

func TestUMAP_ShapeAndSeparation(t *testing.T) {
	m := blobs(t, 15, 5)
	p, err := NewUMAP(umapParams())
	require.NoError(t, err)

	res, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"UMAP dim A", "UMAP dim B"}, res.Embedding.Columns())
	assert.Equal(t, m.Index(), res.Embedding.Index())
	assert.Nil(t, res.Objective)
	assert.True(t, separated(res.Embedding, 15))
}

func TestUMAP_DeterministicForSeed(t *testing.T) {
	m := blobs(t, 10, 4)
	p, err := NewUMAP(umapParams())
	require.NoError(t, err)

	a, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	b, err := p.Project(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Embedding.Data(), b.Embedding.Data()))
}

func TestUMAP_ClampsNeighbors(t *testing.T) {
	params := umapParams()
	params.NNeighbors = 50
	p, err := NewUMAP(params)
	require.NoError(t, err)

	res, err := p.Project(context.Background(), blobs(t, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Embedding.Rows())
}

func TestUMAP_NeedsTwoSamples(t *testing.T) {
	p, err := NewUMAP(umapParams())
	require.NoError(t, err)
	_, err = p.Project(context.Background(), mustFrame(t, [][]float64{{1, 2}}))
	assert.ErrorIs(t, err, domain.ErrDimension)
}

func TestFitAB(t *testing.T) {
	a, b, err := fitAB(1.0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 1.577, a, 0.05)
	assert.InDelta(t, 0.895, b, 0.05)
}

func TestNearestNeighbors(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 1, 3, 7})
	idx, dist := nearestNeighbors(x, 2)
	assert.Equal(t, [][]int{{1, 2}, {0, 2}, {1, 0}, {2, 1}}, idx)
	assert.Equal(t, []float64{1, 3}, dist[0])
	assert.Equal(t, []float64{4, 6}, dist[3])
}

func TestFuzzyGraph(t *testing.T) {
	m := blobs(t, 6, 3)
	edges := fuzzyGraph(nearestNeighbors(m.Data(), 3))
	require.NotEmpty(t, edges)

	seen := make(map[[2]int]bool)
	for _, e := range edges {
		assert.Less(t, e.i, e.j)
		assert.Greater(t, e.w, 0.0)
		assert.LessOrEqual(t, e.w, 1.0)
		assert.False(t, seen[[2]int{e.i, e.j}], "duplicate edge")
		seen[[2]int{e.i, e.j}] = true
	}
	// Clusters are far apart, so no 3-neighborhood crosses them.
	for _, e := range edges {
		assert.Equal(t, e.i < 6, e.j < 6)
	}
	assert.Equal(t, 2, components(edges, 12))
}
