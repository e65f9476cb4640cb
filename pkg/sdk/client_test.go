package projector

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/projector/internal/preprocess/missing"
)

func testDataset() Dataset {
	return Dataset{
		Index: []string{"a", "b", "c", "d", "e"},
		Fields: []Field{
			Numeric("height", []float64{1.2, math.NaN(), 3.1, 2.4, 0.7}),
			Categorical("shape", []string{"circle", "square", "", "circle", "square"},
				[]bool{false, false, true, false, false}),
			Numeric("weight", []float64{10, 22, 31, 18, 7}),
		},
	}
}

func newTestClient(t *testing.T, cache cacheStore, opts ...Option) *Client {
	t.Helper()
	cfg := &clientConfig{params: DefaultParams(), cacheTTL: defaultCacheTTL}
	for _, o := range opts {
		o.apply(cfg)
	}
	policy, err := missing.ParsePolicy(cfg.missing.Method, cfg.missing.NumericFill, cfg.missing.CategoricalFill)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		t.Fatalf("observer: %v", err)
	}
	return wireClient(cache, cfg, policy, obs)
}

func TestNew_WithoutCache(t *testing.T) {
	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("ping without cache: %v", err)
	}
	if got := c.Algorithms(); len(got) != 4 || got[0] != PCA || got[3] != UMAP {
		t.Errorf("algorithms = %v", got)
	}
}

func TestNew_InvalidMissingPolicy(t *testing.T) {
	_, err := New(context.Background(), WithMissingPolicy(MissingPolicy{Method: "interpolate"}))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNew_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.TSNE.Perplexity = -1
	_, err := New(context.Background(), WithParams(p))
	if err == nil {
		t.Fatal("expected error for invalid params")
	}
}

func TestProject_PCA(t *testing.T) {
	c := newTestClient(t, nil)

	res, err := c.Project(context.Background(), Request{
		Dataset: testDataset(),
		Scale:   true,
		Missing: &MissingPolicy{Method: "fill_values", NumericFill: "mean"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Algorithm != PCA {
		t.Errorf("algorithm = %q, want pca", res.Algorithm)
	}
	if len(res.Index) != 5 || res.Index[1] != "b" {
		t.Errorf("index = %v", res.Index)
	}
	if len(res.Embedding) != 5 || len(res.Embedding[0]) != len(res.Columns) {
		t.Errorf("embedding shape %dx%d, columns %v", len(res.Embedding), len(res.Embedding[0]), res.Columns)
	}
	if len(res.Loadings) != len(res.EncodedColumns) {
		t.Errorf("loadings for %d columns, want %d", len(res.Loadings), len(res.EncodedColumns))
	}
	if res.Provenance["shape_circle"] != "shape" {
		t.Errorf("provenance = %v", res.Provenance)
	}
}

func TestProject_DropSamples(t *testing.T) {
	c := newTestClient(t, nil, WithMissingPolicy(MissingPolicy{Method: "drop_samples"}))

	res, err := c.Project(context.Background(), Request{Dataset: testDataset()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Index) != 3 {
		t.Errorf("expected 3 complete samples, got %v", res.Index)
	}
	if res.SamplesKept[1] || res.SamplesKept[2] || !res.SamplesKept[0] {
		t.Errorf("samples kept = %v", res.SamplesKept)
	}
}

func TestProject_SeededUMAPIsReproducible(t *testing.T) {
	c := newTestClient(t, nil)
	seed := uint64(7)
	req := Request{
		Dataset:   testDataset(),
		Missing:   &MissingPolicy{Method: "fill_values"},
		Algorithm: UMAP,
		Seed:      &seed,
	}
	p := DefaultParams()
	p.UMAP.NNeighbors = 3
	p.UMAP.Epochs = 50
	req.Params = &p

	first, err := c.Project(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.Project(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first.Embedding {
		for j := range first.Embedding[i] {
			if first.Embedding[i][j] != second.Embedding[i][j] {
				t.Fatalf("embedding[%d][%d] differs: %v vs %v", i, j, first.Embedding[i][j], second.Embedding[i][j])
			}
		}
	}
}

func TestProject_Errors(t *testing.T) {
	c := newTestClient(t, nil)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown algorithm", Request{Dataset: testDataset(), Algorithm: "lda"}, ErrUnknownAlgorithm},
		{
			"unknown field type",
			Request{Dataset: Dataset{Fields: []Field{{Name: "x", Type: "text", Labels: []string{"a"}}}}},
			ErrInvalidDataset,
		},
		{
			"ragged fields",
			Request{Dataset: Dataset{Fields: []Field{
				Numeric("x", []float64{1, 2}),
				Numeric("y", []float64{1}),
			}}},
			ErrInvalidDataset,
		},
		{
			"field info mismatch",
			Request{Dataset: withFieldInfo(testDataset(),
				FieldInfo{"height", FieldNumeric},
				FieldInfo{"weight", FieldNumeric},
				FieldInfo{"shape", FieldCategorical},
			)},
			ErrInvalidDataset,
		},
		{
			"field info type",
			Request{Dataset: withFieldInfo(testDataset(),
				FieldInfo{"height", FieldNumeric},
				FieldInfo{"shape", FieldOrderedCategorical},
				FieldInfo{"weight", FieldNumeric},
			)},
			ErrInvalidDataset,
		},
		{
			"sample info length",
			Request{Dataset: Dataset{
				Fields:     []Field{Numeric("x", []float64{1, 2})},
				SampleInfo: []Field{Numeric("year", []float64{2001})},
			}},
			ErrInvalidDataset,
		},
		{
			"unknown fill",
			Request{Dataset: testDataset(), Missing: &MissingPolicy{NumericFill: "median"}},
			ErrConfiguration,
		},
		{
			"no fields survive",
			Request{Dataset: testDataset(), SelectedFields: []int{0}, Missing: &MissingPolicy{Method: "drop_fields"}},
			ErrDimension,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Project(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func withFieldInfo(d Dataset, infos ...FieldInfo) Dataset {
	d.FieldInfo = infos
	return d
}

func TestProject_FieldInfoMatches(t *testing.T) {
	c := newTestClient(t, nil)
	ds := withFieldInfo(testDataset(),
		FieldInfo{"height", FieldNumeric},
		FieldInfo{"shape", FieldCategorical},
		FieldInfo{"weight", FieldNumeric},
	)
	if _, err := c.Project(context.Background(), Request{Dataset: ds}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProject_SampleInfo(t *testing.T) {
	c := newTestClient(t, nil, WithMissingPolicy(MissingPolicy{Method: "drop_samples"}))
	ds := testDataset()
	ds.SampleInfo = []Field{
		Categorical("label", []string{"ant", "bee", "cat", "", "eel"}, []bool{false, false, false, true, false}),
		Numeric("year", []float64{2001, 2002, 2003, 2004, math.NaN()}),
	}

	res, err := c.Project(context.Background(), Request{Dataset: ds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.SampleInfo) != 2 {
		t.Fatalf("sample info fields: got %d, want 2", len(res.SampleInfo))
	}
	label, year := res.SampleInfo[0], res.SampleInfo[1]
	if label.Type != FieldCategorical || year.Type != FieldNumeric {
		t.Errorf("types: %s, %s", label.Type, year.Type)
	}
	// b and c have gaps in the projected fields and are dropped.
	wantLabels := []string{"ant", "", "eel"}
	wantGaps := []bool{false, true, false}
	for i := range wantLabels {
		if label.Labels[i] != wantLabels[i] || label.Missing[i] != wantGaps[i] {
			t.Errorf("label %d: got %q missing=%v", i, label.Labels[i], label.Missing[i])
		}
	}
	if year.Numbers[0] != 2001 || year.Numbers[1] != 2004 || !math.IsNaN(year.Numbers[2]) {
		t.Errorf("years: got %v", year.Numbers)
	}
	if len(res.Index) != len(label.Labels) {
		t.Errorf("sample info has %d rows for %d samples", len(label.Labels), len(res.Index))
	}
}

func TestProject_CachesResults(t *testing.T) {
	cache := newMockCache()
	reg := prometheus.NewRegistry()
	c := newTestClient(t, cache, WithPrometheus(reg))
	req := Request{Dataset: testDataset()}

	first, err := c.Project(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.Project(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if cache.len() != 1 {
		t.Errorf("cache entries = %d, want 1", cache.len())
	}
	if len(first.Embedding) != len(second.Embedding) || first.Embedding[0][0] != second.Embedding[0][0] {
		t.Error("cached projection differs from computed one")
	}

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.cacheTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("project", "ok")); got != 2 {
		t.Errorf("project ok = %v, want 2", got)
	}
}

func TestHealth(t *testing.T) {
	t.Run("without cache", func(t *testing.T) {
		h := newTestClient(t, nil).Health(context.Background())
		if h.Status != "ok" || h.Checks["engine"] != "ok" {
			t.Errorf("health = %+v", h)
		}
		if _, ok := h.Checks["cache"]; ok {
			t.Error("cache check reported without a cache")
		}
	})

	t.Run("cache down", func(t *testing.T) {
		cache := newMockCache()
		cache.pingErr = errCacheDown
		c := newTestClient(t, cache)

		h := c.Health(context.Background())
		if h.Status != "degraded" || h.Checks["cache"] != "error" {
			t.Errorf("health = %+v", h)
		}
		if err := c.Ping(context.Background()); !errors.Is(err, errCacheDown) {
			t.Errorf("ping error = %v", err)
		}
	})
}

func TestClose_ClosesCache(t *testing.T) {
	cache := newMockCache()
	newTestClient(t, cache).Close()
	if !cache.closed {
		t.Error("cache not closed")
	}
}

func TestClientOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithValkey("localhost:6379", "secret"),
		WithCacheTTL(5),
		WithLimits(100, 10),
		WithMissingPolicy(MissingPolicy{Method: "drop_fields"}),
		WithLogger(logger),
		WithPrometheus(reg),
	} {
		o.apply(cfg)
	}

	if len(cfg.addrs) != 1 || cfg.addrs[0] != "localhost:6379" || cfg.password != "secret" {
		t.Errorf("addrs = %v, password = %q", cfg.addrs, cfg.password)
	}
	if cfg.cacheTTL != 5 || cfg.maxSamples != 100 || cfg.maxFields != 10 {
		t.Errorf("ttl = %v, limits = %d/%d", cfg.cacheTTL, cfg.maxSamples, cfg.maxFields)
	}
	if cfg.missing.Method != "drop_fields" || cfg.logger != logger || cfg.metricsReg != reg {
		t.Error("options not applied")
	}
}

func TestRegisterOrReuse_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first observer: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second observer: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the registered collector to be reused")
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	o.observe("project", time.Now(), nil)
	if o.cacheCounter() != nil {
		t.Error("nil observer must have no cache counter")
	}
}
