package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/projector/internal/db"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/frame"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

type mockRunner struct {
	bundle pipeline.Bundle
	err    error
	calls  int
}

func (m *mockRunner) Run(_ context.Context, _ pipeline.Request) (pipeline.Bundle, error) {
	m.calls++
	return m.bundle, m.err
}

// mockKVStore is an in-memory store with optional failure hooks.
type mockKVStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func testRequest(t *testing.T) pipeline.Request {
	t.Helper()
	ds, err := dataset.New([]string{"a", "b", "c"}, []dataset.Column{
		dataset.NewNumeric("x", []float64{1, 2, 3}),
		dataset.NewNumeric("y", []float64{3, 1, 2}),
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return pipeline.Request{
		Dataset:   ds,
		Missing:   missing.DefaultPolicy(),
		Algorithm: projection.PCA,
		Params:    projection.DefaultParams(),
	}
}

func testBundle(t *testing.T) pipeline.Bundle {
	t.Helper()
	emb, err := frame.FromRows([]string{"a", "b", "c"}, []string{"PCA1", "PCA2"},
		[][]float64{{1.5, 0}, {-0.5, 0.25}, {-1, -0.25}})
	if err != nil {
		t.Fatalf("embedding: %v", err)
	}
	load, err := frame.FromRows([]string{"x", "y"}, []string{"PCA1", "PCA2"},
		[][]float64{{0.8, 0.6}, {-0.6, 0.8}})
	if err != nil {
		t.Fatalf("loadings: %v", err)
	}
	return pipeline.Bundle{
		Algorithm:              projection.PCA,
		Embedding:              emb,
		AxisLabels:             []string{"PCA1 (0.9 of variance)", "PCA2 (0.1 of variance)"},
		ExplainedVarianceRatio: []float64{0.9, 0.1},
		Loadings:               &load,
		Provenance:             map[string]string{"x": "x", "y": "y"},
		EncodedColumns:         []string{"x", "y"},
		SelectedFields:         []string{"x", "y"},
		FieldsKept:             []bool{true, true},
		SamplesKept:            []bool{true, true, true},
	}
}
