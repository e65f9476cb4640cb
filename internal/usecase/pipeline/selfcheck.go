package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
)

// SelfCheck runs PCA over a small fixed dataset with a gap in each field
// type. Outcome metrics are not recorded.
func (s *Service) SelfCheck(ctx context.Context) error {
	kind, err := dataset.NewCategorical("kind", field.Categorical,
		[]string{"a", "b", "", "a"}, []bool{false, false, true, false})
	if err != nil {
		return fmt.Errorf("self check: %w", err)
	}
	ds, err := dataset.New(dataset.DefaultIndex(4), []dataset.Column{
		dataset.NewNumeric("x", []float64{1, 2, 3, math.NaN()}),
		kind,
	})
	if err != nil {
		return fmt.Errorf("self check: %w", err)
	}

	b, err := s.run(ctx, Request{
		Dataset:   ds,
		Scale:     true,
		Missing:   missing.DefaultPolicy(),
		Algorithm: projection.PCA,
		Params:    projection.DefaultParams(),
	})
	if err != nil {
		return fmt.Errorf("self check: %w", err)
	}
	if b.Embedding.Rows() != ds.NumSamples() || b.Embedding.HasNaN() {
		return fmt.Errorf("self check: unexpected %d×%d embedding", b.Embedding.Rows(), b.Embedding.Cols())
	}
	return nil
}
