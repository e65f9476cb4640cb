package pipeline

import (
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/frame"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
)

// ProjectorFactory builds the projector for one request.
type ProjectorFactory func(alg projection.Algorithm, p projection.Params, opts ...projection.Option) (projection.Projector, error)

// Request is one pipeline invocation.
type Request struct {
	Dataset dataset.Dataset
	// SelectedFields holds field positions to include; nil means all fields.
	SelectedFields []int
	Scale          bool
	Missing        missing.Policy
	Algorithm      projection.Algorithm
	Params         projection.Params
	// SampleInfo is optional per-sample metadata that never enters the
	// projection. When it has fields its index must equal the dataset index.
	SampleInfo dataset.Dataset
}

// Bundle is everything the UI layer needs to draw one projection.
type Bundle struct {
	Algorithm projection.Algorithm
	Embedding frame.Frame
	// AxisLabels describe the embedding columns; PCA labels carry the explained variance.
	AxisLabels             []string
	ExplainedVarianceRatio []float64
	Loadings               *frame.Frame
	// Provenance maps each encoded column to its original field.
	Provenance     map[string]string
	EncodedColumns []string
	// SelectedFields names the fields that entered the pipeline.
	SelectedFields []string
	// FieldsKept and SamplesKept are aligned to SelectedFields and the dataset index.
	FieldsKept  []bool
	SamplesKept []bool
	Objective   *float64
	// SampleInfo holds the request's sample metadata restricted to the kept
	// samples, aligned row by row with Embedding. Empty when none was sent.
	SampleInfo dataset.Dataset
}

// Limits bounds the dataset size accepted by the pipeline. Zero disables a limit.
type Limits struct {
	MaxSamples int
	MaxFields  int
}
