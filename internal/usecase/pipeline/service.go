// Package pipeline runs select → resolve → encode → project and assembles the
// result bundle for the UI layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/logger"
	"github.com/kailas-cloud/projector/internal/preprocess/encode"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
)

// Pipeline stages, used as metric labels.
const (
	StageSelect  = "select"
	StageResolve = "resolve"
	StageEncode  = "encode"
	StageProject = "project"
)

// Service orchestrates a pipeline run. It holds no per-request state; every
// run re-derives all artifacts from its request.
type Service struct {
	newProjector  ProjectorFactory
	limits        Limits
	stageDuration *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
}

// Option configures a Service.
type Option func(*Service)

// WithLimits bounds accepted dataset sizes.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithProjectorFactory overrides projection.New.
func WithProjectorFactory(f ProjectorFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newProjector = f
		}
	}
}

// WithMetrics sets the stage duration histogram (labels: algorithm, stage)
// and the outcome counter (labels: algorithm, status). Either may be nil.
func WithMetrics(stageDuration *prometheus.HistogramVec, outcomes *prometheus.CounterVec) Option {
	return func(s *Service) {
		s.stageDuration = stageDuration
		s.outcomes = outcomes
	}
}

// New creates a pipeline service.
func New(opts ...Option) *Service {
	s := &Service{newProjector: projection.New}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes the pipeline. The request logger is taken from ctx.
func (s *Service) Run(ctx context.Context, req Request) (Bundle, error) {
	b, err := s.run(ctx, req)
	s.incOutcome(req.Algorithm, err)
	return b, err
}

func (s *Service) run(ctx context.Context, req Request) (Bundle, error) {
	log := logger.FromContext(ctx).With(zap.String("algorithm", req.Algorithm.String()))

	if err := s.checkLimits(req); err != nil {
		return Bundle{}, err
	}
	if err := req.Params.Validate(req.Algorithm); err != nil {
		return Bundle{}, fmt.Errorf("validate params: %w", err)
	}
	if err := req.Missing.Validate(); err != nil {
		return Bundle{}, err
	}
	if err := checkSampleInfo(req); err != nil {
		return Bundle{}, err
	}

	start := time.Now()
	selected, err := req.Dataset.Select(req.SelectedFields)
	if err != nil {
		return Bundle{}, fmt.Errorf("select fields: %w", err)
	}
	s.observe(req.Algorithm, StageSelect, start)

	start = time.Now()
	resolved, err := missing.New(missing.WithLogger(log)).Resolve(selected, req.Missing)
	if err != nil {
		return Bundle{}, fmt.Errorf("resolve missing values: %w", err)
	}
	s.observe(req.Algorithm, StageResolve, start)

	start = time.Now()
	encoded, err := encode.New(encode.WithLogger(log)).Encode(resolved.Data, req.Scale)
	if err != nil {
		return Bundle{}, fmt.Errorf("encode fields: %w", err)
	}
	s.observe(req.Algorithm, StageEncode, start)

	start = time.Now()
	pr, err := s.newProjector(req.Algorithm, req.Params, projection.WithLogger(log))
	if err != nil {
		return Bundle{}, err
	}
	res, err := pr.Project(ctx, encoded.Matrix)
	if err != nil {
		return Bundle{}, fmt.Errorf("project %s: %w", req.Algorithm, err)
	}
	s.observe(req.Algorithm, StageProject, start)

	infos := selected.Fields()
	names := make([]string, len(infos))
	for i, f := range infos {
		names[i] = f.Name
	}
	var sampleInfo dataset.Dataset
	if req.SampleInfo.NumFields() > 0 {
		sampleInfo = req.SampleInfo.KeepSamples(resolved.SamplesKept)
	}

	log.Debug("Pipeline finished",
		zap.Int("samples", res.Embedding.Rows()),
		zap.Int("encoded_columns", encoded.Matrix.Cols()),
	)
	return Bundle{
		Algorithm:              req.Algorithm,
		Embedding:              res.Embedding,
		AxisLabels:             AxisLabels(res.Embedding.Columns(), res.ExplainedVarianceRatio),
		ExplainedVarianceRatio: res.ExplainedVarianceRatio,
		Loadings:               res.Loadings,
		Provenance:             encoded.Provenance,
		EncodedColumns:         encoded.Matrix.Columns(),
		SelectedFields:         names,
		FieldsKept:             resolved.FieldsKept,
		SamplesKept:            resolved.SamplesKept,
		Objective:              res.Objective,
		SampleInfo:             sampleInfo,
	}, nil
}

// AxisLabels decorates dimension names with their explained variance ratio
// when one is available ("PCA1 (0.523 of variance)").
func AxisLabels(dims []string, ratios []float64) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		if i < len(ratios) {
			out[i] = fmt.Sprintf("%s (%.3g of variance)", d, ratios[i])
			continue
		}
		out[i] = d
	}
	return out
}

func (s *Service) checkLimits(req Request) error {
	ds := req.Dataset
	if s.limits.MaxSamples > 0 && ds.NumSamples() > s.limits.MaxSamples {
		return fmt.Errorf("%w: %d samples exceed the limit of %d",
			domain.ErrInvalidDataset, ds.NumSamples(), s.limits.MaxSamples)
	}
	if s.limits.MaxFields > 0 && ds.NumFields() > s.limits.MaxFields {
		return fmt.Errorf("%w: %d fields exceed the limit of %d",
			domain.ErrInvalidDataset, ds.NumFields(), s.limits.MaxFields)
	}
	return nil
}

func checkSampleInfo(req Request) error {
	if req.SampleInfo.NumFields() == 0 {
		return nil
	}
	if !slices.Equal(req.SampleInfo.Index(), req.Dataset.Index()) {
		return fmt.Errorf("%w: sample info index does not match the dataset index",
			domain.ErrInvalidDataset)
	}
	return nil
}

func (s *Service) observe(alg projection.Algorithm, stage string, start time.Time) {
	if s.stageDuration != nil {
		s.stageDuration.WithLabelValues(alg.String(), stage).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) incOutcome(alg projection.Algorithm, err error) {
	if s.outcomes != nil {
		s.outcomes.WithLabelValues(alg.String(), Outcome(err)).Inc()
	}
}

// Outcome classifies a pipeline error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrUnknownAlgorithm):
		return "configuration"
	case errors.Is(err, domain.ErrInvalidDataset):
		return "invalid_dataset"
	case errors.Is(err, domain.ErrPrecondition):
		return "precondition"
	case errors.Is(err, domain.ErrDimension):
		return "dimension"
	case errors.Is(err, domain.ErrNonConvergence):
		return "non_convergence"
	default:
		return "error"
	}
}
