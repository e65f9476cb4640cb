// Package missing produces datasets free of missing values, either by
// dropping fields or samples or by imputing values per field type.
package missing

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
)

// unknownLabel is the base sentinel category for imputed categorical values.
const unknownLabel = "Unknown"

// Result is the outcome of resolving missing values.
// FieldsKept and SamplesKept are aligned to the input fields and samples.
type Result struct {
	Data        dataset.Dataset
	FieldsKept  []bool
	SamplesKept []bool
}

// Resolver applies a missing-data Policy. It holds no state between calls.
type Resolver struct {
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the diagnostics logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns a copy of ds without missing values. ds is never modified.
func (r *Resolver) Resolve(ds dataset.Dataset, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		FieldsKept:  allTrue(ds.NumFields()),
		SamplesKept: allTrue(ds.NumSamples()),
	}

	switch p.Method {
	case DropFields:
		for i := 0; i < ds.NumFields(); i++ {
			res.FieldsKept[i] = ds.Column(i).MissingCount() == 0
		}
		res.Data = ds.KeepFields(res.FieldsKept)
	case DropSamples:
		for i := 0; i < ds.NumSamples(); i++ {
			res.SamplesKept[i] = !ds.SampleHasMissing(i)
		}
		res.Data = ds.KeepSamples(res.SamplesKept)
	case FillValues:
		filled, err := r.fill(ds, p)
		if err != nil {
			return Result{}, err
		}
		res.Data = filled
	default:
		return Result{}, fmt.Errorf("%w: unknown missing data method %s", domain.ErrConfiguration, p.Method)
	}

	r.logger.Debug("Data shape after missing data handling",
		zap.String("method", p.Method.String()),
		zap.Int("samples", res.Data.NumSamples()),
		zap.Int("fields", res.Data.NumFields()),
	)
	return res, nil
}

func (r *Resolver) fill(ds dataset.Dataset, p Policy) (dataset.Dataset, error) {
	out := ds
	for i := 0; i < ds.NumFields(); i++ {
		col := ds.Column(i)
		missing := col.MissingCount()
		if missing == 0 {
			continue
		}

		var (
			filled   dataset.Column
			strategy string
			err      error
		)
		switch col.Type() {
		case field.Numeric:
			filled = fillNumeric(col, p.NumericFill)
			strategy = p.NumericFill.String()
		case field.Categorical, field.OrderedCategorical:
			filled, err = fillCategorical(col, p.CategoricalFill)
			strategy = p.CategoricalFill.String()
		default:
			return dataset.Dataset{}, fmt.Errorf("%w: field %q has unsupported type %s",
				domain.ErrInvalidDataset, col.Name(), col.Type())
		}
		if err != nil {
			return dataset.Dataset{}, err
		}

		r.logger.Info("Filling in missing values",
			zap.String("field", col.Name()),
			zap.String("type", col.Type().String()),
			zap.String("strategy", strategy),
			zap.Int("missing", missing),
		)

		if out, err = out.WithColumn(i, filled); err != nil {
			return dataset.Dataset{}, fmt.Errorf("replace field %q: %w", col.Name(), err)
		}
	}
	return out, nil
}

// fillNumeric replaces gaps with zero or with the mean of the observed values,
// computed before imputation. A field with no observed values is filled with zero.
func fillNumeric(col dataset.Column, f NumericFill) dataset.Column {
	values := col.Numbers()

	fill := 0.0
	if f == Mean {
		observed := make([]float64, 0, len(values))
		for i, v := range values {
			if !col.IsMissing(i) {
				observed = append(observed, v)
			}
		}
		if len(observed) > 0 {
			fill = stat.Mean(observed, nil)
		}
	}

	for i := range values {
		if col.IsMissing(i) {
			values[i] = fill
		}
	}
	return dataset.NewNumeric(col.Name(), values)
}

// fillCategorical replaces gaps with sentinel labels that never collide with
// an existing category of the field.
func fillCategorical(col dataset.Column, f CategoricalFill) (dataset.Column, error) {
	existing := make(map[string]struct{})
	for _, c := range col.Categories() {
		existing[c] = struct{}{}
	}

	labels := make([]string, col.Len())
	var gaps []int
	for i := range labels {
		if col.IsMissing(i) {
			gaps = append(gaps, i)
			continue
		}
		labels[i] = col.Label(i)
	}

	switch f {
	case CommonUnknown:
		label := unknownLabel
		for contains(existing, label) {
			label += "_"
		}
		for _, i := range gaps {
			labels[i] = label
		}
	case UniqueUnknown:
		generated := make([]string, len(gaps))
		for n := range generated {
			generated[n] = unknownLabel + strconv.Itoa(n+1)
		}
		for anyContained(existing, generated) {
			for n := range generated {
				generated[n] += "_"
			}
		}
		for n, i := range gaps {
			labels[i] = generated[n]
		}
	default:
		return dataset.Column{}, fmt.Errorf("%w: unknown missing value method for categorical fields: %s",
			domain.ErrConfiguration, f)
	}

	return dataset.NewCategorical(col.Name(), col.Type(), labels, nil)
}

func contains(set map[string]struct{}, s string) bool {
	_, ok := set[s]
	return ok
}

func anyContained(set map[string]struct{}, values []string) bool {
	for _, v := range values {
		if contains(set, v) {
			return true
		}
	}
	return false
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
