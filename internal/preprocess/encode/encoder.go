// Package encode turns a complete dataset into an all-numeric matrix:
// numeric fields pass through (optionally standardized) and categorical
// fields are one-hot encoded, with a provenance map back to the source fields.
package encode

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

// Encoded is the numeric matrix plus the map from encoded column to original field.
type Encoded struct {
	Matrix     frame.Frame
	Provenance map[string]string
}

// Encoder converts datasets into encoded matrices. It holds no state between calls.
type Encoder struct {
	logger *zap.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the diagnostics logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Encoder.
func New(opts ...Option) *Encoder {
	e := &Encoder{logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// group is one block of encoded columns derived from a single field.
type group struct {
	source  string
	columns []string
	values  [][]float64 // column-major: values[k][sample]
}

// Encode builds the encoded matrix. Column order: numeric fields in field
// order, then one indicator block per categorical field in field order, each
// block in lexicographic category order.
func (e *Encoder) Encode(ds dataset.Dataset, scale bool) (Encoded, error) {
	if ds.HasMissing() {
		return Encoded{}, domain.NewMissingValues("encoder", ds.MissingFields())
	}

	var numeric, categorical []group
	for i := 0; i < ds.NumFields(); i++ {
		col := ds.Column(i)
		switch col.Type() {
		case field.Numeric:
			values := col.Numbers()
			if scale {
				values = standardize(values)
			}
			numeric = append(numeric, group{
				source:  col.Name(),
				columns: []string{col.Name()},
				values:  [][]float64{values},
			})
		case field.Categorical, field.OrderedCategorical:
			categorical = append(categorical, oneHot(col))
		default:
			return Encoded{}, fmt.Errorf("%w: field %q has unsupported type %s",
				domain.ErrInvalidDataset, col.Name(), col.Type())
		}
	}

	groups := append(numeric, categorical...)
	provenance := make(map[string]string)
	var names []string
	var columns [][]float64
	for _, g := range groups {
		for k, name := range g.columns {
			if prev, dup := provenance[name]; dup {
				return Encoded{}, fmt.Errorf("%w: encoded column %q produced by both %q and %q",
					domain.ErrInvalidDataset, name, prev, g.source)
			}
			provenance[name] = g.source
			names = append(names, name)
			columns = append(columns, g.values[k])
		}
	}

	m, err := frame.New(ds.Index(), names, denseFromColumns(ds.NumSamples(), columns))
	if err != nil {
		return Encoded{}, fmt.Errorf("build encoded matrix: %w", err)
	}

	e.logger.Debug("One-hot encoded data shape",
		zap.Int("samples", m.Rows()),
		zap.Int("columns", m.Cols()),
		zap.Bool("scaled", scale),
	)
	return Encoded{Matrix: m, Provenance: provenance}, nil
}

// oneHot returns one indicator column per distinct category, named {field}_{category}.
func oneHot(col dataset.Column) group {
	cats := col.Categories()
	pos := make(map[string]int, len(cats))
	g := group{
		source:  col.Name(),
		columns: make([]string, len(cats)),
		values:  make([][]float64, len(cats)),
	}
	for k, c := range cats {
		pos[c] = k
		g.columns[k] = fmt.Sprintf("%s_%s", col.Name(), c)
		g.values[k] = make([]float64, col.Len())
	}
	for i := 0; i < col.Len(); i++ {
		g.values[pos[col.Label(i)]][i] = 1
	}
	return g
}

// standardize subtracts the mean and divides by the sample standard deviation.
// A constant or single-sample column is only centered.
func standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := stat.MeanStdDev(values, nil)
	for i, v := range values {
		out[i] = v - mean
		if std > 0 && !math.IsNaN(std) {
			out[i] /= std
		}
	}
	return out
}

func denseFromColumns(rows int, columns [][]float64) *mat.Dense {
	if rows == 0 || len(columns) == 0 {
		return nil
	}
	d := mat.NewDense(rows, len(columns), nil)
	for j, c := range columns {
		d.SetCol(j, c)
	}
	return d
}
