package encode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

// tenByThree has 2 numeric fields and 1 categorical field with 3 categories.
func tenByThree(t *testing.T) dataset.Dataset {
	t.Helper()
	shape, err := dataset.NewCategorical("shape", field.Categorical,
		[]string{"square", "circle", "triangle", "circle", "square", "triangle", "circle", "square", "circle", "triangle"}, nil)
	require.NoError(t, err)
	ds, err := dataset.New(dataset.DefaultIndex(10), []dataset.Column{
		dataset.NewNumeric("height", []float64{1.2, 3.4, 2.2, 5.1, 0.3, 4.4, 2.9, 1.1, 3.3, 2.0}),
		shape,
		dataset.NewNumeric("weight", []float64{10, 20, 15, 40, 5, 33, 21, 9, 27, 14}),
	})
	require.NoError(t, err)
	return ds
}

func TestEncode_ColumnOrderAndShape(t *testing.T) {
	enc, err := New().Encode(tenByThree(t), false)
	require.NoError(t, err)

	assert.Equal(t, 10, enc.Matrix.Rows())
	assert.Equal(t,
		[]string{"height", "weight", "shape_circle", "shape_square", "shape_triangle"},
		enc.Matrix.Columns())
	assert.Equal(t, dataset.DefaultIndex(10), enc.Matrix.Index())
}

func TestEncode_OneHotRowsSumToOne(t *testing.T) {
	enc, err := New().Encode(tenByThree(t), false)
	require.NoError(t, err)

	for i := 0; i < enc.Matrix.Rows(); i++ {
		sum := 0.0
		for j := 2; j < 5; j++ {
			v := enc.Matrix.At(i, j)
			assert.True(t, v == 0 || v == 1)
			sum += v
		}
		assert.Equal(t, 1.0, sum, "row %d", i)
	}
	square, ok := column(enc.Matrix, "shape_square")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0}, square)
}

func TestEncode_Provenance(t *testing.T) {
	enc, err := New().Encode(tenByThree(t), false)
	require.NoError(t, err)

	require.Len(t, enc.Provenance, enc.Matrix.Cols())
	for _, c := range enc.Matrix.Columns() {
		_, ok := enc.Provenance[c]
		assert.True(t, ok, c)
	}
	assert.Equal(t, "height", enc.Provenance["height"])
	assert.Equal(t, "weight", enc.Provenance["weight"])
	assert.Equal(t, "shape", enc.Provenance["shape_triangle"])
}

func TestEncode_Unscaled(t *testing.T) {
	enc, err := New().Encode(tenByThree(t), false)
	require.NoError(t, err)

	h, _ := column(enc.Matrix, "height")
	assert.Equal(t, []float64{1.2, 3.4, 2.2, 5.1, 0.3, 4.4, 2.9, 1.1, 3.3, 2.0}, h)
}

func TestEncode_Scaled(t *testing.T) {
	enc, err := New().Encode(tenByThree(t), true)
	require.NoError(t, err)

	for _, name := range []string{"height", "weight"} {
		col, _ := column(enc.Matrix, name)
		mean, ss := 0.0, 0.0
		for _, v := range col {
			mean += v
		}
		mean /= float64(len(col))
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		assert.InDelta(t, 0, mean, 1e-12, name)
		assert.InDelta(t, 1, math.Sqrt(ss/float64(len(col)-1)), 1e-12, name)
	}
	// Indicators are never scaled.
	square, _ := column(enc.Matrix, "shape_square")
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0}, square)
}

func TestEncode_ScaledConstantColumnIsCentered(t *testing.T) {
	ds, err := dataset.New(dataset.DefaultIndex(3), []dataset.Column{
		dataset.NewNumeric("c", []float64{7, 7, 7}),
	})
	require.NoError(t, err)

	enc, err := New().Encode(ds, true)
	require.NoError(t, err)
	c, _ := column(enc.Matrix, "c")
	assert.Equal(t, []float64{0, 0, 0}, c)
}

func TestEncode_OrderedCategoricalIsOneHot(t *testing.T) {
	size, err := dataset.NewCategorical("size", field.OrderedCategorical, []string{"S", "M", "L", "M"}, nil)
	require.NoError(t, err)
	ds, err := dataset.New(dataset.DefaultIndex(4), []dataset.Column{size})
	require.NoError(t, err)

	enc, err := New().Encode(ds, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"size_L", "size_M", "size_S"}, enc.Matrix.Columns())
}

func TestEncode_RejectsMissing(t *testing.T) {
	ds, err := dataset.New(dataset.DefaultIndex(2), []dataset.Column{
		dataset.NewNumeric("x", []float64{1, math.NaN()}),
	})
	require.NoError(t, err)

	_, err = New().Encode(ds, false)
	require.ErrorIs(t, err, domain.ErrPrecondition)

	var mv *domain.MissingValuesError
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, []string{"x"}, mv.Fields)
}

func TestEncode_RejectsColumnNameCollision(t *testing.T) {
	a, err := dataset.NewCategorical("a", field.Categorical, []string{"b", "c"}, nil)
	require.NoError(t, err)
	ds, err := dataset.New(dataset.DefaultIndex(2), []dataset.Column{
		dataset.NewNumeric("a_b", []float64{1, 2}),
		a,
	})
	require.NoError(t, err)

	_, err = New().Encode(ds, false)
	require.ErrorIs(t, err, domain.ErrInvalidDataset)
}

func TestEncode_NoFields(t *testing.T) {
	ds, err := dataset.New(dataset.DefaultIndex(3), nil)
	require.NoError(t, err)

	enc, err := New().Encode(ds, false)
	require.NoError(t, err)
	assert.Equal(t, 0, enc.Matrix.Cols())
	assert.Equal(t, 3, enc.Matrix.Rows())
}

// column returns the named column of f, read through Columns and At.
func column(f frame.Frame, name string) ([]float64, bool) {
	for j, c := range f.Columns() {
		if c == name {
			out := make([]float64, f.Rows())
			for i := range out {
				out[i] = f.At(i, j)
			}
			return out, true
		}
	}
	return nil, false
}
