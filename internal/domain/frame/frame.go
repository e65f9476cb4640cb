// Package frame holds the named numeric table shared by the encoder and the
// projection engine: the encoded matrix, embeddings and component loadings.
package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/projector/internal/domain"
)

// Frame is a row-indexed numeric table with named columns.
// Data is nil when the frame has zero rows or zero columns.
type Frame struct {
	index   []string
	columns []string
	data    *mat.Dense
}

// New creates a Frame. data must be len(index)×len(columns), or nil when either is zero.
func New(index, columns []string, data *mat.Dense) (Frame, error) {
	if len(index) == 0 || len(columns) == 0 {
		if data != nil && !data.IsEmpty() {
			return Frame{}, fmt.Errorf("%w: data given for an empty frame", domain.ErrDimension)
		}
		return Frame{index: clone(index), columns: clone(columns)}, nil
	}
	if data == nil {
		return Frame{}, fmt.Errorf("%w: nil data for %d×%d frame", domain.ErrDimension, len(index), len(columns))
	}
	r, c := data.Dims()
	if r != len(index) || c != len(columns) {
		return Frame{}, fmt.Errorf("%w: data is %d×%d, labels are %d×%d",
			domain.ErrDimension, r, c, len(index), len(columns))
	}
	return Frame{index: clone(index), columns: clone(columns), data: data}, nil
}

// FromRows builds a Frame from row-major values.
func FromRows(index, columns []string, rows [][]float64) (Frame, error) {
	if len(index) == 0 || len(columns) == 0 {
		return New(index, columns, nil)
	}
	if len(rows) != len(index) {
		return Frame{}, fmt.Errorf("%w: %d rows for %d index keys", domain.ErrDimension, len(rows), len(index))
	}
	d := mat.NewDense(len(index), len(columns), nil)
	for i, row := range rows {
		if len(row) != len(columns) {
			return Frame{}, fmt.Errorf("%w: row %d has %d values for %d columns",
				domain.ErrDimension, i, len(row), len(columns))
		}
		d.SetRow(i, row)
	}
	return New(index, columns, d)
}

// Rows returns the number of rows.
func (f Frame) Rows() int { return len(f.index) }

// Cols returns the number of columns.
func (f Frame) Cols() int { return len(f.columns) }

// Index returns a copy of the row keys.
func (f Frame) Index() []string { return clone(f.index) }

// Columns returns a copy of the column names.
func (f Frame) Columns() []string { return clone(f.columns) }

// Data returns the backing matrix. Callers must not modify it.
func (f Frame) Data() *mat.Dense { return f.data }

// At returns the value at row i, column j.
func (f Frame) At(i, j int) float64 { return f.data.At(i, j) }

// Row returns a copy of row i.
func (f Frame) Row(i int) []float64 {
	return mat.Row(nil, i, f.data)
}

// RowsSlice returns the data as row-major slices.
func (f Frame) RowsSlice() [][]float64 {
	out := make([][]float64, f.Rows())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// HasNaN reports whether any cell is NaN.
func (f Frame) HasNaN() bool {
	if f.data == nil {
		return false
	}
	r, c := f.data.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(f.data.At(i, j)) {
				return true
			}
		}
	}
	return false
}

// NaNColumns returns the names of columns holding at least one NaN.
func (f Frame) NaNColumns() []string {
	if f.data == nil {
		return nil
	}
	var out []string
	for j, name := range f.columns {
		for i := range f.index {
			if math.IsNaN(f.data.At(i, j)) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Split is the column/index/data layout of a frame (pandas orient="split").
type Split struct {
	Columns []string    `json:"columns"`
	Index   []string    `json:"index"`
	Data    [][]float64 `json:"data"`
}

// ToSplit returns the frame in split layout. Data always has one row per index key.
func (f Frame) ToSplit() Split {
	rows := make([][]float64, f.Rows())
	for i := range rows {
		if f.data == nil {
			rows[i] = []float64{}
			continue
		}
		rows[i] = f.Row(i)
	}
	return Split{Columns: f.Columns(), Index: f.Index(), Data: rows}
}

// FromSplit rebuilds a frame from its split layout.
func FromSplit(s Split) (Frame, error) {
	if len(s.Columns) == 0 {
		return New(s.Index, s.Columns, nil)
	}
	return FromRows(s.Index, s.Columns, s.Data)
}
