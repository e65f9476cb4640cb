package dataset

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/field"
)

// Dataset is an immutable ordered collection of typed fields sharing one
// sample index. Every transformation returns a new Dataset; sample keys are
// carried along so embeddings can be mapped back to their rows.
type Dataset struct {
	index   []string
	columns []Column
}

// New validates and creates a Dataset.
// index holds one unique key per sample; every column must have len(index) values
// and field names must be unique.
func New(index []string, columns []Column) (Dataset, error) {
	seenKeys := make(map[string]struct{}, len(index))
	for _, k := range index {
		if _, dup := seenKeys[k]; dup {
			return Dataset{}, fmt.Errorf("%w: duplicate sample key %q", domain.ErrInvalidDataset, k)
		}
		seenKeys[k] = struct{}{}
	}

	seenNames := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Name() == "" {
			return Dataset{}, fmt.Errorf("%w: field name is required", domain.ErrInvalidDataset)
		}
		if !c.Type().IsValid() {
			return Dataset{}, fmt.Errorf("%w: field %q has invalid type", domain.ErrInvalidDataset, c.Name())
		}
		if _, dup := seenNames[c.Name()]; dup {
			return Dataset{}, fmt.Errorf("%w: duplicate field %q", domain.ErrInvalidDataset, c.Name())
		}
		seenNames[c.Name()] = struct{}{}
		if c.Len() != len(index) {
			return Dataset{}, fmt.Errorf("%w: field %q has %d values for %d samples",
				domain.ErrInvalidDataset, c.Name(), c.Len(), len(index))
		}
	}

	idx := make([]string, len(index))
	copy(idx, index)
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return Dataset{index: idx, columns: cols}, nil
}

// DefaultIndex returns the keys "0".."n-1".
func DefaultIndex(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// Index returns a copy of the sample keys.
func (d Dataset) Index() []string {
	out := make([]string, len(d.index))
	copy(out, d.index)
	return out
}

// NumSamples returns the number of samples (rows).
func (d Dataset) NumSamples() int { return len(d.index) }

// NumFields returns the number of fields (columns).
func (d Dataset) NumFields() int { return len(d.columns) }

// Column returns the field at position i.
func (d Dataset) Column(i int) Column { return d.columns[i] }

// Columns returns a copy of the column list.
func (d Dataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// Fields returns the field metadata in column order.
func (d Dataset) Fields() []field.Info {
	out := make([]field.Info, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Info()
	}
	return out
}

// CheckFieldInfo verifies that infos names and types the dataset's fields exactly, in order.
func (d Dataset) CheckFieldInfo(infos []field.Info) error {
	if len(infos) != len(d.columns) {
		return fmt.Errorf("%w: field info has %d entries for %d fields",
			domain.ErrInvalidDataset, len(infos), len(d.columns))
	}
	for i, c := range d.columns {
		if infos[i] != c.Info() {
			return fmt.Errorf("%w: field info %d is %q/%s, data column is %q/%s",
				domain.ErrInvalidDataset, i, infos[i].Name, infos[i].Type, c.Name(), c.Type())
		}
	}
	return nil
}

// Select returns the fields at the given positions, in the given order.
// nil selects every field.
func (d Dataset) Select(positions []int) (Dataset, error) {
	if positions == nil {
		return d, nil
	}
	seen := make(map[int]struct{}, len(positions))
	cols := make([]Column, 0, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(d.columns) {
			return Dataset{}, fmt.Errorf("%w: field position %d out of range [0,%d)",
				domain.ErrInvalidDataset, p, len(d.columns))
		}
		if _, dup := seen[p]; dup {
			return Dataset{}, fmt.Errorf("%w: field position %d selected twice", domain.ErrInvalidDataset, p)
		}
		seen[p] = struct{}{}
		cols = append(cols, d.columns[p])
	}
	return Dataset{index: d.index, columns: cols}, nil
}

// KeepFields returns the fields whose mask entry is true.
func (d Dataset) KeepFields(mask []bool) Dataset {
	cols := make([]Column, 0, len(d.columns))
	for i, c := range d.columns {
		if mask[i] {
			cols = append(cols, c)
		}
	}
	return Dataset{index: d.index, columns: cols}
}

// KeepSamples returns the samples whose mask entry is true, preserving order.
func (d Dataset) KeepSamples(mask []bool) Dataset {
	idx := make([]string, 0, len(d.index))
	for i, k := range d.index {
		if mask[i] {
			idx = append(idx, k)
		}
	}
	cols := make([]Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = c.subset(mask)
	}
	return Dataset{index: idx, columns: cols}
}

// WithColumn returns a copy with the field at position i replaced by c.
// The replacement must have the same name and length.
func (d Dataset) WithColumn(i int, c Column) (Dataset, error) {
	if c.Name() != d.columns[i].Name() || c.Len() != len(d.index) {
		return Dataset{}, fmt.Errorf("%w: replacement for field %q does not match",
			domain.ErrInvalidDataset, d.columns[i].Name())
	}
	cols := make([]Column, len(d.columns))
	copy(cols, d.columns)
	cols[i] = c
	return Dataset{index: d.index, columns: cols}, nil
}

// HasMissing reports whether any field has a missing value.
func (d Dataset) HasMissing() bool {
	for _, c := range d.columns {
		if c.MissingCount() > 0 {
			return true
		}
	}
	return false
}

// MissingFields returns the names of fields with at least one missing value.
func (d Dataset) MissingFields() []string {
	var out []string
	for _, c := range d.columns {
		if c.MissingCount() > 0 {
			out = append(out, c.Name())
		}
	}
	return out
}

// SampleHasMissing reports whether sample i is missing a value in any field.
func (d Dataset) SampleHasMissing(i int) bool {
	for _, c := range d.columns {
		if c.IsMissing(i) {
			return true
		}
	}
	return false
}
