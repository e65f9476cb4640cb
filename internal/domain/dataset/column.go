package dataset

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/field"
)

// Column is an immutable typed field holding one value per sample.
// Numeric columns use numbers, categorical columns use labels; a missing
// value is flagged in the missing mask and its slot content is meaningless.
type Column struct {
	info    field.Info
	numbers []float64
	labels  []string
	missing []bool
}

// NewNumeric creates a Numeric column. NaN values are treated as missing.
func NewNumeric(name string, values []float64) Column {
	nums := make([]float64, len(values))
	missing := make([]bool, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			missing[i] = true
			continue
		}
		nums[i] = v
	}
	return Column{
		info:    field.Info{Name: name, Type: field.Numeric},
		numbers: nums,
		missing: missing,
	}
}

// NewCategorical creates a Categorical or OrderedCategorical column.
// missing may be nil when no value is missing; otherwise it must match labels in length.
func NewCategorical(name string, t field.Type, labels []string, missing []bool) (Column, error) {
	if !t.IsCategorical() {
		return Column{}, fmt.Errorf("%w: field %q: type %s is not categorical", domain.ErrInvalidDataset, name, t)
	}
	if missing != nil && len(missing) != len(labels) {
		return Column{}, fmt.Errorf("%w: field %q: missing mask has %d entries for %d values",
			domain.ErrInvalidDataset, name, len(missing), len(labels))
	}
	l := make([]string, len(labels))
	m := make([]bool, len(labels))
	for i, v := range labels {
		if missing != nil && missing[i] {
			m[i] = true
			continue
		}
		l[i] = v
	}
	return Column{
		info:    field.Info{Name: name, Type: t},
		labels:  l,
		missing: m,
	}, nil
}

// Info returns the field metadata.
func (c Column) Info() field.Info { return c.info }

// Name returns the field name.
func (c Column) Name() string { return c.info.Name }

// Type returns the field type.
func (c Column) Type() field.Type { return c.info.Type }

// Len returns the number of samples.
func (c Column) Len() int { return len(c.missing) }

// IsMissing reports whether sample i has no value.
func (c Column) IsMissing(i int) bool { return c.missing[i] }

// Number returns the numeric value of sample i. NaN when missing or categorical.
func (c Column) Number(i int) float64 {
	if c.info.Type != field.Numeric || c.missing[i] {
		return math.NaN()
	}
	return c.numbers[i]
}

// Label returns the category label of sample i. Empty when missing or numeric.
func (c Column) Label(i int) string {
	if !c.info.Type.IsCategorical() || c.missing[i] {
		return ""
	}
	return c.labels[i]
}

// MissingCount returns how many samples have no value.
func (c Column) MissingCount() int {
	n := 0
	for _, m := range c.missing {
		if m {
			n++
		}
	}
	return n
}

// Numbers returns a copy of the numeric values with NaN in missing slots.
func (c Column) Numbers() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Number(i)
	}
	return out
}

// Categories returns the distinct non-missing labels in lexicographic order.
func (c Column) Categories() []string {
	if !c.info.Type.IsCategorical() {
		return nil
	}
	seen := make(map[string]struct{})
	for i, l := range c.labels {
		if c.missing[i] {
			continue
		}
		seen[l] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// subset returns a column restricted to the samples where keep is true.
func (c Column) subset(keep []bool) Column {
	out := Column{info: c.info}
	for i, k := range keep {
		if !k {
			continue
		}
		out.missing = append(out.missing, c.missing[i])
		switch {
		case c.info.Type == field.Numeric:
			out.numbers = append(out.numbers, c.numbers[i])
		case c.info.Type.IsCategorical():
			out.labels = append(out.labels, c.labels[i])
		}
	}
	if out.missing == nil {
		out.missing = []bool{}
	}
	return out
}
