package missing

import (
	"fmt"

	"github.com/kailas-cloud/projector/internal/domain"
)

// Method selects how missing values are resolved.
type Method uint8

// Missing-data methods. The zero value is invalid.
const (
	// DropFields removes every field with at least one missing value.
	DropFields Method = iota + 1
	// DropSamples removes every sample with at least one missing value.
	DropSamples
	// FillValues imputes missing values per field type.
	FillValues
)

var methodNames = map[Method]string{
	DropFields:  "drop_fields",
	DropSamples: "drop_samples",
	FillValues:  "fill_values",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// NumericFill selects the imputed value for numeric fields.
type NumericFill uint8

// Numeric fill policies. The zero value is invalid.
const (
	Zeroes NumericFill = iota + 1
	Mean
)

var numericFillNames = map[NumericFill]string{
	Zeroes: "zeroes",
	Mean:   "mean",
}

func (f NumericFill) String() string {
	if s, ok := numericFillNames[f]; ok {
		return s
	}
	return fmt.Sprintf("NumericFill(%d)", uint8(f))
}

// CategoricalFill selects the sentinel labels for categorical fields.
type CategoricalFill uint8

// Categorical fill policies. The zero value is invalid.
const (
	// CommonUnknown fills every gap with one shared "Unknown" category.
	CommonUnknown CategoricalFill = iota + 1
	// UniqueUnknown gives each gap its own "Unknown{n}" category so unknowns
	// do not cluster together artificially.
	UniqueUnknown
)

var categoricalFillNames = map[CategoricalFill]string{
	CommonUnknown: "common_unknown",
	UniqueUnknown: "unique_unknown",
}

func (f CategoricalFill) String() string {
	if s, ok := categoricalFillNames[f]; ok {
		return s
	}
	return fmt.Sprintf("CategoricalFill(%d)", uint8(f))
}

// Policy bundles the three missing-data choices.
type Policy struct {
	Method          Method
	NumericFill     NumericFill
	CategoricalFill CategoricalFill
}

// DefaultPolicy fills values: numeric with the field mean, categorical with a common unknown.
func DefaultPolicy() Policy {
	return Policy{Method: FillValues, NumericFill: Mean, CategoricalFill: CommonUnknown}
}

// Validate checks every choice is recognized.
func (p Policy) Validate() error {
	if _, ok := methodNames[p.Method]; !ok {
		return fmt.Errorf("%w: unknown missing data method %s", domain.ErrConfiguration, p.Method)
	}
	if _, ok := numericFillNames[p.NumericFill]; !ok {
		return fmt.Errorf("%w: unknown missing value method for numeric fields: %s",
			domain.ErrConfiguration, p.NumericFill)
	}
	if _, ok := categoricalFillNames[p.CategoricalFill]; !ok {
		return fmt.Errorf("%w: unknown missing value method for categorical fields: %s",
			domain.ErrConfiguration, p.CategoricalFill)
	}
	return nil
}

// ParsePolicy parses the three policy strings. Empty strings take the default.
func ParsePolicy(method, numericFill, categoricalFill string) (Policy, error) {
	p := DefaultPolicy()
	if method != "" {
		m, ok := lookup(methodNames, method)
		if !ok {
			return Policy{}, fmt.Errorf("%w: unknown missing data method %q", domain.ErrConfiguration, method)
		}
		p.Method = m
	}
	if numericFill != "" {
		f, ok := lookup(numericFillNames, numericFill)
		if !ok {
			return Policy{}, fmt.Errorf("%w: unknown missing value method for numeric fields: %q",
				domain.ErrConfiguration, numericFill)
		}
		p.NumericFill = f
	}
	if categoricalFill != "" {
		f, ok := lookup(categoricalFillNames, categoricalFill)
		if !ok {
			return Policy{}, fmt.Errorf("%w: unknown missing value method for categorical fields: %q",
				domain.ErrConfiguration, categoricalFill)
		}
		p.CategoricalFill = f
	}
	return p, nil
}

func lookup[T comparable](names map[T]string, s string) (T, bool) {
	for k, v := range names {
		if v == s {
			return k, true
		}
	}
	var zero T
	return zero, false
}
