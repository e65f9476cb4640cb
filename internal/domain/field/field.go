package field

import (
	"fmt"
	"strings"
)

// Type is the statistical type of a dataset field.
type Type uint8

// Field type constants. The zero value is invalid.
const (
	Numeric Type = iota + 1
	Categorical
	// OrderedCategorical is encoded like Categorical; ordinal-aware encoding is not implemented.
	OrderedCategorical
)

// String returns the canonical tag used by the ingestion layer.
func (t Type) String() string {
	switch t {
	case Numeric:
		return "Numeric"
	case Categorical:
		return "Categorical"
	case OrderedCategorical:
		return "OrderedCategorical"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	return t == Numeric || t == Categorical || t == OrderedCategorical
}

// IsCategorical reports whether values of this type are category labels.
func (t Type) IsCategorical() bool {
	switch t {
	case Categorical, OrderedCategorical:
		return true
	case Numeric:
		return false
	default:
		return false
	}
}

// Parse converts a FieldType tag into a Type. Matching is case-insensitive
// and tolerates "ordered_categorical" spelling.
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "numeric":
		return Numeric, nil
	case "categorical":
		return Categorical, nil
	case "orderedcategorical":
		return OrderedCategorical, nil
	default:
		return 0, fmt.Errorf("invalid field type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid field type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Info is the metadata of one field: its name and type.
type Info struct {
	Name string
	Type Type
}
