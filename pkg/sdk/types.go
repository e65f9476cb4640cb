package projector

import (
	"github.com/kailas-cloud/projector/internal/projection"
)

// FieldType is the declared type of a dataset field.
type FieldType string

// Field type constants.
const (
	FieldNumeric            FieldType = "numeric"
	FieldCategorical        FieldType = "categorical"
	FieldOrderedCategorical FieldType = "ordered_categorical"
)

// Algorithm selects the projection method.
type Algorithm string

// Algorithm constants. The empty Algorithm means PCA.
const (
	PCA  Algorithm = "pca"
	MDS  Algorithm = "mds"
	TSNE Algorithm = "tsne"
	UMAP Algorithm = "umap"
)

// Params carries the parameters of every algorithm.
type Params = projection.Params

// Per-algorithm parameter sets.
type (
	PCAParams  = projection.PCAParams
	MDSParams  = projection.MDSParams
	TSNEParams = projection.TSNEParams
	UMAPParams = projection.UMAPParams
)

// DefaultParams returns the catalogue defaults.
func DefaultParams() Params { return projection.DefaultParams() }

// Field is one dataset column. Numeric fields use Numbers, where NaN marks a
// missing value. Categorical fields use Labels, with Missing marking gaps;
// a nil Missing means no gaps.
type Field struct {
	Name    string
	Type    FieldType
	Numbers []float64
	Labels  []string
	Missing []bool
}

// Numeric builds a numeric field.
func Numeric(name string, values []float64) Field {
	return Field{Name: name, Type: FieldNumeric, Numbers: values}
}

// Categorical builds an unordered categorical field.
func Categorical(name string, labels []string, missing []bool) Field {
	return Field{Name: name, Type: FieldCategorical, Labels: labels, Missing: missing}
}

// FieldInfo declares the name and type of one field.
type FieldInfo struct {
	Name string
	Type FieldType
}

// Dataset is a column-oriented table. A nil Index defaults to "0".."n-1".
type Dataset struct {
	Index  []string
	Fields []Field
	// FieldInfo, when non-nil, must name and type Fields exactly, in order.
	FieldInfo []FieldInfo
	// SampleInfo holds per-sample metadata over Index. It is returned with
	// the embedding but never projected.
	SampleInfo []Field
}

// MissingPolicy names how gaps are resolved. Empty members take the client default.
type MissingPolicy struct {
	Method          string // drop_fields, drop_samples, fill_values
	NumericFill     string // zeroes, mean
	CategoricalFill string // common_unknown, unique_unknown
}

// Request is one projection.
type Request struct {
	Dataset Dataset
	// SelectedFields holds field positions to include; nil means all fields.
	SelectedFields []int
	Scale          bool
	Missing        *MissingPolicy
	Algorithm      Algorithm
	// Params overrides the client defaults when non-nil.
	Params *Params
	Seed   *uint64
}

// Projection is the result of Client.Project.
type Projection struct {
	Algorithm Algorithm
	// Index and Columns label the rows and columns of Embedding.
	Index                  []string
	Columns                []string
	Embedding              [][]float64
	AxisLabels             []string
	ExplainedVarianceRatio []float64
	// Loadings maps each encoded column to its weights on the PCA components.
	Loadings       map[string][]float64
	Provenance     map[string]string
	EncodedColumns []string
	SelectedFields []string
	FieldsKept     []bool
	SamplesKept    []bool
	Objective      *float64
	// SampleInfo is Dataset.SampleInfo restricted to the rows of Index.
	SampleInfo []Field
}
