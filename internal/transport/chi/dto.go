package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/domain/frame"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

// ProjectionRequest is the body of POST /v1/projections.
type ProjectionRequest struct {
	Dataset        DatasetDTO  `json:"dataset"`
	SelectedFields []int       `json:"selected_fields,omitempty"`
	Scale          bool        `json:"scale"`
	Missing        *MissingDTO `json:"missing,omitempty"`
	Algorithm      string      `json:"algorithm"`
	// Params overlays the configured defaults; only the given keys change.
	Params projection.Params `json:"params"`
	Seed   *uint64           `json:"seed,omitempty"`
}

// DatasetDTO is a column-oriented dataset. Index defaults to "0".."n-1".
// FieldInfo, when sent, must name and type Fields exactly, in order.
// SampleInfo holds per-sample metadata that is returned alongside the
// embedding but never projected.
type DatasetDTO struct {
	Index      []string       `json:"index,omitempty"`
	Fields     []FieldDTO     `json:"fields"`
	FieldInfo  []FieldInfoDTO `json:"field_info,omitempty"`
	SampleInfo []FieldDTO     `json:"sample_info,omitempty"`
}

// FieldInfoDTO declares the name and type of one field.
type FieldInfoDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FieldDTO is one column. A null value is missing. Categorical values may be
// strings or numbers; numbers are used by their literal text.
type FieldDTO struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Values []json.RawMessage `json:"values"`
}

// MissingDTO selects the missing-data policy. Empty members take the
// configured default.
type MissingDTO struct {
	Method          string `json:"method,omitempty"`
	NumericFill     string `json:"numeric_fill,omitempty"`
	CategoricalFill string `json:"categorical_fill,omitempty"`
}

// ProjectionResponse is the bundle returned to the UI layer.
type ProjectionResponse struct {
	Algorithm              string            `json:"algorithm"`
	Embedding              frame.Split       `json:"embedding"`
	AxisLabels             []string          `json:"axis_labels"`
	ExplainedVarianceRatio []float64         `json:"explained_variance_ratio,omitempty"`
	Loadings               *frame.Split      `json:"loadings,omitempty"`
	Provenance             map[string]string `json:"provenance"`
	EncodedColumns         []string          `json:"encoded_columns"`
	SelectedFields         []string          `json:"selected_fields"`
	FieldsKept             []bool            `json:"fields_kept"`
	SamplesKept            []bool            `json:"samples_kept"`
	Objective              *float64          `json:"objective,omitempty"`
	// SampleInfo rows follow the embedding index.
	SampleInfo []FieldDTO `json:"sample_info,omitempty"`
}

// AlgorithmDTO describes one catalogue entry.
type AlgorithmDTO struct {
	Name          string `json:"name"`
	Deterministic bool   `json:"deterministic"`
	Defaults      any    `json:"defaults"`
}

// CatalogueResponse is the body of GET /v1/algorithms.
type CatalogueResponse struct {
	Algorithms       []AlgorithmDTO `json:"algorithms"`
	FieldTypes       []string       `json:"field_types"`
	MissingMethods   []string       `json:"missing_methods"`
	NumericFills     []string       `json:"numeric_fills"`
	CategoricalFills []string       `json:"categorical_fills"`
	DefaultMissing   MissingDTO     `json:"default_missing"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func (r ProjectionRequest) toDomain(defaultPolicy missing.Policy) (pipeline.Request, error) {
	ds, err := r.Dataset.toDomain()
	if err != nil {
		return pipeline.Request{}, err
	}
	info, err := r.Dataset.sampleInfo(ds.Index())
	if err != nil {
		return pipeline.Request{}, err
	}

	policy, err := r.Missing.toDomain(defaultPolicy)
	if err != nil {
		return pipeline.Request{}, err
	}

	alg := projection.PCA
	if r.Algorithm != "" {
		if alg, err = projection.ParseAlgorithm(r.Algorithm); err != nil {
			return pipeline.Request{}, err
		}
	}

	params := r.Params
	if r.Seed != nil {
		params = params.WithSeed(*r.Seed)
	}

	return pipeline.Request{
		Dataset:        ds,
		SelectedFields: r.SelectedFields,
		Scale:          r.Scale,
		Missing:        policy,
		Algorithm:      alg,
		Params:         params,
		SampleInfo:     info,
	}, nil
}

func (d DatasetDTO) toDomain() (dataset.Dataset, error) {
	n := len(d.Index)
	if d.Index == nil && len(d.Fields) > 0 {
		n = len(d.Fields[0].Values)
	}
	index := d.Index
	if index == nil {
		index = dataset.DefaultIndex(n)
	}

	cols, err := columns(d.Fields)
	if err != nil {
		return dataset.Dataset{}, err
	}
	ds, err := dataset.New(index, cols)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("build dataset: %w", err)
	}

	if d.FieldInfo != nil {
		infos := make([]field.Info, len(d.FieldInfo))
		for i, fi := range d.FieldInfo {
			t, err := field.Parse(fi.Type)
			if err != nil {
				return dataset.Dataset{}, fmt.Errorf("%w: field info %d: %w", domain.ErrInvalidDataset, i, err)
			}
			infos[i] = field.Info{Name: fi.Name, Type: t}
		}
		if err := ds.CheckFieldInfo(infos); err != nil {
			return dataset.Dataset{}, err
		}
	}
	return ds, nil
}

// sampleInfo builds the sample metadata over the dataset index.
func (d DatasetDTO) sampleInfo(index []string) (dataset.Dataset, error) {
	if len(d.SampleInfo) == 0 {
		return dataset.Dataset{}, nil
	}
	cols, err := columns(d.SampleInfo)
	if err != nil {
		return dataset.Dataset{}, err
	}
	info, err := dataset.New(index, cols)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("build sample info: %w", err)
	}
	return info, nil
}

func columns(fields []FieldDTO) ([]dataset.Column, error) {
	cols := make([]dataset.Column, len(fields))
	for i, f := range fields {
		col, err := f.toDomain()
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

var jsonNull = []byte("null")

func (f FieldDTO) toDomain() (dataset.Column, error) {
	t, err := field.Parse(f.Type)
	if err != nil {
		return dataset.Column{}, fmt.Errorf("%w: field %q: %w", domain.ErrInvalidDataset, f.Name, err)
	}

	if t == field.Numeric {
		values := make([]float64, len(f.Values))
		for i, raw := range f.Values {
			if isNull(raw) {
				values[i] = math.NaN()
				continue
			}
			if err := json.Unmarshal(raw, &values[i]); err != nil {
				return dataset.Column{}, fmt.Errorf("%w: field %q: value %d is not a number",
					domain.ErrInvalidDataset, f.Name, i)
			}
		}
		return dataset.NewNumeric(f.Name, values), nil
	}

	labels := make([]string, len(f.Values))
	gaps := make([]bool, len(f.Values))
	for i, raw := range f.Values {
		switch {
		case isNull(raw):
			gaps[i] = true
		case bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)):
			if err := json.Unmarshal(raw, &labels[i]); err != nil {
				return dataset.Column{}, fmt.Errorf("%w: field %q: value %d: %w",
					domain.ErrInvalidDataset, f.Name, i, err)
			}
		default:
			var num json.Number
			if err := json.Unmarshal(raw, &num); err != nil {
				return dataset.Column{}, fmt.Errorf("%w: field %q: value %d must be a string or number",
					domain.ErrInvalidDataset, f.Name, i)
			}
			labels[i] = num.String()
		}
	}
	col, err := dataset.NewCategorical(f.Name, t, labels, gaps)
	if err != nil {
		return dataset.Column{}, fmt.Errorf("build field: %w", err)
	}
	return col, nil
}

// fieldFromColumn renders a column with null for missing values.
func fieldFromColumn(c dataset.Column) FieldDTO {
	values := make([]json.RawMessage, c.Len())
	for i := range values {
		switch {
		case c.IsMissing(i):
			values[i] = jsonNull
		case c.Type() == field.Numeric:
			values[i] = json.RawMessage(strconv.FormatFloat(c.Number(i), 'g', -1, 64))
		default:
			values[i] = json.RawMessage(strconv.Quote(c.Label(i)))
		}
	}
	return FieldDTO{Name: c.Name(), Type: c.Type().String(), Values: values}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func (m *MissingDTO) toDomain(def missing.Policy) (missing.Policy, error) {
	merged := MissingDTO{
		Method:          def.Method.String(),
		NumericFill:     def.NumericFill.String(),
		CategoricalFill: def.CategoricalFill.String(),
	}
	if m != nil {
		if m.Method != "" {
			merged.Method = m.Method
		}
		if m.NumericFill != "" {
			merged.NumericFill = m.NumericFill
		}
		if m.CategoricalFill != "" {
			merged.CategoricalFill = m.CategoricalFill
		}
	}
	p, err := missing.ParsePolicy(merged.Method, merged.NumericFill, merged.CategoricalFill)
	if err != nil {
		return missing.Policy{}, fmt.Errorf("parse missing policy: %w", err)
	}
	return p, nil
}

func bundleToResponse(b pipeline.Bundle) ProjectionResponse {
	resp := ProjectionResponse{
		Algorithm:              b.Algorithm.String(),
		Embedding:              b.Embedding.ToSplit(),
		AxisLabels:             b.AxisLabels,
		ExplainedVarianceRatio: b.ExplainedVarianceRatio,
		Provenance:             b.Provenance,
		EncodedColumns:         b.EncodedColumns,
		SelectedFields:         b.SelectedFields,
		FieldsKept:             b.FieldsKept,
		SamplesKept:            b.SamplesKept,
		Objective:              b.Objective,
	}
	if b.Loadings != nil {
		l := b.Loadings.ToSplit()
		resp.Loadings = &l
	}
	for _, c := range b.SampleInfo.Columns() {
		resp.SampleInfo = append(resp.SampleInfo, fieldFromColumn(c))
	}
	return resp
}

func catalogue(params projection.Params, policy missing.Policy) CatalogueResponse {
	algs := projection.Algorithms()
	items := make([]AlgorithmDTO, len(algs))
	for i, a := range algs {
		items[i] = AlgorithmDTO{
			Name:          a.String(),
			Deterministic: a == projection.PCA,
			Defaults:      algorithmDefaults(a, params),
		}
	}
	return CatalogueResponse{
		Algorithms: items,
		FieldTypes: []string{
			field.Numeric.String(), field.Categorical.String(), field.OrderedCategorical.String(),
		},
		MissingMethods: []string{
			missing.DropFields.String(), missing.DropSamples.String(), missing.FillValues.String(),
		},
		NumericFills:     []string{missing.Zeroes.String(), missing.Mean.String()},
		CategoricalFills: []string{missing.CommonUnknown.String(), missing.UniqueUnknown.String()},
		DefaultMissing: MissingDTO{
			Method:          policy.Method.String(),
			NumericFill:     policy.NumericFill.String(),
			CategoricalFill: policy.CategoricalFill.String(),
		},
	}
}

func algorithmDefaults(a projection.Algorithm, p projection.Params) any {
	switch a {
	case projection.PCA:
		return p.PCA
	case projection.MDS:
		return p.MDS
	case projection.TSNE:
		return p.TSNE
	case projection.UMAP:
		return p.UMAP
	default:
		return nil
	}
}
