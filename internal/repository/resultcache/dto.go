package resultcache

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/domain/frame"
	"github.com/kailas-cloud/projector/internal/projection"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

// requestKey is the canonical form of a pipeline request. Two requests with
// equal keys produce equal bundles.
type requestKey struct {
	Index     []string   `json:"index"`
	Fields    []fieldKey `json:"fields"`
	Selected  []int      `json:"selected"`
	Scale     bool       `json:"scale"`
	Missing   [3]string  `json:"missing"`
	Algorithm string     `json:"algorithm"`
	Params    any        `json:"params"`
	// SampleInfo shares Index with the dataset.
	SampleInfo []fieldKey `json:"sample_info,omitempty"`
}

// fieldKey holds one column; nil entries are missing values.
type fieldKey struct {
	Name    string     `json:"name"`
	Type    field.Type `json:"type"`
	Numbers []*float64 `json:"numbers,omitempty"`
	Labels  []*string  `json:"labels,omitempty"`
}

func newRequestKey(req pipeline.Request) requestKey {
	ds := req.Dataset
	return requestKey{
		Index:    ds.Index(),
		Fields:   fieldKeys(ds),
		Selected: req.SelectedFields,
		Scale:    req.Scale,
		Missing: [3]string{
			req.Missing.Method.String(),
			req.Missing.NumericFill.String(),
			req.Missing.CategoricalFill.String(),
		},
		Algorithm:  req.Algorithm.String(),
		Params:     paramsFor(req.Algorithm, req.Params),
		SampleInfo: fieldKeys(req.SampleInfo),
	}
}

func fieldKeys(ds dataset.Dataset) []fieldKey {
	if ds.NumFields() == 0 {
		return nil
	}
	out := make([]fieldKey, ds.NumFields())
	for i, col := range ds.Columns() {
		out[i] = newFieldKey(col)
	}
	return out
}

func newFieldKey(col dataset.Column) fieldKey {
	fk := fieldKey{Name: col.Name(), Type: col.Type()}
	if col.Type() == field.Numeric {
		fk.Numbers = make([]*float64, col.Len())
		for i := range fk.Numbers {
			if !col.IsMissing(i) {
				v := col.Number(i)
				fk.Numbers[i] = &v
			}
		}
		return fk
	}
	fk.Labels = make([]*string, col.Len())
	for i := range fk.Labels {
		if !col.IsMissing(i) {
			v := col.Label(i)
			fk.Labels[i] = &v
		}
	}
	return fk
}

// column rebuilds the column a fieldKey was made from.
func (fk fieldKey) column() (dataset.Column, error) {
	if fk.Type == field.Numeric {
		values := make([]float64, len(fk.Numbers))
		for i, v := range fk.Numbers {
			values[i] = math.NaN()
			if v != nil {
				values[i] = *v
			}
		}
		return dataset.NewNumeric(fk.Name, values), nil
	}
	labels := make([]string, len(fk.Labels))
	gaps := make([]bool, len(fk.Labels))
	for i, v := range fk.Labels {
		if v == nil {
			gaps[i] = true
			continue
		}
		labels[i] = *v
	}
	return dataset.NewCategorical(fk.Name, fk.Type, labels, gaps)
}

// sampleInfoDTO is a stored Bundle.SampleInfo.
type sampleInfoDTO struct {
	Index  []string   `json:"index"`
	Fields []fieldKey `json:"fields"`
}

func (d *sampleInfoDTO) toDataset() (dataset.Dataset, error) {
	if d == nil {
		return dataset.Dataset{}, nil
	}
	cols := make([]dataset.Column, len(d.Fields))
	for i, fk := range d.Fields {
		col, err := fk.column()
		if err != nil {
			return dataset.Dataset{}, err
		}
		cols[i] = col
	}
	return dataset.New(d.Index, cols)
}

// paramsFor keeps only the parameters the algorithm reads.
func paramsFor(alg projection.Algorithm, p projection.Params) any {
	switch alg {
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

type bundleDTO struct {
	Algorithm              projection.Algorithm `json:"algorithm"`
	Embedding              frame.Split          `json:"embedding"`
	AxisLabels             []string             `json:"axis_labels"`
	ExplainedVarianceRatio []float64            `json:"explained_variance_ratio,omitempty"`
	Loadings               *frame.Split         `json:"loadings,omitempty"`
	Provenance             map[string]string    `json:"provenance"`
	EncodedColumns         []string             `json:"encoded_columns"`
	SelectedFields         []string             `json:"selected_fields"`
	FieldsKept             []bool               `json:"fields_kept"`
	SamplesKept            []bool               `json:"samples_kept"`
	Objective              *float64             `json:"objective,omitempty"`
	SampleInfo             *sampleInfoDTO       `json:"sample_info,omitempty"`
}

func bundleToDTO(b pipeline.Bundle) bundleDTO {
	dto := bundleDTO{
		Algorithm:              b.Algorithm,
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
		dto.Loadings = &l
	}
	if b.SampleInfo.NumFields() > 0 {
		dto.SampleInfo = &sampleInfoDTO{Index: b.SampleInfo.Index(), Fields: fieldKeys(b.SampleInfo)}
	}
	return dto
}

func dtoToBundle(dto bundleDTO) (pipeline.Bundle, error) {
	emb, err := frame.FromSplit(dto.Embedding)
	if err != nil {
		return pipeline.Bundle{}, fmt.Errorf("decode embedding: %w", err)
	}
	b := pipeline.Bundle{
		Algorithm:              dto.Algorithm,
		Embedding:              emb,
		AxisLabels:             dto.AxisLabels,
		ExplainedVarianceRatio: dto.ExplainedVarianceRatio,
		Provenance:             dto.Provenance,
		EncodedColumns:         dto.EncodedColumns,
		SelectedFields:         dto.SelectedFields,
		FieldsKept:             dto.FieldsKept,
		SamplesKept:            dto.SamplesKept,
		Objective:              dto.Objective,
	}
	if dto.Loadings != nil {
		l, err := frame.FromSplit(*dto.Loadings)
		if err != nil {
			return pipeline.Bundle{}, fmt.Errorf("decode loadings: %w", err)
		}
		b.Loadings = &l
	}
	if b.SampleInfo, err = dto.SampleInfo.toDataset(); err != nil {
		return pipeline.Bundle{}, fmt.Errorf("decode sample info: %w", err)
	}
	return b, nil
}
