package projector

import (
	"fmt"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/dataset"
	"github.com/kailas-cloud/projector/internal/domain/field"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

func (c *Client) toPipelineRequest(req Request) (pipeline.Request, error) {
	ds, err := toDataset(req.Dataset)
	if err != nil {
		return pipeline.Request{}, err
	}
	info, err := toSampleInfo(req.Dataset.SampleInfo, ds.Index())
	if err != nil {
		return pipeline.Request{}, err
	}

	policy, err := mergePolicy(c.policy, req.Missing)
	if err != nil {
		return pipeline.Request{}, err
	}

	alg := projection.PCA
	if req.Algorithm != "" {
		if alg, err = projection.ParseAlgorithm(string(req.Algorithm)); err != nil {
			return pipeline.Request{}, err
		}
	}

	params := c.params
	if req.Params != nil {
		params = *req.Params
	}
	if req.Seed != nil {
		params = params.WithSeed(*req.Seed)
	}

	return pipeline.Request{
		Dataset:        ds,
		SelectedFields: req.SelectedFields,
		Scale:          req.Scale,
		Missing:        policy,
		Algorithm:      alg,
		Params:         params,
		SampleInfo:     info,
	}, nil
}

func toDataset(d Dataset) (dataset.Dataset, error) {
	index := d.Index
	if index == nil {
		n := 0
		if len(d.Fields) > 0 {
			n = d.Fields[0].size()
		}
		index = dataset.DefaultIndex(n)
	}

	cols, err := toColumns(d.Fields)
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
			t, err := field.Parse(string(fi.Type))
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

func toSampleInfo(fields []Field, index []string) (dataset.Dataset, error) {
	if len(fields) == 0 {
		return dataset.Dataset{}, nil
	}
	cols, err := toColumns(fields)
	if err != nil {
		return dataset.Dataset{}, err
	}
	info, err := dataset.New(index, cols)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("build sample info: %w", err)
	}
	return info, nil
}

func toColumns(fields []Field) ([]dataset.Column, error) {
	cols := make([]dataset.Column, len(fields))
	for i, f := range fields {
		t, err := field.Parse(string(f.Type))
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", domain.ErrInvalidDataset, f.Name, err)
		}
		if t == field.Numeric {
			cols[i] = dataset.NewNumeric(f.Name, f.Numbers)
			continue
		}
		col, err := dataset.NewCategorical(f.Name, t, f.Labels, f.Missing)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		cols[i] = col
	}
	return cols, nil
}

func fromColumn(c dataset.Column) Field {
	switch c.Type() {
	case field.Numeric:
		return Numeric(c.Name(), c.Numbers())
	case field.OrderedCategorical:
		f := fromCategorical(c)
		f.Type = FieldOrderedCategorical
		return f
	default:
		return fromCategorical(c)
	}
}

func fromCategorical(c dataset.Column) Field {
	labels := make([]string, c.Len())
	gaps := make([]bool, c.Len())
	for i := range labels {
		labels[i] = c.Label(i)
		gaps[i] = c.IsMissing(i)
	}
	return Categorical(c.Name(), labels, gaps)
}

func (f Field) size() int {
	if f.Type == FieldNumeric {
		return len(f.Numbers)
	}
	return len(f.Labels)
}

func mergePolicy(def missing.Policy, p *MissingPolicy) (missing.Policy, error) {
	if p == nil {
		return def, nil
	}
	method, numeric, categorical := def.Method.String(), def.NumericFill.String(), def.CategoricalFill.String()
	if p.Method != "" {
		method = p.Method
	}
	if p.NumericFill != "" {
		numeric = p.NumericFill
	}
	if p.CategoricalFill != "" {
		categorical = p.CategoricalFill
	}
	return missing.ParsePolicy(method, numeric, categorical)
}

func fromBundle(b pipeline.Bundle) Projection {
	res := Projection{
		Algorithm:              Algorithm(b.Algorithm.String()),
		Index:                  b.Embedding.Index(),
		Columns:                b.Embedding.Columns(),
		Embedding:              b.Embedding.RowsSlice(),
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
		res.Loadings = make(map[string][]float64, b.Loadings.Rows())
		for i, name := range b.Loadings.Index() {
			res.Loadings[name] = b.Loadings.Row(i)
		}
	}
	for _, c := range b.SampleInfo.Columns() {
		res.SampleInfo = append(res.SampleInfo, fromColumn(c))
	}
	return res
}
