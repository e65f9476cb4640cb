package projection

import (
	"fmt"

	"github.com/kailas-cloud/projector/internal/domain"
)

// DefaultMaxComponents is the PCA component cap when none is configured.
const DefaultMaxComponents = 10

// DefaultPCADims is the pre-reduction target of t-SNE and UMAP.
const DefaultPCADims = 50

// PCAParams configures PCA.
type PCAParams struct {
	MaxComponents int `json:"max_components" yaml:"max_components"`
}

// MDSParams configures metric MDS (SMACOF).
type MDSParams struct {
	NInit   int     `json:"n_init" yaml:"n_init"`
	MaxIter int     `json:"max_iter" yaml:"max_iter"`
	Eps     float64 `json:"eps" yaml:"eps"`
	Seed    uint64  `json:"seed" yaml:"seed"`
}

// TSNEParams configures exact t-SNE. PCADims 0 disables pre-reduction.
type TSNEParams struct {
	PCADims      int     `json:"pca_dims" yaml:"pca_dims"`
	Perplexity   float64 `json:"perplexity" yaml:"perplexity"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxIter      int     `json:"max_iter" yaml:"max_iter"`
	NRuns        int     `json:"n_runs" yaml:"n_runs"`
	Seed         uint64  `json:"seed" yaml:"seed"`
}

// UMAPParams configures UMAP. PCADims 0 disables pre-reduction.
// Epochs 0 selects 500, or 200 above 10000 samples.
type UMAPParams struct {
	PCADims    int     `json:"pca_dims" yaml:"pca_dims"`
	NNeighbors int     `json:"n_neighbors" yaml:"n_neighbors"`
	MinDist    float64 `json:"min_dist" yaml:"min_dist"`
	Epochs     int     `json:"epochs" yaml:"epochs"`
	Seed       uint64  `json:"seed" yaml:"seed"`
}

// Params carries the parameters of every algorithm.
type Params struct {
	PCA  PCAParams  `json:"pca" yaml:"pca"`
	MDS  MDSParams  `json:"mds" yaml:"mds"`
	TSNE TSNEParams `json:"tsne" yaml:"tsne"`
	UMAP UMAPParams `json:"umap" yaml:"umap"`
}

// DefaultParams returns the catalogue defaults.
func DefaultParams() Params {
	return Params{
		PCA: PCAParams{MaxComponents: DefaultMaxComponents},
		MDS: MDSParams{NInit: 4, MaxIter: 300, Eps: 1e-3},
		TSNE: TSNEParams{
			PCADims:      DefaultPCADims,
			Perplexity:   10,
			LearningRate: 200,
			MaxIter:      1000,
			NRuns:        1,
		},
		UMAP: UMAPParams{
			PCADims:    DefaultPCADims,
			NNeighbors: 10,
			MinDist:    0.1,
		},
	}
}

// WithSeed returns a copy of p with every stochastic algorithm seeded by seed.
func (p Params) WithSeed(seed uint64) Params {
	p.MDS.Seed = seed
	p.TSNE.Seed = seed
	p.UMAP.Seed = seed
	return p
}

// Validate checks the parameters of alg.
func (p Params) Validate(alg Algorithm) error {
	switch alg {
	case PCA:
		return p.PCA.validate()
	case MDS:
		return p.MDS.validate()
	case TSNE:
		return p.TSNE.validate()
	case UMAP:
		return p.UMAP.validate()
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownAlgorithm, alg)
	}
}

func (p PCAParams) validate() error {
	if p.MaxComponents < 1 {
		return fmt.Errorf("%w: pca max_components must be positive, got %d", domain.ErrDimension, p.MaxComponents)
	}
	return nil
}

func (p MDSParams) validate() error {
	switch {
	case p.NInit < 1:
		return fmt.Errorf("%w: mds n_init must be positive", domain.ErrConfiguration)
	case p.MaxIter < 1:
		return fmt.Errorf("%w: mds max_iter must be positive", domain.ErrConfiguration)
	case p.Eps <= 0:
		return fmt.Errorf("%w: mds eps must be positive", domain.ErrConfiguration)
	}
	return nil
}

func (p TSNEParams) validate() error {
	switch {
	case p.PCADims < 0:
		return fmt.Errorf("%w: tsne pca_dims must not be negative", domain.ErrConfiguration)
	case p.Perplexity <= 0:
		return fmt.Errorf("%w: tsne perplexity must be positive", domain.ErrConfiguration)
	case p.LearningRate <= 0:
		return fmt.Errorf("%w: tsne learning_rate must be positive", domain.ErrConfiguration)
	case p.MaxIter < 1:
		return fmt.Errorf("%w: tsne max_iter must be positive", domain.ErrConfiguration)
	case p.NRuns < 1:
		return fmt.Errorf("%w: tsne n_runs must be positive", domain.ErrConfiguration)
	}
	return nil
}

func (p UMAPParams) validate() error {
	switch {
	case p.PCADims < 0:
		return fmt.Errorf("%w: umap pca_dims must not be negative", domain.ErrConfiguration)
	case p.NNeighbors < 2:
		return fmt.Errorf("%w: umap n_neighbors must be at least 2", domain.ErrConfiguration)
	case p.MinDist < 0:
		return fmt.Errorf("%w: umap min_dist must not be negative", domain.ErrConfiguration)
	case p.Epochs < 0:
		return fmt.Errorf("%w: umap epochs must not be negative", domain.ErrConfiguration)
	}
	return nil
}
