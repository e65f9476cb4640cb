// Package projection maps an encoded numeric matrix to a low-dimensional
// embedding. PCA is deterministic; MDS, t-SNE and UMAP are stochastic and
// reproducible for a fixed seed.
package projection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/domain/frame"
)

// Algorithm identifies a projection method.
type Algorithm uint8

// Supported algorithms. The zero value is invalid.
const (
	PCA Algorithm = iota + 1
	MDS
	TSNE
	UMAP
)

var algorithmNames = map[Algorithm]string{
	PCA:  "pca",
	MDS:  "mds",
	TSNE: "tsne",
	UMAP: "umap",
}

// Algorithms lists every supported algorithm in catalogue order.
func Algorithms() []Algorithm {
	return []Algorithm{PCA, MDS, TSNE, UMAP}
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	s, ok := algorithmNames[a]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownAlgorithm, uint8(a))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	parsed, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAlgorithm resolves a case-insensitive algorithm name ("t-SNE" is accepted).
func ParseAlgorithm(s string) (Algorithm, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for a, name := range algorithmNames {
		if name == norm {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, s)
}

// Result is the output of a projection.
// Loadings and ExplainedVarianceRatio are set by PCA only.
// Objective is the final cost of the selected run (KL divergence, stress), nil for PCA.
type Result struct {
	Embedding              frame.Frame
	Loadings               *frame.Frame
	ExplainedVarianceRatio []float64
	Objective              *float64
}

// Projector computes embeddings. Implementations hold no mutable state and
// are safe for concurrent use.
type Projector interface {
	Algorithm() Algorithm
	Project(ctx context.Context, m frame.Frame) (Result, error)
}

// Option configures a Projector.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the diagnostics logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// New builds the projector for alg with its parameters taken from p.
func New(alg Algorithm, p Params, opts ...Option) (Projector, error) {
	var (
		pr  Projector
		err error
	)
	switch alg {
	case PCA:
		pr, err = asProjector(NewPCA(p.PCA, opts...))
	case MDS:
		pr, err = asProjector(NewMDS(p.MDS, opts...))
	case TSNE:
		pr, err = asProjector(NewTSNE(p.TSNE, opts...))
	case UMAP:
		pr, err = asProjector(NewUMAP(p.UMAP, opts...))
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAlgorithm, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s projector: %w", alg, err)
	}
	return pr, nil
}

// asProjector avoids wrapping a nil concrete pointer in a non-nil interface.
func asProjector[T Projector](p T, err error) (Projector, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// checkInput enforces the shared preconditions of every projector.
func checkInput(m frame.Frame) error {
	if m.HasNaN() {
		return domain.NewMissingValues("projection", m.NaNColumns())
	}
	if m.Rows() == 0 || m.Cols() == 0 {
		return fmt.Errorf("%w: cannot project a %d×%d matrix", domain.ErrDimension, m.Rows(), m.Cols())
	}
	return nil
}

var pairNames = [2]string{"A", "B"}

// dimNames returns "{prefix} dim A", "{prefix} dim B".
func dimNames(prefix string) []string {
	return []string{prefix + " dim " + pairNames[0], prefix + " dim " + pairNames[1]}
}
