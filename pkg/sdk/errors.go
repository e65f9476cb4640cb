package projector

import "github.com/kailas-cloud/projector/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration    = domain.ErrConfiguration
	ErrPrecondition     = domain.ErrPrecondition
	ErrDimension        = domain.ErrDimension
	ErrNonConvergence   = domain.ErrNonConvergence
	ErrInvalidDataset   = domain.ErrInvalidDataset
	ErrUnknownAlgorithm = domain.ErrUnknownAlgorithm
)

// MissingValuesError names the fields that still hold gaps where a stage
// requires none. Use errors.As() to extract it.
type MissingValuesError = domain.MissingValuesError
