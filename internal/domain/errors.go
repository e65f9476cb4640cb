package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals an unrecognized method or fill policy.
	ErrConfiguration = errors.New("configuration error")
	// ErrPrecondition signals missing values where a stage requires none.
	ErrPrecondition = errors.New("precondition failed")
	// ErrDimension signals a degenerate matrix shape or an impossible projection size.
	ErrDimension = errors.New("dimension error")
	// ErrNonConvergence signals a numerical solver failure.
	ErrNonConvergence = errors.New("numerical non-convergence")
	// ErrInvalidDataset signals a malformed dataset or field selection.
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrUnknownAlgorithm signals an unsupported projection algorithm.
	ErrUnknownAlgorithm = errors.New("unknown projection algorithm")
)

// MissingValuesError wraps ErrPrecondition with the offending field names.
type MissingValuesError struct {
	Stage  string
	Fields []string
}

func (e *MissingValuesError) Error() string {
	return fmt.Sprintf("%s: %s requires no missing values, found in %v", ErrPrecondition.Error(), e.Stage, e.Fields)
}

func (e *MissingValuesError) Unwrap() error { return ErrPrecondition }

// NewMissingValues creates a precondition error for the given stage.
func NewMissingValues(stage string, fields []string) error {
	return &MissingValuesError{Stage: stage, Fields: fields}
}
