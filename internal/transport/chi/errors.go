package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/logger"
)

// ErrorCode is the machine-readable error class of an API response.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeRequestTooLarge  ErrorCode = "request_too_large"
	CodeInvalidDataset   ErrorCode = "invalid_dataset"
	CodeConfiguration    ErrorCode = "configuration_error"
	CodeUnknownAlgorithm ErrorCode = "unknown_algorithm"
	CodeMissingValues    ErrorCode = "missing_values"
	CodeDimension        ErrorCode = "dimension_error"
	CodeNonConvergence   ErrorCode = "non_convergence"
	CodeTimeout          ErrorCode = "timeout"
	CodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Fields lists the offending fields of a missing_values error.
	Fields []string `json:"fields,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		missingValuesHandler,
		sentinelHandler(domain.ErrPrecondition, http.StatusUnprocessableEntity, CodeMissingValues),
		sentinelHandler(domain.ErrUnknownAlgorithm, http.StatusBadRequest, CodeUnknownAlgorithm),
		sentinelHandler(domain.ErrConfiguration, http.StatusBadRequest, CodeConfiguration),
		sentinelHandler(domain.ErrInvalidDataset, http.StatusBadRequest, CodeInvalidDataset),
		sentinelHandler(domain.ErrDimension, http.StatusUnprocessableEntity, CodeDimension),
		sentinelHandler(domain.ErrNonConvergence, http.StatusUnprocessableEntity, CodeNonConvergence),
		sentinelHandler(context.DeadlineExceeded, http.StatusServiceUnavailable, CodeTimeout),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, CodeTimeout),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

var clientSentinels = []error{
	domain.ErrConfiguration,
	domain.ErrPrecondition,
	domain.ErrDimension,
	domain.ErrNonConvergence,
	domain.ErrInvalidDataset,
	domain.ErrUnknownAlgorithm,
}

// safeDomainMessage returns the error text for domain errors, whose messages
// are built from request content only, and a generic message otherwise.
func safeDomainMessage(err error) string {
	for _, s := range clientSentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "projection did not finish in time"
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// missingValuesHandler reports which fields still hold gaps.
func missingValuesHandler(w http.ResponseWriter, err error, msg string) bool {
	var mve *domain.MissingValuesError
	if !errors.As(err, &mve) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code:    CodeMissingValues,
		Message: msg,
		Fields:  mve.Fields,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
