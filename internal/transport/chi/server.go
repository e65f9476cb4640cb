// Package chi is the HTTP surface of the projector: JSON DTOs, handlers,
// error mapping and middleware on a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/logger"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
	healthuc "github.com/kailas-cloud/projector/internal/usecase/health"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

// projector runs the pipeline, optionally behind the result cache.
type projector interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Bundle, error)
}

// healthChecker reports component health.
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Defaults are applied to request members the client leaves out.
type Defaults struct {
	Params  projection.Params
	Missing missing.Policy
}

// Limits bound a single HTTP request.
type Limits struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server serves the projection API.
type Server struct {
	projections   projector
	health        healthChecker
	defaults      Defaults
	limits        Limits
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(projections projector, health healthChecker, defaults Defaults, limits Limits) *Server {
	return &Server{
		projections:   projections,
		health:        health,
		defaults:      defaults,
		limits:        limits,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/v1/projections", s.CreateProjection)
	r.Get("/v1/algorithms", s.ListAlgorithms)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// CreateProjection handles POST /v1/projections.
func (s *Server) CreateProjection(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxBodyBytes)
	}

	req := ProjectionRequest{Params: s.defaults.Params}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	preq, err := req.toDomain(s.defaults.Missing)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.limits.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	bundle, err := s.projections.Run(ctx, preq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	logger.FromContext(ctx).Info("Projection computed",
		zap.String("algorithm", bundle.Algorithm.String()),
		zap.Int("samples", bundle.Embedding.Rows()),
		zap.Int("encoded_columns", len(bundle.EncodedColumns)),
		zap.Duration("elapsed", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, bundleToResponse(bundle))
}

// ListAlgorithms handles GET /v1/algorithms.
func (s *Server) ListAlgorithms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogue(s.defaults.Params, s.defaults.Missing))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: report.Version,
		Checks:  checks,
	})
}
