package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the cache is down; projections are still computed.
	Degraded Status = "degraded"
	// Unhealthy indicates the projection engine itself fails.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const checkTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status  Status
	Version string
	Checks  map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	engine  EngineChecker
	cache   CachePinger
	version string
}

// New creates a Service. cache is nil when result caching is disabled.
func New(engine EngineChecker, cache CachePinger, version string) *Service {
	return &Service{engine: engine, cache: cache, version: version}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["engine"] = run(ctx, s.engine.SelfCheck)
	if s.cache != nil {
		checks["cache"] = run(ctx, s.cache.Ping)
	}

	status := Healthy
	switch {
	case checks["engine"] == CheckError:
		status = Unhealthy
	case checks["cache"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Version: s.version, Checks: checks}
}

func run(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
