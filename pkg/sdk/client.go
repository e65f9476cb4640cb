package projector

import (
	"context"
	"fmt"
	"time"

	dbRedis "github.com/kailas-cloud/projector/internal/db/redis"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
	"github.com/kailas-cloud/projector/internal/repository/resultcache"
	healthuc "github.com/kailas-cloud/projector/internal/usecase/health"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
	"github.com/kailas-cloud/projector/internal/version"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = 24 * time.Hour
)

// Внутренние интерфейсы для подмены в тестах.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Bundle, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// cacheStore is the result cache backend.
type cacheStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close()
}

// Client is the projector SDK entry point. It is safe for concurrent use.
type Client struct {
	cache     cacheStore
	runner    pipelineRunner
	healthSvc healthUseCase
	params    Params
	policy    missing.Policy
	obs       *observer
}

// New creates a Client. With WithRedis or WithValkey it connects to the
// result cache; the provided context is used for the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		params:   projection.DefaultParams(),
		cacheTTL: defaultCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	policy, err := missing.ParsePolicy(cfg.missing.Method, cfg.missing.NumericFill, cfg.missing.CategoricalFill)
	if err != nil {
		return nil, fmt.Errorf("projector: default missing policy: %w", err)
	}
	for _, alg := range projection.Algorithms() {
		if err := cfg.params.Validate(alg); err != nil {
			return nil, fmt.Errorf("projector: default params: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var cache cacheStore
	if len(cfg.addrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("projector: create cache store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("projector: cache not ready: %w", err)
		}
		cache = s
	}

	return wireClient(cache, cfg, policy, obs), nil
}

func wireClient(cache cacheStore, cfg *clientConfig, policy missing.Policy, obs *observer) *Client {
	svc := pipeline.New(pipeline.WithLimits(pipeline.Limits{
		MaxSamples: cfg.maxSamples,
		MaxFields:  cfg.maxFields,
	}))

	// Pass nil interfaces (not typed nil pointers!) when the cache is disabled.
	var runner pipelineRunner = svc
	var pinger healthuc.CachePinger
	if cache != nil {
		runner = resultcache.New(svc, cache, cfg.cacheTTL, obs.cacheCounter())
		pinger = cache
	}

	return &Client{
		cache:     cache,
		runner:    runner,
		healthSvc: healthuc.New(svc, pinger, version.Version),
		params:    cfg.params,
		policy:    policy,
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Ping checks result cache connectivity. It is a no-op without a cache.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.cache == nil {
		return nil
	}
	if err = c.cache.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Project runs the pipeline on req and returns the embedding.
func (c *Client) Project(ctx context.Context, req Request) (res Projection, err error) {
	start := time.Now()
	defer func() { c.obs.observe("project", start, err) }()

	preq, err := c.toPipelineRequest(req)
	if err != nil {
		return Projection{}, fmt.Errorf("project: %w", err)
	}
	b, err := c.runner.Run(ctx, preq)
	if err != nil {
		return Projection{}, fmt.Errorf("project: %w", err)
	}
	return fromBundle(b), nil
}

// Algorithms lists the supported algorithms in catalogue order.
func (c *Client) Algorithms() []Algorithm {
	algs := projection.Algorithms()
	out := make([]Algorithm, len(algs))
	for i, a := range algs {
		out[i] = Algorithm(a.String())
	}
	return out
}

// Defaults returns the parameters applied when a request sets none.
func (c *Client) Defaults() Params { return c.params }
