package projector

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string
	cacheTTL time.Duration

	maxSamples int
	maxFields  int
	params     Params
	missing    MissingPolicy

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis enables the result cache on a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey enables the result cache on a Valkey instance.
func WithValkey(addr, password string) Option {
	return WithRedis(addr, password)
}

// WithCacheTTL sets how long cached projections live. Default: 24h.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithLimits bounds accepted datasets. Zero disables a limit.
func WithLimits(maxSamples, maxFields int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxSamples = maxSamples
		c.maxFields = maxFields
	})
}

// WithParams replaces the default algorithm parameters.
func WithParams(p Params) Option {
	return optionFunc(func(c *clientConfig) {
		c.params = p
	})
}

// WithMissingPolicy sets the policy used when a request names none.
// Default: fill_values with mean and common_unknown.
func WithMissingPolicy(p MissingPolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.missing = p
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and
// cache hits) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
