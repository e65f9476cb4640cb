package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/projector/internal/preprocess/missing"
	"github.com/kailas-cloud/projector/internal/projection"
)

// Config holds the projector API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Limits     LimitsConfig     `yaml:"limits"`
	Missing    MissingConfig    `yaml:"missing"`
	Projection ProjectionConfig `yaml:"projection"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	MaxBodyMB         int `yaml:"max_body_mb"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LimitsConfig bounds accepted datasets. Zero disables a limit.
type LimitsConfig struct {
	MaxSamples int `yaml:"max_samples"`
	MaxFields  int `yaml:"max_fields"`
}

// MissingConfig holds the default missing-data policy, applied when a request
// does not name one.
type MissingConfig struct {
	Method          string `yaml:"method"`
	NumericFill     string `yaml:"numeric_fill"`
	CategoricalFill string `yaml:"categorical_fill"`
}

// Policy parses the configured policy.
func (m MissingConfig) Policy() (missing.Policy, error) {
	p, err := missing.ParsePolicy(m.Method, m.NumericFill, m.CategoricalFill)
	if err != nil {
		return missing.Policy{}, fmt.Errorf("missing: %w", err)
	}
	return p, nil
}

// ProjectionConfig holds the default algorithm parameters. Seed is applied to
// every stochastic algorithm.
type ProjectionConfig struct {
	Seed              uint64 `yaml:"seed"`
	projection.Params `yaml:",inline"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	orDefault(&c.HTTP.Port, 8050)
	orDefault(&c.HTTP.ReadTimeoutSec, 30)
	orDefault(&c.HTTP.WriteTimeoutSec, 300)
	orDefault(&c.HTTP.ShutdownSec, 30)
	orDefault(&c.HTTP.RequestTimeoutSec, 280)
	orDefault(&c.HTTP.MaxBodyMB, 64)

	orDefault(&c.Cache.TTLSec, 86400)
	orDefault(&c.Cache.ReadinessTimeout, 10)

	def := projection.DefaultParams()
	p := &c.Projection.Params
	orDefault(&p.PCA.MaxComponents, def.PCA.MaxComponents)
	orDefault(&p.MDS.NInit, def.MDS.NInit)
	orDefault(&p.MDS.MaxIter, def.MDS.MaxIter)
	orDefault(&p.MDS.Eps, def.MDS.Eps)
	orDefault(&p.TSNE.PCADims, def.TSNE.PCADims)
	orDefault(&p.TSNE.Perplexity, def.TSNE.Perplexity)
	orDefault(&p.TSNE.LearningRate, def.TSNE.LearningRate)
	orDefault(&p.TSNE.MaxIter, def.TSNE.MaxIter)
	orDefault(&p.TSNE.NRuns, def.TSNE.NRuns)
	orDefault(&p.UMAP.PCADims, def.UMAP.PCADims)
	orDefault(&p.UMAP.NNeighbors, def.UMAP.NNeighbors)
	orDefault(&p.UMAP.MinDist, def.UMAP.MinDist)
}

// Defaults returns the configured algorithm parameters with the seed applied.
func (p ProjectionConfig) Defaults() projection.Params {
	return p.Params.WithSeed(p.Seed)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return errors.New("cache.addrs is required when the cache is enabled")
	}
	if c.Limits.MaxSamples < 0 || c.Limits.MaxFields < 0 {
		return errors.New("limits must not be negative")
	}
	if _, err := c.Missing.Policy(); err != nil {
		return err
	}
	for _, alg := range projection.Algorithms() {
		if err := c.Projection.Params.Validate(alg); err != nil {
			return fmt.Errorf("projection.%s: %w", alg, err)
		}
	}
	return nil
}

func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
