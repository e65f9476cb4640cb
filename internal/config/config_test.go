package config

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/projector/internal/domain"
	"github.com/kailas-cloud/projector/internal/preprocess/missing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8050}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_CacheEnabledWithoutAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing cache addrs")
	}
	if err.Error() != "cache.addrs is required when the cache is enabled" {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestValidate_CacheDisabledWithoutAddrs(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidMissingPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Missing.Method = "interpolate"

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidate_InvalidProjectionParams(t *testing.T) {
	cfg := validConfig()
	cfg.Projection.TSNE.Perplexity = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative perplexity")
	}
}

func TestValidate_NegativeLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Limits.MaxSamples = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative limits")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8050 {
		t.Errorf("expected Port=8050, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutSec != 300 {
		t.Errorf("expected WriteTimeoutSec=300, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.RequestTimeoutSec >= cfg.HTTP.WriteTimeoutSec {
		t.Error("request timeout must expire before the write timeout")
	}
	if cfg.Cache.TTLSec != 86400 {
		t.Errorf("expected TTLSec=86400, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Projection.PCA.MaxComponents != 10 {
		t.Errorf("expected MaxComponents=10, got %d", cfg.Projection.PCA.MaxComponents)
	}
	if cfg.Projection.TSNE.Perplexity != 10 {
		t.Errorf("expected Perplexity=10, got %v", cfg.Projection.TSNE.Perplexity)
	}
	if cfg.Projection.UMAP.MinDist != 0.1 {
		t.Errorf("expected MinDist=0.1, got %v", cfg.Projection.UMAP.MinDist)
	}

	p, err := cfg.Missing.Policy()
	if err != nil {
		t.Fatalf("default policy: %v", err)
	}
	if p != missing.DefaultPolicy() {
		t.Errorf("expected default policy, got %+v", p)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 9000, ReadTimeoutSec: 5, WriteTimeoutSec: 60},
		Cache: CacheConfig{TTLSec: 60},
	}
	cfg.Projection.UMAP.NNeighbors = 25
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Cache.TTLSec != 60 {
		t.Errorf("expected TTLSec=60, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Projection.UMAP.NNeighbors != 25 {
		t.Errorf("expected NNeighbors=25, got %d", cfg.Projection.UMAP.NNeighbors)
	}
}

func TestParse_YAML(t *testing.T) {
	t.Setenv("PROJECTOR_TEST_KEY", "secret")

	cfg, err := Parse([]byte(`
http:
  port: 8080
auth:
  api_keys: ["${PROJECTOR_TEST_KEY}", "${PROJECTOR_UNSET_KEY:-fallback}"]
missing:
  method: drop_samples
projection:
  seed: 42
  tsne:
    perplexity: 30
    n_runs: 3
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[0] != "secret" || cfg.Auth.APIKeys[1] != "fallback" {
		t.Errorf("unexpected api keys: %v", cfg.Auth.APIKeys)
	}
	p, err := cfg.Missing.Policy()
	if err != nil || p.Method != missing.DropSamples || p.NumericFill != missing.Mean {
		t.Errorf("unexpected policy %+v (%v)", p, err)
	}

	params := cfg.Projection.Defaults()
	if params.TSNE.Perplexity != 30 || params.TSNE.NRuns != 3 {
		t.Errorf("unexpected t-SNE params: %+v", params.TSNE)
	}
	if params.TSNE.MaxIter != 1000 {
		t.Errorf("expected default MaxIter=1000, got %d", params.TSNE.MaxIter)
	}
	if params.MDS.Seed != 42 || params.TSNE.Seed != 42 || params.UMAP.Seed != 42 {
		t.Errorf("seed not applied: %+v", params)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Parse([]byte("cache:\n  enabled: true\n")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CACHE_ENABLED", "")
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8050 {
		t.Errorf("expected Port=8050, got %d", cfg.HTTP.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nonexistent"); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestMustLoad_PanicsOnMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustLoad to panic")
		}
	}()
	MustLoad("nonexistent")
}

func TestMustLoad_LocalConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CACHE_ENABLED", "")
	if cfg := MustLoad("local"); cfg.HTTP.Port != 8050 {
		t.Errorf("expected Port=8050, got %d", cfg.HTTP.Port)
	}
}
