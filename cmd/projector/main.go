package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/config"
	dbRedis "github.com/kailas-cloud/projector/internal/db/redis"
	logpkg "github.com/kailas-cloud/projector/internal/logger"
	"github.com/kailas-cloud/projector/internal/metrics"
	"github.com/kailas-cloud/projector/internal/repository/resultcache"
	chiTransport "github.com/kailas-cloud/projector/internal/transport/chi"
	healthuc "github.com/kailas-cloud/projector/internal/usecase/health"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
	"github.com/kailas-cloud/projector/internal/version"
)

// projectionRunner is satisfied by the pipeline service and its cached decorator.
type projectionRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Bundle, error)
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting projector API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()
	metrics.BuildInfo.WithLabelValues(version.Version, version.Commit).Set(1)

	policy, err := cfg.Missing.Policy()
	if err != nil {
		logger.Fatal("Invalid missing-data policy", zap.Error(err))
	}

	svc := pipeline.New(
		pipeline.WithLimits(pipeline.Limits{
			MaxSamples: cfg.Limits.MaxSamples,
			MaxFields:  cfg.Limits.MaxFields,
		}),
		pipeline.WithMetrics(metrics.StageDuration, metrics.ProjectionsTotal),
	)

	// Pass a nil interface (not a typed nil pointer!) when the cache is disabled.
	var runner projectionRunner = svc
	var cachePinger healthuc.CachePinger
	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), readiness); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err), zap.Strings("addrs", cfg.Cache.Addrs))
		}
		logger.Info("Connected to result cache", zap.Strings("addrs", cfg.Cache.Addrs))

		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		runner = resultcache.New(svc, store, ttl, metrics.ResultCacheTotal)
		cachePinger = store
	}

	healthSvc := healthuc.New(svc, cachePinger, version.Version)

	server := chiTransport.NewServer(runner, healthSvc,
		chiTransport.Defaults{Params: cfg.Projection.Defaults(), Missing: policy},
		chiTransport.Limits{
			MaxBodyBytes:   int64(cfg.HTTP.MaxBodyMB) << 20,
			RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
		},
	)
	r := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
