package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/srms-platform/srms-backend/api/controllers"
	"github.com/srms-platform/srms-backend/internal/gateway"
	"github.com/srms-platform/srms-backend/pkg/auth"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/instance"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/redis"
)

const (
	serviceName     = "gateway"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields: map[string]any{
			"env":      cfg.App.Env,
			"instance": instance.ID(serviceName),
		},
	})

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to configure token verification", err)
		os.Exit(1)
	}

	routes, err := gateway.RoutesFromConfig(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "invalid gateway routes", err)
		os.Exit(1)
	}

	limiter, err := buildLimiter(cfg.Gateway, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to configure rate limiting", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gw, err := gateway.New(gateway.Params{
		Routes:          routes,
		Verifier:        verifier,
		Limiter:         limiter,
		UpstreamTimeout: cfg.Gateway.UpstreamTimeout,
		Breaker: gateway.BreakerSettings{
			Failures:         cfg.Gateway.BreakerFailures,
			OpenFor:          cfg.Gateway.BreakerOpenFor,
			HalfOpenRequests: cfg.Gateway.BreakerHalfOpen,
		},
		Metrics: metrics.NewGatewayMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build gateway", err)
		os.Exit(1)
	}

	deps := []controllers.Dependency{{Name: "redis"}}
	if redisClient != nil {
		deps[0].Pinger = redisClient
	}

	addr := ":" + cfg.Gateway.Port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":       addr,
		"algorithm":  verifier.Algorithm(),
		"rate_limit": limiterName(limiter),
	})

	server := &http.Server{
		Addr: addr,
		Handler: gateway.NewRouter(gateway.RouterParams{
			Config:       cfg,
			Logger:       logg,
			Gateway:      gw,
			HTTPMetrics:  metrics.NewHTTPMetrics(registry, serviceName),
			Gatherer:     registry,
			Dependencies: deps,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting gateway")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "gateway stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "gateway shutdown failed", err)
		}
		logg.Info(ctx, "gateway stopped")
	}
}

// buildLimiter uses the shared Redis window when Redis is available and the
// in-process token bucket otherwise.
func buildLimiter(cfg config.GatewayConfig, client *redis.Client) (gateway.Limiter, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.RateLimitBackend))
	if backend == "off" || cfg.RateLimit <= 0 {
		return nil, nil
	}
	if backend == "redis" && client != nil {
		return gateway.NewRedisLimiter(client, cfg.RateLimit, cfg.RateLimitWindow)
	}
	return gateway.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow, cfg.RateLimitBurst)
}

func limiterName(l gateway.Limiter) string {
	switch l.(type) {
	case *gateway.RedisLimiter:
		return "redis"
	case *gateway.MemoryLimiter:
		return "memory"
	}
	return "off"
}
