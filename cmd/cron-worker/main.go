package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srms-platform/srms-backend/internal/cron"
	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/lock"
	"github.com/srms-platform/srms-backend/pkg/instance"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/migrate"
	"github.com/srms-platform/srms-backend/pkg/outbox"
	"github.com/srms-platform/srms-backend/pkg/redis"
)

const serviceName = "cron-worker"

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	locker, err := lock.NewRedisLocker(redisClient, serviceName, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       locker.For(lockID(cfg.App.Env)),
		Metrics:    metrics.NewCronMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"interval": cfg.Cron.Interval.String(),
		"jobs":     registry.Names(),
	})

	go func() {
		if err := metrics.Serve(ctx, cfg.App.MetricsPort, prometheus.DefaultGatherer); err != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "cron_worker.starting")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron_worker.shutdown")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	registry := cron.NewRegistry()

	retention, err := cron.NewOutboxRetentionJob(cron.RetentionJobParams{
		Logger:         logg,
		DB:             dbClient,
		Outbox:         outboxRepo,
		DeadLetters:    outbox.NewDeadLetters(conn),
		OutboxDays:     cfg.Cron.OutboxRetentionDays,
		DeadLetterDays: cfg.Cron.DeadLetterRetentionDays,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(retention); err != nil {
		return nil, err
	}

	if !cfg.Cron.LowStockDigest {
		return registry, nil
	}
	digest, err := cron.NewLowStockDigestJob(cron.LowStockDigestJobParams{
		Logger:     logg,
		DB:         dbClient,
		Stock:      warehouses.NewStockRepository(conn),
		Warehouses: warehouses.NewWarehouseRepository(conn),
		Outbox:     outbox.NewService(outboxRepo, logg),
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(digest); err != nil {
		return nil, err
	}
	return registry, nil
}

func lockID(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cycle:%s", env)
}
