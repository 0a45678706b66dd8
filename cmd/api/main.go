package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/srms-platform/srms-backend/api/controllers"
	"github.com/srms-platform/srms-backend/api/routes"
	"github.com/srms-platform/srms-backend/internal/contactors"
	"github.com/srms-platform/srms-backend/internal/customers"
	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/cache"
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

const (
	serviceName     = "api"
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
	} else if cfg.Cache.Backend != "memory" {
		logg.Warn(context.Background(), "redis not configured, using in-process caches and locks")
		cfg.Cache.Backend = "memory"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := buildHandler(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to build api", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "addr", addr)

	if cfg.App.MetricsPort != "" && cfg.App.MetricsPort != port {
		go func() {
			if err := metrics.Serve(ctx, cfg.App.MetricsPort, registry); err != nil {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (http.Handler, error) {
	conn := dbClient.DB()

	set, err := buildCaches(cfg, redisClient, logg, metrics.NewCacheMetrics(registry))
	if err != nil {
		return nil, err
	}

	customerSvc, err := customers.NewService(customers.NewRepository(conn), set.Customers, set.CustomerPages)
	if err != nil {
		return nil, err
	}
	contactorSvc, err := contactors.NewService(contactors.NewRepository(conn), set.Contactors, set.ContactorPages)
	if err != nil {
		return nil, err
	}

	warehouseRepo := warehouses.NewWarehouseRepository(conn)
	history := warehouses.NewHistoryRepository(conn)
	warehouseSvc, err := warehouses.NewService(warehouses.ServiceParams{
		Warehouses:     warehouseRepo,
		Stock:          warehouses.NewStockRepository(conn),
		History:        history,
		Entries:        set.Warehouses,
		Pages:          set.WarehousePages,
		StatisticsDays: cfg.Inventory.StatisticsDays,
	})
	if err != nil {
		return nil, err
	}

	locker, err := buildLocker(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	inventorySvc, err := warehouses.NewInventoryService(warehouses.InventoryParams{
		Warehouses:    warehouseRepo,
		Items:         warehouses.NewItemRepository(conn),
		History:       history,
		Tx:            dbClient,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logg),
		Locker:        locker,
		Entries:       set.Inventory,
		Pages:         set.InventoryPages,
		Metrics:       metrics.NewInventoryMetrics(registry),
		Logger:        logg,
		AlertsEnabled: cfg.Inventory.AlertsEnabled,
	})
	if err != nil {
		return nil, err
	}

	params := routes.RouterParams{
		Config:       cfg,
		Logger:       logg,
		Customers:    customerSvc,
		Contactors:   contactorSvc,
		Warehouses:   warehouseSvc,
		Inventory:    inventorySvc,
		Caches:       set.Manager,
		HTTPMetrics:  metrics.NewHTTPMetrics(registry, serviceName),
		Gatherer:     registry,
		Dependencies: []controllers.Dependency{{Name: "database", Pinger: dbClient}},
	}
	// typed nil pointers must not reach the interface fields
	if redisClient != nil {
		params.Idempotency = redisClient
		params.Dependencies = append(params.Dependencies, controllers.Dependency{Name: "redis", Pinger: redisClient})
	} else {
		params.Dependencies = append(params.Dependencies, controllers.Dependency{Name: "redis"})
	}
	return routes.NewRouter(params), nil
}

func buildCaches(cfg *config.Config, client *redis.Client, logg *logger.Logger, m *metrics.CacheMetrics) (*cache.Set, error) {
	if client == nil {
		return cache.Build(cfg.Cache, nil, logg, m)
	}
	return cache.Build(cfg.Cache, client, logg, m)
}

func buildLocker(cfg *config.Config, client *redis.Client) (lock.Locker, error) {
	if client == nil {
		return lock.NewMemoryLocker(), nil
	}
	return lock.NewRedisLocker(client, "inventory", cfg.Inventory.LockTTL)
}
