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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/allocations-backend/api/routes"
	"github.com/angelmondragon/allocations-backend/internal/allocations"
	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/internal/tiers"
	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/db"
	"github.com/angelmondragon/allocations-backend/pkg/instance"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/metrics"
	"github.com/angelmondragon/allocations-backend/pkg/migrate"
	"github.com/angelmondragon/allocations-backend/pkg/redis"
	"github.com/angelmondragon/allocations-backend/pkg/reporting"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Redis is optional: without it the idempotency guard, the reporting rate
	// limit and the member cache are disabled.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "redis not configured, idempotency and member cache disabled")
	}

	var (
		reportingClient *reporting.Client
		resolver        audience.MemberResolver
	)
	if cfg.Reporting.Enabled() {
		reportingClient, err = reporting.NewClient(cfg.Reporting, reporting.WithLogger(logg))
		if err != nil {
			logg.Error(ctx, "failed to create reporting client", err)
			os.Exit(1)
		}
		resolver = reportingClient
		if redisClient != nil {
			resolver = audience.NewCachedResolver(reportingClient, redisClient, cfg.Audience.MemberCacheTTL, logg)
		}
	} else {
		logg.Warn(ctx, "reporting api not configured, source members cannot be resolved")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opMetrics := metrics.NewOperationMetrics(registry)

	conn := dbClient.DB()
	tierRepo := tiers.NewRepository(conn)
	overrideRepo := overrides.NewRepository(conn)

	allocationService, err := allocations.NewService(allocations.ServiceParams{
		Repo:   allocations.NewRepository(conn),
		Tiers:  tierRepo,
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create allocations service", err)
		os.Exit(1)
	}

	tierService, err := tiers.NewService(tiers.ServiceParams{
		Repo:      tierRepo,
		Overrides: overrideRepo,
		Resolver:  resolver,
		Tx:        dbClient,
		Logger:    logg,
		Metrics:   opMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create tiers service", err)
		os.Exit(1)
	}

	overrideService, err := overrides.NewService(overrides.ServiceParams{
		Repo:    overrideRepo,
		Tx:      dbClient,
		Logger:  logg,
		Metrics: opMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create overrides service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			allocationService,
			tierService,
			overrideService,
			resolver,
			reportingClient,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	closeErr := server.Shutdown(shutdownCtx)
	cancel()
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if closeErr != nil {
		logg.Error(ctx, "error during shutdown", closeErr)
		exitCode = 1
	}
	logg.Info(ctx, "api server stopped")
	os.Exit(exitCode)
}
