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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/stockledger/internal/adapter/http"
	"github.com/iho/stockledger/internal/adapter/http/handler"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/stockledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/stockledger/internal/adapter/repository/redis"
	sqliteRepo "github.com/iho/stockledger/internal/adapter/repository/sqlite"
	"github.com/iho/stockledger/internal/infrastructure/config"
	"github.com/iho/stockledger/internal/infrastructure/eventpublisher"
	"github.com/iho/stockledger/internal/infrastructure/idgen"
	"github.com/iho/stockledger/internal/infrastructure/logger"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
	"github.com/iho/stockledger/internal/infrastructure/redis"
	"github.com/iho/stockledger/internal/infrastructure/scheduler"
	"github.com/iho/stockledger/internal/infrastructure/sqlite"
	"github.com/iho/stockledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, cfg, appLogger)
	stop()

	if err != nil {
		appLogger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

// backend is the storage a server runs on.
type backend struct {
	store   usecase.Store
	cursors eventpublisher.CursorStore
	ping    handler.Pinger
	close   func()
}

type storeWithCursors interface {
	usecase.Store
	eventpublisher.CursorStore
}

func newBackend(store storeWithCursors, ping handler.Pinger, closeFn func()) *backend {
	return &backend{store: store, cursors: store, ping: ping, close: closeFn}
}

// openBackend opens the store selected by STORE_DRIVER, applying migrations.
func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		store := postgresRepo.NewStore(pool)
		return newBackend(store, store, pool.Close), nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")

		store := sqliteRepo.NewStore(db)
		return newBackend(store, store, func() { _ = store.Close() }), nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; the ledger is lost on exit")

		store := memory.New()
		return newBackend(store, handler.PingFunc(func(context.Context) error { return nil }), func() {}), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func retryConfig(cfg *config.Config) usecase.RetryConfig {
	return usecase.RetryConfig{
		MaxRetries:      int(cfg.AppendMaxRetries),
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  cfg.RetryMaxElapsed,
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	clock := usecase.SystemClock{}
	ids := idgen.NewULIDGenerator()

	agg, err := usecase.NewAggregator(be.store, be.store, cfg.CacheCapacity, clock, m, logger)
	if err != nil {
		return err
	}

	coord := usecase.NewCoordinator(
		be.store,
		agg,
		usecase.NewBackoffRetrier(retryConfig(cfg), m, logger),
		ids,
		clock,
		m,
		logger,
		usecase.CoordinatorConfig{AppendTimeout: cfg.AppendTimeout},
	)
	ledger := usecase.NewLedgerUseCase(coord, usecase.NewQueryUseCase(be.store, agg))
	reconciliation := usecase.NewReconciliationUseCase(be.store, be.store, agg, clock, logger)

	checks := map[string]handler.Pinger{"store": be.ping}

	var (
		idempotency usecase.IdempotencyStore
		publisher   eventpublisher.Publisher = eventpublisher.NewLogPublisher(logger)
		cursors                              = be.cursors
	)

	if cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()

		idempotency = redisRepo.NewIdempotencyStore(client)
		// The cursor lives next to the stream it tracks.
		publisher = redisRepo.NewStreamPublisher(client, cfg.EventStream)
		cursors = redisRepo.NewCursorStore(client)
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	workers, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.EventPublishEnabled {
		ep := eventpublisher.NewEventPublisher(eventpublisher.Config{
			Log:       be.store,
			Cursors:   cursors,
			Publisher: publisher,
			IDGen:     ids,
			Logger:    logger,
			BatchSize: cfg.EventBatchSize,
			Interval:  cfg.EventPublishInterval,
		})

		go func() {
			if err := ep.Start(workers); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}

	if cfg.PeriodCloseSchedule != "" {
		sched, err := scheduler.New(cfg.PeriodCloseSchedule, coord, logger)
		if err != nil {
			return err
		}
		sched.Start()

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunCleanup(workers, time.Minute, 10*time.Minute)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		MovementHandler:  handler.NewMovementHandler(ledger),
		PeriodHandler:    handler.NewPeriodHandler(ledger),
		QueryHandler:     handler.NewQueryHandler(ledger),
		LedgerHandler:    handler.NewLedgerHandler(reconciliation),
		HealthHandler:    handler.NewHealthHandler(checks),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      limiter,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return serve(ctx, server, cfg.HTTPShutdownTimeout, logger)
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")

	return nil
}
