package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	httpAdapter "github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/http/handler"
	postgresRepo "github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/repository/postgres"
	redisRepo "github.com/BCJdevelopment/balance-shares-protocol/internal/adapter/repository/redis"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/config"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/eventpublisher"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/logger"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/metrics"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/postgres"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/infrastructure/redis"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup loggers
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	shareRepo := postgresRepo.NewShareRepository(pool)
	checkpointRepo := postgresRepo.NewCheckpointRepository(pool)
	periodRepo := postgresRepo.NewPeriodRepository(pool)
	eventRepo := postgresRepo.NewEventRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Initialize use cases
	retrier := postgresRepo.NewRetrier()
	shareUC := usecase.NewShareUseCase(txManager, shareRepo, checkpointRepo, periodRepo, eventRepo, idGen, cache).WithRetrier(retrier)
	depositUC := usecase.NewDepositUseCase(txManager, shareRepo, checkpointRepo, eventRepo, idGen, cache, m).WithRetrier(retrier)
	withdrawalUC := usecase.NewWithdrawalUseCase(txManager, shareRepo, checkpointRepo, periodRepo, eventRepo, idGen, m).WithRetrier(retrier)
	eventUC := usecase.NewEventUseCase(eventRepo)

	// Initialize handlers
	shareHandler := handler.NewShareHandler(shareUC)
	depositHandler := handler.NewDepositHandler(depositUC)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalUC)
	eventHandler := handler.NewEventHandler(eventUC)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ShareHandler:      shareHandler,
		DepositHandler:    depositHandler,
		WithdrawalHandler: withdrawalHandler,
		EventHandler:      eventHandler,
		HealthHandler:     healthHandler,
		IdempotencyStore:  idempotencyStore,
		Logger:            appLogger,
		RateLimit:         cfg.RateLimitPerSecond,
		RateBurst:         cfg.RateLimitBurst,
	})

	// Start event publisher worker
	publisherCtx, stopPublisher := context.WithCancel(ctx)
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		EventRepo: eventRepo,
		Publisher: eventpublisher.NewLogPublisher(slog.Default()),
		Logger:    slog.Default(),
		BatchSize: cfg.EventPublishBatchSize,
		Interval:  cfg.EventPublishInterval,
	})
	go func() {
		if err := publisher.Start(publisherCtx); err != nil && publisherCtx.Err() == nil {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopPublisher()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
