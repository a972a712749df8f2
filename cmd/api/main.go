package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/config"
	httpHandler "github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/handler"
	pgStorage "github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/storage/postgres"
	redisStorage "github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/storage/redis"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/service"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Cash Exchange Prototype")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Apply schema migrations
	if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	requestRepo := pgStorage.NewRequestRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	clock := service.NewSystemClock()
	codeGen := service.NewRandomCodeGenerator()
	notifier := service.NewWebhookNotifier(userRepo, &http.Client{Timeout: 10 * time.Second}, clock, log)

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc)
	exchangeSvc := service.NewExchangeService(requestRepo, userRepo, clock, cfg.Exchange, log)
	matchingSvc := service.NewMatchingService(requestRepo, clock, cfg.Exchange, log)
	acceptanceSvc := service.NewAcceptanceService(requestRepo, clock, codeGen, notifier, log)
	settlementSvc := service.NewSettlementService(requestRepo, userRepo, txRepo, transactor, clock, notifier, log)
	walletSvc := service.NewWalletService(userRepo, txRepo, transactor, log)

	// Background sweeper: expires stale requests and prunes old terminal ones.
	sweeper := service.NewSweeper(requestRepo, clock, cfg.Exchange.SweepInterval, cfg.Exchange.Retention, log)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperStopped := sweeper.Run(sweepCtx)

	// Initialize rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		ExchangeSvc:    exchangeSvc,
		MatchingSvc:    matchingSvc,
		AcceptanceSvc:  acceptanceSvc,
		SettlementSvc:  settlementSvc,
		WalletSvc:      walletSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the sweeper after the server so in-flight requests still see
	// consistent expiry handling.
	stopSweeper()
	<-sweeperStopped

	log.Info().Msg("Server exited")
}
