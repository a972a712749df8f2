package handler

import (
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/middleware"
	redisStore "github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/storage/redis"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	ExchangeSvc    ports.ExchangeService
	MatchingSvc    ports.MatchingService
	AcceptanceSvc  ports.AcceptanceService
	SettlementSvc  ports.SettlementService
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	exchangeHandler := NewExchangeHandler(deps.ExchangeSvc, deps.AcceptanceSvc, deps.SettlementSvc)
	discoveryHandler := NewDiscoveryHandler(deps.MatchingSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)

	exchanges := v1.Group("/exchanges", jwtAuth)
	{
		exchanges.POST("", rl("mutation"), exchangeHandler.Create)
		exchanges.GET("", rl("discovery"), exchangeHandler.List)
		exchanges.GET("/active", rl("discovery"), exchangeHandler.GetActive)
		exchanges.GET("/nearby", rl("discovery"), discoveryHandler.Nearby)
		exchanges.GET("/matches", rl("discovery"), discoveryHandler.Matches)
		exchanges.GET("/:id", rl("discovery"), exchangeHandler.Get)
		exchanges.POST("/:id/accept", rl("mutation"), exchangeHandler.Accept)
		exchanges.POST("/:id/complete", rl("exchange_complete"), exchangeHandler.Complete)
		exchanges.POST("/:id/cancel", rl("mutation"), exchangeHandler.Cancel)
	}

	users := v1.Group("/users/me", jwtAuth)
	{
		users.GET("", rl("discovery"), walletHandler.GetProfile)
		users.PUT("/webhook", rl("mutation"), walletHandler.UpdateWebhook)
	}

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/balance", rl("discovery"), walletHandler.GetBalance)
		wallets.POST("/topup", rl("mutation"), walletHandler.Topup)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.GET("", rl("discovery"), walletHandler.ListTransactions)
	}

	return r
}
