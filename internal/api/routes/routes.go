package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvest-service/harvest_service/internal/api/handlers"
	"github.com/harvest-service/harvest_service/internal/api/middleware"
	"github.com/harvest-service/harvest_service/internal/infrastructure/config"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

// requestsPerMinute bounds each front-end collaborator instance
const requestsPerMinute = 300

// Handlers groups the handler sets the router mounts
type Handlers struct {
	Accounts    *handlers.AccountHandlers
	Settlements *handlers.SettlementHandlers
	Health      *handlers.HealthHandlers
}

// Setup mounts all routes on the router
func Setup(router *gin.Engine, cfg *config.Config, h Handlers, log *logger.Logger) {
	router.Use(
		middleware.RequestID(),
		middleware.RequestSizeLimit(),
		middleware.SecurityHeaders(),
		middleware.Logger(log),
		middleware.Recovery(log),
	)

	// operational endpoints, unauthenticated
	router.GET("/health", h.Health.Health)
	router.GET("/health/ready", h.Health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(
		middleware.RateLimit(requestsPerMinute),
		middleware.Authentication(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	)

	accounts := v1.Group("/accounts")
	{
		accounts.POST("", h.Accounts.CreateAccount)
		accounts.GET("/:accountId/balance", h.Accounts.GetBalance)
		accounts.PUT("/:accountId/policy", h.Accounts.UpdatePolicy)
		accounts.GET("/:accountId/transactions", h.Accounts.GetHistory)

		accounts.POST("/:accountId/withdrawals", h.Settlements.Withdraw)
		accounts.POST("/:accountId/sweeps", h.Settlements.Sweep)
		accounts.POST("/:accountId/reinvest", h.Settlements.Reinvest)
	}
}
