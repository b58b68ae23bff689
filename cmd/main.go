package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/api/handlers"
	"github.com/harvest-service/harvest_service/internal/api/routes"
	"github.com/harvest-service/harvest_service/internal/domain/services"
	"github.com/harvest-service/harvest_service/internal/domain/services/accrual"
	"github.com/harvest-service/harvest_service/internal/domain/services/lockguard"
	"github.com/harvest-service/harvest_service/internal/infrastructure/adapters"
	"github.com/harvest-service/harvest_service/internal/infrastructure/adapters/chainnode"
	"github.com/harvest-service/harvest_service/internal/infrastructure/config"
	"github.com/harvest-service/harvest_service/internal/infrastructure/database"
	"github.com/harvest-service/harvest_service/internal/infrastructure/repositories"
	"github.com/harvest-service/harvest_service/internal/workers/sweeper"
	"github.com/harvest-service/harvest_service/pkg/graceful"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
	"github.com/harvest-service/harvest_service/pkg/retry"
	"github.com/harvest-service/harvest_service/pkg/secrets"
	"github.com/harvest-service/harvest_service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.Environment)
	defer appLogger.Sync()

	appLogger.Info("starting harvest service",
		"environment", cfg.Environment,
		"port", cfg.Server.Port)

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, appLogger.Zap())
	if err != nil {
		appLogger.Fatal("failed to initialize tracing", "error", err)
	}
	defer shutdownTracer(ctx)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		appLogger.Fatal("failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		appLogger.Fatal("failed to run migrations", "error", err)
	}
	appLogger.Info("database migrations applied")

	// The treasury signing key is resolved through the secrets
	// provider, never read from the config file itself.
	secretsProvider := secrets.NewCachedProvider(secrets.NewEnvProvider(), 5*time.Minute)
	treasuryKey, err := secretsProvider.GetSecret(ctx, cfg.Gateway.TreasuryKeyRef)
	if err != nil {
		appLogger.Fatal("failed to resolve treasury key", "ref", cfg.Gateway.TreasuryKeyRef, "error", err)
	}

	var guard lockguard.Guard
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("failed to connect to redis", "error", err)
		}
		hostname, _ := os.Hostname()
		guard = lockguard.NewRedisGuard(redisClient, cfg.Engine.LockTimeout(), hostname)
		appLogger.Info("using redis settlement guard", "owner", hostname)
	} else {
		guard = lockguard.NewMemoryGuard(cfg.Engine.LockTimeout())
		appLogger.Info("using in-memory settlement guard")
	}

	chainClient := chainnode.NewClient(chainnode.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		APIKey:         cfg.Gateway.APIKey,
		Timeout:        time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		RequestsPerSec: float64(cfg.Gateway.RequestsPerSec),
	}, appLogger)
	chain := chainnode.NewAdapter(chainClient)

	accountRepo := repositories.NewAccountRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	store := repositories.NewSettlementStore(accountRepo)

	model := accrual.NewModel(cfg.Engine.GrowthPeriodDays)

	minDeposit, err := decimal.NewFromString(cfg.Engine.MinDeposit)
	if err != nil {
		appLogger.Fatal("invalid minimum deposit", "value", cfg.Engine.MinDeposit, "error", err)
	}
	minWithdrawal, err := decimal.NewFromString(cfg.Engine.MinWithdrawal)
	if err != nil {
		appLogger.Fatal("invalid minimum withdrawal", "value", cfg.Engine.MinWithdrawal, "error", err)
	}

	var notifier services.Notifier = adapters.NoopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = adapters.NewWebhookNotifier(appLogger, adapters.NotifierConfig{
			CallbackURL: cfg.Notify.WebhookURL,
			Timeout:     time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
		})
	}

	var alerter services.Alerter
	if cfg.Alert.Provider == "sendgrid" {
		alerter, err = adapters.NewEmailAlerter(appLogger, adapters.AlerterConfig{
			APIKey:    cfg.Alert.APIKey,
			FromEmail: cfg.Alert.FromEmail,
			FromName:  cfg.Alert.FromName,
			ToEmail:   cfg.Alert.ToEmail,
		})
		if err != nil {
			appLogger.Fatal("failed to initialize email alerter", "error", err)
		}
	} else {
		alerter = adapters.NewLogAlerter(appLogger)
	}

	retryPolicy := retry.Policy{
		MaxRetries:     cfg.Engine.RetryMaxAttempts,
		InitialBackoff: time.Duration(cfg.Engine.RetryBackoffMillis) * time.Millisecond,
		Multiplier:     cfg.Engine.RetryMultiplier,
		Jitter:         true,
	}

	accountService := services.NewAccountService(
		accountRepo, txRepo, chain, model, cfg.Security.KeyPassphrase, appLogger)

	settlementService := services.NewSettlementService(
		store, txRepo, chain, guard, notifier, alerter, model,
		services.SettlementConfig{
			MinWithdrawal:   minWithdrawal,
			TreasuryAddress: cfg.Gateway.TreasuryAddress,
			TreasuryKey:     treasuryKey,
			ConfirmPoll:     cfg.Engine.ConfirmPollInterval(),
			ConfirmTimeout:  cfg.Engine.ConfirmTimeout(),
		}, appLogger)

	referralService := services.NewReferralService(
		store, txRepo, chain,
		services.ReferralConfig{
			Rate:            decimal.NewFromFloat(cfg.Engine.ReferralRate),
			TreasuryAddress: cfg.Gateway.TreasuryAddress,
			TreasuryKey:     treasuryKey,
			ConfirmPoll:     cfg.Engine.ConfirmPollInterval(),
			ConfirmTimeout:  cfg.Engine.ConfirmTimeout(),
			RetryPolicy:     retryPolicy,
		}, appLogger)

	depositService := services.NewDepositService(
		store, chain, guard, referralService, notifier, alerter,
		services.DepositConfig{
			MinDeposit:      minDeposit,
			TreasuryAddress: cfg.Gateway.TreasuryAddress,
			KeyPassphrase:   cfg.Security.KeyPassphrase,
			ConfirmPoll:     cfg.Engine.ConfirmPollInterval(),
			ConfirmTimeout:  cfg.Engine.ConfirmTimeout(),
		}, appLogger)

	reconciliationService := services.NewReconciliationService(
		store, txRepo, chain, guard, model,
		services.ReconciliationConfig{
			// A pending intent younger than a full confirmation window
			// plus slack may still be in flight; leave it alone.
			MinAge: cfg.Engine.ConfirmTimeout() + 5*time.Minute,
		}, appLogger)

	sweepWorker := sweeper.NewWorker(
		accountRepo, accountService, settlementService, reconciliationService, notifier,
		sweeper.Config{
			BalanceRefreshSchedule: cfg.Engine.BalanceRefreshSchedule,
			AutoWithdrawSchedule:   cfg.Engine.AutoWithdrawSchedule,
			AutoReinvestSchedule:   cfg.Engine.AutoReinvestSchedule,
			ReminderSchedule:       cfg.Engine.ReminderSchedule,
			ReconcileSchedule:      cfg.Engine.ReconcileSchedule,
			Concurrency:            cfg.Engine.SweepConcurrency,
		}, appLogger)
	if err := sweepWorker.Start(); err != nil {
		appLogger.Fatal("failed to start sweep worker", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.Setup(router, cfg, routes.Handlers{
		Accounts:    handlers.NewAccountHandlers(accountService, appLogger),
		Settlements: handlers.NewSettlementHandlers(settlementService, depositService, appLogger),
		Health:      handlers.NewHealthHandlers(db, appLogger),
	}, appLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go reportPoolStats(db)

	go func() {
		appLogger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("server failed", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db, 30*time.Second, appLogger)
	shutdown.Register(sweepWorker)
	shutdown.WaitForShutdown()
}

// reportPoolStats feeds the database pool gauges every 30 seconds
func reportPoolStats(db *sqlx.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := db.Stats()
		metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
		metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
		metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	}
}
