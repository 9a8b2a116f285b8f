// Package main provides the API server entry point for the portfolio ledger.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-ledger/internal/api"
	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger().WithComponent("server")
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	analysis, err := config.LoadAnalysisFile(cfg.AnalysisFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load analysis file")
	}

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	// Redis only backs the metrics cache; run without it when it is down
	var metricsCache service.MetricsCache
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, metrics will not be cached")
	} else {
		defer redis.Close()
		metricsCache = storage.NewMetricsCache(redis, cfg.Cache.MetricsTTL)
	}

	logger.Info("Database connections established")

	// Initialize repositories
	snapshotRepo := storage.NewSnapshotRepository(clickhouse)
	txRepo := storage.NewTransactionRepository(clickhouse)
	walletRepo := storage.NewWalletRepository(postgres)
	capitalRepo := storage.NewCapitalFlowRepository(postgres)
	flowRepo := storage.NewFlowRepository(postgres)

	// Initialize services
	portfolioService := service.NewPortfolioService(
		snapshotRepo,
		capitalRepo,
		flowRepo,
		metricsCache,
		analysis,
		cfg.Analytics,
	)
	flowService := service.NewFlowService(
		walletRepo,
		txRepo,
		flowRepo,
		metricsCache,
		analysis,
		cfg.Wallets,
		cfg.Analytics,
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := flowService.RegisterWallets(startupCtx); err != nil {
		logger.WithError(err).Warn("Failed to register configured wallets")
	}
	cancelStartup()

	logger.Info("Services initialized")

	healthChecks := map[string]api.HealthCheck{
		"postgres":   postgres.Ping,
		"clickhouse": clickhouse.Ping,
	}
	if redis != nil {
		healthChecks["redis"] = redis.Ping
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, portfolioService, flowService, healthChecks)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"wallets": len(cfg.Wallets),
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
