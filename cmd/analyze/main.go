// Package main classifies wallet transfers and reports portfolio metrics
// without starting the API server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
)

func main() {
	var (
		classify = flag.Bool("classify", true, "Reclassify transfers before reporting")
		source   = flag.String("source", "all", "Capital flows for the flow-adjusted report: manual, classified, all (classified and all need -type assets)")
		analysis = flag.String("type", "assets", "Flow-adjusted grouping: assets, protocol_positions")
		period   = flag.Int("period", 0, "Flow-adjusted period in days; 0 uses the configured default")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("analyze")

	flowSource, ok := types.ParseFlowSource(*source)
	if !ok {
		logger.Fatalf("unknown flow source %q", *source)
	}
	analysisType, ok := types.ParseAnalysisType(*analysis)
	if !ok {
		logger.Fatalf("unknown analysis type %q", *analysis)
	}

	analysisFile, err := config.LoadAnalysisFile(cfg.AnalysisFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load analysis file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	var metricsCache service.MetricsCache
	if redis, err := storage.NewRedisCache(&cfg.Database.Redis); err == nil {
		defer redis.Close()
		metricsCache = storage.NewMetricsCache(redis, cfg.Cache.MetricsTTL)
	}

	flowRepo := storage.NewFlowRepository(postgres)
	flows := service.NewFlowService(
		storage.NewWalletRepository(postgres),
		storage.NewTransactionRepository(clickhouse),
		flowRepo,
		metricsCache,
		analysisFile,
		cfg.Wallets,
		cfg.Analytics,
	)
	portfolio := service.NewPortfolioService(
		storage.NewSnapshotRepository(clickhouse),
		storage.NewCapitalFlowRepository(postgres),
		flowRepo,
		metricsCache,
		analysisFile,
		cfg.Analytics,
	)

	var summaries []models.WalletFlowSummary
	if *classify {
		if err := flows.RegisterWallets(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to register wallets")
		}
		run, err := flows.ClassifyAll(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Classification failed")
		}
		logger.WithFields(map[string]interface{}{
			"run_id":          run.RunID,
			"classifications": len(run.Classifications),
		}).Info("Classification run stored")
		summaries = run.Summaries
	} else if summaries, err = flows.GetSummaries(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to load flow summaries")
	}

	for _, s := range summaries {
		logger.WithFields(map[string]interface{}{
			"wallet":         s.WalletAddress,
			"money_in":       s.MoneyIn,
			"money_out":      s.MoneyOut,
			"net_investment": s.NetInvestment,
			"swap_pairs":     s.SwapPairs,
			"transactions":   s.TotalTransactions,
		}).Info("Wallet flows")
	}

	metrics, err := portfolio.GetPerformance(ctx, types.ScopePortfolio, "")
	if err != nil {
		logger.WithError(err).Warn("Portfolio metrics unavailable")
	} else {
		fields := map[string]interface{}{
			"current_value":    metrics.CurrentValue,
			"max_drawdown_pct": metrics.MaxDrawdownPct,
			"volatility_pct":   metrics.VolatilityPct,
			"sharpe":           metrics.SharpeRatio,
			"points":           metrics.Points,
		}
		for name, w := range metrics.Windows {
			fields["return_"+name+"_pct"] = w.ReturnPct
		}
		logger.WithFields(fields).Info("Portfolio performance")
	}

	report, err := portfolio.GetFlowAdjusted(ctx, service.FlowAdjustedInput{
		Analysis:   analysisType,
		PeriodDays: *period,
		Source:     flowSource,
	})
	if err != nil {
		logger.WithError(err).Fatal("Flow-adjusted report failed")
	}
	for _, item := range report.Items {
		logger.WithFields(map[string]interface{}{
			"item":                item.Item,
			"start_value":         item.StartValue,
			"end_value":           item.EndValue,
			"net_flows":           item.NetFlows,
			"raw_return_pct":      item.RawReturnPct,
			"adjusted_return_pct": item.AdjustedReturnPct,
			"adjusted_apr_pct":    item.AdjustedAPRPct,
		}).Info("Flow-adjusted item")
	}
	if len(report.Skipped) > 0 {
		logger.WithField("skipped", report.Skipped).Warn("Items without enough history")
	}
}
