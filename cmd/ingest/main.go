// Package main loads snapshot and transaction CSV exports into ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/portfolio-ledger/internal/adapter"
	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/service"
	"github.com/portfolio-ledger/internal/storage"
)

func main() {
	var (
		snapshots    = flag.String("snapshots", "", "Comma separated snapshot CSV files or glob patterns")
		transactions = flag.String("transactions", "", "Comma separated transaction CSV files or glob patterns")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("ingest")

	snapshotFiles, err := expand(*snapshots)
	if err != nil {
		logger.WithError(err).Fatal("Invalid -snapshots pattern")
	}
	transactionFiles, err := expand(*transactions)
	if err != nil {
		logger.WithError(err).Fatal("Invalid -transactions pattern")
	}
	if len(snapshotFiles) == 0 && len(transactionFiles) == 0 {
		logger.Fatal("Nothing to ingest: pass -snapshots and/or -transactions")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	// new rows make cached metrics stale
	var metricsCache service.MetricsCache
	if redis, err := storage.NewRedisCache(&cfg.Database.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, cached metrics will not be invalidated")
	} else {
		defer redis.Close()
		metricsCache = storage.NewMetricsCache(redis, cfg.Cache.MetricsTTL)
	}

	ingest := service.NewIngestService(
		storage.NewSnapshotRepository(clickhouse),
		storage.NewTransactionRepository(clickhouse),
		metricsCache,
		cfg.Ingest.BatchSize,
	)

	failed := 0
	for _, path := range snapshotFiles {
		result, err := ingest.IngestSnapshotSource(ctx, adapter.NewCSVSnapshotFile(path))
		if err != nil {
			logger.WithError(err).WithField("file", path).Error("Snapshot ingest failed")
			failed++
			continue
		}
		logResult(logger, "snapshots", result)
	}
	for _, path := range transactionFiles {
		result, err := ingest.IngestTransactionSource(ctx, adapter.NewCSVTransactionFile(path))
		if err != nil {
			logger.WithError(err).WithField("file", path).Error("Transaction ingest failed")
			failed++
			continue
		}
		logResult(logger, "transactions", result)
	}

	if failed > 0 {
		logger.Fatalf("%d of %d files failed", failed, len(snapshotFiles)+len(transactionFiles))
	}
}

func logResult(logger *logging.Logger, kind string, result *service.IngestResult) {
	logger.WithFields(map[string]interface{}{
		"kind":     kind,
		"source":   result.Source,
		"accepted": result.Accepted,
		"skipped":  result.Skipped,
		"batches":  result.Batches,
	}).Info("File ingested")
}

// expand resolves a comma separated list of paths and glob patterns. A
// pattern that matches nothing is an error.
func expand(list string) ([]string, error) {
	var files []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		matches, err := filepath.Glob(part)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", part)
		}
		files = append(files, matches...)
	}
	return files, nil
}
