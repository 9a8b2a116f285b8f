package service

import (
	"context"

	"github.com/portfolio-ledger/internal/adapter"
	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/retry"
)

const defaultIngestBatchSize = 5000

// IngestResult counts what one ingest call stored.
type IngestResult struct {
	Source   string `json:"source"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
	Batches  int    `json:"batches"`
}

// IngestService appends snapshot and transaction rows in batches.
type IngestService struct {
	snapshots    SnapshotRepository
	transactions TransactionRepository
	cache        MetricsCache
	batchSize    int
	retry        *retry.RetryConfig
	logger       *logging.Logger
}

// NewIngestService creates an ingest service. A non-positive batchSize uses
// the default of 5000 rows.
func NewIngestService(snapshots SnapshotRepository, transactions TransactionRepository, cache MetricsCache, batchSize int) *IngestService {
	if batchSize <= 0 {
		batchSize = defaultIngestBatchSize
	}
	return &IngestService{
		snapshots:    snapshots,
		transactions: transactions,
		cache:        cache,
		batchSize:    batchSize,
		retry:        retry.DefaultRetryConfig(),
		logger:       logging.GetGlobalLogger().WithComponent("ingest_service"),
	}
}

// SetRetryConfig replaces the backoff used for batch writes.
func (s *IngestService) SetRetryConfig(cfg *retry.RetryConfig) {
	s.retry = cfg
}

// IngestSnapshots stores rows. Rows without a wallet label, timestamp or
// positive value are skipped; the rest are written in batches, each retried on transient errors.
func (s *IngestService) IngestSnapshots(ctx context.Context, source string, rows []models.PositionSnapshot) (*IngestResult, error) {
	result := &IngestResult{Source: source}

	valid := rows[:0:0]
	for _, r := range rows {
		if r.WalletLabel == "" || r.Timestamp.IsZero() || r.USDValue <= 0 {
			result.Skipped++
			continue
		}
		valid = append(valid, r)
	}

	err := s.inBatches(ctx, len(valid), func(ctx context.Context, lo, hi int) error {
		return s.snapshots.InsertBatch(ctx, valid[lo:hi])
	}, result)
	if err != nil {
		return result, err
	}
	s.afterWrite(ctx, "snapshots", result)
	return result, nil
}

// IngestTransactions stores transfer rows. Rows without a wallet address,
// hash or timestamp are skipped.
func (s *IngestService) IngestTransactions(ctx context.Context, source string, rows []models.Transaction) (*IngestResult, error) {
	result := &IngestResult{Source: source}

	valid := rows[:0:0]
	for _, r := range rows {
		if r.WalletAddress == "" || r.Hash == "" || r.Timestamp.IsZero() {
			result.Skipped++
			continue
		}
		valid = append(valid, r)
	}

	err := s.inBatches(ctx, len(valid), func(ctx context.Context, lo, hi int) error {
		return s.transactions.InsertBatch(ctx, valid[lo:hi])
	}, result)
	if err != nil {
		return result, err
	}
	s.afterWrite(ctx, "transactions", result)
	return result, nil
}

// IngestSnapshotSource reads src and stores its rows; unreadable rows count
// as skipped and are logged.
func (s *IngestService) IngestSnapshotSource(ctx context.Context, src adapter.SnapshotSource) (*IngestResult, error) {
	batch, err := src.ReadSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	s.logRejected(batch.Skipped)
	result, err := s.IngestSnapshots(ctx, batch.Source, batch.Rows)
	if result != nil {
		result.Skipped += len(batch.Skipped)
	}
	return result, err
}

// IngestTransactionSource reads src and stores its rows.
func (s *IngestService) IngestTransactionSource(ctx context.Context, src adapter.TransactionSource) (*IngestResult, error) {
	batch, err := src.ReadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	s.logRejected(batch.Skipped)
	result, err := s.IngestTransactions(ctx, batch.Source, batch.Rows)
	if result != nil {
		result.Skipped += len(batch.Skipped)
	}
	return result, err
}

func (s *IngestService) inBatches(ctx context.Context, n int, write func(ctx context.Context, lo, hi int) error, result *IngestResult) error {
	for lo := 0; lo < n; lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > n {
			hi = n
		}
		err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
			return write(ctx, lo, hi)
		})
		if err != nil {
			return apperrors.NewDatabaseError("insert batch", err)
		}
		result.Accepted += hi - lo
		result.Batches++
	}
	return nil
}

func (s *IngestService) afterWrite(ctx context.Context, kind string, result *IngestResult) {
	if result.Accepted > 0 && s.cache != nil {
		if err := s.cache.InvalidateMetrics(ctx); err != nil {
			s.logger.WithError(err).Warn("metrics cache invalidation failed")
		}
	}
	s.logger.WithFields(map[string]interface{}{
		"kind":     kind,
		"source":   result.Source,
		"accepted": result.Accepted,
		"skipped":  result.Skipped,
		"batches":  result.Batches,
	}).Info("ingest completed")
}

func (s *IngestService) logRejected(rejected []*apperrors.CategorizedError) {
	for _, e := range rejected {
		s.logger.WithError(e.Cause).WithFields(e.Details).Warn(e.Message)
	}
}
