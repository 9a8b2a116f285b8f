package service

import (
	"context"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// Repository interfaces for dependency injection

// SnapshotRepository reads and appends position snapshots.
type SnapshotRepository interface {
	Query(ctx context.Context, filter models.SnapshotFilter) ([]models.PositionSnapshot, error)
	InsertBatch(ctx context.Context, rows []models.PositionSnapshot) error
}

// TransactionRepository reads and appends wallet transfers.
type TransactionRepository interface {
	ListByWallets(ctx context.Context, wallets []string) ([]models.Transaction, error)
	InsertBatch(ctx context.Context, rows []models.Transaction) error
}

// WalletRepository stores own wallets and the counterparty registry.
type WalletRepository interface {
	List(ctx context.Context) ([]models.Wallet, error)
	Upsert(ctx context.Context, wallet *models.Wallet) error
	ListKnownAddresses(ctx context.Context) ([]models.KnownAddress, error)
	UpsertKnownAddress(ctx context.Context, known *models.KnownAddress) error
}

// CapitalFlowRepository stores manually entered capital flows.
type CapitalFlowRepository interface {
	List(ctx context.Context) ([]models.CapitalFlow, error)
	Create(ctx context.Context, flow *models.CapitalFlow) error
}

// FlowRepository stores the latest classification of every transfer.
type FlowRepository interface {
	SaveRun(ctx context.Context, run *models.ClassificationRun) error
	ListClassifications(ctx context.Context) ([]models.FlowClassification, error)
}

// MetricsCache holds computed performance metrics for a short time.
type MetricsCache interface {
	GetMetrics(ctx context.Context, scope types.TimelineScope, key string) (*models.PerformanceMetrics, bool, error)
	SetMetrics(ctx context.Context, scope types.TimelineScope, key string, metrics *models.PerformanceMetrics) error
	InvalidateMetrics(ctx context.Context) error
}
