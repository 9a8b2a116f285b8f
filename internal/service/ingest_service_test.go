package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ledger/internal/adapter"
	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

func TestIngestService_IngestSnapshots(t *testing.T) {
	ctx := context.Background()

	rows := []models.PositionSnapshot{
		snap("main", "ETH", day(0), 100),
		snap("main", "BTC", day(0), 200),
		snap("", "ETH", day(0), 300),
		snap("cold", "ETH", day(1), 400),
		{WalletLabel: "cold", Coin: "DAI", USDValue: 1},
		snap("cold", "BTC", day(1), 500),
		snap("cold", "USDC", day(1), 600),
		snap("cold", "DEBT", day(1), -50),
		snap("cold", "OLD", day(1), 0),
	}

	tests := []struct {
		name        string
		batchSize   int
		failures    int
		wantBatches int
		wantErr     bool
	}{
		{"single batch", 0, 0, 1, false},
		{"split into batches", 2, 0, 3, false},
		{"transient failure is retried", 2, 2, 3, false},
		{"persistent failure", 2, 10, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSnapshotRepo{failures: tt.failures}
			cache := newMockMetricsCache()
			svc := NewIngestService(repo, &mockTransactionRepo{}, cache, tt.batchSize)
			svc.SetRetryConfig(fastRetry(3))

			result, err := svc.IngestSnapshots(ctx, "portfolio.csv", rows)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CategoryDatabase, apperrors.Categorize(err).Category)
				assert.Equal(t, 0, result.Accepted)
				assert.Equal(t, 0, cache.invalidated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "portfolio.csv", result.Source)
			assert.Equal(t, 5, result.Accepted)
			assert.Equal(t, 4, result.Skipped)
			assert.Equal(t, tt.wantBatches, result.Batches)
			assert.Len(t, repo.batches, tt.wantBatches)
			assert.Len(t, repo.rows, 5)
			assert.Equal(t, 1, cache.invalidated)
		})
	}
}

func TestIngestService_NothingAccepted(t *testing.T) {
	cache := newMockMetricsCache()
	svc := NewIngestService(&mockSnapshotRepo{}, &mockTransactionRepo{}, cache, 10)

	result, err := svc.IngestSnapshots(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Equal(t, 0, cache.invalidated)
}

func TestIngestService_IngestTransactions(t *testing.T) {
	txs := []models.Transaction{
		transfer(walletA, "0x1", types.DirectionIn, 10, day(0)),
		transfer(walletA, "", types.DirectionIn, 10, day(0)),
		transfer("", "0x2", types.DirectionOut, 10, day(0)),
		transfer(walletB, "0x3", types.DirectionOut, 10, day(1)),
	}
	repo := &mockTransactionRepo{}
	svc := NewIngestService(&mockSnapshotRepo{}, repo, nil, 1)

	result, err := svc.IngestTransactions(context.Background(), "transfers.csv", txs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, repo.batches)
}

func TestIngestService_Sources(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshots", func(t *testing.T) {
		const data = "wallet_label,address,blockchain,coin,protocol,price,amount,usd_value,source_file_timestamp\n" +
			"main,0xa1,ethereum,ETH,Wallet,$2000,1,\"$2,000.00\",2025-01-01 12:00:00\n" +
			"main,0xa1,ethereum,BTC,Wallet,$1,1,$1,not a time\n"
		repo := &mockSnapshotRepo{}
		svc := NewIngestService(repo, &mockTransactionRepo{}, nil, 0)

		result, err := svc.IngestSnapshotSource(ctx, adapter.NewCSVSnapshotReader("inline", strings.NewReader(data)))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Accepted)
		assert.Equal(t, 1, result.Skipped)
		require.Len(t, repo.rows, 1)
		assert.Equal(t, 2000.0, repo.rows[0].USDValue)
	})

	t.Run("unreadable source", func(t *testing.T) {
		svc := NewIngestService(&mockSnapshotRepo{}, &mockTransactionRepo{}, nil, 0)
		_, err := svc.IngestTransactionSource(ctx, adapter.NewCSVTransactionReader("inline", strings.NewReader("")))
		require.ErrorIs(t, err, adapter.ErrEmptySource)
	})
}

func TestNonPositiveSnapshotsSkippedBeforePnL(t *testing.T) {
	const data = "wallet_label,address,blockchain,coin,protocol,price,amount,usd_value,source_file_timestamp\n" +
		"main,0xa1,ethereum,ETH,Wallet,$100,1,$100.00,2025-01-01 12:00:00\n" +
		"main,0xa1,ethereum,ETH,Wallet,$0,1,$0.00,2025-01-02 12:00:00\n" +
		"main,0xa1,ethereum,ETH,Wallet,$120,1,$120.00,2025-01-03 12:00:00\n" +
		"main,0xa1,ethereum,DEBT,Aave V3,$1,-50,-$50.00,2025-01-02 12:00:00\n"

	batch, err := adapter.NewCSVSnapshotReader("inline", strings.NewReader(data)).ReadSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	assert.Len(t, batch.Skipped, 2)

	records := CalculatePnL(batch.Rows, nil)
	require.Len(t, records, 2)
	assert.True(t, records[0].IsNewPosition)
	assert.Equal(t, "ETH", records[1].Coin)
	assert.InDelta(t, 20.0, records[1].PnLValue, 1e-9)
	assert.InDelta(t, 20.0, records[1].PnLPercentage, 1e-9)
	require.NotNil(t, records[1].PreviousValue)
	assert.Equal(t, 100.0, *records[1].PreviousValue)

	timeline := PortfolioTimeline(batch.Rows)
	require.Len(t, timeline, 2)
	assert.Equal(t, 100.0, timeline[0].Value)
	assert.Equal(t, 120.0, timeline[1].Value)
}
