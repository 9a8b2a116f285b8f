package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

const transactionColumns = `wallet_address, transaction_hash, chain, direction, usd_value,
	has_historical_price, token_symbol, token_amount, occurred_at, from_address, to_address,
	counterparty_address, counterparty_label`

// TransactionRepository stores wallet transfers in ClickHouse.
type TransactionRepository struct {
	db *ClickHouseDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *ClickHouseDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByWallets returns the transfers of wallets ordered by time. Wallet
// addresses are compared case-insensitively.
func (r *TransactionRepository) ListByWallets(ctx context.Context, wallets []string) ([]models.Transaction, error) {
	if len(wallets) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(wallets))
	for i, w := range wallets {
		lowered[i] = strings.ToLower(w)
	}

	query := "SELECT " + transactionColumns + ` FROM wallet_transactions
		WHERE lower(wallet_address) IN (?)
		ORDER BY occurred_at, transaction_hash`

	rows, err := r.db.Conn().Query(ctx, query, lowered)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			tx        models.Transaction
			direction string
		)
		if err := rows.Scan(
			&tx.WalletAddress,
			&tx.Hash,
			&tx.Chain,
			&direction,
			&tx.USDValue,
			&tx.HasHistoricalPrice,
			&tx.TokenSymbol,
			&tx.TokenAmount,
			&tx.Timestamp,
			&tx.FromAddress,
			&tx.ToAddress,
			&tx.CounterpartyAddress,
			&tx.CounterpartyLabel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Direction = types.Direction(direction)
		tx.Timestamp = tx.Timestamp.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// InsertBatch appends rows in one ClickHouse batch.
func (r *TransactionRepository) InsertBatch(ctx context.Context, rows []models.Transaction) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, "INSERT INTO wallet_transactions ("+transactionColumns+")")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, tx := range rows {
		if err := batch.Append(
			tx.WalletAddress,
			tx.Hash,
			tx.Chain,
			string(tx.Direction),
			tx.USDValue,
			tx.HasHistoricalPrice,
			tx.TokenSymbol,
			tx.TokenAmount,
			tx.Timestamp.UTC(),
			tx.FromAddress,
			tx.ToAddress,
			tx.CounterpartyAddress,
			tx.CounterpartyLabel,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
