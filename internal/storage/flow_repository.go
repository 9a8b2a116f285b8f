package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// FlowRepository keeps the classifications of the latest run in Postgres.
type FlowRepository struct {
	db *PostgresDB
}

// NewFlowRepository creates a new flow classification repository
func NewFlowRepository(db *PostgresDB) *FlowRepository {
	return &FlowRepository{db: db}
}

var flowClassificationColumns = []string{
	"run_id", "classified_at", "wallet_address", "transaction_hash", "token_symbol",
	"occurred_at", "usd_value", "flow_type", "paired_transaction_hash",
	"net_money_flow", "confidence_score", "counterparty", "notes",
}

// SaveRun replaces the stored classifications with run's in one
// transaction, so readers see either the old run or the new one.
func (r *FlowRepository) SaveRun(ctx context.Context, run *models.ClassificationRun) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM flow_classifications"); err != nil {
			return fmt.Errorf("failed to clear classifications: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"flow_classifications"},
			flowClassificationColumns,
			pgx.CopyFromSlice(len(run.Classifications), func(i int) ([]any, error) {
				fc := run.Classifications[i]
				return []any{
					run.RunID,
					run.ClassifiedAt,
					fc.WalletAddress,
					fc.TransactionHash,
					fc.TokenSymbol,
					fc.Timestamp.UTC(),
					fc.USDValue,
					string(fc.FlowType),
					fc.PairedTransactionHash,
					fc.NetMoneyFlow,
					fc.ConfidenceScore,
					fc.Counterparty,
					fc.Notes,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to copy classifications: %w", err)
		}
		return nil
	})
}

// ListClassifications returns the stored classifications in insertion order.
func (r *FlowRepository) ListClassifications(ctx context.Context) ([]models.FlowClassification, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT wallet_address, transaction_hash, token_symbol, occurred_at, usd_value,
			flow_type, paired_transaction_hash, net_money_flow, confidence_score,
			counterparty, notes
		FROM flow_classifications
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer rows.Close()

	var out []models.FlowClassification
	for rows.Next() {
		var (
			fc       models.FlowClassification
			flowType string
		)
		if err := rows.Scan(
			&fc.WalletAddress,
			&fc.TransactionHash,
			&fc.TokenSymbol,
			&fc.Timestamp,
			&fc.USDValue,
			&flowType,
			&fc.PairedTransactionHash,
			&fc.NetMoneyFlow,
			&fc.ConfidenceScore,
			&fc.Counterparty,
			&fc.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		fc.FlowType = types.FlowType(flowType)
		fc.Timestamp = fc.Timestamp.UTC()
		out = append(out, fc)
	}
	return out, rows.Err()
}
