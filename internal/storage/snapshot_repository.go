package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/portfolio-ledger/internal/models"
)

const snapshotColumns = "wallet_label, address, blockchain, coin, protocol, token_name, amount, price, usd_value, captured_at, source_file"

// SnapshotRepository stores position snapshots in ClickHouse. The table is
// append-only; re-ingesting a file adds rows rather than replacing them.
type SnapshotRepository struct {
	db *ClickHouseDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *ClickHouseDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// snapshotQuery renders the SELECT for filter with its positional args.
// Rows without a positive value are never returned.
func snapshotQuery(filter models.SnapshotFilter) (string, []interface{}) {
	var (
		where = []string{"usd_value > 0"}
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		where = append(where, cond)
		args = append(args, v)
	}
	if filter.WalletLabel != "" {
		add("wallet_label = ?", filter.WalletLabel)
	}
	if filter.Coin != "" {
		add("coin = ?", filter.Coin)
	}
	if filter.Blockchain != "" {
		add("blockchain = ?", filter.Blockchain)
	}
	if filter.Protocol != "" {
		add("protocol = ?", filter.Protocol)
	}
	if !filter.From.IsZero() {
		add("captured_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("captured_at <= ?", filter.To)
	}

	query := "SELECT " + snapshotColumns + " FROM position_snapshots WHERE " + strings.Join(where, " AND ")
	query += " ORDER BY captured_at, wallet_label, coin"
	return query, args
}

// Query returns the snapshots matching filter ordered by capture time.
func (r *SnapshotRepository) Query(ctx context.Context, filter models.SnapshotFilter) ([]models.PositionSnapshot, error) {
	query, args := snapshotQuery(filter)

	var rows []models.PositionSnapshot
	if err := r.db.Conn().Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	return rows, nil
}

// InsertBatch appends rows in one ClickHouse batch.
func (r *SnapshotRepository) InsertBatch(ctx context.Context, rows []models.PositionSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, "INSERT INTO position_snapshots ("+snapshotColumns+")")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, s := range rows {
		if err := batch.Append(
			s.WalletLabel,
			s.Address,
			s.Blockchain,
			s.Coin,
			s.Protocol,
			s.TokenName,
			s.Amount,
			s.Price,
			s.USDValue,
			s.Timestamp.UTC(),
			s.SourceFile,
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
