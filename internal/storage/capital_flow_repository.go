package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/portfolio-ledger/internal/models"
)

// CapitalFlowRepository stores manually entered capital flows in Postgres.
type CapitalFlowRepository struct {
	db *PostgresDB
}

// NewCapitalFlowRepository creates a new capital flow repository
func NewCapitalFlowRepository(db *PostgresDB) *CapitalFlowRepository {
	return &CapitalFlowRepository{db: db}
}

// List returns every flow ordered by time.
func (r *CapitalFlowRepository) List(ctx context.Context) ([]models.CapitalFlow, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, item, token_inflow, usd_inflow, occurred_at, flow_type, created_at
		FROM capital_flows
		ORDER BY occurred_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list capital flows: %w", err)
	}
	defer rows.Close()

	var flows []models.CapitalFlow
	for rows.Next() {
		var f models.CapitalFlow
		if err := rows.Scan(&f.ID, &f.Item, &f.TokenFlow, &f.USDFlow, &f.Timestamp, &f.FlowType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capital flow: %w", err)
		}
		f.Timestamp = f.Timestamp.UTC()
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// Create inserts flow, assigning an id and creation time when unset.
func (r *CapitalFlowRepository) Create(ctx context.Context, flow *models.CapitalFlow) error {
	if flow.ID == uuid.Nil {
		flow.ID = uuid.New()
	}
	flow.CreatedAt = time.Now().UTC()

	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO capital_flows (id, item, token_inflow, usd_inflow, occurred_at, flow_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		flow.ID,
		flow.Item,
		flow.TokenFlow,
		flow.USDFlow,
		flow.Timestamp.UTC(),
		flow.FlowType,
		flow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create capital flow: %w", err)
	}
	return nil
}
