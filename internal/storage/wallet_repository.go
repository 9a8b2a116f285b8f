package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// WalletRepository handles the owner's wallets and the counterparty registry
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// List returns every own wallet ordered by label.
func (r *WalletRepository) List(ctx context.Context) ([]models.Wallet, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT address, label, created_at
		FROM wallets
		ORDER BY label, address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.Address, &w.Label, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Upsert inserts wallet or updates its label.
func (r *WalletRepository) Upsert(ctx context.Context, wallet *models.Wallet) error {
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO wallets (address, label, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET label = EXCLUDED.label
	`, strings.ToLower(wallet.Address), wallet.Label, wallet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert wallet: %w", err)
	}
	return nil
}

// ListKnownAddresses returns the friend and exchange registry.
func (r *WalletRepository) ListKnownAddresses(ctx context.Context) ([]models.KnownAddress, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT address, name, kind
		FROM known_addresses
		ORDER BY kind, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list known addresses: %w", err)
	}
	defer rows.Close()

	var known []models.KnownAddress
	for rows.Next() {
		var (
			k    models.KnownAddress
			kind string
		)
		if err := rows.Scan(&k.Address, &k.Name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan known address: %w", err)
		}
		k.Kind = types.AddressKind(kind)
		known = append(known, k)
	}
	return known, rows.Err()
}

// UpsertKnownAddress records or renames a counterparty.
func (r *WalletRepository) UpsertKnownAddress(ctx context.Context, known *models.KnownAddress) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO known_addresses (address, name, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind
	`, strings.ToLower(known.Address), known.Name, string(known.Kind))
	if err != nil {
		return fmt.Errorf("failed to upsert known address: %w", err)
	}
	return nil
}
