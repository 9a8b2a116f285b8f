package models

import (
	"time"

	"github.com/portfolio-ledger/internal/types"
)

// Wallet is one of the owner's wallets.
type Wallet struct {
	Address   string    `json:"address"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// KnownAddress is an entry of the counterparty registry.
type KnownAddress struct {
	Address string            `json:"address"`
	Name    string            `json:"name"`
	Kind    types.AddressKind `json:"kind"`
}
