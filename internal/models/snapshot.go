package models

import "time"

// PositionSnapshot is one observed holding of one wallet at one collection
// run. Rows are append-only.
type PositionSnapshot struct {
	WalletLabel string    `json:"walletLabel" ch:"wallet_label"`
	Address     string    `json:"address" ch:"address"`
	Blockchain  string    `json:"blockchain" ch:"blockchain"`
	Coin        string    `json:"coin" ch:"coin"`
	Protocol    string    `json:"protocol" ch:"protocol"`
	TokenName   string    `json:"tokenName,omitempty" ch:"token_name"`
	Amount      float64   `json:"amount" ch:"amount"`
	Price       float64   `json:"price" ch:"price"`
	USDValue    float64   `json:"usdValue" ch:"usd_value"`
	Timestamp   time.Time `json:"timestamp" ch:"captured_at"`
	SourceFile  string    `json:"sourceFile,omitempty" ch:"source_file"`
}

// SnapshotFilter narrows snapshot queries. Zero fields match everything.
type SnapshotFilter struct {
	WalletLabel string
	Coin        string
	Blockchain  string
	Protocol    string
	From        time.Time
	To          time.Time
}

// Matches reports whether s passes every set field of f.
func (f SnapshotFilter) Matches(s PositionSnapshot) bool {
	if f.WalletLabel != "" && s.WalletLabel != f.WalletLabel {
		return false
	}
	if f.Coin != "" && s.Coin != f.Coin {
		return false
	}
	if f.Blockchain != "" && s.Blockchain != f.Blockchain {
		return false
	}
	if f.Protocol != "" && s.Protocol != f.Protocol {
		return false
	}
	if !f.From.IsZero() && s.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Timestamp.After(f.To) {
		return false
	}
	return true
}
