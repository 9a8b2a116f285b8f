package models

import (
	"time"

	"github.com/portfolio-ledger/internal/types"
)

// Transaction is one token transfer of a tracked wallet, already reduced to a
// direction and a best-available USD value.
type Transaction struct {
	WalletAddress       string          `json:"walletAddress" ch:"wallet_address"`
	Hash                string          `json:"hash" ch:"transaction_hash"`
	Chain               string          `json:"chain" ch:"chain"`
	Direction           types.Direction `json:"direction" ch:"direction"`
	USDValue            float64         `json:"usdValue" ch:"usd_value"`
	HasHistoricalPrice  bool            `json:"hasHistoricalPrice" ch:"has_historical_price"`
	TokenSymbol         string          `json:"tokenSymbol" ch:"token_symbol"`
	TokenAmount         float64         `json:"tokenAmount" ch:"token_amount"`
	Timestamp           time.Time       `json:"timestamp" ch:"occurred_at"`
	FromAddress         string          `json:"fromAddress" ch:"from_address"`
	ToAddress           string          `json:"toAddress" ch:"to_address"`
	CounterpartyAddress string          `json:"counterpartyAddress" ch:"counterparty_address"`
	CounterpartyLabel   string          `json:"counterpartyLabel" ch:"counterparty_label"`
}
