package models

import "time"

// PnLRecord is the change of one position between two consecutive snapshots.
// The first snapshot of a position yields a record with IsNewPosition set and
// no PreviousValue.
type PnLRecord struct {
	PositionKey         string    `json:"positionKey"`
	WalletLabel         string    `json:"walletLabel"`
	Address             string    `json:"address"`
	Blockchain          string    `json:"blockchain"`
	Coin                string    `json:"coin"`
	Protocol            string    `json:"protocol"`
	Timestamp           time.Time `json:"timestamp"`
	USDValue            float64   `json:"usdValue"`
	PnLValue            float64   `json:"pnlValue"`
	PnLPercentage       float64   `json:"pnlPercentage"`
	PreviousValue       *float64  `json:"previousValue"`
	DaysSinceLastUpdate int       `json:"daysSinceLastUpdate"`
	IsNewPosition       bool      `json:"isNewPosition"`
	UpdateSequence      int       `json:"updateSequence"`
}

// PnLSummary aggregates the non-initial records of a PnL run.
type PnLSummary struct {
	TotalPnL         float64            `json:"totalPnl"`
	PositionsWithPnL int                `json:"positionsWithPnl"`
	ProfitablePnL    int                `json:"profitablePnl"`
	WinRate          float64            `json:"winRate"`
	PnLByWallet      map[string]float64 `json:"pnlByWallet"`
	NewPositionCount int                `json:"newPositionCount"`
	TrackedPositions int                `json:"trackedPositions"`
}
