package models

import (
	"time"

	"github.com/portfolio-ledger/internal/types"
)

// FlowClassification is the verdict for exactly one Transaction.
type FlowClassification struct {
	WalletAddress         string         `json:"walletAddress"`
	TransactionHash       string         `json:"transactionHash"`
	TokenSymbol           string         `json:"tokenSymbol"`
	Timestamp             time.Time      `json:"timestamp"`
	USDValue              float64        `json:"usdValue"`
	FlowType              types.FlowType `json:"flowType"`
	PairedTransactionHash string         `json:"pairedTransactionHash,omitempty"`
	NetMoneyFlow          float64        `json:"netMoneyFlow"`
	ConfidenceScore       int            `json:"confidenceScore"`
	Counterparty          string         `json:"counterparty,omitempty"`
	Notes                 string         `json:"notes"`
}

// WalletFlowSummary rolls up the classifications of one wallet.
type WalletFlowSummary struct {
	WalletAddress       string                 `json:"walletAddress"`
	MoneyIn             float64                `json:"moneyIn"`
	MoneyOut            float64                `json:"moneyOut"`
	NetInvestment       float64                `json:"netInvestment"`
	TotalTransactions   int                    `json:"totalTransactions"`
	Counts              map[types.FlowType]int `json:"counts"`
	SwapPairs           int                    `json:"swapPairs"`
	UnknownValueCount   int                    `json:"unknownValueCount"`
	ExternalDeposits    int                    `json:"externalDeposits"`
	ExternalWithdrawals int                    `json:"externalWithdrawals"`
	ByCounterparty      map[string]float64     `json:"byCounterparty,omitempty"`
	FirstActivity       *time.Time             `json:"firstActivity,omitempty"`
	LastActivity        *time.Time             `json:"lastActivity,omitempty"`
}

// ClassificationRun is the result of classifying a batch of transactions.
type ClassificationRun struct {
	RunID           string               `json:"runId"`
	ClassifiedAt    time.Time            `json:"classifiedAt"`
	Classifications []FlowClassification `json:"classifications"`
	Summaries       []WalletFlowSummary  `json:"summaries"`
}
