// Package types provides common type definitions for the portfolio ledger.
package types

import "strings"

// Direction is the side of a transaction relative to the tracked wallet.
type Direction string

const (
	// DirectionIn is a transfer received by the wallet
	DirectionIn Direction = "IN"
	// DirectionOut is a transfer sent by the wallet
	DirectionOut Direction = "OUT"
	// DirectionNeutral is a zero-amount or self-cancelling transfer
	DirectionNeutral Direction = "NEUTRAL"
	// DirectionUnknown means the source fields did not determine a side
	DirectionUnknown Direction = "UNKNOWN"
)

// FlowType is the classification assigned to one transaction.
type FlowType string

const (
	FlowNeutral     FlowType = "NEUTRAL"
	FlowCrossWallet FlowType = "CROSS_WALLET"
	FlowSwapIn      FlowType = "SWAP_IN"
	FlowSwapOut     FlowType = "SWAP_OUT"
	FlowMoneyIn     FlowType = "MONEY_IN"
	FlowMoneyOut    FlowType = "MONEY_OUT"
	FlowUnknown     FlowType = "UNKNOWN"
)

// AllFlowTypes lists every flow type in reporting order.
var AllFlowTypes = []FlowType{
	FlowMoneyIn, FlowMoneyOut, FlowSwapIn, FlowSwapOut, FlowCrossWallet, FlowNeutral, FlowUnknown,
}

// IsSwap reports whether f is one leg of a swap pair.
func (f FlowType) IsSwap() bool {
	return f == FlowSwapIn || f == FlowSwapOut
}

// IsExternal reports whether f moves capital in or out of the owner's wallets.
func (f FlowType) IsExternal() bool {
	return f == FlowMoneyIn || f == FlowMoneyOut
}

// AnalysisType selects how snapshot rows are grouped into items for
// flow-adjusted analysis.
type AnalysisType string

const (
	// AnalysisAssets groups by coin
	AnalysisAssets AnalysisType = "assets"
	// AnalysisProtocolPositions groups by "COIN | Protocol", excluding plain wallet holdings
	AnalysisProtocolPositions AnalysisType = "protocol_positions"
)

// ParseAnalysisType maps a query value to an AnalysisType.
func ParseAnalysisType(s string) (AnalysisType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "assets", "asset":
		return AnalysisAssets, true
	case "protocol_positions", "protocols", "protocol":
		return AnalysisProtocolPositions, true
	default:
		return "", false
	}
}

// TimelineScope selects the grouping of a timeline.
type TimelineScope string

const (
	ScopePortfolio TimelineScope = "portfolio"
	ScopeWallets   TimelineScope = "wallets"
	ScopeAssets    TimelineScope = "assets"
)

// ParseTimelineScope maps a path value to a TimelineScope.
func ParseTimelineScope(s string) (TimelineScope, bool) {
	switch TimelineScope(strings.ToLower(s)) {
	case ScopePortfolio:
		return ScopePortfolio, true
	case ScopeWallets, "wallet":
		return ScopeWallets, true
	case ScopeAssets, "asset":
		return ScopeAssets, true
	default:
		return "", false
	}
}

// FlowSource selects which capital flows feed flow-adjusted analysis.
type FlowSource string

const (
	FlowSourceManual     FlowSource = "manual"
	FlowSourceClassified FlowSource = "classified"
	FlowSourceAll        FlowSource = "all"
)

// ParseFlowSource maps a query value to a FlowSource; empty means manual.
func ParseFlowSource(s string) (FlowSource, bool) {
	switch FlowSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", FlowSourceManual:
		return FlowSourceManual, true
	case FlowSourceClassified:
		return FlowSourceClassified, true
	case FlowSourceAll:
		return FlowSourceAll, true
	default:
		return "", false
	}
}

// AddressKind tags entries of the known-address registry.
type AddressKind string

const (
	AddressKindFriend   AddressKind = "friend"
	AddressKindExchange AddressKind = "exchange"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
