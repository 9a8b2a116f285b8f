package models

import (
	"time"

	"github.com/google/uuid"
)

// CapitalFlow is a deposit (positive USDFlow) or withdrawal (negative) of
// capital into one analysis item, entered manually or derived from
// classified transactions.
type CapitalFlow struct {
	ID        uuid.UUID `json:"id"`
	Item      string    `json:"item"`
	TokenFlow float64   `json:"tokenFlow"`
	USDFlow   float64   `json:"usdFlow"`
	Timestamp time.Time `json:"timestamp"`
	FlowType  string    `json:"flowType"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// FlowAdjustedItem is the flow-adjusted performance of one item over a period.
type FlowAdjustedItem struct {
	Item              string    `json:"item"`
	StartValue        float64   `json:"startValue"`
	EndValue          float64   `json:"endValue"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	NetFlows          float64   `json:"netFlows"`
	FlowCount         int       `json:"flowCount"`
	RawReturnPct      float64   `json:"rawReturnPct"`
	AdjustedChange    float64   `json:"adjustedChange"`
	AdjustedReturnPct float64   `json:"adjustedReturnPct"`
	AdjustedAPRPct    float64   `json:"adjustedAprPct"`
	FlowImpactPct     float64   `json:"flowImpactPct"`
}

// FlowAdjustedReport covers every requested item plus their total.
type FlowAdjustedReport struct {
	PeriodDays int                `json:"periodDays"`
	Items      []FlowAdjustedItem `json:"items"`
	Total      *FlowAdjustedItem  `json:"total,omitempty"`
	Skipped    []string           `json:"skipped,omitempty"`
}
