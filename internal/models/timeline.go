package models

import "time"

// TimelinePoint is the aggregate of one group at one timestamp. Group is empty
// for the portfolio timeline.
type TimelinePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Group     string    `json:"group,omitempty"`
	Value     float64   `json:"value"`
	Amount    float64   `json:"amount,omitempty"`
	MeanPrice float64   `json:"meanPrice,omitempty"`
	Rows      int       `json:"rows"`
}

// SeriesPoint is one (timestamp, value) pair of a single series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Breakdown is the split of the latest snapshot run.
type Breakdown struct {
	Timestamp     time.Time          `json:"timestamp"`
	TotalValue    float64            `json:"totalValue"`
	Positions     int                `json:"positions"`
	ByWallet      map[string]float64 `json:"byWallet"`
	ByBlockchain  map[string]float64 `json:"byBlockchain"`
	ByProtocol    map[string]float64 `json:"byProtocol"`
	ByCoin        map[string]float64 `json:"byCoin"`
	Concentration Concentration      `json:"concentration"`
}

// Concentration describes how much of the portfolio sits in few holdings.
type Concentration struct {
	Top5SharePct     float64 `json:"top5SharePct"`
	Top10SharePct    float64 `json:"top10SharePct"`
	LargestWallet    string  `json:"largestWallet"`
	LargestWalletPct float64 `json:"largestWalletPct"`
	LargestChain     string  `json:"largestChain"`
	LargestChainPct  float64 `json:"largestChainPct"`
}
