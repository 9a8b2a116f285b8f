package service

import (
	"math"
	"time"

	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// SwapMatcher finds the incoming leg of a swap whose outgoing leg is
// stream[out]. stream is one wallet's transfers in chronological order;
// consumed reports positions that are classified or whose hash is consumed.
type SwapMatcher interface {
	FindPair(stream []models.Transaction, out int, consumed func(int) bool) (in int, ok bool)
}

// GreedySwapMatcher takes the first unconsumed incoming transfer inside the
// window whose value is similar. It does not look for a better match later
// in the window.
type GreedySwapMatcher struct {
	Window             time.Duration
	ValueTolerance     float64
	ZeroValueTolerance float64
}

// NewGreedySwapMatcher builds a matcher from the analytics thresholds.
func NewGreedySwapMatcher(cfg config.AnalyticsConfig) *GreedySwapMatcher {
	return &GreedySwapMatcher{
		Window:             cfg.SwapWindow,
		ValueTolerance:     cfg.ValueTolerance,
		ZeroValueTolerance: cfg.ZeroValueTolerance,
	}
}

func (m *GreedySwapMatcher) FindPair(stream []models.Transaction, out int, consumed func(int) bool) (int, bool) {
	outTx := stream[out]
	deadline := outTx.Timestamp.Add(m.Window)

	for j := out + 1; j < len(stream); j++ {
		if consumed(j) {
			continue
		}
		cand := stream[j]
		if cand.Timestamp.After(deadline) {
			break
		}
		if cand.Direction != types.DirectionIn {
			continue
		}
		if ValuesAreSimilar(outTx.USDValue, cand.USDValue, m.ValueTolerance, m.ZeroValueTolerance) {
			return j, true
		}
	}
	return -1, false
}

// ValuesAreSimilar compares two USD values. Two zeros match; a single zero
// (an unpriced token) matches when the other side is under zeroTolerance;
// otherwise the difference relative to the mean must be within tolerance.
func ValuesAreSimilar(a, b, tolerance, zeroTolerance float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	if a == 0 || b == 0 {
		return math.Abs(a-b) < zeroTolerance
	}
	return relativeDiff(a, b) <= tolerance
}

func relativeDiff(a, b float64) float64 {
	return math.Abs(a-b) / ((a + b) / 2)
}

// CalculateConfidenceScore rates a swap pair: 50, plus up to 30 for time
// proximity, up to 25 for value agreement when both sides are priced, plus
// 15 when both values come from historical prices, capped at 95.
func CalculateConfidenceScore(out, in models.Transaction) int {
	score := 50

	gap := in.Timestamp.Sub(out.Timestamp)
	switch {
	case gap <= time.Minute:
		score += 30
	case gap <= 5*time.Minute:
		score += 20
	case gap <= 15*time.Minute:
		score += 10
	}

	if out.USDValue > 0 && in.USDValue > 0 {
		switch diff := relativeDiff(out.USDValue, in.USDValue); {
		case diff <= 0.02:
			score += 25
		case diff <= 0.05:
			score += 15
		case diff <= 0.15:
			score += 10
		}
	}

	if out.HasHistoricalPrice && in.HasHistoricalPrice {
		score += 15
	}

	if score > 95 {
		score = 95
	}
	return score
}

// swapValue is the USD value reported for a pair: the priced side when the
// other is unpriced, else the mean.
func swapValue(out, in float64) float64 {
	switch {
	case out == 0 && in > 0:
		return in
	case in == 0 && out > 0:
		return out
	default:
		return (out + in) / 2
	}
}
