package parse

import (
	"strings"

	"github.com/portfolio-ledger/internal/types"
)

// ParseDirection derives a transfer direction from the direction column, or,
// when that column is empty or unrecognised, from the sign prefix of the full
// amount text ("+1.5 ETH", "-200 USDC", "0 ETH").
func ParseDirection(direction, amountFull string) types.Direction {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "positive", "+", "in":
		return types.DirectionIn
	case "negative", "-", "out":
		return types.DirectionOut
	case "neutral", "0":
		return types.DirectionNeutral
	}

	amount := strings.TrimSpace(amountFull)
	switch {
	case strings.HasPrefix(amount, "+"):
		return types.DirectionIn
	case strings.HasPrefix(amount, "-"):
		return types.DirectionOut
	case amount == "0" || strings.HasPrefix(amount, "0 "):
		return types.DirectionNeutral
	}

	return types.DirectionUnknown
}

// BestUSDValue prefers the value priced at transaction time and falls back to
// the point-in-time value. hasHistorical reports whether the historical field
// carried a positive price.
func BestUSDValue(historical, pointInTime string) (value float64, hasHistorical bool) {
	if h := ParseCurrency(historical); h > 0 {
		return h, true
	}
	return ParseCurrency(pointInTime), false
}

// ParseTokenAmount reads the magnitude of a full amount text such as
// "+1.5 ETH" or "-1,200 USDC".
func ParseTokenAmount(amountFull string) float64 {
	fields := strings.Fields(strings.TrimLeft(strings.TrimSpace(amountFull), "+-"))
	if len(fields) == 0 {
		return 0
	}
	return CurrencyDecimal(fields[0]).Abs().InexactFloat64()
}
