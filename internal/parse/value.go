// Package parse turns the loosely formatted text of snapshot and transaction
// exports into numbers, instants and directions. Nothing here returns an
// error: malformed input degrades to a zero value or ok=false.
package parse

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyCleaner = strings.NewReplacer("$", "", ",", "", " ", "")

// CurrencyDecimal parses text such as "$1,234.56". Empty, "None", "nan" and
// unparseable input yield zero.
func CurrencyDecimal(text string) decimal.Decimal {
	return AmountDecimal(currencyCleaner.Replace(text))
}

// AmountDecimal parses a plain numeric string with the same zero fallback.
func AmountDecimal(text string) decimal.Decimal {
	s := strings.TrimSpace(text)
	if isNullText(s) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCurrency is CurrencyDecimal as a float64.
func ParseCurrency(text string) float64 {
	return CurrencyDecimal(text).InexactFloat64()
}

// ParseAmount is AmountDecimal as a float64.
func ParseAmount(text string) float64 {
	return AmountDecimal(text).InexactFloat64()
}

func isNullText(s string) bool {
	switch strings.ToLower(s) {
	case "", "none", "null", "nan", "n/a":
		return true
	}
	return false
}
