package parse

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/portfolio-ledger/internal/types"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"1234.56", 1234.56},
		{"$ 12", 12},
		{"-$5.25", -5.25},
		{"", 0},
		{"None", 0},
		{"nan", 0},
		{"twelve", 0},
		{"$1.2.3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCurrency(tt.in); got != tt.want {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, 0.5, ParseAmount(" 0.5 "))
	assert.Equal(t, 1500.0, ParseAmount("1.5e3"))
	assert.Equal(t, 0.0, ParseAmount("1,000"))
	assert.Equal(t, 0.0, ParseAmount("None"))
}

func TestCurrencyDecimalSumsExactly(t *testing.T) {
	sum := CurrencyDecimal("$0.10").Add(CurrencyDecimal("$0.20"))
	assert.True(t, sum.Equal(CurrencyDecimal("0.30")))
}

func TestParseCurrencyNeverNaN(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any text parses to a finite number", prop.ForAll(
		func(s string) bool {
			v := ParseCurrency(s)
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		},
		gen.AnyString(),
	))

	properties.Property("formatted dollars round trip", prop.ForAll(
		func(cents int64) bool {
			whole, frac := cents/100, cents%100
			text := "$" + formatThousands(whole) + "." + twoDigits(frac)
			return math.Abs(ParseCurrency(text)-float64(cents)/100) < 1e-9
		},
		gen.Int64Range(0, 1e12),
	))

	properties.TestingRun(t)
}

func formatThousands(n int64) string {
	s := []byte{}
	digits := []byte(itoa(n))
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			s = append(s, ',')
		}
		s = append(s, d)
	}
	return string(s)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + itoa(n)
	}
	return itoa(n)
}

func TestParseSnapshotTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"batch pattern", "07-03-2025_14-05-09", time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC), true},
		{"file name", "07-03-2025_14-05-09.csv", time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC), true},
		{"with directory", "portfolio_data/07-03-2025_14-05-09.csv", time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC), true},
		{"iso fallback", "2025-03-07 14:05:09", time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC), true},
		{"date only fallback", "2025-03-07", time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), true},
		{"garbage", "yesterday-ish", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSnapshotTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseSnapshotTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSnapshotTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 7, 7, 17, 8, 0, 0, time.UTC)

	got, ok := ParseTimestamp("Jul 07, 2025 5:08PM")
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTimestamp("1751908080")
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	got, ok = ParseTimestamp("1751908080000")
	assert.True(t, ok)
	assert.True(t, got.Equal(want))

	_, ok = ParseTimestamp("None")
	assert.False(t, ok)
}

func TestFloorDays(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{23 * time.Hour, 0},
		{24 * time.Hour, 1},
		{5*24*time.Hour + 23*time.Hour, 5},
		{-time.Hour, -1},
		{-48 * time.Hour, -2},
	}

	for _, tt := range tests {
		if got := FloorDays(tt.d); got != tt.want {
			t.Errorf("FloorDays(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		direction string
		amount    string
		want      types.Direction
	}{
		{"positive", "", types.DirectionIn},
		{" IN ", "", types.DirectionIn},
		{"+", "", types.DirectionIn},
		{"negative", "+5 ETH", types.DirectionOut},
		{"out", "", types.DirectionOut},
		{"neutral", "", types.DirectionNeutral},
		{"0", "", types.DirectionNeutral},
		{"", "+1.5 ETH", types.DirectionIn},
		{"", "-200 USDC", types.DirectionOut},
		{"", "0 ETH", types.DirectionNeutral},
		{"", "0", types.DirectionNeutral},
		{"sideways", "0.5 ETH", types.DirectionUnknown},
		{"", "", types.DirectionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.direction+"/"+tt.amount, func(t *testing.T) {
			if got := ParseDirection(tt.direction, tt.amount); got != tt.want {
				t.Errorf("ParseDirection(%q, %q) = %s, want %s", tt.direction, tt.amount, got, tt.want)
			}
		})
	}
}

func TestBestUSDValue(t *testing.T) {
	v, hist := BestUSDValue("$1,000", "$900")
	assert.Equal(t, 1000.0, v)
	assert.True(t, hist)

	v, hist = BestUSDValue("0", "$900")
	assert.Equal(t, 900.0, v)
	assert.False(t, hist)

	v, hist = BestUSDValue("", "")
	assert.Equal(t, 0.0, v)
	assert.False(t, hist)
}
