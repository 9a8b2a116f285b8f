package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/parse"
)

const (
	daysPerYear     = 365.25
	tradingDays     = 365.0
	defaultRiskFree = 0.02
)

// CalculateAPY annualises the growth from start to end over days onto a
// 365.25-day year. Non-positive start or days, and any non-finite result,
// give 0.
func CalculateAPY(start, end, days float64) float64 {
	if start <= 0 || days <= 0 {
		return 0
	}
	apy := (math.Pow(end/start, daysPerYear/days) - 1) * 100
	if !isFinite(apy) {
		return 0
	}
	return apy
}

// periodReturns are the simple returns between consecutive values, skipping
// steps whose base is not positive.
func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			returns = append(returns, (values[i]-values[i-1])/values[i-1])
		}
	}
	return returns
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(xs []float64) float64 {
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// CalculateVolatility is the population standard deviation of period returns,
// in percent. Fewer than two usable returns give 0.
func CalculateVolatility(values []float64) float64 {
	returns := periodReturns(values)
	if len(returns) < 2 {
		return 0
	}
	return populationStdDev(returns) * 100
}

// CalculateMaxDrawdown is the largest fall from a running peak, in percent.
func CalculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	peak := values[0]
	var worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

// CalculateSharpeRatio annualises the mean and deviation of period returns
// over 365 periods and subtracts riskFreeRate from the mean. Zero deviation
// gives 0.
func CalculateSharpeRatio(values []float64, riskFreeRate float64) float64 {
	returns := periodReturns(values)
	if len(returns) == 0 {
		return 0
	}
	vol := populationStdDev(returns) * math.Sqrt(tradingDays)
	if vol == 0 {
		return 0
	}
	sharpe := (mean(returns)*tradingDays - riskFreeRate) / vol
	if !isFinite(sharpe) {
		return 0
	}
	return sharpe
}

// CalculateCurrentDrawdown is how far current sits below maxSeen, in percent
// (zero or negative).
func CalculateCurrentDrawdown(current, maxSeen float64) float64 {
	if maxSeen <= 0 {
		return 0
	}
	return (current - maxSeen) / maxSeen * 100
}

// CalculateReturn is the simple return from start to end in percent.
func CalculateReturn(start, end float64) float64 {
	if start <= 0 {
		return 0
	}
	return (end - start) / start * 100
}

// WindowKey names a lookback window of n days in PerformanceMetrics.Windows.
func WindowKey(days int) string {
	return fmt.Sprintf("%dd", days)
}

// CalculateWindowReturn measures the series over the last days days, starting
// at the first point at or after last-days. ok is false when the window holds
// fewer than two points. A one-day window annualises over exactly one day;
// longer windows over the whole days elapsed since their first point.
func CalculateWindowReturn(series []models.SeriesPoint, days int) (models.WindowMetrics, bool) {
	if len(series) < 2 || days <= 0 {
		return models.WindowMetrics{}, false
	}
	last := series[len(series)-1]
	cutoff := last.Timestamp.Add(-time.Duration(days) * 24 * time.Hour)

	first := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(cutoff)
	})
	if len(series)-first < 2 {
		return models.WindowMetrics{}, false
	}

	start := series[first]
	elapsed := parse.FloorDays(last.Timestamp.Sub(start.Timestamp))
	apyDays := elapsed
	if days == 1 {
		apyDays = 1
	}
	return models.WindowMetrics{
		ReturnPct: CalculateReturn(start.Value, last.Value),
		APYPct:    CalculateAPY(start.Value, last.Value, float64(apyDays)),
		Days:      elapsed,
	}, true
}

// CalculatePerformanceMetrics derives every statistic of one series. The
// series is ordered by timestamp first. A series of fewer than two points
// has no windows and zero risk statistics.
func CalculatePerformanceMetrics(series []models.SeriesPoint, cfg config.AnalyticsConfig) models.PerformanceMetrics {
	metrics := models.PerformanceMetrics{Windows: map[string]models.WindowMetrics{}}
	if len(series) == 0 {
		return metrics
	}

	ordered := make([]models.SeriesPoint, len(series))
	copy(ordered, series)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	values := make([]float64, len(ordered))
	metrics.MaxValue, metrics.MinValue = ordered[0].Value, ordered[0].Value
	for i, p := range ordered {
		values[i] = p.Value
		metrics.MaxValue = math.Max(metrics.MaxValue, p.Value)
		metrics.MinValue = math.Min(metrics.MinValue, p.Value)
	}
	metrics.Points = len(ordered)
	metrics.CurrentValue = values[len(values)-1]
	metrics.CurrentDrawdownPct = CalculateCurrentDrawdown(metrics.CurrentValue, metrics.MaxValue)

	if len(ordered) < 2 {
		return metrics
	}

	for _, days := range cfg.WindowDays {
		if w, ok := CalculateWindowReturn(ordered, days); ok {
			metrics.Windows[WindowKey(days)] = w
		}
	}

	first, last := ordered[0], ordered[len(ordered)-1]
	total := parse.FloorDays(last.Timestamp.Sub(first.Timestamp))
	metrics.Windows[models.WindowAllTime] = models.WindowMetrics{
		ReturnPct: CalculateReturn(first.Value, last.Value),
		APYPct:    CalculateAPY(first.Value, last.Value, float64(total)),
		Days:      total,
	}

	riskFree := cfg.RiskFreeRate
	if math.IsNaN(riskFree) {
		riskFree = defaultRiskFree
	}
	metrics.VolatilityPct = CalculateVolatility(values)
	metrics.MaxDrawdownPct = CalculateMaxDrawdown(values)
	metrics.SharpeRatio = CalculateSharpeRatio(values, riskFree)
	return metrics
}
