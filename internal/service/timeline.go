package service

import (
	"math"
	"sort"
	"time"

	"github.com/portfolio-ledger/internal/models"
)

// GroupBy names the group a snapshot row contributes to. Nil groups every row
// together.
type GroupBy func(models.PositionSnapshot) string

// ByWallet groups rows by wallet label.
func ByWallet(s models.PositionSnapshot) string { return s.WalletLabel }

// ByCoin groups rows by coin.
func ByCoin(s models.PositionSnapshot) string { return s.Coin }

// ByBlockchain groups rows by chain.
func ByBlockchain(s models.PositionSnapshot) string { return s.Blockchain }

// ByProtocol groups rows by protocol.
func ByProtocol(s models.PositionSnapshot) string { return s.Protocol }

type bucketKey struct {
	at    int64
	group string
}

type bucket struct {
	point      models.TimelinePoint
	priceSum   float64
	priceCount int
}

// Aggregate sums usd_value and amount and averages price per (timestamp,
// group), sorted by timestamp then group. Non-finite values are left out of
// the sums and means.
func Aggregate(rows []models.PositionSnapshot, groupBy GroupBy) []models.TimelinePoint {
	buckets := make(map[bucketKey]*bucket)

	for _, r := range rows {
		group := ""
		if groupBy != nil {
			group = groupBy(r)
		}
		key := bucketKey{at: r.Timestamp.UnixNano(), group: group}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{point: models.TimelinePoint{Timestamp: r.Timestamp, Group: group}}
			buckets[key] = b
		}

		b.point.Rows++
		if isFinite(r.USDValue) {
			b.point.Value += r.USDValue
		}
		if isFinite(r.Amount) {
			b.point.Amount += r.Amount
		}
		if isFinite(r.Price) {
			b.priceSum += r.Price
			b.priceCount++
		}
	}

	points := make([]models.TimelinePoint, 0, len(buckets))
	for _, b := range buckets {
		if b.priceCount > 0 {
			b.point.MeanPrice = b.priceSum / float64(b.priceCount)
		}
		points = append(points, b.point)
	}

	sort.Slice(points, func(i, j int) bool {
		if !points[i].Timestamp.Equal(points[j].Timestamp) {
			return points[i].Timestamp.Before(points[j].Timestamp)
		}
		return points[i].Group < points[j].Group
	})
	return points
}

// PortfolioTimeline is the total value per timestamp.
func PortfolioTimeline(rows []models.PositionSnapshot) []models.TimelinePoint {
	return Aggregate(rows, nil)
}

// WalletTimeline is the value per wallet label per timestamp.
func WalletTimeline(rows []models.PositionSnapshot) []models.TimelinePoint {
	return Aggregate(rows, ByWallet)
}

// AssetTimeline is the value, amount and mean price per coin per timestamp.
func AssetTimeline(rows []models.PositionSnapshot) []models.TimelinePoint {
	return Aggregate(rows, ByCoin)
}

// Series extracts the ordered values of one group.
func Series(points []models.TimelinePoint, group string) []models.SeriesPoint {
	var out []models.SeriesPoint
	for _, p := range points {
		if p.Group == group {
			out = append(out, models.SeriesPoint{Timestamp: p.Timestamp, Value: p.Value})
		}
	}
	return out
}

// Groups lists the distinct groups in first-seen order.
func Groups(points []models.TimelinePoint) []string {
	seen := map[string]struct{}{}
	var groups []string
	for _, p := range points {
		if _, ok := seen[p.Group]; ok {
			continue
		}
		seen[p.Group] = struct{}{}
		groups = append(groups, p.Group)
	}
	return groups
}

// LatestTimestamp returns the newest snapshot time, or false when rows is empty.
func LatestTimestamp(rows []models.PositionSnapshot) (time.Time, bool) {
	var latest time.Time
	for _, r := range rows {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest, !latest.IsZero()
}

// CalculateBreakdown splits the newest snapshot run by wallet, chain,
// protocol and coin.
func CalculateBreakdown(rows []models.PositionSnapshot) models.Breakdown {
	b := models.Breakdown{
		ByWallet:     map[string]float64{},
		ByBlockchain: map[string]float64{},
		ByProtocol:   map[string]float64{},
		ByCoin:       map[string]float64{},
	}
	latest, ok := LatestTimestamp(rows)
	if !ok {
		return b
	}
	b.Timestamp = latest

	var holdings []float64
	for _, r := range rows {
		if !r.Timestamp.Equal(latest) || !isFinite(r.USDValue) {
			continue
		}
		b.Positions++
		b.TotalValue += r.USDValue
		b.ByWallet[r.WalletLabel] += r.USDValue
		b.ByBlockchain[r.Blockchain] += r.USDValue
		b.ByProtocol[r.Protocol] += r.USDValue
		b.ByCoin[r.Coin] += r.USDValue
		holdings = append(holdings, r.USDValue)
	}
	if b.TotalValue <= 0 {
		return b
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(holdings)))
	b.Concentration.Top5SharePct = sumFirst(holdings, 5) / b.TotalValue * 100
	b.Concentration.Top10SharePct = sumFirst(holdings, 10) / b.TotalValue * 100
	b.Concentration.LargestWallet, b.Concentration.LargestWalletPct = largestShare(b.ByWallet, b.TotalValue)
	b.Concentration.LargestChain, b.Concentration.LargestChainPct = largestShare(b.ByBlockchain, b.TotalValue)
	return b
}

func sumFirst(values []float64, n int) float64 {
	var s float64
	for i := 0; i < n && i < len(values); i++ {
		s += values[i]
	}
	return s
}

func largestShare(values map[string]float64, total float64) (string, float64) {
	var name string
	var best float64
	for k, v := range values {
		if v > best || (v == best && k < name) {
			name, best = k, v
		}
	}
	return name, best / total * 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
