package service

import (
	"sort"

	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// walletProtocol marks plain wallet balances, which are not protocol positions.
const walletProtocol = "Wallet"

// ItemResolver maps snapshot rows to the item names used by flow-adjusted
// analysis: the coin for assets, "COIN | Protocol" for protocol positions.
// Combinations win over renames.
type ItemResolver struct {
	analysis types.AnalysisType
	combined map[string]string
	renames  map[string]string
}

// NewItemResolver builds a resolver from the grouping of the analysis type.
// A nil file means no grouping; an empty type means assets.
func NewItemResolver(analysis types.AnalysisType, file *config.AnalysisFile) *ItemResolver {
	if analysis == "" {
		analysis = types.AnalysisAssets
	}
	r := &ItemResolver{
		analysis: analysis,
		combined: map[string]string{},
		renames:  map[string]string{},
	}
	if file == nil {
		return r
	}

	grouping := file.Assets
	if analysis == types.AnalysisProtocolPositions {
		grouping = file.Protocols
	}
	for _, c := range grouping.Combinations {
		for _, item := range c.Items {
			r.combined[item] = c.Name
		}
	}
	for from, to := range grouping.Renames {
		r.renames[from] = to
	}
	return r
}

// Analysis returns the analysis type the resolver was built for.
func (r *ItemResolver) Analysis() types.AnalysisType { return r.analysis }

// Item returns the item of s, or false when s takes no part in the analysis.
func (r *ItemResolver) Item(s models.PositionSnapshot) (string, bool) {
	base := s.Coin
	if r.analysis == types.AnalysisProtocolPositions {
		if s.Protocol == walletProtocol {
			return "", false
		}
		base = s.Coin + " | " + s.Protocol
	}
	return r.Resolve(base), true
}

// Resolve applies combinations, then renames, to a raw item name.
func (r *ItemResolver) Resolve(base string) string {
	if name, ok := r.combined[base]; ok {
		return name
	}
	if name, ok := r.renames[base]; ok {
		return name
	}
	return base
}

// ItemTimeline is the value per item per timestamp.
func ItemTimeline(rows []models.PositionSnapshot, r *ItemResolver) []models.TimelinePoint {
	kept := make([]models.PositionSnapshot, 0, len(rows))
	for _, s := range rows {
		if _, ok := r.Item(s); ok {
			kept = append(kept, s)
		}
	}
	return Aggregate(kept, func(s models.PositionSnapshot) string {
		item, _ := r.Item(s)
		return item
	})
}

// TopItemsByValue returns up to n items ranked by their value at the newest
// timestamp. Ties are broken by name.
func TopItemsByValue(rows []models.PositionSnapshot, r *ItemResolver, n int) []string {
	latest, ok := LatestTimestamp(rows)
	if !ok || n <= 0 {
		return nil
	}

	values := map[string]float64{}
	for _, s := range rows {
		if !s.Timestamp.Equal(latest) || !isFinite(s.USDValue) {
			continue
		}
		if item, ok := r.Item(s); ok {
			values[item] += s.USDValue
		}
	}

	items := make([]string, 0, len(values))
	for item := range values {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if values[items[i]] != values[items[j]] {
			return values[items[i]] > values[items[j]]
		}
		return items[i] < items[j]
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
