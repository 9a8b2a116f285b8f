package service

import (
	"sort"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/parse"
)

// CalculatePnL derives one PnLRecord per snapshot; records[i] belongs to
// snapshots[i]. Snapshots are grouped by keyFn (CanonicalPositionKey when
// nil) and ordered by timestamp within a position, ties keeping input order.
// Each record is measured against the previous snapshot of its position.
func CalculatePnL(snapshots []models.PositionSnapshot, keyFn KeyFunc) []models.PnLRecord {
	if keyFn == nil {
		keyFn = CanonicalPositionKey
	}

	keys := make([]PositionKey, len(snapshots))
	groups := make(map[PositionKey][]int)
	var order []PositionKey
	for i, s := range snapshots {
		k := keyFn(s)
		keys[i] = k
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	records := make([]models.PnLRecord, len(snapshots))
	for _, k := range order {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return snapshots[idx[a]].Timestamp.Before(snapshots[idx[b]].Timestamp)
		})

		keyText := k.String()
		for seq, i := range idx {
			cur := snapshots[i]
			rec := models.PnLRecord{
				PositionKey:    keyText,
				WalletLabel:    k.WalletLabel,
				Address:        k.Address,
				Blockchain:     k.Blockchain,
				Coin:           k.Coin,
				Protocol:       k.Protocol,
				Timestamp:      cur.Timestamp,
				USDValue:       cur.USDValue,
				UpdateSequence: seq,
			}

			if seq == 0 {
				rec.IsNewPosition = true
				records[i] = rec
				continue
			}

			prev := snapshots[idx[seq-1]]
			prevValue := prev.USDValue
			rec.PreviousValue = &prevValue
			rec.PnLValue = cur.USDValue - prevValue
			if prevValue > 0 {
				rec.PnLPercentage = rec.PnLValue / prevValue * 100
			}
			rec.DaysSinceLastUpdate = parse.FloorDays(cur.Timestamp.Sub(prev.Timestamp))
			records[i] = rec
		}
	}

	return records
}

// SummarizePnL totals the records that follow an earlier snapshot.
func SummarizePnL(records []models.PnLRecord) models.PnLSummary {
	summary := models.PnLSummary{PnLByWallet: map[string]float64{}}
	positions := map[string]struct{}{}

	for _, r := range records {
		positions[r.PositionKey] = struct{}{}
		if r.IsNewPosition {
			summary.NewPositionCount++
			continue
		}
		summary.PositionsWithPnL++
		summary.TotalPnL += r.PnLValue
		summary.PnLByWallet[r.WalletLabel] += r.PnLValue
		if r.PnLValue > 0 {
			summary.ProfitablePnL++
		}
	}

	summary.TrackedPositions = len(positions)
	if summary.PositionsWithPnL > 0 {
		summary.WinRate = float64(summary.ProfitablePnL) / float64(summary.PositionsWithPnL) * 100
	}
	return summary
}
