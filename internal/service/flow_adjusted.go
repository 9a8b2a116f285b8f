package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// classifiedFlowNamespace seeds the deterministic ids of flows derived from
// classified transactions.
var classifiedFlowNamespace = uuid.MustParse("6f1c7f0e-3a52-4c5e-9d1b-2b8f4f0d9a11")

type flowAdjustedAcc struct {
	start, end float64
	from, to   time.Time
	net        decimal.Decimal
	count      int
}

// CalculateFlowAdjustedPerformance measures each item over the periodDays
// ending at the newest snapshot, subtracting the capital moved in and out
// within the period. Items with fewer than two points in the period are
// listed in Skipped.
func CalculateFlowAdjustedPerformance(rows []models.PositionSnapshot, flows []models.CapitalFlow, r *ItemResolver, items []string, periodDays int) models.FlowAdjustedReport {
	report := models.FlowAdjustedReport{PeriodDays: periodDays}

	timeline := ItemTimeline(rows, r)
	if len(timeline) == 0 || periodDays <= 0 {
		report.Skipped = append(report.Skipped, items...)
		return report
	}
	now := timeline[len(timeline)-1].Timestamp
	periodStart := now.Add(-time.Duration(periodDays) * 24 * time.Hour)

	var total flowAdjustedAcc
	for _, item := range items {
		var series []models.SeriesPoint
		for _, p := range Series(timeline, item) {
			if !p.Timestamp.Before(periodStart) {
				series = append(series, p)
			}
		}
		if len(series) < 2 {
			report.Skipped = append(report.Skipped, item)
			continue
		}

		acc := flowAdjustedAcc{
			start: series[0].Value,
			end:   series[len(series)-1].Value,
			from:  series[0].Timestamp,
			to:    series[len(series)-1].Timestamp,
			net:   decimal.Zero,
		}
		for _, f := range flows {
			if f.Item != item || f.Timestamp.Before(periodStart) || f.Timestamp.After(now) {
				continue
			}
			acc.net = acc.net.Add(decimal.NewFromFloat(f.USDFlow))
			acc.count++
		}
		report.Items = append(report.Items, acc.result(item, periodDays))

		total.start += acc.start
		total.end += acc.end
		total.net = total.net.Add(acc.net)
		total.count += acc.count
		if total.from.IsZero() || acc.from.Before(total.from) {
			total.from = acc.from
		}
		if acc.to.After(total.to) {
			total.to = acc.to
		}
	}

	if len(report.Items) > 0 {
		t := total.result("TOTAL", periodDays)
		report.Total = &t
	}
	return report
}

func (a flowAdjustedAcc) result(item string, periodDays int) models.FlowAdjustedItem {
	net := a.net.InexactFloat64()
	res := models.FlowAdjustedItem{
		Item:       item,
		StartValue: a.start,
		EndValue:   a.end,
		StartTime:  a.from,
		EndTime:    a.to,
		NetFlows:   net,
		FlowCount:  a.count,
	}
	if a.start <= 0 {
		return res
	}

	change := (a.end - a.start) - net
	res.AdjustedChange = change
	res.RawReturnPct = (a.end/a.start - 1) * 100
	res.AdjustedReturnPct = change / a.start * 100
	res.AdjustedAPRPct = CalculateAPY(a.start, a.start+change, float64(periodDays))
	res.FlowImpactPct = res.RawReturnPct - res.AdjustedReturnPct
	return res
}

// FlowsFromClassifications turns external deposits and withdrawals into
// capital flows keyed by the resolved token symbol. The keys only match asset
// items; see ValidateFlowSource. Ids are derived from the
// transaction so repeated runs produce the same flows.
func FlowsFromClassifications(classifications []models.FlowClassification, r *ItemResolver) []models.CapitalFlow {
	var flows []models.CapitalFlow
	for _, fc := range classifications {
		if !fc.FlowType.IsExternal() {
			continue
		}
		key := CanonicalAddress(fc.WalletAddress) + "|" + fc.TransactionHash + "|" + fc.TokenSymbol + "|" + string(fc.FlowType)
		flows = append(flows, models.CapitalFlow{
			ID:        uuid.NewSHA1(classifiedFlowNamespace, []byte(key)),
			Item:      r.Resolve(fc.TokenSymbol),
			USDFlow:   fc.NetMoneyFlow,
			Timestamp: fc.Timestamp,
			FlowType:  flowTypeLabel(fc.FlowType),
		})
	}
	return flows
}

func flowTypeLabel(t types.FlowType) string {
	if t == types.FlowMoneyOut {
		return "withdrawal"
	}
	return "deposit"
}
