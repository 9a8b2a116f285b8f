package service

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/portfolio-ledger/internal/config"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// Confidence scores of the terminal classifications.
const (
	ConfidenceNeutral     = 95
	ConfidenceCrossWallet = 95
	ConfidenceFriend      = 90
	ConfidenceExternal    = 85
	ConfidenceUnknown     = 0
)

// FlowClassifier labels each transfer as internal (neutral, cross-wallet,
// swap leg) or external (deposit, withdrawal).
type FlowClassifier struct {
	ownWallets  map[string]struct{}
	registry    *CounterpartyRegistry
	matcher     SwapMatcher
	parallelism int
}

// NewFlowClassifier builds a classifier for the owner's wallet addresses.
// registry may be nil; matcher defaults to a GreedySwapMatcher built from cfg.
func NewFlowClassifier(ownWallets []string, registry *CounterpartyRegistry, matcher SwapMatcher, cfg config.AnalyticsConfig) *FlowClassifier {
	own := make(map[string]struct{}, len(ownWallets))
	for _, w := range ownWallets {
		own[CanonicalAddress(w)] = struct{}{}
	}
	if matcher == nil {
		matcher = NewGreedySwapMatcher(cfg)
	}
	return &FlowClassifier{
		ownWallets:  own,
		registry:    registry,
		matcher:     matcher,
		parallelism: runtime.GOMAXPROCS(0),
	}
}

// Classify returns one classification per transaction; result[i] belongs to
// txs[i]. Wallets are independent and processed concurrently, each with its
// own set of consumed hashes. A row whose hash was already consumed in its
// wallet is classified UNKNOWN.
func (c *FlowClassifier) Classify(txs []models.Transaction) []models.FlowClassification {
	result := make([]models.FlowClassification, len(txs))

	byWallet := make(map[string][]int)
	var wallets []string
	for i, tx := range txs {
		w := CanonicalAddress(tx.WalletAddress)
		if _, ok := byWallet[w]; !ok {
			wallets = append(wallets, w)
		}
		byWallet[w] = append(byWallet[w], i)
	}

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for _, w := range wallets {
		wallet, idx := w, byWallet[w]
		g.Go(func() error {
			c.classifyWallet(wallet, txs, idx, result)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// consumedSet holds the transaction hashes one wallet stream has already
// classified. It is never shared between wallets. Empty hashes are never
// consumed, so rows without a hash are classified individually.
type consumedSet map[string]struct{}

func (s consumedSet) has(hash string) bool {
	if hash == "" {
		return false
	}
	_, ok := s[hash]
	return ok
}

func (s consumedSet) add(hash string) {
	if hash != "" {
		s[hash] = struct{}{}
	}
}

// classifyWallet writes result entries for the positions in idx only.
func (c *FlowClassifier) classifyWallet(wallet string, txs []models.Transaction, idx []int, result []models.FlowClassification) {
	sort.SliceStable(idx, func(a, b int) bool {
		return txs[idx[a]].Timestamp.Before(txs[idx[b]].Timestamp)
	})
	stream := make([]models.Transaction, len(idx))
	for k, i := range idx {
		stream[k] = txs[i]
	}

	consumed := consumedSet{}
	done := make([]bool, len(stream))
	set := func(k int, fc models.FlowClassification) {
		tx := stream[k]
		fc.WalletAddress = tx.WalletAddress
		fc.TransactionHash = tx.Hash
		fc.TokenSymbol = tx.TokenSymbol
		fc.Timestamp = tx.Timestamp
		fc.USDValue = tx.USDValue
		result[idx[k]] = fc
		done[k] = true
		consumed.add(tx.Hash)
	}
	unavailable := func(j int) bool {
		return done[j] || consumed.has(stream[j].Hash)
	}

	for k, tx := range stream {
		if done[k] {
			continue
		}
		if consumed.has(tx.Hash) {
			set(k, models.FlowClassification{
				FlowType:        types.FlowUnknown,
				ConfidenceScore: ConfidenceUnknown,
				Notes:           "Transaction hash already processed",
			})
			continue
		}

		switch {
		case tx.Direction == types.DirectionNeutral || tx.USDValue == 0:
			set(k, models.FlowClassification{
				FlowType:        types.FlowNeutral,
				ConfidenceScore: ConfidenceNeutral,
				Notes:           "Zero-value or neutral transaction",
			})
			continue

		case tx.Direction == types.DirectionUnknown:
			set(k, models.FlowClassification{
				FlowType:        types.FlowUnknown,
				ConfidenceScore: ConfidenceUnknown,
				Notes:           "Unable to determine transaction direction",
			})
			continue

		case c.isCrossWallet(wallet, tx):
			set(k, models.FlowClassification{
				FlowType:        types.FlowCrossWallet,
				ConfidenceScore: ConfidenceCrossWallet,
				Notes:           "Transfer between own wallets",
			})
			continue
		}

		if fc, ok := c.friendFlow(tx); ok {
			set(k, fc)
			continue
		}

		if tx.Direction == types.DirectionOut {
			if j, ok := c.matcher.FindPair(stream, k, unavailable); ok {
				in := stream[j]
				score := CalculateConfidenceScore(tx, in)
				value := swapValue(tx.USDValue, in.USDValue)
				set(k, models.FlowClassification{
					FlowType:              types.FlowSwapOut,
					PairedTransactionHash: in.Hash,
					ConfidenceScore:       score,
					Notes:                 fmt.Sprintf("Swapped $%.2f to %s", value, in.TokenSymbol),
				})
				set(j, models.FlowClassification{
					FlowType:              types.FlowSwapIn,
					PairedTransactionHash: tx.Hash,
					ConfidenceScore:       score,
					Notes:                 fmt.Sprintf("Swapped $%.2f from %s", value, tx.TokenSymbol),
				})
				continue
			}

			set(k, models.FlowClassification{
				FlowType:        types.FlowMoneyOut,
				NetMoneyFlow:    -tx.USDValue,
				ConfidenceScore: ConfidenceExternal,
				Counterparty:    c.registry.Exchange(counterpartyAddress(tx), tx.CounterpartyLabel),
				Notes:           "External withdrawal: " + tx.TokenSymbol,
			})
			continue
		}

		set(k, models.FlowClassification{
			FlowType:        types.FlowMoneyIn,
			NetMoneyFlow:    tx.USDValue,
			ConfidenceScore: ConfidenceExternal,
			Counterparty:    c.registry.Exchange(counterpartyAddress(tx), tx.CounterpartyLabel),
			Notes:           "External deposit: " + tx.TokenSymbol,
		})
	}
}

func (c *FlowClassifier) isCrossWallet(wallet string, tx models.Transaction) bool {
	for _, addr := range []string{tx.CounterpartyAddress, tx.FromAddress, tx.ToAddress} {
		if addr == "" {
			continue
		}
		a := CanonicalAddress(addr)
		if a == wallet {
			continue
		}
		if _, own := c.ownWallets[a]; own {
			return true
		}
	}
	return false
}

// friendFlow short-circuits transfers with a registered friend to an
// external flow tagged with the friend's name.
func (c *FlowClassifier) friendFlow(tx models.Transaction) (models.FlowClassification, bool) {
	tag, name, ok := c.registry.Friend(counterpartyAddress(tx))
	if !ok {
		return models.FlowClassification{}, false
	}
	if tx.Direction == types.DirectionOut {
		return models.FlowClassification{
			FlowType:        types.FlowMoneyOut,
			NetMoneyFlow:    -tx.USDValue,
			ConfidenceScore: ConfidenceFriend,
			Counterparty:    tag,
			Notes:           fmt.Sprintf("Sent %s to friend %s", tx.TokenSymbol, name),
		}, true
	}
	return models.FlowClassification{
		FlowType:        types.FlowMoneyIn,
		NetMoneyFlow:    tx.USDValue,
		ConfidenceScore: ConfidenceFriend,
		Counterparty:    tag,
		Notes:           fmt.Sprintf("Received %s from friend %s", tx.TokenSymbol, name),
	}, true
}

// SummarizeWalletFlows rolls classifications up per wallet, ordered by wallet
// address. Money totals are summed in decimal so NetInvestment is exactly
// MoneyIn minus MoneyOut.
func SummarizeWalletFlows(classifications []models.FlowClassification) []models.WalletFlowSummary {
	type acc struct {
		summary  models.WalletFlowSummary
		in, out  decimal.Decimal
		swapLegs int
	}
	byWallet := map[string]*acc{}

	for _, fc := range classifications {
		w := CanonicalAddress(fc.WalletAddress)
		a, ok := byWallet[w]
		if !ok {
			a = &acc{summary: models.WalletFlowSummary{
				WalletAddress:  w,
				Counts:         map[types.FlowType]int{},
				ByCounterparty: map[string]float64{},
			}}
			byWallet[w] = a
		}
		s := &a.summary

		s.TotalTransactions++
		s.Counts[fc.FlowType]++
		if fc.USDValue == 0 {
			s.UnknownValueCount++
		}
		if !fc.Timestamp.IsZero() {
			ts := fc.Timestamp
			if s.FirstActivity == nil || ts.Before(*s.FirstActivity) {
				s.FirstActivity = &ts
			}
			if s.LastActivity == nil || ts.After(*s.LastActivity) {
				s.LastActivity = &ts
			}
		}

		switch fc.FlowType {
		case types.FlowMoneyIn:
			a.in = a.in.Add(decimal.NewFromFloat(fc.NetMoneyFlow))
			s.ExternalDeposits++
		case types.FlowMoneyOut:
			a.out = a.out.Add(decimal.NewFromFloat(fc.NetMoneyFlow).Abs())
			s.ExternalWithdrawals++
		case types.FlowSwapIn, types.FlowSwapOut:
			a.swapLegs++
		}
		if fc.FlowType.IsExternal() && fc.Counterparty != "" {
			s.ByCounterparty[fc.Counterparty] += abs(fc.NetMoneyFlow)
		}
	}

	summaries := make([]models.WalletFlowSummary, 0, len(byWallet))
	for _, a := range byWallet {
		a.summary.MoneyIn = a.in.InexactFloat64()
		a.summary.MoneyOut = a.out.InexactFloat64()
		a.summary.NetInvestment = a.summary.MoneyIn - a.summary.MoneyOut
		a.summary.SwapPairs = a.swapLegs / 2
		summaries = append(summaries, a.summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WalletAddress < summaries[j].WalletAddress
	})
	return summaries
}

// NetInvestment is the exact decimal net of external flows across wallets.
func NetInvestment(classifications []models.FlowClassification) decimal.Decimal {
	total := decimal.Zero
	for _, fc := range classifications {
		if fc.FlowType.IsExternal() {
			total = total.Add(decimal.NewFromFloat(fc.NetMoneyFlow))
		}
	}
	return total
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
