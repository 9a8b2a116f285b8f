package service

import (
	"regexp"
	"strings"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

var (
	coinbasePattern = regexp.MustCompile(`coinbase\s+\d+`)
	binancePattern  = regexp.MustCompile(`binance\s+\d+`)
	// labels of fee collectors and routing contracts are never an exchange
	excludedLabelWords = []string{"fee", "proxy", "flash"}
)

// CounterpartyRegistry resolves counterparties of external flows to a tag
// such as "friend_alice" or "coinbase".
type CounterpartyRegistry struct {
	friends   map[string]string
	exchanges map[string]string
}

// NewCounterpartyRegistry indexes known addresses by lower-cased address.
// A nil or empty list leaves only label pattern matching.
func NewCounterpartyRegistry(known []models.KnownAddress) *CounterpartyRegistry {
	r := &CounterpartyRegistry{
		friends:   map[string]string{},
		exchanges: map[string]string{},
	}
	for _, k := range known {
		addr := CanonicalAddress(k.Address)
		if addr == "" {
			continue
		}
		switch k.Kind {
		case types.AddressKindFriend:
			r.friends[addr] = k.Name
		case types.AddressKindExchange:
			r.exchanges[addr] = k.Name
		}
	}
	return r
}

// Friend returns the friend tag for address.
func (r *CounterpartyRegistry) Friend(address string) (tag, name string, ok bool) {
	if r == nil {
		return "", "", false
	}
	name, ok = r.friends[CanonicalAddress(address)]
	if !ok {
		return "", "", false
	}
	return "friend_" + strings.ToLower(strings.TrimSpace(name)), name, true
}

// Exchange tags a counterparty by registry entry first, then by label text.
func (r *CounterpartyRegistry) Exchange(address, label string) string {
	if r != nil {
		if name, ok := r.exchanges[CanonicalAddress(address)]; ok {
			return strings.ToLower(strings.TrimSpace(name))
		}
	}
	return MatchExchangeLabel(label)
}

// MatchExchangeLabel recognises block-explorer labels of exchange hot
// wallets, e.g. "Coinbase 14" or "Bybit: Hot Wallet".
func MatchExchangeLabel(label string) string {
	text := strings.ToLower(label)
	for _, w := range excludedLabelWords {
		if strings.Contains(text, w) {
			return ""
		}
	}
	switch {
	case coinbasePattern.MatchString(text):
		return "coinbase"
	case strings.Contains(text, "bybit") && strings.Contains(text, "hot"):
		return "bybit"
	case binancePattern.MatchString(text):
		return "binance"
	}
	return ""
}

// counterpartyAddress is the other side of tx: the explicit counterparty when
// present, else the sender of an incoming or the recipient of an outgoing
// transfer.
func counterpartyAddress(tx models.Transaction) string {
	if tx.CounterpartyAddress != "" {
		return tx.CounterpartyAddress
	}
	if tx.Direction == types.DirectionIn {
		return tx.FromAddress
	}
	return tx.ToAddress
}
