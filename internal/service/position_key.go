package service

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/portfolio-ledger/internal/models"
)

// PositionKey identifies one position across snapshots. It is comparable and
// used directly as a map key.
type PositionKey struct {
	WalletLabel string
	Address     string
	Blockchain  string
	Coin        string
	Protocol    string
}

// String joins the identity fields with "|".
func (k PositionKey) String() string {
	return strings.Join([]string{k.WalletLabel, k.Address, k.Blockchain, k.Coin, k.Protocol}, "|")
}

// KeyFunc derives the position key of a snapshot.
type KeyFunc func(models.PositionSnapshot) PositionKey

// ExactPositionKey uses the identity fields as they appear in the input.
// Addresses differing only in case are different positions.
func ExactPositionKey(s models.PositionSnapshot) PositionKey {
	return PositionKey{
		WalletLabel: s.WalletLabel,
		Address:     s.Address,
		Blockchain:  s.Blockchain,
		Coin:        s.Coin,
		Protocol:    s.Protocol,
	}
}

// CanonicalPositionKey trims every field and lower-cases the address, so a
// wallet exported once checksummed and once lower-case stays one position.
func CanonicalPositionKey(s models.PositionSnapshot) PositionKey {
	return PositionKey{
		WalletLabel: strings.TrimSpace(s.WalletLabel),
		Address:     CanonicalAddress(s.Address),
		Blockchain:  strings.TrimSpace(s.Blockchain),
		Coin:        strings.TrimSpace(s.Coin),
		Protocol:    strings.TrimSpace(s.Protocol),
	}
}

// CanonicalAddress lower-cases hex EVM addresses through go-ethereum's parser
// and only trims and lower-cases anything else (Solana, Bitcoin, labels).
func CanonicalAddress(address string) string {
	a := strings.TrimSpace(address)
	if common.IsHexAddress(a) {
		return strings.ToLower(common.HexToAddress(a).Hex())
	}
	return strings.ToLower(a)
}
