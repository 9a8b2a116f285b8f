package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/parse"
	"github.com/portfolio-ledger/internal/types"
)

var transactionRequired = []string{"wallet_address", "transaction_hash", "timestamp_utc"}

// CSVTransactionSource reads a transfer export with the columns
// wallet_address, transaction_hash, amount_direction, amount_full,
// usd_value_full, historical_value_usd, token_symbol, timestamp_utc,
// from_address, to_address, from_info, to_info and chain.
type CSVTransactionSource struct {
	name string
	open func() (io.ReadCloser, error)
}

// NewCSVTransactionFile reads transfers from path.
func NewCSVTransactionFile(path string) *CSVTransactionSource {
	return &CSVTransactionSource{
		name: filepath.Base(path),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewCSVTransactionReader reads transfers from r once.
func NewCSVTransactionReader(name string, r io.Reader) *CSVTransactionSource {
	return &CSVTransactionSource{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

func (s *CSVTransactionSource) Name() string { return s.name }

func (s *CSVTransactionSource) ReadTransactions(ctx context.Context) (*TransactionBatch, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.name, err)
	}
	defer rc.Close()

	r := newCSVReader(rc)
	h, err := readHeader(r, transactionRequired)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	batch := &TransactionBatch{Source: s.name}
	reject := func(line int, err error) {
		batch.Skipped = append(batch.Skipped, apperrors.NewIngestError(s.name, line, err))
	}

	err = eachRecord(ctx, r, func(line int, rec []string) {
		wallet, hash := h.get(rec, "wallet_address"), h.get(rec, "transaction_hash")
		if wallet == "" || hash == "" {
			reject(line, errors.New("missing wallet_address or transaction_hash"))
			return
		}
		ts, ok := parse.ParseTimestamp(h.get(rec, "timestamp_utc"))
		if !ok {
			reject(line, fmt.Errorf("unparseable timestamp %q", h.get(rec, "timestamp_utc")))
			return
		}

		amountFull := h.get(rec, "amount_full")
		direction := parse.ParseDirection(h.get(rec, "amount_direction"), amountFull)
		value, historical := parse.BestUSDValue(h.get(rec, "historical_value_usd"), h.get(rec, "usd_value_full"))

		tx := models.Transaction{
			WalletAddress:      wallet,
			Hash:               hash,
			Chain:              h.get(rec, "chain"),
			Direction:          direction,
			USDValue:           value,
			HasHistoricalPrice: historical,
			TokenSymbol:        h.get(rec, "token_symbol"),
			TokenAmount:        parse.ParseTokenAmount(amountFull),
			Timestamp:          ts,
			FromAddress:        h.get(rec, "from_address"),
			ToAddress:          h.get(rec, "to_address"),
		}
		switch direction {
		case types.DirectionIn:
			tx.CounterpartyAddress = tx.FromAddress
			tx.CounterpartyLabel = h.get(rec, "from_info")
		case types.DirectionOut:
			tx.CounterpartyAddress = tx.ToAddress
			tx.CounterpartyLabel = h.get(rec, "to_info")
		}
		batch.Rows = append(batch.Rows, tx)
	}, reject)
	if err != nil {
		return nil, err
	}
	return batch, nil
}
