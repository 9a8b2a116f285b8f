package adapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/parse"
)

var snapshotRequired = []string{"wallet_label", "coin", "usd_value", "source_file_timestamp"}

// CSVSnapshotSource reads a snapshot export with the columns wallet_label,
// address, blockchain, coin, protocol, price, amount, usd_value, token_name
// and source_file_timestamp. Rows whose usd_value is zero, negative or
// unparseable are skipped.
type CSVSnapshotSource struct {
	name string
	open func() (io.ReadCloser, error)
}

// NewCSVSnapshotFile reads snapshots from path.
func NewCSVSnapshotFile(path string) *CSVSnapshotSource {
	return &CSVSnapshotSource{
		name: filepath.Base(path),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewCSVSnapshotReader reads snapshots from r once.
func NewCSVSnapshotReader(name string, r io.Reader) *CSVSnapshotSource {
	return &CSVSnapshotSource{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

func (s *CSVSnapshotSource) Name() string { return s.name }

func (s *CSVSnapshotSource) ReadSnapshots(ctx context.Context) (*SnapshotBatch, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.name, err)
	}
	defer rc.Close()

	r := newCSVReader(rc)
	h, err := readHeader(r, snapshotRequired)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	batch := &SnapshotBatch{Source: s.name}
	err = eachRecord(ctx, r, func(line int, rec []string) {
		ts, ok := parse.ParseSnapshotTimestamp(h.get(rec, "source_file_timestamp"))
		if !ok {
			batch.Skipped = append(batch.Skipped, apperrors.NewIngestError(s.name, line,
				fmt.Errorf("unparseable timestamp %q", h.get(rec, "source_file_timestamp"))))
			return
		}
		label := h.get(rec, "wallet_label")
		if label == "" {
			batch.Skipped = append(batch.Skipped, apperrors.NewIngestError(s.name, line,
				fmt.Errorf("empty wallet_label")))
			return
		}

		value := parse.ParseCurrency(h.get(rec, "usd_value"))
		if value <= 0 {
			batch.Skipped = append(batch.Skipped, apperrors.NewIngestError(s.name, line,
				fmt.Errorf("non-positive usd_value %q", h.get(rec, "usd_value"))))
			return
		}

		batch.Rows = append(batch.Rows, models.PositionSnapshot{
			WalletLabel: label,
			Address:     h.get(rec, "address"),
			Blockchain:  h.get(rec, "blockchain"),
			Coin:        h.get(rec, "coin"),
			Protocol:    h.get(rec, "protocol"),
			TokenName:   h.get(rec, "token_name"),
			Amount:      parse.ParseAmount(h.get(rec, "amount")),
			Price:       parse.ParseCurrency(h.get(rec, "price")),
			USDValue:    value,
			Timestamp:   ts,
			SourceFile:  s.name,
		})
	}, func(line int, err error) {
		batch.Skipped = append(batch.Skipped, apperrors.NewIngestError(s.name, line, err))
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}
