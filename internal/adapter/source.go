package adapter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
)

// SnapshotSource supplies position snapshot rows.
type SnapshotSource interface {
	// ReadSnapshots returns every readable row. Rows that cannot be parsed
	// are reported in the batch, not as an error.
	ReadSnapshots(ctx context.Context) (*SnapshotBatch, error)

	// Name identifies the source in logs and row errors
	Name() string
}

// TransactionSource supplies wallet transfer rows.
type TransactionSource interface {
	ReadTransactions(ctx context.Context) (*TransactionBatch, error)
	Name() string
}

// SnapshotBatch is the result of reading one snapshot source.
type SnapshotBatch struct {
	Source  string
	Rows    []models.PositionSnapshot
	Skipped []*apperrors.CategorizedError
}

// TransactionBatch is the result of reading one transaction source.
type TransactionBatch struct {
	Source  string
	Rows    []models.Transaction
	Skipped []*apperrors.CategorizedError
}

// Common error types for sources

var (
	// ErrMissingColumn indicates a required header is absent
	ErrMissingColumn = fmt.Errorf("missing required column")

	// ErrEmptySource indicates the source has no header row
	ErrEmptySource = fmt.Errorf("source has no header row")
)

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 1000

// header maps lower-cased column names to their index.
type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, error) {
	names, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	h := make(header, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(n, "\ufeff")))
		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return h, nil
}

// get returns the trimmed field of column, or "" when the column or the
// field is absent.
func (h header) get(record []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

// eachRecord calls fn for every data row; line numbers count the header as 1.
// Malformed CSV lines are handed to onError and skipped.
func eachRecord(ctx context.Context, r *csv.Reader, fn func(line int, record []string), onError func(line int, err error)) error {
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err != nil {
			onError(line, err)
			continue
		}
		fn(line, record)
	}
}
