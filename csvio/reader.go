/*
Package csvio adapts the engine to delimited text.

PURPOSE:
  Reads transaction records from CSV and writes final account state back
  to CSV. This is a pure I/O adapter: everything with real invariants
  lives in the engine package.

INPUT FORMAT:
  type, client, tx, amount
  deposit, 1, 1, 100.0
  dispute, 1, 1,

  - type is case-insensitive; surrounding whitespace is ignored
  - amount is required and positive for deposit/withdrawal, with up to 4
    fractional digits (extra digits are rounded half away from zero)
  - dispute/resolve/chargeback rows leave amount empty; a value there is
    ignored, since the engine always uses the original transaction's amount

MALFORMED ROWS:
  A row that cannot be turned into a valid record yields a *RowError.
  The Reader has two policies:
  - lenient (default): Next skips the row, reports it via OnRowError, and
    keeps reading. Mirrors the upstream behavior of ignoring bad rows.
  - strict: Next returns the *RowError, which terminates a Process run.

SEE ALSO:
  - writer.go: Output side
  - engine/types.go: Record, ParseKind, ParseAmount
*/
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/payments-engine/engine"
)

// ErrBadRow marks a row that could not be parsed into a valid record.
var ErrBadRow = errors.New("malformed row")

// RowError reports a single unparseable row with its 1-based line number.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return ErrBadRow }

// =============================================================================
// READER
// =============================================================================

// Reader streams engine records from CSV, one row at a time.
// It implements engine.RecordSource.
type Reader struct {
	// Strict makes Next return a *RowError for malformed rows instead of
	// skipping them.
	Strict bool

	// OnRowError is called for every skipped row in lenient mode.
	OnRowError func(err *RowError)

	csv  *csv.Reader
	line int
}

// NewReader wraps r. The first row is treated as a header if its first
// field is "type".
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // lifecycle rows may omit the amount column
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr}
}

// Next returns the next valid record, io.EOF at end of stream, or an error.
// A non-RowError error is a stream failure and is always returned.
func (r *Reader) Next(ctx context.Context) (engine.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return engine.Record{}, err
		}

		fields, err := r.csv.Read()
		if err == io.EOF {
			return engine.Record{}, io.EOF
		}
		if err != nil {
			// csv-level syntax errors are row-scoped; anything else
			// (reader failure) is fatal.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if rowErr := r.reject(parseErr.Line, fmt.Errorf("invalid csv: %w", err)); rowErr != nil {
					return engine.Record{}, rowErr
				}
				continue
			}
			return engine.Record{}, err
		}
		r.line++

		if r.line == 1 && looksLikeHeader(fields) {
			continue
		}

		rec, err := decodeRow(fields)
		if err != nil {
			if rowErr := r.reject(r.line, err); rowErr != nil {
				return engine.Record{}, rowErr
			}
			continue
		}
		return rec, nil
	}
}

// reject wraps err as a *RowError and either returns it (strict) or reports
// it and returns nil (lenient).
func (r *Reader) reject(line int, err error) error {
	rowErr := &RowError{Line: line, Err: err}
	if r.Strict {
		return rowErr
	}
	if r.OnRowError != nil {
		r.OnRowError(rowErr)
	}
	return nil
}

func looksLikeHeader(fields []string) bool {
	return len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "type")
}

// =============================================================================
// ROW DECODING
// =============================================================================

func decodeRow(fields []string) (engine.Record, error) {
	if len(fields) < 3 {
		return engine.Record{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}

	kind, ok := engine.ParseKind(fields[0])
	if !ok {
		return engine.Record{}, fmt.Errorf("unknown transaction type %q", strings.TrimSpace(fields[0]))
	}

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return engine.Record{}, fmt.Errorf("invalid client id %q", strings.TrimSpace(fields[1]))
	}

	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return engine.Record{}, fmt.Errorf("invalid tx id %q", strings.TrimSpace(fields[2]))
	}

	rec := engine.Record{
		Kind:   kind,
		Client: engine.ClientID(client),
		Tx:     engine.TxID(tx),
	}

	if kind.Movement() {
		if len(fields) < 4 || strings.TrimSpace(fields[3]) == "" {
			return engine.Record{}, fmt.Errorf("%s requires an amount", kind)
		}
		amount, err := engine.ParseAmount(fields[3])
		if err != nil {
			return engine.Record{}, fmt.Errorf("invalid amount %q", strings.TrimSpace(fields[3]))
		}
		if !amount.IsPositive() {
			return engine.Record{}, fmt.Errorf("amount must be positive, got %s", engine.FormatAmount(amount))
		}
		rec.Amount = amount
	}

	return rec, nil
}
