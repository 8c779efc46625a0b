/*
Package engine replays an ordered stream of client-tagged transactions and
produces the resulting per-client account state.

PURPOSE:
  This package is the core state machine. It turns deposit, withdrawal,
  dispute, resolve and chargeback records into consistent account balances,
  including the dispute lifecycle that references earlier transactions by id.

KEY CONCEPTS IN THIS FILE (types.go):
  - ClientID / TxID: Type-safe identifiers matching the wire format
  - Record: A single parsed input transaction (closed set of kinds)
  - HistoryEntry: Internal memory of an accepted deposit/withdrawal,
    carrying its dispute state
  - AccountSnapshot: Read-only view of an account's final balances

DESIGN PRINCIPLES:
  1. Precision: Amounts use decimal.Decimal quantized to 4 fractional
     digits. No floating point anywhere in balance arithmetic.
  2. Closed dispatch: Record.Kind is a closed set; the Processor switches
     exhaustively over it.
  3. No environment: The engine takes an ordered record stream and nothing
     else. No clock, no filesystem, no network.

SEE ALSO:
  - ledger.go: Per-client balance mutations
  - processor.go: The per-record state machine
  - errors.go: Rejection taxonomy
*/
package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ClientID identifies an account. Assigned by the upstream system; the
// engine creates accounts implicitly on first deposit or withdrawal.
type ClientID uint16

// TxID identifies a deposit or withdrawal. Globally unique across clients:
// a dispute locates its target by TxID alone.
type TxID uint32

// =============================================================================
// AMOUNTS - Fixed precision, 4 fractional digits
// =============================================================================

// AmountPlaces is the fixed precision of all monetary amounts.
const AmountPlaces = 4

// ParseAmount parses a decimal amount from its wire representation and
// quantizes it to AmountPlaces fractional digits (round half away from zero).
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(AmountPlaces), nil
}

// MustAmount parses an amount or panics. For fixtures and tests.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatAmount renders an amount with up to AmountPlaces fractional digits,
// trailing zeros trimmed ("1.5000" -> "1.5", "100.0000" -> "100").
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(AmountPlaces).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// =============================================================================
// RECORD - One parsed input transaction
// =============================================================================

// Kind is the transaction kind. The set is closed: the Processor dispatches
// over it with an exhaustive switch, so adding a kind is a compile-visible
// change, not a silently ignored row.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// ParseKind maps wire text to a Kind, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDeposit:
		return KindDeposit, true
	case KindWithdrawal:
		return KindWithdrawal, true
	case KindDispute:
		return KindDispute, true
	case KindResolve:
		return KindResolve, true
	case KindChargeback:
		return KindChargeback, true
	}
	return "", false
}

// Movement reports whether the kind carries an amount of its own
// (deposit/withdrawal) as opposed to referencing a prior transaction.
func (k Kind) Movement() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Record is one validated input transaction.
//
// For deposits and withdrawals, Tx is the record's own unique id and Amount
// is required and positive. For dispute/resolve/chargeback, Tx names the
// prior deposit/withdrawal being acted on and Amount is zero.
type Record struct {
	Kind   Kind
	Client ClientID
	Tx     TxID
	Amount decimal.Decimal
}

// =============================================================================
// DISPUTE LIFECYCLE
// =============================================================================

// DisputeState tracks where a history entry sits in the dispute lifecycle.
//
//	none --dispute--> disputed --resolve-->    resolved    (terminal)
//	                  disputed --chargeback--> charged_back (terminal)
type DisputeState string

const (
	DisputeNone        DisputeState = "none"
	DisputeDisputed    DisputeState = "disputed"
	DisputeResolved    DisputeState = "resolved"
	DisputeChargedBack DisputeState = "charged_back"
)

// Terminal reports whether the state admits no further transitions.
func (s DisputeState) Terminal() bool {
	return s == DisputeResolved || s == DisputeChargedBack
}

// HistoryEntry is the engine's memory of an accepted deposit or withdrawal.
// Later dispute-lifecycle records are validated against it.
type HistoryEntry struct {
	Tx     TxID
	Client ClientID
	Kind   Kind
	Amount decimal.Decimal
	State  DisputeState
}

// =============================================================================
// ACCOUNT SNAPSHOT - Read-only view of final state
// =============================================================================

// AccountSnapshot is the externally visible state of one account.
// Total is derived, never stored: it always equals Available + Held.
type AccountSnapshot struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// =============================================================================
// RECORD STREAM
// =============================================================================

// RecordSource is a lazy, ordered, finite stream of records.
// Next returns io.EOF when the stream is exhausted. Any other error is a
// stream-level failure and terminates processing.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
}

// Outcome is the per-record result reported by Process. Err is nil for
// accepted records and one of the rejection errors otherwise.
type Outcome struct {
	Record Record
	Err    error
}

// Accepted reports whether the record was applied.
func (o Outcome) Accepted() bool { return o.Err == nil }
