/*
errors.go - Centralized rejection taxonomy for the engine

PURPOSE:
  All engine error types in one place. Every error here is per-record and
  non-fatal: the offending record is dropped, reported, and processing
  continues. No error leaves the ledger partially mutated.

ERROR CATEGORIES:
  1. Balance errors  - locked account, insufficient funds
  2. History errors  - duplicate, unknown, or mismatched transaction ids
  3. Lifecycle errors - dispute state machine violations

USAGE:
  Adapters classify with errors.Is:

    if errors.Is(err, engine.ErrInsufficientFunds) {
        // reject the row, keep going
    }

SEE ALSO:
  - ledger.go: Returns the balance errors
  - processor.go: Returns the history and lifecycle errors
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountLocked is returned when a deposit or withdrawal targets an
	// account frozen by a prior chargeback.
	ErrAccountLocked = errors.New("account locked")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the
	// account's available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction is returned when a deposit or withdrawal
	// reuses a transaction id already in history.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrUnknownTransaction is returned when a dispute, resolve, or
	// chargeback references a transaction id that was never accepted.
	ErrUnknownTransaction = errors.New("unknown transaction id")

	// ErrClientMismatch is returned when a dispute-lifecycle record names a
	// different client than the transaction it references.
	ErrClientMismatch = errors.New("client does not match disputed transaction")

	// ErrInvalidDisputeState is returned when a lifecycle transition is
	// attempted from the wrong state (e.g. resolving an undisputed
	// transaction, or disputing one already resolved).
	ErrInvalidDisputeState = errors.New("invalid dispute state for transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports the shortfall behind a rejected withdrawal.
type InsufficientFundsError struct {
	Client    ClientID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: client %d requested %s, available %s",
		e.Client, FormatAmount(e.Requested), FormatAmount(e.Available))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// DisputeStateError reports an invalid lifecycle transition.
type DisputeStateError struct {
	Tx    TxID
	State DisputeState
	Want  DisputeState
}

func (e *DisputeStateError) Error() string {
	return fmt.Sprintf("tx %d is %s, transition requires %s", e.Tx, e.State, e.Want)
}

func (e *DisputeStateError) Unwrap() error {
	return ErrInvalidDisputeState
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRecordError reports whether err is a per-record rejection: local,
// non-fatal, and safe to skip. Anything else is a stream-level failure.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrUnknownTransaction) ||
		errors.Is(err, ErrClientMismatch) ||
		errors.Is(err, ErrInvalidDisputeState)
}
