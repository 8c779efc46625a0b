/*
ledger.go - Authoritative per-client balances

PURPOSE:
  The Ledger owns the mapping from client id to account state and applies
  one validated balance mutation at a time. It knows nothing about
  transaction history or the dispute lifecycle - that is the Processor's
  job. The Ledger only guarantees that each mutation either fully applies
  or fully refuses.

INVARIANTS:
  1. Total is derived: total == available + held, always. It is a computed
     view, never a stored field that could drift.
  2. Atomic mutations: every method checks its preconditions before
     touching a balance. A rejected mutation changes nothing.
  3. Locked is one-way: once a chargeback locks an account, it stays
     locked for the run's duration.

NEGATIVE AVAILABLE:
  MoveToHeld performs no sufficiency check. The amount being disputed was
  already credited by the original transaction, so available may
  legitimately go negative if a deposit's funds were spent before the
  dispute arrived. That is accepted behavior, not an error.

SEE ALSO:
  - processor.go: The only caller of the mutation methods
  - errors.go: ErrAccountLocked, ErrInsufficientFunds
*/
package engine

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT - Internal mutable state for one client
// =============================================================================

type account struct {
	client    ClientID
	available decimal.Decimal
	held      decimal.Decimal
	locked    bool
}

func (a *account) snapshot() AccountSnapshot {
	return AccountSnapshot{
		Client:    a.client,
		Available: a.available,
		Held:      a.held,
		Total:     a.available.Add(a.held),
		Locked:    a.locked,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger holds authoritative per-client balances.
//
// The RWMutex exists for read-side concurrency: the processor is the single
// writer (records are strictly ordered), but the HTTP surface may snapshot
// accounts while a stream is being applied.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[ClientID]*account
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[ClientID]*account)}
}

// GetOrCreate returns the account for client, initializing a zeroed,
// unlocked one on first reference. No failure mode.
func (l *Ledger) GetOrCreate(client ClientID) AccountSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(client).snapshot()
}

func (l *Ledger) getOrCreateLocked(client ClientID) *account {
	a, ok := l.accounts[client]
	if !ok {
		a = &account{
			client:    client,
			available: decimal.Zero,
			held:      decimal.Zero,
		}
		l.accounts[client] = a
	}
	return a
}

// ApplyDeposit credits available funds.
// Fails with ErrAccountLocked if the account is frozen; no mutation occurs.
func (l *Ledger) ApplyDeposit(client ClientID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.getOrCreateLocked(client)
	if a.locked {
		return ErrAccountLocked
	}
	a.available = a.available.Add(amount)
	return nil
}

// ApplyWithdrawal debits available funds.
// Fails with ErrAccountLocked if frozen, or InsufficientFundsError if the
// amount exceeds available; no mutation occurs on failure.
func (l *Ledger) ApplyWithdrawal(client ClientID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.getOrCreateLocked(client)
	if a.locked {
		return ErrAccountLocked
	}
	if amount.GreaterThan(a.available) {
		return &InsufficientFundsError{
			Client:    client,
			Requested: amount,
			Available: a.available,
		}
	}
	a.available = a.available.Sub(amount)
	return nil
}

// MoveToHeld freezes funds when a dispute opens: available decreases, held
// increases, total is unchanged. No sufficiency check - available may go
// negative (see file header).
func (l *Ledger) MoveToHeld(client ClientID, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.getOrCreateLocked(client)
	a.available = a.available.Sub(amount)
	a.held = a.held.Add(amount)
}

// MoveToAvailable releases held funds when a dispute resolves: the reverse
// of MoveToHeld. Total is unchanged.
func (l *Ledger) MoveToAvailable(client ClientID, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.getOrCreateLocked(client)
	a.available = a.available.Add(amount)
	a.held = a.held.Sub(amount)
}

// Chargeback withdraws held funds and freezes the account. Held and total
// both decrease; locked is set and stays set.
func (l *Ledger) Chargeback(client ClientID, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.getOrCreateLocked(client)
	a.held = a.held.Sub(amount)
	a.locked = true
}

// =============================================================================
// QUERIES
// =============================================================================

// Account returns a snapshot of one account, if it exists.
func (l *Ledger) Account(client ClientID) (AccountSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.accounts[client]
	if !ok {
		return AccountSnapshot{}, false
	}
	return a.snapshot(), true
}

// SnapshotAll returns the state of every known account, ascending by client
// id for deterministic output.
func (l *Ledger) SnapshotAll() []AccountSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snaps := make([]AccountSnapshot, 0, len(l.accounts))
	for _, a := range l.accounts {
		snaps = append(snaps, a.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Client < snaps[j].Client
	})
	return snaps
}
