/*
processor.go - The per-record state machine

PURPOSE:
  The Processor consumes the transaction stream in arrival order, resolves
  each record against the Ledger and the history of accepted transactions,
  applies the correct state transition or rejects the record, and reports
  per-record outcomes. Rejections are local: the record is dropped and
  processing continues.

PER-RECORD ALGORITHM:
  deposit     duplicate tx id? reject. Locked account? reject. Otherwise
              credit available and remember the transaction.
  withdrawal  duplicate tx id? reject. Locked or insufficient available?
              reject. Otherwise debit available and remember.
  dispute     target must exist, belong to the same client, and be in
              state none. Moves the original amount available -> held.
  resolve     target must exist, match client, and be disputed.
              Moves the amount held -> available. Terminal.
  chargeback  target must exist, match client, and be disputed. Withdraws
              the held amount and locks the account. Terminal.

  A withdrawal's amount is disputed symmetrically to a deposit's: the
  engine always moves the original transaction's absolute amount and does
  not branch on direction.

ORDERING:
  One record at a time, in arrival order. Dispute correctness depends on
  prior records having been applied, so the processor never reorders and
  never processes two records of a run concurrently.

SEE ALSO:
  - ledger.go: Balance mutations invoked here
  - journal.go: Outcome trail written by Submit/Process
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor validates and sequences transactions against the Ledger and the
// transaction history.
type Processor struct {
	ledger  *Ledger
	journal Journal // nil means no journaling

	mu      sync.RWMutex
	history map[TxID]*HistoryEntry

	// OnJournalError is invoked when an outcome cannot be journaled.
	// Journal failures never fail the record they describe.
	OnJournalError func(error)
}

// NewProcessor creates a processor over ledger. journal may be nil.
func NewProcessor(ledger *Ledger, journal Journal) *Processor {
	return &Processor{
		ledger:  ledger,
		journal: journal,
		history: make(map[TxID]*HistoryEntry),
	}
}

// Ledger returns the underlying account ledger.
func (p *Processor) Ledger() *Ledger { return p.ledger }

// =============================================================================
// STREAM PROCESSING
// =============================================================================

// Process drains src in order, applying every record and collecting one
// Outcome per record. Per-record rejections never abort the run; the
// returned error is non-nil only for a stream-level failure, with all
// outcomes up to that point preserved.
func (p *Processor) Process(ctx context.Context, src RecordSource) ([]Outcome, error) {
	var outcomes []Outcome
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return outcomes, nil
		}
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, Outcome{Record: rec, Err: p.Submit(ctx, rec)})
	}
}

// Submit applies a single record and journals its outcome.
// Returns nil if the record was accepted, or a per-record rejection error
// (see errors.go). The ledger is never left partially mutated.
func (p *Processor) Submit(ctx context.Context, rec Record) error {
	err := p.accept(rec)
	p.journalOutcome(ctx, rec, err)
	return err
}

func (p *Processor) accept(rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch rec.Kind {
	case KindDeposit:
		return p.deposit(rec)
	case KindWithdrawal:
		return p.withdrawal(rec)
	case KindDispute:
		return p.dispute(rec)
	case KindResolve:
		return p.resolve(rec)
	case KindChargeback:
		return p.chargeback(rec)
	default:
		return fmt.Errorf("unsupported transaction kind %q", rec.Kind)
	}
}

// =============================================================================
// MOVEMENTS - deposit / withdrawal
// =============================================================================

func (p *Processor) deposit(rec Record) error {
	if _, exists := p.history[rec.Tx]; exists {
		return ErrDuplicateTransaction
	}
	if err := p.ledger.ApplyDeposit(rec.Client, rec.Amount); err != nil {
		// Rejected records are not recorded in history.
		return err
	}
	p.remember(rec)
	return nil
}

func (p *Processor) withdrawal(rec Record) error {
	if _, exists := p.history[rec.Tx]; exists {
		return ErrDuplicateTransaction
	}
	if err := p.ledger.ApplyWithdrawal(rec.Client, rec.Amount); err != nil {
		return err
	}
	p.remember(rec)
	return nil
}

func (p *Processor) remember(rec Record) {
	p.history[rec.Tx] = &HistoryEntry{
		Tx:     rec.Tx,
		Client: rec.Client,
		Kind:   rec.Kind,
		Amount: rec.Amount,
		State:  DisputeNone,
	}
}

// =============================================================================
// DISPUTE LIFECYCLE - dispute / resolve / chargeback
// =============================================================================

func (p *Processor) dispute(rec Record) error {
	entry, err := p.lookup(rec)
	if err != nil {
		return err
	}
	if entry.State != DisputeNone {
		return &DisputeStateError{Tx: entry.Tx, State: entry.State, Want: DisputeNone}
	}
	p.ledger.MoveToHeld(entry.Client, entry.Amount)
	entry.State = DisputeDisputed
	return nil
}

func (p *Processor) resolve(rec Record) error {
	entry, err := p.lookup(rec)
	if err != nil {
		return err
	}
	if entry.State != DisputeDisputed {
		return &DisputeStateError{Tx: entry.Tx, State: entry.State, Want: DisputeDisputed}
	}
	p.ledger.MoveToAvailable(entry.Client, entry.Amount)
	entry.State = DisputeResolved
	return nil
}

func (p *Processor) chargeback(rec Record) error {
	entry, err := p.lookup(rec)
	if err != nil {
		return err
	}
	if entry.State != DisputeDisputed {
		return &DisputeStateError{Tx: entry.Tx, State: entry.State, Want: DisputeDisputed}
	}
	p.ledger.Chargeback(entry.Client, entry.Amount)
	entry.State = DisputeChargedBack
	return nil
}

// lookup finds the history entry a lifecycle record references and checks
// client ownership. Disputes never create accounts or history entries.
func (p *Processor) lookup(rec Record) (*HistoryEntry, error) {
	entry, ok := p.history[rec.Tx]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	if entry.Client != rec.Client {
		return nil, ErrClientMismatch
	}
	return entry, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// HistoryEntry returns a copy of the history entry for tx, if any.
func (p *Processor) HistoryEntry(tx TxID) (HistoryEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.history[tx]
	if !ok {
		return HistoryEntry{}, false
	}
	return *entry, true
}

// =============================================================================
// JOURNALING
// =============================================================================

func (p *Processor) journalOutcome(ctx context.Context, rec Record, recErr error) {
	if p.journal == nil {
		return
	}
	entry := Entry{
		Kind:     rec.Kind,
		Client:   rec.Client,
		Tx:       rec.Tx,
		Amount:   rec.Amount,
		Accepted: recErr == nil,
	}
	if recErr != nil {
		entry.Reason = recErr.Error()
	}
	if err := p.journal.Append(ctx, entry); err != nil && p.OnJournalError != nil {
		p.OnJournalError(err)
	}
}
