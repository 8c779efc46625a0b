/*
journal.go - Append-only record of processing outcomes

PURPOSE:
  The Journal keeps an auditable trail of every record the processor saw:
  what it was, whether it was accepted, and why it was rejected. It is
  observation only - replaying a journal does not reconstruct account
  state, and the engine never reads it back during processing.

CONTRACT:
  - Append-only. No update, no delete.
  - A journal failure never fails the record it describes; the processor
    reports it through its OnJournalError hook and moves on.
  - A nil Journal is valid and means "don't journal" (the batch CLI runs
    without one).

SEE ALSO:
  - processor.go: Writes one entry per record
  - store/sqlite: Durable implementation for the server deployment
*/
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// JOURNAL - Interface
// =============================================================================

// Entry records one processed input record and its outcome.
type Entry struct {
	ID       string
	At       time.Time
	Kind     Kind
	Client   ClientID
	Tx       TxID
	Amount   decimal.Decimal
	Accepted bool
	Reason   string // rejection reason, empty when accepted
}

// Filter narrows a journal query. Nil fields match everything.
type Filter struct {
	Client   *ClientID
	Tx       *TxID
	Accepted *bool
}

// Journal stores processing outcomes. Append-only.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

// =============================================================================
// MEMORY JOURNAL - In-memory implementation (CLI, tests)
// =============================================================================

// MemoryJournal keeps entries in insertion order.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) Query(_ context.Context, filter Filter) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if filter.Client != nil && e.Client != *filter.Client {
			continue
		}
		if filter.Tx != nil && e.Tx != *filter.Tx {
			continue
		}
		if filter.Accepted != nil && e.Accepted != *filter.Accepted {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
