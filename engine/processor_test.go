package engine_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payments-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func deposit(client engine.ClientID, tx engine.TxID, amount string) engine.Record {
	return engine.Record{Kind: engine.KindDeposit, Client: client, Tx: tx, Amount: amt(amount)}
}

func withdrawal(client engine.ClientID, tx engine.TxID, amount string) engine.Record {
	return engine.Record{Kind: engine.KindWithdrawal, Client: client, Tx: tx, Amount: amt(amount)}
}

func dispute(client engine.ClientID, tx engine.TxID) engine.Record {
	return engine.Record{Kind: engine.KindDispute, Client: client, Tx: tx}
}

func resolve(client engine.ClientID, tx engine.TxID) engine.Record {
	return engine.Record{Kind: engine.KindResolve, Client: client, Tx: tx}
}

func chargeback(client engine.ClientID, tx engine.TxID) engine.Record {
	return engine.Record{Kind: engine.KindChargeback, Client: client, Tx: tx}
}

func newProcessor() *engine.Processor {
	return engine.NewProcessor(engine.NewLedger(), nil)
}

// submit applies records one at a time and checks the total invariant after
// every step, not just at the end.
func submit(t *testing.T, p *engine.Processor, recs ...engine.Record) []error {
	t.Helper()

	ctx := context.Background()
	errs := make([]error, len(recs))
	for i, rec := range recs {
		errs[i] = p.Submit(ctx, rec)
		for _, snap := range p.Ledger().SnapshotAll() {
			assert.True(t, snap.Total.Equal(snap.Available.Add(snap.Held)),
				"total invariant violated for client %d after record %d", snap.Client, i)
		}
	}
	return errs
}

func requireAccepted(t *testing.T, errs []error) {
	t.Helper()
	for i, err := range errs {
		require.NoError(t, err, "record %d should be accepted", i)
	}
}

// =============================================================================
// MOVEMENT SCENARIOS
// =============================================================================

func TestProcessor_Deposit(t *testing.T) {
	p := newProcessor()

	requireAccepted(t, submit(t, p, deposit(1, 1, "100")))

	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Deposit_MultipleClients(t *testing.T) {
	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		deposit(2, 2, "200"),
	))

	assertBalances(t, p.Ledger(), 1, "100", "0", false)
	assertBalances(t, p.Ledger(), 2, "200", "0", false)
}

func TestProcessor_Withdrawal(t *testing.T) {
	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "10"),
	))

	assertBalances(t, p.Ledger(), 1, "90", "0", false)
}

func TestProcessor_Withdrawal_Overdraw_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "100.01"),
	)

	assert.ErrorIs(t, errs[1], engine.ErrInsufficientFunds)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)

	// A rejected withdrawal leaves no history entry.
	_, ok := p.HistoryEntry(2)
	assert.False(t, ok)
}

func TestProcessor_DuplicateTxID_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		deposit(1, 1, "100"),
		withdrawal(2, 1, "5"), // withdrawals share the id space
	)

	assert.ErrorIs(t, errs[1], engine.ErrDuplicateTransaction)
	assert.ErrorIs(t, errs[2], engine.ErrDuplicateTransaction)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Withdrawal_CannotCreateFunds(t *testing.T) {
	// GIVEN: A brand new client
	// WHEN: Its first record is a withdrawal
	// THEN: Rejected; the account exists but stays zeroed

	p := newProcessor()

	errs := submit(t, p, withdrawal(9, 1, "10"))

	assert.ErrorIs(t, errs[0], engine.ErrInsufficientFunds)
	assertBalances(t, p.Ledger(), 9, "0", "0", false)
}

// =============================================================================
// DISPUTE LIFECYCLE SCENARIOS
// =============================================================================

func TestProcessor_Dispute_HoldsFunds(t *testing.T) {
	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
	))

	assertBalances(t, p.Ledger(), 1, "0", "100", false)

	entry, ok := p.HistoryEntry(1)
	require.True(t, ok)
	assert.Equal(t, engine.DisputeDisputed, entry.State)
}

func TestProcessor_Dispute_Resolve_ReleasesFunds(t *testing.T) {
	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		resolve(1, 1),
	))

	assertBalances(t, p.Ledger(), 1, "100", "0", false)

	entry, _ := p.HistoryEntry(1)
	assert.Equal(t, engine.DisputeResolved, entry.State)
}

func TestProcessor_Dispute_Chargeback_LocksAccount(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		chargeback(1, 1),
		deposit(1, 3, "50"), // locked account rejects new deposits
	)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NoError(t, errs[2])
	assert.ErrorIs(t, errs[3], engine.ErrAccountLocked)

	assertBalances(t, p.Ledger(), 1, "0", "0", true)

	entry, _ := p.HistoryEntry(1)
	assert.Equal(t, engine.DisputeChargedBack, entry.State)
}

func TestProcessor_Dispute_UnknownTx_Rejected(t *testing.T) {
	// GIVEN: tx 99 was never seen
	// WHEN: Disputing it
	// THEN: Rejected, and no account is implicitly created

	p := newProcessor()

	errs := submit(t, p, dispute(1, 99))

	assert.ErrorIs(t, errs[0], engine.ErrUnknownTransaction)
	_, ok := p.Ledger().Account(1)
	assert.False(t, ok, "a dispute alone must not create an account")
}

func TestProcessor_Dispute_ClientMismatch_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(2, 1),
	)

	assert.ErrorIs(t, errs[1], engine.ErrClientMismatch)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Dispute_AlreadyDisputed_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		dispute(1, 1),
	)

	assert.ErrorIs(t, errs[2], engine.ErrInvalidDisputeState)
	assertBalances(t, p.Ledger(), 1, "0", "100", false)
}

func TestProcessor_Dispute_ResolvedIsTerminal(t *testing.T) {
	// Once resolved, a tx can never be disputed again.

	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		resolve(1, 1),
		dispute(1, 1),
	)

	assert.ErrorIs(t, errs[3], engine.ErrInvalidDisputeState)
	var detail *engine.DisputeStateError
	require.ErrorAs(t, errs[3], &detail)
	assert.Equal(t, engine.DisputeResolved, detail.State)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Resolve_RequiresDisputedState(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		resolve(1, 1), // never disputed
	)

	assert.ErrorIs(t, errs[1], engine.ErrInvalidDisputeState)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Resolve_UnknownTx_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p, resolve(1, 1))

	assert.ErrorIs(t, errs[0], engine.ErrUnknownTransaction)
}

func TestProcessor_Resolve_ClientMismatch_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		resolve(2, 1),
	)

	assert.ErrorIs(t, errs[2], engine.ErrClientMismatch)
	assertBalances(t, p.Ledger(), 1, "0", "100", false)
}

func TestProcessor_Chargeback_RequiresDisputedState(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		chargeback(1, 1),
	)

	assert.ErrorIs(t, errs[1], engine.ErrInvalidDisputeState)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

func TestProcessor_Chargeback_ClientMismatch_Rejected(t *testing.T) {
	p := newProcessor()

	errs := submit(t, p,
		deposit(1, 1, "100"),
		dispute(1, 1),
		chargeback(2, 1),
	)

	assert.ErrorIs(t, errs[2], engine.ErrClientMismatch)
	assertBalances(t, p.Ledger(), 1, "0", "100", false)
}

func TestProcessor_DisputedWithdrawal_HoldsOriginalAmount(t *testing.T) {
	// Withdrawals are disputed symmetrically to deposits: the engine moves
	// the original transaction's absolute amount to held.

	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "40"),
		dispute(1, 2),
	))

	assertBalances(t, p.Ledger(), 1, "20", "40", false)
}

func TestProcessor_DisputeDeposit_AfterSpending_GoesNegative(t *testing.T) {
	// Boundary case: disputing a deposit whose funds were already withdrawn
	// drives available negative. Accepted behavior.

	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		withdrawal(1, 2, "50"),
		dispute(1, 1),
	))

	assertBalances(t, p.Ledger(), 1, "-50", "100", false)

	// Chargeback then leaves the client owing money.
	requireAccepted(t, submit(t, p, chargeback(1, 1)))
	assertBalances(t, p.Ledger(), 1, "-50", "0", true)
}

func TestProcessor_LockedAccount_DisputesStillProceed(t *testing.T) {
	// A chargeback locks the account against deposits/withdrawals, but the
	// lifecycle of other already-recorded transactions continues.

	p := newProcessor()

	requireAccepted(t, submit(t, p,
		deposit(1, 1, "100"),
		deposit(1, 2, "40"),
		dispute(1, 1),
		chargeback(1, 1), // locks
		dispute(1, 2),
		resolve(1, 2),
	))

	assertBalances(t, p.Ledger(), 1, "40", "0", true)
}

// =============================================================================
// REJECTION IDEMPOTENCE
// =============================================================================

func TestProcessor_RejectionIsIdempotent(t *testing.T) {
	// Repeating the same invalid record never changes state nor succeeds
	// without an intervening state change.

	p := newProcessor()
	requireAccepted(t, submit(t, p, deposit(1, 1, "100")))

	for i := 0; i < 3; i++ {
		errs := submit(t, p, resolve(1, 1))
		assert.ErrorIs(t, errs[0], engine.ErrInvalidDisputeState)
		assertBalances(t, p.Ledger(), 1, "100", "0", false)
	}
}

// =============================================================================
// STREAM PROCESSING
// =============================================================================

// sliceSource is an in-memory engine.RecordSource for tests.
type sliceSource struct {
	recs []engine.Record
	pos  int
	err  error // returned after the records are exhausted, instead of EOF
}

func (s *sliceSource) Next(ctx context.Context) (engine.Record, error) {
	if s.pos >= len(s.recs) {
		if s.err != nil {
			return engine.Record{}, s.err
		}
		return engine.Record{}, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

func TestProcessor_Process_CollectsOutcomes(t *testing.T) {
	p := newProcessor()
	src := &sliceSource{recs: []engine.Record{
		deposit(1, 1, "100"),
		withdrawal(1, 2, "500"), // rejected
		dispute(1, 1),
	}}

	outcomes, err := p.Process(context.Background(), src)

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Accepted())
	assert.ErrorIs(t, outcomes[1].Err, engine.ErrInsufficientFunds)
	assert.True(t, outcomes[2].Accepted())
	assertBalances(t, p.Ledger(), 1, "0", "100", false)
}

func TestProcessor_Process_StreamFailure_PreservesOutcomes(t *testing.T) {
	// A stream-level failure terminates the run but keeps everything
	// processed so far.

	p := newProcessor()
	streamErr := errors.New("read: connection reset")
	src := &sliceSource{
		recs: []engine.Record{deposit(1, 1, "100")},
		err:  streamErr,
	}

	outcomes, err := p.Process(context.Background(), src)

	assert.ErrorIs(t, err, streamErr)
	require.Len(t, outcomes, 1)
	assertBalances(t, p.Ledger(), 1, "100", "0", false)
}

// =============================================================================
// JOURNALING
// =============================================================================

func TestProcessor_JournalsEveryOutcome(t *testing.T) {
	journal := engine.NewMemoryJournal()
	p := engine.NewProcessor(engine.NewLedger(), journal)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, deposit(1, 1, "100")))
	assert.Error(t, p.Submit(ctx, withdrawal(1, 2, "500")))

	entries, err := journal.Query(ctx, engine.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Accepted)
	assert.Empty(t, entries[0].Reason)
	assert.False(t, entries[1].Accepted)
	assert.Contains(t, entries[1].Reason, "insufficient funds")

	rejected := false
	filtered, err := journal.Query(ctx, engine.Filter{Accepted: &rejected})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, engine.TxID(2), filtered[0].Tx)
}
