/*
handlers.go - HTTP handlers over the payments engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response and JSON
  serialization; all transaction semantics stay in the engine.

ENDPOINTS:
  POST /api/transactions        Submit one transaction record
  GET  /api/accounts            All account states (ascending client id)
  GET  /api/accounts/{client}   One account's state
  GET  /api/transactions/{tx}   History entry with dispute state
  GET  /api/journal             Processing outcomes (filterable)

ORDERING:
  The engine requires records to be applied one at a time, in arrival
  order. The handler serializes submissions with a mutex, so concurrent
  POSTs are applied in the order they acquire it.

ERROR HANDLING:
  Per-record rejections map to HTTP statuses:
  - 400: row cannot be parsed into a record
  - 404: unknown transaction / unknown account
  - 409: duplicate tx id, client mismatch, invalid dispute state
  - 422: account locked, insufficient funds
  The run itself is never aborted by a rejection.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/payments-engine/engine"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	proc    *engine.Processor
	journal engine.Journal // nil when journaling is disabled
	log     zerolog.Logger

	// Serializes Submit calls: the engine processes one record at a time.
	submitMu sync.Mutex
}

// NewHandler creates a handler over proc. journal may be nil, in which case
// GET /api/journal returns 404.
func NewHandler(proc *engine.Processor, journal engine.Journal, log zerolog.Logger) *Handler {
	return &Handler{proc: proc, journal: journal, log: log}
}

// =============================================================================
// TRANSACTION SUBMISSION
// =============================================================================

// SubmitTransaction applies one record.
// POST /api/transactions
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := toRecord(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction record", err)
		return
	}

	h.submitMu.Lock()
	err = h.proc.Submit(r.Context(), rec)
	h.submitMu.Unlock()

	if err != nil {
		h.log.Warn().
			Str("type", string(rec.Kind)).
			Uint16("client", uint16(rec.Client)).
			Uint32("tx", uint32(rec.Tx)).
			Err(err).
			Msg("transaction rejected")
		writeError(w, rejectionStatus(err), "Transaction rejected", err)
		return
	}

	account, _ := h.proc.Ledger().Account(rec.Client)
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// toRecord validates a TransactionRequest into an engine.Record.
func toRecord(req TransactionRequest) (engine.Record, error) {
	kind, ok := engine.ParseKind(req.Type)
	if !ok {
		return engine.Record{}, errors.New("unknown transaction type " + strconv.Quote(req.Type))
	}

	rec := engine.Record{
		Kind:   kind,
		Client: engine.ClientID(req.Client),
		Tx:     engine.TxID(req.Tx),
	}

	if kind.Movement() {
		if req.Amount == "" {
			return engine.Record{}, errors.New(string(kind) + " requires an amount")
		}
		amount, err := engine.ParseAmount(req.Amount)
		if err != nil {
			return engine.Record{}, errors.New("invalid amount " + strconv.Quote(req.Amount))
		}
		if !amount.IsPositive() {
			return engine.Record{}, errors.New("amount must be positive")
		}
		rec.Amount = amount
	} else if req.Amount != "" {
		return engine.Record{}, errors.New(string(kind) + " must not carry an amount")
	}

	return rec, nil
}

// rejectionStatus maps a per-record rejection to an HTTP status.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownTransaction):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateTransaction),
		errors.Is(err, engine.ErrClientMismatch),
		errors.Is(err, engine.ErrInvalidDisputeState):
		return http.StatusConflict
	case errors.Is(err, engine.ErrAccountLocked),
		errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// ACCOUNT QUERIES
// =============================================================================

// ListAccounts returns every known account, ascending by client id.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	snaps := h.proc.Ledger().SnapshotAll()
	dtos := make([]AccountDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toAccountDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns one account.
// GET /api/accounts/{client}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	client, err := strconv.ParseUint(chi.URLParam(r, "client"), 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client id", err)
		return
	}

	snap, ok := h.proc.Ledger().Account(engine.ClientID(client))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(snap))
}

// =============================================================================
// TRANSACTION QUERIES
// =============================================================================

// GetTransaction returns the history entry for an accepted
// deposit/withdrawal, including its dispute state.
// GET /api/transactions/{tx}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := strconv.ParseUint(chi.URLParam(r, "tx"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tx id", err)
		return
	}

	entry, ok := h.proc.HistoryEntry(engine.TxID(tx))
	if !ok {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(entry))
}

// =============================================================================
// JOURNAL QUERIES
// =============================================================================

// QueryJournal returns journaled outcomes, filterable by ?client=, ?tx=,
// ?accepted=.
// GET /api/journal
func (h *Handler) QueryJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "Journal not enabled", nil)
		return
	}

	var filter engine.Filter
	q := r.URL.Query()

	if v := q.Get("client"); v != "" {
		client, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid client filter", err)
			return
		}
		c := engine.ClientID(client)
		filter.Client = &c
	}
	if v := q.Get("tx"); v != "" {
		tx, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tx filter", err)
			return
		}
		t := engine.TxID(tx)
		filter.Tx = &t
	}
	if v := q.Get("accepted"); v != "" {
		accepted, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid accepted filter", err)
			return
		}
		filter.Accepted = &accepted
	}

	entries, err := h.journal.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query journal", err)
		return
	}

	dtos := make([]JournalEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toJournalEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
