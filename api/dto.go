/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the engine's types
  from the external contract. Amounts are rendered as strings with up to
  4 fractional digits so clients never see binary floating point.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Source types
*/
package api

import (
	"time"

	"github.com/warp/payments-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TransactionRequest submits one transaction record.
// Amount is required for deposit/withdrawal and must be absent or empty
// for dispute/resolve/chargeback.
type TransactionRequest struct {
	Type   string `json:"type"`
	Client uint16 `json:"client"`
	Tx     uint32 `json:"tx"`
	Amount string `json:"amount,omitempty"`
}

// AccountDTO is one account's state.
type AccountDTO struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// TransactionDTO is the history entry for an accepted deposit/withdrawal.
type TransactionDTO struct {
	Tx           uint32 `json:"tx"`
	Client       uint16 `json:"client"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	DisputeState string `json:"dispute_state"`
}

// JournalEntryDTO is one journaled processing outcome.
type JournalEntryDTO struct {
	ID       string `json:"id"`
	At       string `json:"at"`
	Type     string `json:"type"`
	Client   uint16 `json:"client"`
	Tx       uint32 `json:"tx"`
	Amount   string `json:"amount,omitempty"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorResponse is the JSON shape of all error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(s engine.AccountSnapshot) AccountDTO {
	return AccountDTO{
		Client:    uint16(s.Client),
		Available: engine.FormatAmount(s.Available),
		Held:      engine.FormatAmount(s.Held),
		Total:     engine.FormatAmount(s.Total),
		Locked:    s.Locked,
	}
}

func toTransactionDTO(e engine.HistoryEntry) TransactionDTO {
	return TransactionDTO{
		Tx:           uint32(e.Tx),
		Client:       uint16(e.Client),
		Type:         string(e.Kind),
		Amount:       engine.FormatAmount(e.Amount),
		DisputeState: string(e.State),
	}
}

func toJournalEntryDTO(e engine.Entry) JournalEntryDTO {
	dto := JournalEntryDTO{
		ID:       e.ID,
		At:       e.At.Format(time.RFC3339),
		Type:     string(e.Kind),
		Client:   uint16(e.Client),
		Tx:       uint32(e.Tx),
		Accepted: e.Accepted,
		Reason:   e.Reason,
	}
	if e.Kind.Movement() {
		dto.Amount = engine.FormatAmount(e.Amount)
	}
	return dto
}
