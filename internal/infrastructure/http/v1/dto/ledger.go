package dto

import (
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// ProcessBatchRequest is the body of POST /ledger/batches.
type ProcessBatchRequest struct {
	Limit int `json:"limit" binding:"min=0,max=1000"`
}

// ResetQueueRequest is the body of POST /ledger/queue/reset. Either
// transactionIds or staleAfter must be given.
type ResetQueueRequest struct {
	TransactionIDs []string `json:"transactionIds"`
	// StaleAfter is a Go duration string, e.g. "15m".
	StaleAfter string `json:"staleAfter"`
}

// ParseIDs converts the transaction ids.
func (r ResetQueueRequest) ParseIDs() ([]id.ID, error) {
	ids := make([]id.ID, 0, len(r.TransactionIDs))
	for _, raw := range r.TransactionIDs {
		v, err := id.Parse(raw)
		if err != nil {
			return nil, apperror.NewValidation("invalid transaction id").WithDetail("transactionId", raw)
		}
		ids = append(ids, v)
	}
	return ids, nil
}

// ReverseEntryRequest is the body of POST /ledger/entries/:id/reverse.
type ReverseEntryRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// JournalEntryResponse is an entry with its totals.
type JournalEntryResponse struct {
	*ledger.JournalEntry
	Debits   types.Money `json:"debits"`
	Credits  types.Money `json:"credits"`
	Balanced bool        `json:"balanced"`
}

// FromJournalEntry converts an entry to a response.
func FromJournalEntry(e *ledger.JournalEntry) JournalEntryResponse {
	d, c := e.Totals()
	return JournalEntryResponse{
		JournalEntry: e,
		Debits:       d,
		Credits:      c,
		Balanced:     e.Balanced(types.LedgerEpsilon),
	}
}
