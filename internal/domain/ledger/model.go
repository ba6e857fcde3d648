// Package ledger converts completed transactions into balanced journal entries
// and drives the sync queue that feeds it.
package ledger

import (
	"errors"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

var (
	// ErrEntryNotFound is returned by repositories for unknown journal entries.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrDuplicateReference is returned when an entry with the same reference exists.
	ErrDuplicateReference = errors.New("journal entry reference already posted")
)

// Side is the debit or credit column of a journal line.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// ReversalPrefix marks the reference of a reversing entry.
const ReversalPrefix = "REV-"

// JournalLine is one debit or credit line.
type JournalLine struct {
	LineNo      int         `db:"line_no" json:"lineNo"`
	Side        Side        `db:"side" json:"side"`
	AccountCode string      `db:"account_code" json:"accountCode"`
	Amount      types.Money `db:"amount" json:"amount"`
	Memo        string      `db:"memo" json:"memo,omitempty"`
}

// JournalEntry is an immutable double-entry posting. Corrections are new
// reversing entries, never updates.
type JournalEntry struct {
	ID              id.ID         `db:"id" json:"id"`
	EntryDate       time.Time     `db:"entry_date" json:"entryDate"`
	Reference       string        `db:"reference" json:"reference"`
	Description     string        `db:"description" json:"description"`
	TransactionID   *id.ID        `db:"transaction_id" json:"transactionId,omitempty"`
	ReversesEntryID *id.ID        `db:"reverses_entry_id" json:"reversesEntryId,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	Lines           []JournalLine `db:"-" json:"lines"`
}

// Totals returns the debit and credit sums.
func (e *JournalEntry) Totals() (debits, credits types.Money) {
	debits, credits = types.Zero(), types.Zero()
	for _, l := range e.Lines {
		if l.Side == Debit {
			debits = debits.Add(l.Amount)
		} else {
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}

// Balanced reports whether debits and credits agree within epsilon.
func (e *JournalEntry) Balanced(epsilon types.Money) bool {
	d, c := e.Totals()
	return types.WithinTolerance(d, c, epsilon)
}

// LinesFor returns the lines posted to an account on one side.
func (e *JournalEntry) LinesFor(side Side, account string) []JournalLine {
	var out []JournalLine
	for _, l := range e.Lines {
		if l.Side == side && l.AccountCode == account {
			out = append(out, l)
		}
	}
	return out
}

// ItemError records one failed queue entry in a batch.
type ItemError struct {
	TransactionID id.ID  `json:"transactionId"`
	Code          string `json:"code"`
	Message       string `json:"message"`
}

// BatchSummary is the outcome of one ProcessBatch run.
type BatchSummary struct {
	Processed int         `json:"processed"`
	Synced    int         `json:"synced"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors"`
}
