// Package syncqueue tracks completed transactions awaiting ledger posting.
package syncqueue

import (
	"errors"
	"time"

	"stockledger/internal/core/id"
)

// ErrEntryNotFound is returned by repositories for unknown queue entries.
var ErrEntryNotFound = errors.New("sync queue entry not found")

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSynced     Status = "synced"
	StatusError      Status = "error"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusSynced, StatusError}
}

// CanTransition reports whether the queue permits moving from s to next.
//
//	pending    -> processing
//	processing -> synced | error | pending (stale reset)
//	error      -> processing | pending
//
// synced is terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusSynced || next == StatusError || next == StatusPending
	case StatusError:
		return next == StatusProcessing || next == StatusPending
	}
	return false
}

// Claimable reports whether a worker may pick up an entry in this status.
func (s Status) Claimable() bool {
	return s == StatusPending || s == StatusError
}

// Entry is one transaction's posting status. Entries are never deleted.
type Entry struct {
	TransactionID id.ID      `db:"transaction_id" json:"transactionId"`
	Status        Status     `db:"status" json:"status"`
	LastError     *string    `db:"last_error" json:"lastError,omitempty"`
	Attempts      int        `db:"attempts" json:"attempts"`
	ClaimedAt     *time.Time `db:"claimed_at" json:"claimedAt,omitempty"`
	SyncedEntryID *id.ID     `db:"synced_entry_id" json:"syncedEntryId,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// Stats counts entries per status.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Synced     int64 `json:"synced"`
	Error      int64 `json:"error"`
}

// Set records n for status s.
func (st *Stats) Set(s Status, n int64) {
	switch s {
	case StatusPending:
		st.Pending = n
	case StatusProcessing:
		st.Processing = n
	case StatusSynced:
		st.Synced = n
	case StatusError:
		st.Error = n
	}
}

// ByStatus returns the counts keyed by status name.
func (st Stats) ByStatus() map[string]int64 {
	return map[string]int64{
		string(StatusPending):    st.Pending,
		string(StatusProcessing): st.Processing,
		string(StatusSynced):     st.Synced,
		string(StatusError):      st.Error,
	}
}
