package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/sales"
	"stockledger/internal/domain/syncqueue"
)

// Repository persists journal entries. Entries are append-only.
type Repository interface {
	// Create inserts the entry and its lines. Returns ErrDuplicateReference
	// when the reference is already posted.
	Create(ctx context.Context, entry *JournalEntry) error

	// FindIDByReference returns the id of the entry posted under reference.
	FindIDByReference(ctx context.Context, reference string) (id.ID, bool, error)

	Get(ctx context.Context, entryID id.ID) (*JournalEntry, error)
	GetByReference(ctx context.Context, reference string) (*JournalEntry, error)
}

// TransactionSource loads completed transactions.
type TransactionSource interface {
	Get(ctx context.Context, txID id.ID) (*sales.Transaction, error)
}

// Queue is the worker side of the sync queue.
type Queue interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]syncqueue.Entry, error)
	MarkSynced(ctx context.Context, txID id.ID, entryID id.ID) error
	MarkError(ctx context.Context, txID id.ID, message string) error
	ResetToPending(ctx context.Context, txIDs []id.ID) (int64, error)
}

// Auditor stores a snapshot of every posted entry.
type Auditor interface {
	RecordPosting(ctx context.Context, entry *JournalEntry, source *sales.Transaction) error
}
