package syncqueue

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Repository is the durable queue table.
type Repository interface {
	// Enqueue inserts a pending entry. No-op when the transaction is already queued.
	Enqueue(ctx context.Context, txID id.ID) error

	// Claim atomically moves up to limit claimable entries to processing and
	// returns them. Entries stuck in processing longer than lease are claimable
	// again; a zero lease disables that reclaim.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Entry, error)

	MarkSynced(ctx context.Context, txID id.ID, entryID id.ID) error
	MarkError(ctx context.Context, txID id.ID, message string) error

	// ResetToPending moves the given non-synced entries back to pending.
	ResetToPending(ctx context.Context, txIDs []id.ID) (int64, error)

	// ResetStale moves processing entries claimed before now-olderThan back to pending.
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)

	Stats(ctx context.Context) (Stats, error)
	ListErrors(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, txID id.ID) (*Entry, error)
}
