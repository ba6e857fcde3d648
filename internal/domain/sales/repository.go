package sales

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
)

// Repository persists transactions. Transactions are written once and never updated.
type Repository interface {
	// Create inserts header, lines and payments. Returns ErrDuplicateTransaction
	// when the id or number is taken.
	Create(ctx context.Context, tx *Transaction) error

	// Get loads a transaction with its lines and payments in line order.
	Get(ctx context.Context, txID id.ID) (*Transaction, error)
}

// StockAdjuster applies canonical stock deltas.
type StockAdjuster interface {
	ApplyDelta(ctx context.Context, itemID id.ID, delta types.Quantity, reason string) (*stock.Change, error)
}

// Enqueuer registers a completed transaction for ledger posting.
type Enqueuer interface {
	Enqueue(ctx context.Context, txID id.ID) error
}
