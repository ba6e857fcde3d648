// Package tx defines the transaction contract domain engines depend on.
// The pgx implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
	"errors"
)

// ErrUnavailable marks a failure to start a transaction at all. Batch
// processors treat it as systemic and stop instead of recording per-item errors.
var ErrUnavailable = errors.New("transaction unavailable")

// Manager runs units of work against the shared relational store.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn as an independent sub-unit. Inside a transaction
	// a failing fn rolls back only its own writes; outside one it behaves like
	// RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}
