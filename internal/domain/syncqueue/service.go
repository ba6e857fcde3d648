package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/metrics"
	"stockledger/pkg/logger"
)

// DefaultErrorListLimit caps ListErrors when no limit is given.
const DefaultErrorListLimit = 50

// Service exposes the operator side of the queue: inspection and the manual
// reset escape hatch for entries stuck in processing or error.
type Service struct {
	repo Repository
}

// NewService creates a queue admin service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enqueue registers a transaction for posting.
func (s *Service) Enqueue(ctx context.Context, txID id.ID) error {
	if err := s.repo.Enqueue(ctx, txID); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	metrics.RecordQueueTransition(string(StatusPending), 1)
	return nil
}

// Reset moves the given entries back to pending. With no ids it resets every
// processing entry claimed more than staleAfter ago.
func (s *Service) Reset(ctx context.Context, txIDs []id.ID, staleAfter time.Duration) (int64, error) {
	var (
		n   int64
		err error
	)
	if len(txIDs) > 0 {
		n, err = s.repo.ResetToPending(ctx, txIDs)
	} else {
		if staleAfter <= 0 {
			return 0, apperror.NewValidation("either transaction ids or a positive stale interval is required")
		}
		n, err = s.repo.ResetStale(ctx, staleAfter)
	}
	if err != nil {
		return 0, fmt.Errorf("reset queue entries: %w", err)
	}

	metrics.RecordQueueTransition(string(StatusPending), int(n))
	logger.Info(ctx, "sync queue entries reset to pending", "count", n, "explicit_ids", len(txIDs))
	return n, nil
}

// Stats returns per-status counts and refreshes the depth gauge.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	metrics.UpdateQueueDepth(st.ByStatus())
	return st, nil
}

// Errors lists entries currently in error, most recently updated first.
func (s *Service) Errors(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultErrorListLimit
	}
	return s.repo.ListErrors(ctx, limit)
}

// Get returns one transaction's queue entry.
func (s *Service) Get(ctx context.Context, txID id.ID) (*Entry, error) {
	e, err := s.repo.Get(ctx, txID)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, apperror.NewNotFound("sync queue entry", txID)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}
