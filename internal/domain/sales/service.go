package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// Service runs the completion workflow: persist the transaction, move stock,
// enqueue for posting. All three commit together or not at all.
type Service struct {
	repo  Repository
	stock StockAdjuster
	queue Enqueuer
	txm   tx.Manager
	now   func() time.Time
}

// NewService creates the completion workflow service.
func NewService(repo Repository, adjuster StockAdjuster, queue Enqueuer, txm tx.Manager) *Service {
	return &Service{
		repo:  repo,
		stock: adjuster,
		queue: queue,
		txm:   txm,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Complete records a finished sale, refund or settlement.
// Sale lines decrement stock; refund lines that return to stock increment it;
// settlements move no stock.
func (s *Service) Complete(ctx context.Context, t Transaction) (*Transaction, error) {
	t.Normalize(s.now())
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := ResolveOriginal(ctx, s.repo, &t); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, &t); err != nil {
			if errors.Is(err, ErrDuplicateTransaction) {
				return apperror.NewConflict("transaction already recorded").
					WithDetail("reference", t.Reference())
			}
			return fmt.Errorf("create transaction: %w", err)
		}

		reason := fmt.Sprintf("%s %s", t.Kind, t.Reference())
		for _, mv := range stockMoves(&t) {
			if _, err := s.stock.ApplyDelta(ctx, mv.itemID, mv.delta, reason); err != nil {
				return fmt.Errorf("line %d: %w", mv.lineNo, err)
			}
		}

		if err := s.queue.Enqueue(ctx, t.ID); err != nil {
			return fmt.Errorf("enqueue transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transaction completed",
		"transaction_id", t.ID,
		"reference", t.Reference(),
		"kind", t.Kind,
		"total", t.TotalAmount.String(),
	)
	return &t, nil
}

type stockMove struct {
	itemID id.ID
	delta  types.Quantity
	lineNo int
}

// stockMoves lists the canonical deltas of t ordered by item id, so concurrent
// completions lock item rows in the same order.
func stockMoves(t *Transaction) []stockMove {
	var moves []stockMove
	for _, line := range t.Lines {
		switch {
		case t.Kind == KindSale && line.TracksStock():
			moves = append(moves, stockMove{*line.ItemID, line.Quantity.Neg(), line.LineNo})
		case t.Kind == KindRefund && line.ReturnsToStock():
			moves = append(moves, stockMove{*line.ItemID, line.Quantity, line.LineNo})
		}
	}
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].itemID.String() < moves[j].itemID.String()
	})
	return moves
}

// Get loads a transaction.
func (s *Service) Get(ctx context.Context, txID id.ID) (*Transaction, error) {
	t, err := s.repo.Get(ctx, txID)
	if errors.Is(err, ErrTransactionNotFound) {
		return nil, apperror.NewNotFound("transaction", txID)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}
