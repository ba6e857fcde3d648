package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/metrics"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/stock")

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 100

type locationKey struct {
	location id.ID
	ref      string
}

// Engine owns canonical quantity changes and their projection onto locations.
// Every change locks the canonical row, writes the new total and history, then
// redistributes inside the same transaction. Location writes run in savepoints
// so a failing location leaves the rest of the change committed.
type Engine struct {
	repo  Repository
	txm   tx.Manager
	scale int32
	now   func() time.Time
}

// NewEngine creates a stock engine. scale is the number of fractional digits
// kept for quantities; zero keeps whole units and a negative value selects
// DefaultScale.
func NewEngine(repo Repository, txm tx.Manager, scale int32) *Engine {
	if scale < 0 {
		scale = DefaultScale
	}
	return &Engine{
		repo:  repo,
		txm:   txm,
		scale: scale,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ApplyDelta adds delta to the canonical quantity, clamping the result at zero,
// and redistributes the new total. Unknown items yield InvalidItem.
func (e *Engine) ApplyDelta(ctx context.Context, itemID id.ID, delta types.Quantity, reason string) (*Change, error) {
	ctx, span := tracer.Start(ctx, "stock.ApplyDelta")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	change, err := e.change(ctx, itemID, reason, func(current types.Quantity) (types.Quantity, types.Quantity) {
		return current.Add(delta), delta
	})
	if err != nil {
		return nil, err
	}
	metrics.StockChanges.WithLabelValues("delta").Inc()
	return change, nil
}

// SetAbsolute overwrites the canonical quantity and redistributes it.
func (e *Engine) SetAbsolute(ctx context.Context, itemID id.ID, qty types.Quantity, reason string) (*Change, error) {
	if qty.IsNegative() {
		return nil, apperror.NewValidation("quantity must not be negative").
			WithDetail("quantity", qty.String())
	}

	ctx, span := tracer.Start(ctx, "stock.SetAbsolute")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	change, err := e.change(ctx, itemID, reason, func(current types.Quantity) (types.Quantity, types.Quantity) {
		return qty, qty.Sub(current)
	})
	if err != nil {
		return nil, err
	}
	metrics.StockChanges.WithLabelValues("absolute").Inc()
	return change, nil
}

// change applies next to the locked canonical quantity. next returns the target
// total and the delta the caller asked for; the adjustment row keeps the
// requested delta even when clamping at zero moved the total by less.
func (e *Engine) change(
	ctx context.Context,
	itemID id.ID,
	reason string,
	next func(current types.Quantity) (target, requested types.Quantity),
) (*Change, error) {
	var result Change

	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := e.lockItem(ctx, itemID)
		if err != nil {
			return err
		}

		before := item.QuantityOnHand
		target, requested := next(before)
		after := types.ClampNonNegative(target).Round(e.scale)

		if err := e.repo.UpdateQuantity(ctx, itemID, after); err != nil {
			return fmt.Errorf("update quantity: %w", err)
		}

		adj := Adjustment{
			ID:             id.New(),
			ItemID:         itemID,
			Reason:         reason,
			Delta:          requested,
			QuantityBefore: before,
			QuantityAfter:  after,
			CreatedAt:      e.now(),
		}
		if err := e.repo.AppendAdjustment(ctx, adj); err != nil {
			return fmt.Errorf("append adjustment: %w", err)
		}

		report, err := e.redistribute(ctx, itemID, after)
		if err != nil {
			return err
		}

		result = Change{Adjustment: adj, Redistribution: report}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock quantity changed",
		"item_id", itemID,
		"reason", reason,
		"before", result.Adjustment.QuantityBefore.String(),
		"after", result.Adjustment.QuantityAfter.String(),
		"locations_written", result.Redistribution.Written,
		"locations_failed", len(result.Redistribution.Failed),
	)

	return &result, nil
}

// GetQuantity returns the canonical quantity of an item.
func (e *Engine) GetQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	item, err := e.repo.GetItem(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return types.Zero(), apperror.NewInvalidItem(itemID)
	}
	if err != nil {
		return types.Zero(), fmt.Errorf("get stock item: %w", err)
	}
	return item.QuantityOnHand, nil
}

// Breakdown returns the canonical total next to the current location rows.
func (e *Engine) Breakdown(ctx context.Context, itemID id.ID) (*Breakdown, error) {
	item, err := e.repo.GetItem(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return nil, apperror.NewNotFound("stock item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("get stock item: %w", err)
	}

	rows, err := e.repo.ListLocationInventory(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list location inventory: %w", err)
	}

	sum := types.Zero()
	for _, r := range rows {
		sum = sum.Add(r.Quantity)
	}

	return &Breakdown{Item: *item, Locations: rows, Sum: sum}, nil
}

// Reconcile re-runs redistribution for one item without changing its total.
// Repairs drift left by earlier failed location writes.
func (e *Engine) Reconcile(ctx context.Context, itemID id.ID) (*RedistributionReport, error) {
	ctx, span := tracer.Start(ctx, "stock.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	var report RedistributionReport
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := e.lockItem(ctx, itemID)
		if err != nil {
			return err
		}
		report, err = e.redistribute(ctx, itemID, item.QuantityOnHand)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReconcileAll reconciles every active item. A failing item is recorded in the
// summary and does not stop the pass; failing to list items does.
func (e *Engine) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	items, err := e.repo.ListItems(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}

	summary := &ReconcileSummary{Items: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		report, err := e.Reconcile(ctx, item.ID)
		if err != nil {
			logger.Warn(ctx, "reconcile item failed", "item_id", item.ID, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", item.ID, err))
			continue
		}
		if report.Converged() {
			summary.Converged++
		}
		if report.Written > 0 || !report.Converged() {
			summary.Reports = append(summary.Reports, *report)
		}
	}

	logger.Info(ctx, "reconciliation pass finished",
		"items", summary.Items,
		"converged", summary.Converged,
		"errors", len(summary.Errors),
	)

	return summary, nil
}

// History returns the most recent adjustments of an item, newest first.
func (e *Engine) History(ctx context.Context, itemID id.ID, limit int) ([]Adjustment, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.repo.ListAdjustments(ctx, itemID, limit)
}

func (e *Engine) lockItem(ctx context.Context, itemID id.ID) (*StockItem, error) {
	item, err := e.repo.GetItemForUpdate(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return nil, apperror.NewInvalidItem(itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock stock item: %w", err)
	}
	return item, nil
}

// redistribute must run inside the transaction holding the item lock.
func (e *Engine) redistribute(ctx context.Context, itemID id.ID, total types.Quantity) (RedistributionReport, error) {
	report := RedistributionReport{ItemID: itemID, Total: total}

	rows, err := e.repo.ListLocationInventory(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("list location inventory: %w", err)
	}
	links, err := e.repo.ListLinks(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("list location links: %w", err)
	}

	current := make(map[locationKey]types.Quantity, len(rows))
	for _, r := range rows {
		current[locationKey{r.LocationID, r.ProductRef}] = r.Quantity
	}

	plan := Redistribute(total, rows, links, e.scale)
	report.Allocations = plan

	for _, a := range plan {
		have, exists := current[locationKey{a.LocationID, a.ProductRef}]
		if exists && have.Equal(a.Quantity) {
			report.Unchanged++
			continue
		}
		if !exists && a.Quantity.IsZero() {
			continue
		}

		row := LocationInventory{
			ItemID:     itemID,
			LocationID: a.LocationID,
			ProductRef: a.ProductRef,
			Quantity:   a.Quantity,
			UpdatedAt:  e.now(),
		}
		err := e.txm.RunInSavepoint(ctx, func(ctx context.Context) error {
			return e.repo.UpsertLocationQuantity(ctx, row)
		})
		if err != nil {
			logger.Warn(ctx, "location write failed, continuing",
				"item_id", itemID,
				"location_id", a.LocationID,
				"product_ref", a.ProductRef,
				"error", err,
			)
			report.Failed = append(report.Failed, LocationFailure{
				LocationID: a.LocationID,
				ProductRef: a.ProductRef,
				Error:      err.Error(),
			})
			continue
		}
		report.Written++
	}

	metrics.RecordRedistribution(report.Written, report.Unchanged, len(report.Failed))
	return report, nil
}
