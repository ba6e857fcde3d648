package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

func newTestEngine(repo *memRepo) (*Engine, *memTx) {
	txm := &memTx{repo: repo}
	return NewEngine(repo, txm, DefaultScale), txm
}

func TestEngine_ApplyDeltaRedistributesProportionally(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("FLOUR", "100")
	a, b := id.New(), id.New()
	repo.addRow(item, a, "pa", "60")
	repo.addRow(item, b, "pb", "40")
	engine, _ := newTestEngine(repo)

	change, err := engine.ApplyDelta(context.Background(), item, qty("50"), "restock")
	require.NoError(t, err)

	assert.True(t, change.Adjustment.QuantityAfter.Equal(qty("150")))
	assert.True(t, change.Adjustment.Delta.Equal(qty("50")))
	assert.Equal(t, 2, change.Redistribution.Written)

	got, err := engine.GetQuantity(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, got.Equal(qty("150")))

	qa, _ := repo.rowQty(a, "pa")
	qb, _ := repo.rowQty(b, "pb")
	assert.True(t, qa.Equal(qty("90")), "a=%s", qa)
	assert.True(t, qb.Equal(qty("60")), "b=%s", qb)
}

func TestEngine_ApplyDeltaClampsAtZero(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("SUGAR", "5")
	loc := id.New()
	repo.addRow(item, loc, "p", "5")
	engine, _ := newTestEngine(repo)

	change, err := engine.ApplyDelta(context.Background(), item, qty("-10"), "sale")
	require.NoError(t, err)

	assert.True(t, change.Adjustment.QuantityAfter.IsZero())
	assert.True(t, change.Adjustment.Delta.Equal(qty("-10")), "requested delta is kept")
	q, ok := repo.rowQty(loc, "p")
	require.True(t, ok)
	assert.True(t, q.IsZero())
}

func TestEngine_UnknownItem(t *testing.T) {
	engine, _ := newTestEngine(newMemRepo())

	_, err := engine.ApplyDelta(context.Background(), id.New(), qty("1"), "x")
	assert.True(t, apperror.IsInvalidItem(err))

	_, err = engine.GetQuantity(context.Background(), id.New())
	assert.True(t, apperror.IsInvalidItem(err))
}

func TestEngine_SetAbsoluteRejectsNegative(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("OIL", "3")
	engine, _ := newTestEngine(repo)

	_, err := engine.SetAbsolute(context.Background(), item, qty("-1"), "count")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Empty(t, repo.adjustments)
}

func TestEngine_SetAbsoluteSplitsEvenlyWithoutStock(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("RICE", "0")
	a, b, closed := id.New(), id.New(), id.New()
	repo.addLink(item, a, "pa", true)
	repo.addLink(item, b, "pb", true)
	repo.addLink(item, closed, "pc", false)
	engine, _ := newTestEngine(repo)

	_, err := engine.SetAbsolute(context.Background(), item, qty("10"), "initial count")
	require.NoError(t, err)

	qa, _ := repo.rowQty(a, "pa")
	qb, _ := repo.rowQty(b, "pb")
	assert.True(t, qa.Equal(qty("5")))
	assert.True(t, qb.Equal(qty("5")))
	_, exists := repo.rowQty(closed, "pc")
	assert.False(t, exists)
}

func TestEngine_ScaleZeroKeepsWholeUnits(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("CHAIR", "0")
	locs := []id.ID{id.New(), id.New(), id.New()}
	for i, loc := range locs {
		repo.addLink(item, loc, fmt.Sprintf("p%d", i), true)
	}
	engine := NewEngine(repo, &memTx{repo: repo}, 0)

	change, err := engine.ApplyDelta(context.Background(), item, qty("10"), "delivery")
	require.NoError(t, err)
	assert.Equal(t, 3, change.Redistribution.Written)

	sum := qty("0")
	for i, loc := range locs {
		q, ok := repo.rowQty(loc, fmt.Sprintf("p%d", i))
		require.True(t, ok)
		assert.True(t, q.Equal(q.Truncate(0)), "location %d holds %s", i, q)
		sum = sum.Add(q)
	}
	assert.True(t, sum.Equal(qty("10")), "sum=%s", sum)
}

func TestEngine_SetAbsoluteRecordsDelta(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("BEANS", "9")
	engine, _ := newTestEngine(repo)

	change, err := engine.SetAbsolute(context.Background(), item, qty("4"), "stock count")
	require.NoError(t, err)

	assert.True(t, change.Adjustment.Delta.Equal(qty("-5")))
	assert.True(t, change.Adjustment.QuantityBefore.Equal(qty("9")))
	assert.True(t, change.Adjustment.QuantityAfter.Equal(qty("4")))
}

func TestEngine_NoLinksKeepsCanonicalChange(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("SALT", "0")
	engine, _ := newTestEngine(repo)

	change, err := engine.ApplyDelta(context.Background(), item, qty("12"), "purchase")
	require.NoError(t, err)

	assert.Empty(t, change.Redistribution.Allocations)
	got, _ := engine.GetQuantity(context.Background(), item)
	assert.True(t, got.Equal(qty("12")))
}

func TestEngine_LocationFailureIsIsolated(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("MILK", "100")
	a, b := id.New(), id.New()
	repo.addRow(item, a, "pa", "50")
	repo.addRow(item, b, "pb", "50")
	repo.failUpsert["pb"] = errDiskFull
	engine, txm := newTestEngine(repo)

	change, err := engine.ApplyDelta(context.Background(), item, qty("20"), "delivery")
	require.NoError(t, err)

	assert.Equal(t, 2, txm.savepoints)
	assert.Equal(t, 1, change.Redistribution.Written)
	require.Len(t, change.Redistribution.Failed, 1)
	assert.Equal(t, "pb", change.Redistribution.Failed[0].ProductRef)
	assert.False(t, change.Redistribution.Converged())

	got, _ := engine.GetQuantity(context.Background(), item)
	assert.True(t, got.Equal(qty("120")))
	qa, _ := repo.rowQty(a, "pa")
	qb, _ := repo.rowQty(b, "pb")
	assert.True(t, qa.Equal(qty("60")))
	assert.True(t, qb.Equal(qty("50")))

	// Reconcile repairs the drift once the location recovers. The stale row
	// now weighs the split, so the pair converges on the new shares.
	delete(repo.failUpsert, "pb")
	report, err := engine.Reconcile(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, report.Converged())

	breakdown, err := engine.Breakdown(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, breakdown.Sum.Equal(qty("120")), "sum=%s", breakdown.Sum)
}

func TestEngine_ReconcileIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("TEA", "9")
	repo.addRow(item, id.New(), "p1", "3")
	repo.addRow(item, id.New(), "p2", "6")
	engine, _ := newTestEngine(repo)

	report, err := engine.Reconcile(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Written)
	assert.Equal(t, 2, report.Unchanged)
}

func TestEngine_ReconcileAllCountsItems(t *testing.T) {
	repo := newMemRepo()
	first := repo.addItem("A", "10")
	repo.addRow(first, id.New(), "p", "4")
	second := repo.addItem("B", "5")
	repo.addRow(second, id.New(), "p", "5")
	engine, _ := newTestEngine(repo)

	summary, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 2, summary.Converged)
	assert.Empty(t, summary.Errors)
	require.Len(t, summary.Reports, 1)
	assert.Equal(t, first, summary.Reports[0].ItemID)
}

func TestEngine_HistoryNewestFirst(t *testing.T) {
	repo := newMemRepo()
	item := repo.addItem("COFFEE", "0")
	engine, _ := newTestEngine(repo)
	ctx := context.Background()

	_, err := engine.ApplyDelta(ctx, item, qty("5"), "first")
	require.NoError(t, err)
	_, err = engine.ApplyDelta(ctx, item, qty("2"), "second")
	require.NoError(t, err)

	history, err := engine.History(ctx, item, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].Reason)
	assert.True(t, history[0].QuantityBefore.Equal(qty("5")))
	assert.True(t, history[0].QuantityAfter.Equal(qty("7")))
}
