package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
)

type delta struct {
	itemID id.ID
	qty    types.Quantity
}

type recorder struct {
	created  []Transaction
	deltas   []delta
	enqueued []id.ID

	failCreate  error
	failDelta   error
	failEnqueue error
}

func (r *recorder) Create(_ context.Context, t *Transaction) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	r.created = append(r.created, *t)
	return nil
}

func (r *recorder) Get(_ context.Context, txID id.ID) (*Transaction, error) {
	for _, t := range r.created {
		if t.ID == txID {
			return &t, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (r *recorder) ApplyDelta(_ context.Context, itemID id.ID, qty types.Quantity, _ string) (*stock.Change, error) {
	if r.failDelta != nil {
		return nil, r.failDelta
	}
	r.deltas = append(r.deltas, delta{itemID, qty})
	return &stock.Change{}, nil
}

func (r *recorder) Enqueue(_ context.Context, txID id.ID) error {
	if r.failEnqueue != nil {
		return r.failEnqueue
	}
	r.enqueued = append(r.enqueued, txID)
	return nil
}

// recorderTx discards recorded effects when fn fails.
type recorderTx struct{ r *recorder }

func (m recorderTx) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	created, deltas, enqueued := len(m.r.created), len(m.r.deltas), len(m.r.enqueued)
	if err := fn(ctx); err != nil {
		m.r.created, m.r.deltas, m.r.enqueued = m.r.created[:created], m.r.deltas[:deltas], m.r.enqueued[:enqueued]
		return err
	}
	return nil
}

func (m recorderTx) RunInSavepoint(ctx context.Context, fn func(context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

func newRecorderService() (*Service, *recorder) {
	r := &recorder{}
	return NewService(r, r, r, recorderTx{r}), r
}

func TestComplete_SaleDecrementsStockAndEnqueues(t *testing.T) {
	svc, r := newRecorderService()
	sale := validSale()
	service := LineItem{Description: "gift wrap", Quantity: money("1"), UnitPrice: money("0")}
	sale.Lines = append(sale.Lines, service)

	got, err := svc.Complete(context.Background(), sale)
	require.NoError(t, err)

	require.Len(t, r.created, 1)
	require.Len(t, r.deltas, 1)
	assert.Equal(t, *sale.Lines[0].ItemID, r.deltas[0].itemID)
	assert.True(t, r.deltas[0].qty.Equal(money("-2")))
	assert.Equal(t, []id.ID{got.ID}, r.enqueued)
}

func TestComplete_RefundRestocksCostedLinesOnly(t *testing.T) {
	svc, r := newRecorderService()
	costed, uncosted := id.New(), id.New()
	sale := Transaction{
		ID:          id.New(),
		Number:      "S-80",
		Kind:        KindSale,
		Subtotal:    money("80"),
		TotalAmount: money("80"),
		Lines: []LineItem{
			{ItemID: &costed, Quantity: money("2"), UnitPrice: money("30"), UnitCost: money("12")},
			{ItemID: &uncosted, Quantity: money("1"), UnitPrice: money("20")},
		},
	}
	r.created = append(r.created, sale)

	refund := Transaction{
		Number:      "R-1",
		Kind:        KindRefund,
		RefersTo:    &sale.ID,
		Subtotal:    money("80"),
		TotalAmount: money("80"),
		Lines: []LineItem{
			{ItemID: &costed, Quantity: money("2"), UnitPrice: money("30")},
			{ItemID: &uncosted, Quantity: money("1"), UnitPrice: money("20")},
		},
		Payments: []Payment{{Method: MethodCash, Amount: money("80")}},
	}

	got, err := svc.Complete(context.Background(), refund)
	require.NoError(t, err)

	require.Len(t, r.deltas, 1)
	assert.Equal(t, costed, r.deltas[0].itemID)
	assert.True(t, r.deltas[0].qty.Equal(money("2")))
	assert.True(t, got.Lines[0].UnitCost.Equal(money("12")), "cost basis comes from the sale")
	assert.True(t, got.Lines[1].UnitCost.IsZero())
	assert.Len(t, r.enqueued, 1)
}

func TestComplete_RefundReferenceErrors(t *testing.T) {
	itemID := id.New()
	refundOf := func(ref *id.ID) Transaction {
		return Transaction{
			Number:      "R-9",
			Kind:        KindRefund,
			RefersTo:    ref,
			Subtotal:    money("10"),
			TotalAmount: money("10"),
			Lines:       []LineItem{{ItemID: &itemID, Quantity: money("1"), UnitPrice: money("10")}},
			Payments:    []Payment{{Method: MethodCash, Amount: money("10")}},
		}
	}
	unknown := id.New()

	tests := []struct {
		name  string
		refTo *id.ID
		check func(error) bool
	}{
		{"no original", nil, func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) }},
		{"unknown original", &unknown, apperror.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r := newRecorderService()

			_, err := svc.Complete(context.Background(), refundOf(tt.refTo))

			assert.True(t, tt.check(err), "got %v", err)
			assert.Empty(t, r.created)
			assert.Empty(t, r.deltas)
		})
	}
}

func TestComplete_LocksItemsInIDOrder(t *testing.T) {
	svc, r := newRecorderService()
	a, b := id.New(), id.New()
	if b.String() < a.String() {
		a, b = b, a
	}
	sale := Transaction{
		Number:      "S-ORD",
		Kind:        KindSale,
		Subtotal:    money("20"),
		TotalAmount: money("20"),
		Lines: []LineItem{
			{ItemID: &b, Quantity: money("1"), UnitPrice: money("10")},
			{ItemID: &a, Quantity: money("1"), UnitPrice: money("10")},
		},
		Payments: []Payment{{Method: MethodCash, Amount: money("20")}},
	}

	_, err := svc.Complete(context.Background(), sale)
	require.NoError(t, err)

	require.Len(t, r.deltas, 2)
	assert.Equal(t, a, r.deltas[0].itemID)
	assert.Equal(t, b, r.deltas[1].itemID)
}

func TestComplete_SettlementMovesNoStock(t *testing.T) {
	svc, r := newRecorderService()
	sale := validSale()
	sale.ID = id.New()
	r.created = append(r.created, sale)
	settlement := Transaction{
		Number:   "P-1",
		Kind:     KindSettlement,
		RefersTo: &sale.ID,
		Payments: []Payment{{Method: MethodCash, Amount: money("80")}},
	}

	_, err := svc.Complete(context.Background(), settlement)
	require.NoError(t, err)

	assert.Empty(t, r.deltas)
	assert.Len(t, r.enqueued, 1)
	assert.Len(t, r.created, 2)
}

func TestComplete_FailureRollsBackEverything(t *testing.T) {
	svc, r := newRecorderService()
	r.failEnqueue = apperror.NewPersistence("enqueue", errors.New("connection refused"))

	_, err := svc.Complete(context.Background(), validSale())

	assert.True(t, apperror.IsPersistence(err))
	assert.Empty(t, r.created)
	assert.Empty(t, r.deltas)
}

func TestComplete_DuplicateIsConflict(t *testing.T) {
	svc, r := newRecorderService()
	r.failCreate = ErrDuplicateTransaction

	_, err := svc.Complete(context.Background(), validSale())
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestComplete_InvalidItemAborts(t *testing.T) {
	svc, r := newRecorderService()
	r.failDelta = apperror.NewInvalidItem("missing")

	_, err := svc.Complete(context.Background(), validSale())

	assert.True(t, apperror.IsInvalidItem(err))
	assert.Empty(t, r.enqueued)
	assert.Empty(t, r.created)
}
