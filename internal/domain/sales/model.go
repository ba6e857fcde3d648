// Package sales holds completed commercial transactions and the completion
// workflow that feeds the stock engine and the sync queue.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

var (
	// ErrTransactionNotFound is returned by repositories for unknown transactions.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateTransaction is returned when a transaction id or number already exists.
	ErrDuplicateTransaction = errors.New("transaction already exists")
)

// Kind distinguishes sales, refunds and settlements of earlier credit sales.
type Kind string

const (
	KindSale       Kind = "sale"
	KindRefund     Kind = "refund"
	KindSettlement Kind = "settlement"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindRefund, KindSettlement:
		return true
	}
	return false
}

// PaymentMethod is the closed set of tender types. Values outside the set are
// rejected by ParsePaymentMethod, so downstream mappings can be total.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
)

// PaymentMethods lists every method in a stable order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{MethodCash, MethodCard, MethodBankTransfer, MethodMobileMoney}
}

// ParsePaymentMethod converts external input to a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", apperror.NewInvalidPaymentMethod(s)
	}
	return m, nil
}

// Valid reports whether m is one of the known methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodMobileMoney:
		return true
	}
	return false
}

// LineItem is one sold or returned line. ItemID is nil for service lines.
type LineItem struct {
	LineNo      int            `db:"line_no" json:"lineNo"`
	ItemID      *id.ID         `db:"item_id" json:"itemId,omitempty"`
	Description string         `db:"description" json:"description"`
	Category    string         `db:"category" json:"category"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	UnitCost    types.Money    `db:"unit_cost" json:"unitCost"`
	Tax         types.Money    `db:"tax" json:"tax"`
	Discount    types.Money    `db:"discount" json:"discount"`
}

// Amount is quantity times unit price.
func (l LineItem) Amount() types.Money {
	return l.Quantity.Mul(l.UnitPrice)
}

// Cost is quantity times unit cost.
func (l LineItem) Cost() types.Money {
	return l.Quantity.Mul(l.UnitCost)
}

// TracksStock reports whether the line moves canonical stock.
func (l LineItem) TracksStock() bool {
	return l.ItemID != nil
}

// HasCostBasis reports whether the line is a stock item with a non-zero unit cost.
// Only such lines move COGS and inventory value.
func (l LineItem) HasCostBasis() bool {
	return l.ItemID != nil && l.UnitCost.IsPositive()
}

// ReturnsToStock reports whether a refunded line goes back on the shelf.
// Refund lines only carry a cost basis once InheritCostBasis has run.
func (l LineItem) ReturnsToStock() bool {
	return l.HasCostBasis()
}

// Payment is one tender applied to a transaction.
type Payment struct {
	LineNo int           `db:"line_no" json:"lineNo"`
	Method PaymentMethod `db:"method" json:"method"`
	Amount types.Money   `db:"amount" json:"amount"`
}

// Transaction is an immutable completed sale, refund or settlement.
type Transaction struct {
	ID            id.ID       `db:"id" json:"id"`
	Number        string      `db:"number" json:"number"`
	Kind          Kind        `db:"kind" json:"kind"`
	RefersTo      *id.ID      `db:"refers_to" json:"refersTo,omitempty"`
	OccurredAt    time.Time   `db:"occurred_at" json:"occurredAt"`
	Subtotal      types.Money `db:"subtotal" json:"subtotal"`
	DiscountTotal types.Money `db:"discount_total" json:"discountTotal"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	TotalAmount   types.Money `db:"total_amount" json:"totalAmount"`
	AmountPaid    types.Money `db:"amount_paid" json:"amountPaid"`

	Lines    []LineItem `db:"-" json:"lines"`
	Payments []Payment  `db:"-" json:"payments"`
}

// Reference is the business reference posted on the journal entry.
func (t *Transaction) Reference() string {
	if t.Number != "" {
		return t.Number
	}
	return t.ID.String()
}

// PaymentsByMethod sums payments per method in PaymentMethods order.
func (t *Transaction) PaymentsByMethod() []Payment {
	sums := make(map[PaymentMethod]types.Money)
	for _, p := range t.Payments {
		sums[p.Method] = sums[p.Method].Add(p.Amount)
	}
	var out []Payment
	for _, m := range PaymentMethods() {
		if amt, ok := sums[m]; ok && !amt.IsZero() {
			out = append(out, Payment{Method: m, Amount: amt})
		}
	}
	return out
}

// PaymentTotal sums all payments.
func (t *Transaction) PaymentTotal() types.Money {
	total := types.Zero()
	for _, p := range t.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Normalize fills derived fields before validation: id, timestamps, line
// numbers and amount paid.
func (t *Transaction) Normalize(now time.Time) {
	if id.IsNil(t.ID) {
		t.ID = id.New()
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = now
	}
	for i := range t.Lines {
		t.Lines[i].LineNo = i + 1
	}
	for i := range t.Payments {
		t.Payments[i].LineNo = i + 1
	}
	if t.AmountPaid.IsZero() && len(t.Payments) > 0 {
		t.AmountPaid = t.PaymentTotal()
	}
}

// Validate checks header arithmetic and per-line sanity.
func (t *Transaction) Validate() error {
	if !t.Kind.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown transaction kind %q", t.Kind))
	}

	for _, m := range []struct {
		name  string
		value types.Money
	}{
		{"subtotal", t.Subtotal},
		{"discount_total", t.DiscountTotal},
		{"tax_total", t.TaxTotal},
		{"total_amount", t.TotalAmount},
		{"amount_paid", t.AmountPaid},
	} {
		if m.value.IsNegative() {
			return apperror.NewValidation(m.name + " must not be negative")
		}
	}

	expected := t.Subtotal.Sub(t.DiscountTotal).Add(t.TaxTotal)
	if !types.WithinTolerance(expected, t.TotalAmount, types.LedgerEpsilon) {
		return apperror.NewValidation("total_amount must equal subtotal - discount + tax").
			WithDetail("expected", expected.String()).
			WithDetail("total_amount", t.TotalAmount.String())
	}

	for _, p := range t.Payments {
		if !p.Method.Valid() {
			return apperror.NewInvalidPaymentMethod(string(p.Method))
		}
		if !p.Amount.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("payment %d: amount must be positive", p.LineNo))
		}
	}
	if !types.WithinTolerance(t.PaymentTotal(), t.AmountPaid, types.LedgerEpsilon) {
		return apperror.NewValidation("amount_paid must equal the sum of payments")
	}

	switch t.Kind {
	case KindRefund, KindSettlement:
		if t.RefersTo == nil || id.IsNil(*t.RefersTo) {
			return apperror.NewValidation(fmt.Sprintf("%s must refer to the original sale", t.Kind)).
				WithDetail("field", "refers_to")
		}
	}

	switch t.Kind {
	case KindSettlement:
		if len(t.Lines) > 0 {
			return apperror.NewValidation("settlement carries no line items")
		}
		if !t.AmountPaid.IsPositive() {
			return apperror.NewValidation("settlement must carry a payment")
		}
	default:
		if len(t.Lines) == 0 {
			return apperror.NewValidation("transaction has no line items")
		}
	}

	for _, l := range t.Lines {
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("line %d: quantity must be positive", l.LineNo))
		}
		if l.UnitPrice.IsNegative() || l.UnitCost.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("line %d: price and cost must not be negative", l.LineNo))
		}
	}

	return nil
}

// InheritCostBasis copies the unit cost of the original sale onto refund lines
// that arrive without one, matching lines by stock item. Lines whose item was
// not costed on the sale keep no cost basis and do not return to stock.
func (t *Transaction) InheritCostBasis(original *Transaction) error {
	if original.Kind != KindSale {
		return apperror.NewValidation(fmt.Sprintf("%s must refer to a sale, not a %s", t.Kind, original.Kind)).
			WithDetail("refers_to", original.ID.String())
	}
	if t.Kind != KindRefund {
		return nil
	}

	costs := make(map[id.ID]types.Money)
	for _, l := range original.Lines {
		if l.HasCostBasis() {
			if _, seen := costs[*l.ItemID]; !seen {
				costs[*l.ItemID] = l.UnitCost
			}
		}
	}
	for i, l := range t.Lines {
		if !l.TracksStock() || l.UnitCost.IsPositive() {
			continue
		}
		if cost, ok := costs[*l.ItemID]; ok {
			t.Lines[i].UnitCost = cost
		}
	}
	return nil
}

// Loader loads stored transactions.
type Loader interface {
	Get(ctx context.Context, txID id.ID) (*Transaction, error)
}

// ResolveOriginal loads the sale t refers to and applies InheritCostBasis.
// Sales pass through untouched.
func ResolveOriginal(ctx context.Context, src Loader, t *Transaction) error {
	if t.Kind == KindSale || t.RefersTo == nil {
		return nil
	}
	original, err := src.Get(ctx, *t.RefersTo)
	if errors.Is(err, ErrTransactionNotFound) {
		return apperror.NewNotFound("transaction", *t.RefersTo)
	}
	if err != nil {
		return fmt.Errorf("load original transaction: %w", err)
	}
	return t.InheritCostBasis(original)
}
