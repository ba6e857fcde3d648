package dto

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/sales"
)

// LineItemRequest is one line of a completed transaction.
type LineItemRequest struct {
	ItemID      *string        `json:"itemId"`
	Description string         `json:"description" binding:"max=500"`
	Category    string         `json:"category" binding:"max=100"`
	Quantity    types.Quantity `json:"quantity"`
	UnitPrice   types.Money    `json:"unitPrice"`
	UnitCost    types.Money    `json:"unitCost"`
	Tax         types.Money    `json:"tax"`
	Discount    types.Money    `json:"discount"`
}

// PaymentRequest is one tender of a transaction.
type PaymentRequest struct {
	Method string      `json:"method" binding:"required"`
	Amount types.Money `json:"amount"`
}

// CreateTransactionRequest is the body of POST /transactions.
type CreateTransactionRequest struct {
	ID            *string           `json:"id"`
	Number        string            `json:"number" binding:"required,max=100"`
	Kind          string            `json:"kind" binding:"required,oneof=sale refund settlement"`
	RefersTo      *string           `json:"refersTo"`
	OccurredAt    *time.Time        `json:"occurredAt"`
	Subtotal      types.Money       `json:"subtotal"`
	DiscountTotal types.Money       `json:"discountTotal"`
	TaxTotal      types.Money       `json:"taxTotal"`
	TotalAmount   types.Money       `json:"totalAmount"`
	AmountPaid    types.Money       `json:"amountPaid"`
	Lines         []LineItemRequest `json:"lines" binding:"dive"`
	Payments      []PaymentRequest  `json:"payments" binding:"dive"`
}

// ToDomain converts the request, parsing ids and payment methods.
func (r CreateTransactionRequest) ToDomain() (sales.Transaction, error) {
	t := sales.Transaction{
		Number:        r.Number,
		Kind:          sales.Kind(r.Kind),
		Subtotal:      r.Subtotal,
		DiscountTotal: r.DiscountTotal,
		TaxTotal:      r.TaxTotal,
		TotalAmount:   r.TotalAmount,
		AmountPaid:    r.AmountPaid,
	}

	var err error
	if r.ID != nil {
		if t.ID, err = parseID("id", *r.ID); err != nil {
			return t, err
		}
	}
	if r.RefersTo != nil {
		ref, err := parseID("refersTo", *r.RefersTo)
		if err != nil {
			return t, err
		}
		t.RefersTo = &ref
	}
	if r.OccurredAt != nil {
		t.OccurredAt = r.OccurredAt.UTC()
	}

	t.Lines = make([]sales.LineItem, 0, len(r.Lines))
	for _, l := range r.Lines {
		line := sales.LineItem{
			Description: l.Description,
			Category:    l.Category,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			UnitCost:    l.UnitCost,
			Tax:         l.Tax,
			Discount:    l.Discount,
		}
		if l.ItemID != nil {
			itemID, err := parseID("lines.itemId", *l.ItemID)
			if err != nil {
				return t, err
			}
			line.ItemID = &itemID
		}
		t.Lines = append(t.Lines, line)
	}

	t.Payments = make([]sales.Payment, 0, len(r.Payments))
	for _, p := range r.Payments {
		method, err := sales.ParsePaymentMethod(p.Method)
		if err != nil {
			return t, err
		}
		t.Payments = append(t.Payments, sales.Payment{Method: method, Amount: p.Amount})
	}
	return t, nil
}

func parseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil {
		return id.ID{}, apperror.NewValidation("invalid id").WithDetail("field", field)
	}
	return v, nil
}
