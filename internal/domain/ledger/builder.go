package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/sales"
	"stockledger/internal/metrics"
)

// DiscountMode selects how discounts reach the ledger.
type DiscountMode string

const (
	// DiscountNet credits revenue net of discount and posts no discount line.
	DiscountNet DiscountMode = "net"

	// DiscountGross credits revenue at subtotal and debits Discount-Expense.
	DiscountGross DiscountMode = "gross"
)

// Valid reports whether m is a known mode.
func (m DiscountMode) Valid() bool {
	return m == DiscountNet || m == DiscountGross
}

// Policy holds the posting knobs that are not account codes.
type Policy struct {
	// FeeRates is the processor fee as a fraction of the payment, per method.
	// Methods without an entry carry no fee.
	FeeRates     map[sales.PaymentMethod]decimal.Decimal
	DiscountMode DiscountMode
	Epsilon      decimal.Decimal
}

// Validate checks rates and mode.
func (p Policy) Validate() error {
	if !p.DiscountMode.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown discount mode %q", p.DiscountMode))
	}
	for m, r := range p.FeeRates {
		if !m.Valid() {
			return apperror.NewInvalidPaymentMethod(string(m))
		}
		if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return apperror.NewValidation(fmt.Sprintf("fee rate for %s must be in [0, 1)", m))
		}
	}
	return nil
}

// Builder turns a transaction into a balanced journal entry. It is pure:
// no storage, no clock beyond the transaction's own date.
type Builder struct {
	chart   ChartOfAccounts
	policy  Policy
	revenue *RevenueCategorizer
}

// NewBuilder validates the chart and policy.
func NewBuilder(chart ChartOfAccounts, policy Policy, revenue *RevenueCategorizer) (*Builder, error) {
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	if policy.DiscountMode == "" {
		policy.DiscountMode = DiscountNet
	}
	if !policy.Epsilon.IsPositive() {
		policy.Epsilon = types.LedgerEpsilon
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if revenue == nil {
		var err error
		if revenue, err = NewRevenueCategorizer(nil, chart.Revenue); err != nil {
			return nil, err
		}
	}
	return &Builder{chart: chart, policy: policy, revenue: revenue}, nil
}

type lineSet struct {
	lines []JournalLine
}

func (s *lineSet) add(side Side, account string, amount types.Money, memo string) {
	amount = types.RoundMoney(amount)
	if amount.IsZero() {
		return
	}
	if amount.IsNegative() {
		side, amount = side.Opposite(), amount.Neg()
	}
	s.lines = append(s.lines, JournalLine{Side: side, AccountCode: account, Amount: amount, Memo: memo})
}

// Build computes the entry for t and verifies it balances.
func (b *Builder) Build(t *sales.Transaction) (*JournalEntry, error) {
	var (
		set *lineSet
		err error
	)

	switch t.Kind {
	case sales.KindSale:
		set, err = b.saleLines(t, true)
	case sales.KindRefund:
		set, err = b.saleLines(t, false)
		if err == nil {
			for i := range set.lines {
				set.lines[i].Side = set.lines[i].Side.Opposite()
			}
		}
	case sales.KindSettlement:
		set = b.settlementLines(t)
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unknown transaction kind %q", t.Kind))
	}
	if err != nil {
		return nil, err
	}

	txID := t.ID
	entry := &JournalEntry{
		ID:            id.New(),
		EntryDate:     t.OccurredAt,
		Reference:     t.Reference(),
		Description:   fmt.Sprintf("%s %s", t.Kind, t.Reference()),
		TransactionID: &txID,
		Lines:         orderLines(set.lines),
	}

	if err := b.checkBalance(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// saleLines builds the sale-side set. Refunds reuse it and swap sides, so fees
// are only taken on sales.
func (b *Builder) saleLines(t *sales.Transaction, withFees bool) (*lineSet, error) {
	set := &lineSet{}

	b.paymentLines(set, t, withFees)

	if t.AmountPaid.LessThan(t.TotalAmount) {
		set.add(Debit, b.chart.AccountsReceivable, t.TotalAmount.Sub(t.AmountPaid), "amount outstanding")
	}
	if t.AmountPaid.GreaterThan(t.TotalAmount) {
		set.add(Credit, b.chart.Cash, t.AmountPaid.Sub(t.TotalAmount), "change given")
	}

	cost := types.Zero()
	for _, l := range t.Lines {
		if l.HasCostBasis() {
			cost = cost.Add(l.Cost())
		}
	}
	set.add(Debit, b.chart.COGS, cost, "cost of goods")
	set.add(Credit, b.chart.Inventory, cost, "inventory relieved")

	revenueAccount, err := b.revenue.Account(t)
	if err != nil {
		return nil, err
	}
	revenue := t.Subtotal
	if b.policy.DiscountMode == DiscountGross {
		set.add(Debit, b.chart.DiscountExpense, t.DiscountTotal, "discount")
	} else {
		revenue = revenue.Sub(t.DiscountTotal)
	}
	set.add(Credit, revenueAccount, revenue, "revenue")
	set.add(Credit, b.chart.TaxPayable, t.TaxTotal, "tax collected")

	return set, nil
}

func (b *Builder) settlementLines(t *sales.Transaction) *lineSet {
	set := &lineSet{}
	b.paymentLines(set, t, true)
	set.add(Credit, b.chart.AccountsReceivable, t.AmountPaid, "receivable settled")
	return set
}

// paymentLines debits each method's account. With fees, the account receives
// the net amount and the fee goes to one expense line.
func (b *Builder) paymentLines(set *lineSet, t *sales.Transaction, withFees bool) {
	fees := types.Zero()
	for _, p := range t.PaymentsByMethod() {
		amount := p.Amount
		if withFees {
			if rate, ok := b.policy.FeeRates[p.Method]; ok && rate.IsPositive() {
				fee := types.RoundMoney(amount.Mul(rate))
				fees = fees.Add(fee)
				amount = amount.Sub(fee)
			}
		}
		set.add(Debit, b.chart.PaymentAccount(p.Method), amount, string(p.Method))
	}
	set.add(Debit, b.chart.FeeExpense, fees, "processing fees")
}

func (b *Builder) checkBalance(entry *JournalEntry) error {
	if entry.Balanced(b.policy.Epsilon) {
		return nil
	}
	metrics.LedgerImbalances.Inc()
	debits, credits := entry.Totals()
	return apperror.NewLedgerImbalance(entry.Reference, debits, credits)
}

// Reversal builds the entry that cancels original: same lines, sides swapped.
func (b *Builder) Reversal(original *JournalEntry, reason string) (*JournalEntry, error) {
	lines := make([]JournalLine, len(original.Lines))
	for i, l := range original.Lines {
		l.Side = l.Side.Opposite()
		lines[i] = l
	}

	origID := original.ID
	entry := &JournalEntry{
		ID:              id.New(),
		EntryDate:       original.EntryDate,
		Reference:       ReversalPrefix + original.Reference,
		Description:     reason,
		TransactionID:   original.TransactionID,
		ReversesEntryID: &origID,
		Lines:           orderLines(lines),
	}
	if entry.Description == "" {
		entry.Description = "reversal of " + original.Reference
	}
	if err := b.checkBalance(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// orderLines puts debits before credits, keeping construction order within a
// side, and numbers the lines.
func orderLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, side := range []Side{Debit, Credit} {
		for _, l := range lines {
			if l.Side == side {
				out = append(out, l)
			}
		}
	}
	for i := range out {
		out[i].LineNo = i + 1
	}
	return out
}
