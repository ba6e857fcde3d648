package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/sales"
)

func m(s string) types.Money { return types.MustMoney(s) }

func newTestBuilder(t *testing.T, mode DiscountMode, fees map[sales.PaymentMethod]decimal.Decimal) *Builder {
	t.Helper()
	b, err := NewBuilder(DefaultChart(), Policy{DiscountMode: mode, FeeRates: fees}, nil)
	require.NoError(t, err)
	return b
}

func stockLine(qty, price, cost string) sales.LineItem {
	itemID := id.New()
	return sales.LineItem{ItemID: &itemID, Quantity: m(qty), UnitPrice: m(price), UnitCost: m(cost)}
}

func sumFor(e *JournalEntry, side Side, account string) types.Money {
	total := types.Zero()
	for _, l := range e.LinesFor(side, account) {
		total = total.Add(l.Amount)
	}
	return total
}

func assertMoney(t *testing.T, want string, got types.Money, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(m(want)), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func card118() *sales.Transaction {
	return &sales.Transaction{
		ID:            id.New(),
		Number:        "S-118",
		Kind:          sales.KindSale,
		OccurredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Subtotal:      m("110"),
		DiscountTotal: m("10"),
		TaxTotal:      m("18"),
		TotalAmount:   m("118"),
		AmountPaid:    m("118"),
		Lines:         []sales.LineItem{{Description: "consulting", Quantity: m("1"), UnitPrice: m("110")}},
		Payments:      []sales.Payment{{Method: sales.MethodCard, Amount: m("118")}},
	}
}

func TestBuild_BalancesAt118(t *testing.T) {
	tests := []struct {
		name string
		fees map[sales.PaymentMethod]decimal.Decimal
		card string
		fee  string
	}{
		{name: "no fee", card: "118", fee: "0"},
		{name: "card fee", fees: map[sales.PaymentMethod]decimal.Decimal{sales.MethodCard: m("0.02")}, card: "115.64", fee: "2.36"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, DiscountNet, tt.fees)
			chart := DefaultChart()

			entry, err := b.Build(card118())
			require.NoError(t, err)

			debits, credits := entry.Totals()
			assertMoney(t, "118", debits)
			assertMoney(t, "118", credits)

			assertMoney(t, tt.card, sumFor(entry, Debit, chart.Card))
			assertMoney(t, tt.fee, sumFor(entry, Debit, chart.FeeExpense))
			assertMoney(t, "100", sumFor(entry, Credit, chart.Revenue))
			assertMoney(t, "18", sumFor(entry, Credit, chart.TaxPayable))
			assert.Empty(t, entry.LinesFor(Debit, chart.DiscountExpense))
			assert.Equal(t, "S-118", entry.Reference)
		})
	}
}

func TestBuild_GrossDiscountMode(t *testing.T) {
	b := newTestBuilder(t, DiscountGross, nil)
	chart := DefaultChart()

	entry, err := b.Build(card118())
	require.NoError(t, err)

	debits, credits := entry.Totals()
	assertMoney(t, "128", debits)
	assertMoney(t, "128", credits)
	assertMoney(t, "10", sumFor(entry, Debit, chart.DiscountExpense))
	assertMoney(t, "110", sumFor(entry, Credit, chart.Revenue))
}

func TestBuild_CreditSaleAndSettlement(t *testing.T) {
	b := newTestBuilder(t, DiscountNet, nil)
	chart := DefaultChart()

	sale := &sales.Transaction{
		ID: id.New(), Number: "S-200", Kind: sales.KindSale,
		Subtotal: m("200"), TotalAmount: m("200"), AmountPaid: m("120"),
		Lines:    []sales.LineItem{stockLine("4", "50", "0")},
		Payments: []sales.Payment{{Method: sales.MethodCash, Amount: m("120")}},
	}
	saleEntry, err := b.Build(sale)
	require.NoError(t, err)

	assertMoney(t, "120", sumFor(saleEntry, Debit, chart.Cash))
	assertMoney(t, "80", sumFor(saleEntry, Debit, chart.AccountsReceivable))
	assertMoney(t, "200", sumFor(saleEntry, Credit, chart.Revenue))
	assert.True(t, saleEntry.Balanced(types.LedgerEpsilon))

	settlement := &sales.Transaction{
		ID: id.New(), Number: "P-200", Kind: sales.KindSettlement, RefersTo: &sale.ID,
		AmountPaid: m("80"),
		Payments:   []sales.Payment{{Method: sales.MethodCash, Amount: m("80")}},
	}
	settleEntry, err := b.Build(settlement)
	require.NoError(t, err)

	assertMoney(t, "80", sumFor(settleEntry, Debit, chart.Cash))
	assertMoney(t, "80", sumFor(settleEntry, Credit, chart.AccountsReceivable))
	assert.True(t, settleEntry.Balanced(types.LedgerEpsilon))

	arNet := sumFor(saleEntry, Debit, chart.AccountsReceivable).
		Sub(sumFor(settleEntry, Credit, chart.AccountsReceivable))
	assert.True(t, arNet.IsZero())
}

func TestBuild_RefundRestoresInventory(t *testing.T) {
	b := newTestBuilder(t, DiscountNet, map[sales.PaymentMethod]decimal.Decimal{sales.MethodCard: m("0.03")})
	chart := DefaultChart()

	refund := &sales.Transaction{
		ID: id.New(), Number: "R-1", Kind: sales.KindRefund,
		Subtotal: m("100"), TaxTotal: m("18"), TotalAmount: m("118"), AmountPaid: m("118"),
		Lines:    []sales.LineItem{stockLine("2", "50", "30")},
		Payments: []sales.Payment{{Method: sales.MethodCard, Amount: m("118")}},
	}

	entry, err := b.Build(refund)
	require.NoError(t, err)

	assertMoney(t, "60", sumFor(entry, Debit, chart.Inventory))
	assertMoney(t, "60", sumFor(entry, Credit, chart.COGS))
	assertMoney(t, "100", sumFor(entry, Debit, chart.Revenue))
	assertMoney(t, "18", sumFor(entry, Debit, chart.TaxPayable))
	assertMoney(t, "118", sumFor(entry, Credit, chart.Card))
	assert.Empty(t, entry.LinesFor(Debit, chart.FeeExpense))
	assert.Empty(t, entry.LinesFor(Credit, chart.FeeExpense))
	assert.True(t, entry.Balanced(types.LedgerEpsilon))
}

func TestBuild_SaleWithCostAndChange(t *testing.T) {
	b := newTestBuilder(t, DiscountNet, nil)
	chart := DefaultChart()

	sale := &sales.Transaction{
		ID: id.New(), Number: "S-95", Kind: sales.KindSale,
		Subtotal: m("95"), TotalAmount: m("95"), AmountPaid: m("100"),
		Lines: []sales.LineItem{
			stockLine("3", "25", "10"),
			{Description: "delivery", Quantity: m("1"), UnitPrice: m("20"), UnitCost: m("5")},
		},
		Payments: []sales.Payment{{Method: sales.MethodCash, Amount: m("100")}},
	}

	entry, err := b.Build(sale)
	require.NoError(t, err)

	assertMoney(t, "100", sumFor(entry, Debit, chart.Cash))
	assertMoney(t, "5", sumFor(entry, Credit, chart.Cash))
	assertMoney(t, "30", sumFor(entry, Debit, chart.COGS), "service lines carry no cost basis")
	assertMoney(t, "30", sumFor(entry, Credit, chart.Inventory))
	assert.True(t, entry.Balanced(types.LedgerEpsilon))

	for i, l := range entry.Lines {
		assert.Equal(t, i+1, l.LineNo)
	}
	assert.Equal(t, Debit, entry.Lines[0].Side)
	assert.Equal(t, Credit, entry.Lines[len(entry.Lines)-1].Side)
}

func TestBuild_ImbalanceIsRejected(t *testing.T) {
	b := newTestBuilder(t, DiscountNet, nil)

	inconsistent := &sales.Transaction{
		ID: id.New(), Number: "BAD-1", Kind: sales.KindSale,
		Subtotal: m("100"), TotalAmount: m("118"), AmountPaid: m("118"),
		Lines:    []sales.LineItem{{Quantity: m("1"), UnitPrice: m("100")}},
		Payments: []sales.Payment{{Method: sales.MethodCash, Amount: m("118")}},
	}

	entry, err := b.Build(inconsistent)
	assert.Nil(t, entry)
	assert.True(t, apperror.IsLedgerImbalance(err))
}

func TestBuild_RevenueRulesPickAccount(t *testing.T) {
	rules, err := NewRevenueCategorizer([]RevenueRule{
		{Name: "drinks", Expression: `lines.exists(l, l.category == "beverages")`, Account: "4100"},
		{Name: "services", Expression: `lines.all(l, !l.stock)`, Account: "4200"},
	}, "4000")
	require.NoError(t, err)

	b, err := NewBuilder(DefaultChart(), Policy{}, rules)
	require.NoError(t, err)

	drinks := card118()
	drinks.Lines[0].Category = "beverages"
	entry, err := b.Build(drinks)
	require.NoError(t, err)
	assertMoney(t, "100", sumFor(entry, Credit, "4100"))

	entry, err = b.Build(card118())
	require.NoError(t, err)
	assertMoney(t, "100", sumFor(entry, Credit, "4200"))

	goods := card118()
	goods.Lines = []sales.LineItem{stockLine("1", "110", "0")}
	entry, err = b.Build(goods)
	require.NoError(t, err)
	assertMoney(t, "100", sumFor(entry, Credit, "4000"))
}

func TestNewRevenueCategorizer_RejectsBadExpression(t *testing.T) {
	_, err := NewRevenueCategorizer([]RevenueRule{{Name: "broken", Expression: "lines.exists(", Account: "4100"}}, "4000")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = NewRevenueCategorizer(nil, "")
	assert.Error(t, err)
}

func TestReversal_SwapsSides(t *testing.T) {
	b := newTestBuilder(t, DiscountNet, nil)
	original, err := b.Build(card118())
	require.NoError(t, err)

	reversal, err := b.Reversal(original, "")
	require.NoError(t, err)

	assert.Equal(t, "REV-S-118", reversal.Reference)
	assert.Equal(t, original.ID, *reversal.ReversesEntryID)
	chart := DefaultChart()
	assertMoney(t, "118", sumFor(reversal, Credit, chart.Card))
	assertMoney(t, "100", sumFor(reversal, Debit, chart.Revenue))
}

func TestChartOfAccounts(t *testing.T) {
	chart := DefaultChart()
	require.NoError(t, chart.Validate())

	for _, method := range sales.PaymentMethods() {
		assert.NotEmpty(t, chart.PaymentAccount(method), method)
	}

	chart.MobileMoney = " "
	assert.True(t, apperror.HasCode(chart.Validate(), apperror.CodeValidation))

	_, err := NewBuilder(chart, Policy{}, nil)
	assert.Error(t, err)
}

func TestPolicyValidate(t *testing.T) {
	_, err := NewBuilder(DefaultChart(), Policy{DiscountMode: "sideways"}, nil)
	assert.Error(t, err)

	_, err = NewBuilder(DefaultChart(), Policy{FeeRates: map[sales.PaymentMethod]decimal.Decimal{sales.MethodCard: m("1.5")}}, nil)
	assert.Error(t, err)
}
