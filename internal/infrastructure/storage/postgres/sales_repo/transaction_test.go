package sales_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/sales"
)

func TestColumnsMatchSchema(t *testing.T) {
	assert.Equal(t, []string{
		"id", "number", "kind", "refers_to", "occurred_at",
		"subtotal", "discount_total", "tax_total", "total_amount", "amount_paid",
	}, headerColumns)
	assert.Equal(t, []string{
		"transaction_id", "line_no", "item_id", "description", "category",
		"quantity", "unit_price", "unit_cost", "tax", "discount",
	}, lineColumns)
	assert.Equal(t, []string{"transaction_id", "line_no", "method", "amount"}, paymentColumns)
}

func TestChildRowsCarryTransactionID(t *testing.T) {
	itemID := id.New()
	tx := &sales.Transaction{
		ID: id.New(),
		Lines: []sales.LineItem{
			{LineNo: 1, ItemID: &itemID, Quantity: types.MustQuantity("2"), UnitPrice: types.MustMoney("5")},
			{LineNo: 2, Description: "service", Quantity: types.MustQuantity("1"), UnitPrice: types.MustMoney("9")},
		},
		Payments: []sales.Payment{{LineNo: 1, Method: sales.MethodCash, Amount: types.MustMoney("19")}},
	}

	lines := lineRows(tx)
	require.Len(t, lines, 2)
	for _, row := range lines {
		assert.Len(t, row, len(lineColumns))
		assert.Equal(t, tx.ID, row[0])
	}
	assert.Equal(t, &itemID, lines[0][2])

	payments := paymentRows(tx)
	require.Len(t, payments, 1)
	assert.Equal(t, []any{tx.ID, 1, sales.MethodCash, types.MustMoney("19")}, payments[0])
}

func TestChildQuery(t *testing.T) {
	r := NewTransactionRepo(nil)
	sql, _, err := r.childQuery(paymentsTable, []string{"line_no", "method", "amount"}, id.New()).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT line_no, method, amount FROM transaction_payments WHERE transaction_id = $1 ORDER BY line_no", sql)
}
