package stock_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
)

func TestItemQueries(t *testing.T) {
	r := NewStockRepo(nil)
	itemID := id.New()

	sql, args, err := r.itemQuery(itemID).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, sku, name, quantity_on_hand, is_active, updated_at FROM stock_items WHERE id = $1", sql)
	assert.Equal(t, []any{itemID.String()}, args, "uuid values are passed through driver.Valuer")

	sql, _, err = r.itemQuery(itemID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE id = $1 FOR UPDATE")
}

func TestLinksQueryJoinsLocationActivity(t *testing.T) {
	r := NewStockRepo(nil)

	sql, _, err := r.linksQuery(id.New()).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT l.item_id, l.location_id, l.product_ref, loc.is_active AS location_active "+
			"FROM item_location_links l JOIN locations loc ON loc.id = l.location_id "+
			"WHERE l.item_id = $1 ORDER BY l.location_id, l.product_ref",
		sql)
}

func TestUpsertQuery(t *testing.T) {
	r := NewStockRepo(nil)
	row := stock.LocationInventory{
		ItemID:     id.New(),
		LocationID: id.New(),
		ProductRef: "POS-17",
		Quantity:   types.MustQuantity("4.5"),
	}

	sql, args, err := r.upsertQuery(row).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO location_inventory (item_id,location_id,product_ref,quantity,updated_at) VALUES ($1,$2,$3,$4,$5) "+
			"ON CONFLICT (item_id, location_id, product_ref) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at",
		sql)
	require.Len(t, args, 5)
	assert.Equal(t, "POS-17", args[2])
}
