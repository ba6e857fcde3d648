// Package stock_repo provides the PostgreSQL implementation of stock.Repository.
package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	itemsTable       = "stock_items"
	adjustmentsTable = "stock_adjustments"
	inventoryTable   = "location_inventory"
	linksTable       = "item_location_links"
	locationsTable   = "locations"
)

var (
	itemColumns       = postgres.Columns[stock.StockItem]()
	adjustmentColumns = postgres.Columns[stock.Adjustment]()
	inventoryColumns  = postgres.Columns[stock.LocationInventory]()
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) itemQuery(itemID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID})
}

// GetItem reads an item without locking.
func (r *StockRepo) GetItem(ctx context.Context, itemID id.ID) (*stock.StockItem, error) {
	return r.getItem(ctx, r.itemQuery(itemID))
}

// GetItemForUpdate reads an item and locks its row until the transaction ends.
func (r *StockRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*stock.StockItem, error) {
	return r.getItem(ctx, r.itemQuery(itemID).Suffix("FOR UPDATE"))
}

func (r *StockRepo) getItem(ctx context.Context, q squirrel.SelectBuilder) (*stock.StockItem, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item stock.StockItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, stock.ErrItemNotFound
		}
		return nil, apperror.NewPersistence("get stock item", err)
	}
	return &item, nil
}

// UpdateQuantity overwrites quantity_on_hand.
func (r *StockRepo) UpdateQuantity(ctx context.Context, itemID id.ID, qty types.Quantity) error {
	sql, args, err := r.builder.Update(itemsTable).
		Set("quantity_on_hand", qty).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewPersistence("update stock quantity", err)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrItemNotFound
	}
	return nil
}

// ListItems returns items ordered by sku.
func (r *StockRepo) ListItems(ctx context.Context, activeOnly bool) ([]stock.StockItem, error) {
	q := r.builder.Select(itemColumns...).From(itemsTable).OrderBy("sku")
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []stock.StockItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list stock items", err)
	}
	return items, nil
}

// AppendAdjustment records one canonical change.
func (r *StockRepo) AppendAdjustment(ctx context.Context, adj stock.Adjustment) error {
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.Insert(adjustmentsTable).
		Columns(adjustmentColumns...).
		Values(postgres.Values(adj)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewPersistence("insert stock adjustment", err)
	}
	return nil
}

// ListAdjustments returns the newest adjustments for an item first.
func (r *StockRepo) ListAdjustments(ctx context.Context, itemID id.ID, limit int) ([]stock.Adjustment, error) {
	sql, args, err := r.builder.Select(adjustmentColumns...).
		From(adjustmentsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []stock.Adjustment
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list stock adjustments", err)
	}
	return out, nil
}

// ListLocationInventory returns every location row of an item, zeroed ones included.
func (r *StockRepo) ListLocationInventory(ctx context.Context, itemID id.ID) ([]stock.LocationInventory, error) {
	sql, args, err := r.builder.Select(inventoryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("location_id", "product_ref").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []stock.LocationInventory
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list location inventory", err)
	}
	return rows, nil
}

func (r *StockRepo) linksQuery(itemID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(
		"l.item_id", "l.location_id", "l.product_ref", "loc.is_active AS location_active",
	).
		From(linksTable+" l").
		Join(locationsTable+" loc ON loc.id = l.location_id").
		Where(squirrel.Eq{"l.item_id": itemID}).
		OrderBy("l.location_id", "l.product_ref")
}

// ListLinks returns the item's location links with their location's active flag.
func (r *StockRepo) ListLinks(ctx context.Context, itemID id.ID) ([]stock.LocationLink, error) {
	sql, args, err := r.linksQuery(itemID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var links []stock.LocationLink
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &links, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list location links", err)
	}
	return links, nil
}

func (r *StockRepo) upsertQuery(row stock.LocationInventory) squirrel.InsertBuilder {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return r.builder.Insert(inventoryTable).
		Columns(inventoryColumns...).
		Values(postgres.Values(row)...).
		Suffix("ON CONFLICT (item_id, location_id, product_ref) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at")
}

// UpsertLocationQuantity creates the row on first allocation or updates it.
func (r *StockRepo) UpsertLocationQuantity(ctx context.Context, row stock.LocationInventory) error {
	sql, args, err := r.upsertQuery(row).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewPersistence("upsert location inventory", err)
	}
	return nil
}
