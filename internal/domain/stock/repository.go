package stock

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Repository defines persistence for the canonical store and location rows.
// Implementations return ErrItemNotFound for unknown items and wrap every
// other storage failure as an apperror PersistenceError.
type Repository interface {
	// Canonical store

	// GetItem reads an item without locking.
	GetItem(ctx context.Context, itemID id.ID) (*StockItem, error)

	// GetItemForUpdate reads an item with a row lock held until the
	// surrounding transaction ends. Serializes concurrent changes per item.
	GetItemForUpdate(ctx context.Context, itemID id.ID) (*StockItem, error)

	// UpdateQuantity overwrites quantity_on_hand.
	UpdateQuantity(ctx context.Context, itemID id.ID, qty types.Quantity) error

	// ListItems returns all items ordered by sku.
	ListItems(ctx context.Context, activeOnly bool) ([]StockItem, error)

	// History

	AppendAdjustment(ctx context.Context, adj Adjustment) error
	ListAdjustments(ctx context.Context, itemID id.ID, limit int) ([]Adjustment, error)

	// Location rows

	ListLocationInventory(ctx context.Context, itemID id.ID) ([]LocationInventory, error)
	ListLinks(ctx context.Context, itemID id.ID) ([]LocationLink, error)

	// UpsertLocationQuantity creates the row on first allocation or updates it.
	UpsertLocationQuantity(ctx context.Context, row LocationInventory) error
}
