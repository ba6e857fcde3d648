package material

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
)

// Repository defines persistence for material records.
type Repository interface {
	GetRecord(ctx context.Context, materialID id.ID) (*Record, error)

	// ListUnmapped returns records without a linked item, ordered by material key.
	ListUnmapped(ctx context.Context) ([]Record, error)

	// ListMapped returns records with a linked item.
	ListMapped(ctx context.Context) ([]Record, error)

	// SetLink points a record at an item; nil clears the link.
	SetLink(ctx context.Context, materialID id.ID, itemID *id.ID) error
}

// Catalog is the read side of the canonical store used for matching.
type Catalog interface {
	GetItem(ctx context.Context, itemID id.ID) (*stock.StockItem, error)
	ListItems(ctx context.Context, activeOnly bool) ([]stock.StockItem, error)
}

// StockAdjuster applies canonical quantity changes.
type StockAdjuster interface {
	GetQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error)
	ApplyDelta(ctx context.Context, itemID id.ID, delta types.Quantity, reason string) (*stock.Change, error)
}
