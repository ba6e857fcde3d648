// Package stock provides the canonical stock store and the reconciliation engine
// that projects canonical quantities onto location-scoped inventory rows.
package stock

import (
	"errors"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// ErrItemNotFound is returned by repositories when a stock item row does not exist.
var ErrItemNotFound = errors.New("stock item not found")

// StockItem is the canonical quantity-on-hand record for a sellable item.
// QuantityOnHand is never negative at rest.
type StockItem struct {
	ID             id.ID          `db:"id" json:"id"`
	SKU            string         `db:"sku" json:"sku"`
	Name           string         `db:"name" json:"name"`
	QuantityOnHand types.Quantity `db:"quantity_on_hand" json:"quantityOnHand"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// LocationInventory is the quantity of an item held by one location-scoped
// product record. Rows are created lazily and only ever zeroed.
type LocationInventory struct {
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	LocationID id.ID          `db:"location_id" json:"locationId"`
	ProductRef string         `db:"product_ref" json:"productRef"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}

// LocationLink ties a canonical item to a product record at a location.
// Several POS products at one location may point at the same item.
type LocationLink struct {
	ItemID         id.ID  `db:"item_id" json:"itemId"`
	LocationID     id.ID  `db:"location_id" json:"locationId"`
	ProductRef     string `db:"product_ref" json:"productRef"`
	LocationActive bool   `db:"location_active" json:"locationActive"`
}

// Adjustment is an append-only record of one canonical quantity change.
type Adjustment struct {
	ID             id.ID          `db:"id" json:"id"`
	ItemID         id.ID          `db:"item_id" json:"itemId"`
	Reason         string         `db:"reason" json:"reason"`
	Delta          types.Quantity `db:"delta" json:"delta"`
	QuantityBefore types.Quantity `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  types.Quantity `db:"quantity_after" json:"quantityAfter"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// Allocation is the target quantity for one (location, product record) pair.
type Allocation struct {
	LocationID id.ID          `json:"locationId"`
	ProductRef string         `json:"productRef"`
	Quantity   types.Quantity `json:"quantity"`
}

// LocationFailure records a location write that did not commit.
type LocationFailure struct {
	LocationID id.ID  `json:"locationId"`
	ProductRef string `json:"productRef"`
	Error      string `json:"error"`
}

// RedistributionReport describes one redistribution pass for an item.
type RedistributionReport struct {
	ItemID      id.ID             `json:"itemId"`
	Total       types.Quantity    `json:"total"`
	Allocations []Allocation      `json:"allocations"`
	Written     int               `json:"written"`
	Unchanged   int               `json:"unchanged"`
	Failed      []LocationFailure `json:"failed,omitempty"`
}

// Converged reports whether every planned location write committed.
func (r RedistributionReport) Converged() bool {
	return len(r.Failed) == 0
}

// Change is the outcome of ApplyDelta or SetAbsolute.
type Change struct {
	Adjustment     Adjustment           `json:"adjustment"`
	Redistribution RedistributionReport `json:"redistribution"`
}

// ReconcileSummary aggregates a ReconcileAll pass.
type ReconcileSummary struct {
	Items     int                    `json:"items"`
	Converged int                    `json:"converged"`
	Reports   []RedistributionReport `json:"reports,omitempty"`
	Errors    []string               `json:"errors,omitempty"`
}

// Breakdown is the canonical total next to its location rows.
type Breakdown struct {
	Item      StockItem           `json:"item"`
	Locations []LocationInventory `json:"locations"`
	Sum       types.Quantity      `json:"sum"`
}
