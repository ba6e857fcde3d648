package dto

import (
	"github.com/shopspring/decimal"

	"stockledger/internal/domain/stock"
)

// ApplyDeltaRequest is the body of POST /stock/items/:id/delta.
type ApplyDeltaRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason" binding:"max=200"`
}

// SetQuantityRequest is the body of PUT /stock/items/:id/quantity.
type SetQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason" binding:"max=200"`
}

// StockItemResponse is the canonical quantity with its location breakdown.
type StockItemResponse struct {
	Item        stock.StockItem           `json:"item"`
	Locations   []stock.LocationInventory `json:"locations"`
	LocationSum decimal.Decimal           `json:"locationSum"`
	// Drift is quantity on hand minus the location sum; non-zero means a
	// redistribution did not converge.
	Drift decimal.Decimal `json:"drift"`
}

// FromBreakdown converts a breakdown to a response.
func FromBreakdown(b *stock.Breakdown) StockItemResponse {
	locations := b.Locations
	if locations == nil {
		locations = []stock.LocationInventory{}
	}
	return StockItemResponse{
		Item:        b.Item,
		Locations:   locations,
		LocationSum: b.Sum,
		Drift:       b.Item.QuantityOnHand.Sub(b.Sum),
	}
}
