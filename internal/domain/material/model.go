// Package material keeps the raw-material ledger and the canonical stock store in agreement.
package material

import (
	"errors"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// ErrMaterialNotFound is returned by repositories for unknown material records.
var ErrMaterialNotFound = errors.New("material record not found")

// Record is a raw-material ledger entry. LinkedItemID stays nil until mapped.
type Record struct {
	ID                id.ID          `db:"id" json:"id"`
	MaterialKey       string         `db:"material_key" json:"materialKey"`
	Name              string         `db:"name" json:"name"`
	Category          string         `db:"category" json:"category"`
	QuantityRemaining types.Quantity `db:"quantity_remaining" json:"quantityRemaining"`
	LinkedItemID      *id.ID         `db:"linked_item_id" json:"linkedItemId,omitempty"`
}

// IsMapped reports whether the record points at a stock item.
func (r Record) IsMapped() bool {
	return r.LinkedItemID != nil
}

// MappingStatus is the outcome of resolving one record.
type MappingStatus string

const (
	MappingMapped  MappingStatus = "mapped"
	MappingNoMatch MappingStatus = "no_match"
	MappingError   MappingStatus = "error"
)

// MappingResult reports how one unmapped record was resolved.
type MappingResult struct {
	MaterialID  id.ID         `json:"materialId"`
	MaterialKey string        `json:"materialKey"`
	Status      MappingStatus `json:"status"`
	ItemID      *id.ID        `json:"itemId,omitempty"`
	ItemSKU     string        `json:"itemSku,omitempty"`
	Matcher     string        `json:"matcher,omitempty"`
	Code        string        `json:"code,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// SyncStatus is the outcome of comparing one item against its materials.
type SyncStatus string

const (
	SyncUpdated SyncStatus = "updated"
	SyncInSync  SyncStatus = "in_sync"
	SyncError   SyncStatus = "error"
)

// SyncResult reports one item's material-to-stock comparison.
type SyncResult struct {
	ItemID        id.ID          `json:"itemId"`
	Materials     int            `json:"materials"`
	MaterialTotal types.Quantity `json:"materialTotal"`
	Before        types.Quantity `json:"before"`
	After         types.Quantity `json:"after"`
	Delta         types.Quantity `json:"delta"`
	Status        SyncStatus     `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// CategoryPattern lists name fragments that identify stock items for one
// material category. Patterns are tried in declaration order.
type CategoryPattern struct {
	Category string   `koanf:"category" json:"category"`
	Patterns []string `koanf:"patterns" json:"patterns"`
}
