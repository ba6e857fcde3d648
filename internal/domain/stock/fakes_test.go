package stock

import (
	"context"
	"errors"
	"sort"
	"sync"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

type memRepo struct {
	mu          sync.Mutex
	items       map[id.ID]StockItem
	rows        map[locationKey]LocationInventory
	links       []LocationLink
	adjustments []Adjustment
	failUpsert  map[string]error // keyed by product ref
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:      make(map[id.ID]StockItem),
		rows:       make(map[locationKey]LocationInventory),
		failUpsert: make(map[string]error),
	}
}

func (m *memRepo) addItem(sku string, qty string) id.ID {
	itemID := id.New()
	m.items[itemID] = StockItem{ID: itemID, SKU: sku, Name: sku, QuantityOnHand: types.MustQuantity(qty), IsActive: true}
	return itemID
}

func (m *memRepo) addRow(itemID, loc id.ID, ref, qty string) {
	m.rows[locationKey{loc, ref}] = LocationInventory{ItemID: itemID, LocationID: loc, ProductRef: ref, Quantity: types.MustQuantity(qty)}
}

func (m *memRepo) addLink(itemID, loc id.ID, ref string, active bool) {
	m.links = append(m.links, LocationLink{ItemID: itemID, LocationID: loc, ProductRef: ref, LocationActive: active})
}

func (m *memRepo) rowQty(loc id.ID, ref string) (types.Quantity, bool) {
	r, ok := m.rows[locationKey{loc, ref}]
	return r.Quantity, ok
}

// snapshot captures mutable state and returns a restore func.
func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make(map[id.ID]StockItem, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	rows := make(map[locationKey]LocationInventory, len(m.rows))
	for k, v := range m.rows {
		rows[k] = v
	}
	adjustments := append([]Adjustment(nil), m.adjustments...)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.items, m.rows, m.adjustments = items, rows, adjustments
	}
}

func (m *memRepo) GetItem(_ context.Context, itemID id.ID) (*StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (m *memRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*StockItem, error) {
	return m.GetItem(ctx, itemID)
}

func (m *memRepo) UpdateQuantity(_ context.Context, itemID id.ID, qty types.Quantity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.items[itemID]
	item.QuantityOnHand = qty
	m.items[itemID] = item
	return nil
}

func (m *memRepo) ListItems(_ context.Context, activeOnly bool) ([]StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StockItem
	for _, item := range m.items {
		if activeOnly && !item.IsActive {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *memRepo) AppendAdjustment(_ context.Context, adj Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, adj)
	return nil
}

func (m *memRepo) ListAdjustments(_ context.Context, itemID id.ID, limit int) ([]Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Adjustment
	for i := len(m.adjustments) - 1; i >= 0 && len(out) < limit; i-- {
		if m.adjustments[i].ItemID == itemID {
			out = append(out, m.adjustments[i])
		}
	}
	return out, nil
}

func (m *memRepo) ListLocationInventory(_ context.Context, itemID id.ID) ([]LocationInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LocationInventory
	for _, r := range m.rows {
		if r.ItemID == itemID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) ListLinks(_ context.Context, itemID id.ID) ([]LocationLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LocationLink
	for _, l := range m.links {
		if l.ItemID == itemID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertLocationQuantity(_ context.Context, row LocationInventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpsert[row.ProductRef]; err != nil {
		return err
	}
	m.rows[locationKey{row.LocationID, row.ProductRef}] = row
	return nil
}

// memTx rolls back the in-memory repo when fn fails.
type memTx struct {
	repo       *memRepo
	savepoints int
}

func (t *memTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	restore := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		restore()
		return err
	}
	return nil
}

func (t *memTx) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t.savepoints++
	return t.RunInTransaction(ctx, fn)
}

var errDiskFull = errors.New("disk full")
