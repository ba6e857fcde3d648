package material

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
	"stockledger/internal/metrics"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/material")

// SyncReason is recorded on stock adjustments produced by SyncDeltas.
const SyncReason = "material sync"

// Config tunes matching and syncing.
type Config struct {
	Tolerance decimal.Decimal
	Patterns  []CategoryPattern
}

// Service maps material records to stock items and pushes material
// quantities into the canonical store.
type Service struct {
	repo      Repository
	catalog   Catalog
	stock     StockAdjuster
	matchers  []Matcher
	tolerance decimal.Decimal
}

// NewService creates a material mapping service. A zero tolerance selects
// types.SyncTolerance.
func NewService(repo Repository, catalog Catalog, adjuster StockAdjuster, cfg Config) *Service {
	tol := cfg.Tolerance
	if !tol.IsPositive() {
		tol = types.SyncTolerance
	}
	return &Service{
		repo:      repo,
		catalog:   catalog,
		stock:     adjuster,
		matchers:  DefaultMatchers(cfg.Patterns),
		tolerance: tol,
	}
}

// AutoMap tries to link every unmapped record. Records no matcher resolves
// are reported as no_match and left for manual linking.
func (s *Service) AutoMap(ctx context.Context) ([]MappingResult, error) {
	ctx, span := tracer.Start(ctx, "material.AutoMap")
	defer span.End()

	records, err := s.repo.ListUnmapped(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unmapped materials: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	candidates, err := s.catalog.ListItems(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].SKU < candidates[j].SKU })

	results := make([]MappingResult, 0, len(records))
	mapped := 0
	for _, rec := range records {
		res := MappingResult{MaterialID: rec.ID, MaterialKey: rec.MaterialKey}

		item, matcher, ok := s.match(rec, candidates)
		if !ok {
			noMapping := apperror.NewNoMapping(rec.MaterialKey)
			res.Status = MappingNoMatch
			res.Code = noMapping.Code
			res.Error = noMapping.Message
			logger.Info(ctx, "material has no matching stock item",
				"material_id", rec.ID, "material_key", rec.MaterialKey)
			results = append(results, res)
			continue
		}

		itemID := item.ID
		if err := s.repo.SetLink(ctx, rec.ID, &itemID); err != nil {
			res.Status = MappingError
			res.Error = err.Error()
			logger.Warn(ctx, "failed to link material", "material_id", rec.ID, "error", err)
			results = append(results, res)
			continue
		}

		res.Status = MappingMapped
		res.ItemID = &itemID
		res.ItemSKU = item.SKU
		res.Matcher = matcher
		results = append(results, res)
		mapped++
	}

	logger.Info(ctx, "auto-map finished", "records", len(records), "mapped", mapped)
	return results, nil
}

func (s *Service) match(rec Record, candidates []stock.StockItem) (stock.StockItem, string, bool) {
	for _, m := range s.matchers {
		if item, ok := m.Match(rec, candidates); ok {
			return item, m.Name(), true
		}
	}
	return stock.StockItem{}, "", false
}

// SyncDeltas compares, per linked item, the summed quantity_remaining of its
// materials with the canonical quantity and applies the signed difference when
// it exceeds the tolerance. Running it twice without intervening changes
// reports in_sync for every item the first run touched.
func (s *Service) SyncDeltas(ctx context.Context) ([]SyncResult, error) {
	ctx, span := tracer.Start(ctx, "material.SyncDeltas")
	defer span.End()

	records, err := s.repo.ListMapped(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mapped materials: %w", err)
	}

	type group struct {
		total types.Quantity
		count int
	}
	groups := make(map[id.ID]*group)
	var order []id.ID
	for _, rec := range records {
		if rec.LinkedItemID == nil {
			continue
		}
		g, ok := groups[*rec.LinkedItemID]
		if !ok {
			g = &group{total: types.Zero()}
			groups[*rec.LinkedItemID] = g
			order = append(order, *rec.LinkedItemID)
		}
		g.total = g.total.Add(rec.QuantityRemaining)
		g.count++
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	results := make([]SyncResult, 0, len(order))
	for _, itemID := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		g := groups[itemID]
		res := s.syncItem(ctx, itemID, types.ClampNonNegative(g.total))
		res.Materials = g.count
		metrics.MaterialSyncResults.WithLabelValues(string(res.Status)).Inc()
		results = append(results, res)
	}

	return results, nil
}

func (s *Service) syncItem(ctx context.Context, itemID id.ID, target types.Quantity) SyncResult {
	res := SyncResult{ItemID: itemID, MaterialTotal: target}

	before, err := s.stock.GetQuantity(ctx, itemID)
	if err != nil {
		res.Status = SyncError
		res.Error = err.Error()
		logger.Warn(ctx, "material sync: read stock failed", "item_id", itemID, "error", err)
		return res
	}
	res.Before, res.After = before, before

	diff := target.Sub(before)
	if types.WithinTolerance(target, before, s.tolerance) {
		res.Status = SyncInSync
		res.Delta = types.Zero()
		return res
	}

	change, err := s.stock.ApplyDelta(ctx, itemID, diff, SyncReason)
	if err != nil {
		res.Status = SyncError
		res.Error = err.Error()
		logger.Warn(ctx, "material sync: apply delta failed", "item_id", itemID, "error", err)
		return res
	}

	res.Status = SyncUpdated
	res.Before = change.Adjustment.QuantityBefore
	res.After = change.Adjustment.QuantityAfter
	res.Delta = change.Adjustment.Delta

	logger.Info(ctx, "material sync applied delta",
		"item_id", itemID,
		"before", res.Before.String(),
		"after", res.After.String(),
	)
	return res
}

// Link manually points a material record at a stock item.
func (s *Service) Link(ctx context.Context, materialID, itemID id.ID) error {
	if _, err := s.getRecord(ctx, materialID); err != nil {
		return err
	}

	_, err := s.catalog.GetItem(ctx, itemID)
	if errors.Is(err, stock.ErrItemNotFound) {
		return apperror.NewInvalidItem(itemID)
	}
	if err != nil {
		return fmt.Errorf("get stock item: %w", err)
	}

	if err := s.repo.SetLink(ctx, materialID, &itemID); err != nil {
		return fmt.Errorf("link material: %w", err)
	}
	logger.Info(ctx, "material linked", "material_id", materialID, "item_id", itemID)
	return nil
}

// Unlink clears a record's link so AutoMap or Link can resolve it again.
func (s *Service) Unlink(ctx context.Context, materialID id.ID) error {
	if _, err := s.getRecord(ctx, materialID); err != nil {
		return err
	}
	if err := s.repo.SetLink(ctx, materialID, nil); err != nil {
		return fmt.Errorf("unlink material: %w", err)
	}
	logger.Info(ctx, "material unlinked", "material_id", materialID)
	return nil
}

func (s *Service) getRecord(ctx context.Context, materialID id.ID) (*Record, error) {
	rec, err := s.repo.GetRecord(ctx, materialID)
	if errors.Is(err, ErrMaterialNotFound) {
		return nil, apperror.NewNotFound("material", materialID)
	}
	if err != nil {
		return nil, fmt.Errorf("get material: %w", err)
	}
	return rec, nil
}
