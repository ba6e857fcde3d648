package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockEngine is the part of stock.Engine the handlers use.
type StockEngine interface {
	ApplyDelta(ctx context.Context, itemID id.ID, delta types.Quantity, reason string) (*stock.Change, error)
	SetAbsolute(ctx context.Context, itemID id.ID, qty types.Quantity, reason string) (*stock.Change, error)
	Breakdown(ctx context.Context, itemID id.ID) (*stock.Breakdown, error)
	Reconcile(ctx context.Context, itemID id.ID) (*stock.RedistributionReport, error)
	ReconcileAll(ctx context.Context) (*stock.ReconcileSummary, error)
	History(ctx context.Context, itemID id.ID, limit int) ([]stock.Adjustment, error)
}

// StockHandler serves /stock.
type StockHandler struct {
	*BaseHandler
	engine StockEngine
}

// NewStockHandler creates a stock handler.
func NewStockHandler(engine StockEngine) *StockHandler {
	return &StockHandler{BaseHandler: NewBaseHandler(), engine: engine}
}

// GetItem handles GET /stock/items/:id.
func (h *StockHandler) GetItem(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.engine.Breakdown(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBreakdown(b))
}

// ApplyDelta handles POST /stock/items/:id/delta.
func (h *StockHandler) ApplyDelta(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ApplyDeltaRequest
	if !h.BindJSON(c, &req) {
		return
	}
	change, err := h.engine.ApplyDelta(c.Request.Context(), itemID, req.Delta, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// SetQuantity handles PUT /stock/items/:id/quantity.
func (h *StockHandler) SetQuantity(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SetQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	change, err := h.engine.SetAbsolute(c.Request.Context(), itemID, req.Quantity, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// Reconcile handles POST /stock/items/:id/reconcile.
func (h *StockHandler) Reconcile(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	report, err := h.engine.Reconcile(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// ReconcileAll handles POST /stock/reconcile.
func (h *StockHandler) ReconcileAll(c *gin.Context) {
	summary, err := h.engine.ReconcileAll(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// History handles GET /stock/items/:id/history.
func (h *StockHandler) History(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", stock.DefaultHistoryLimit)
	items, err := h.engine.History(c.Request.Context(), itemID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items))
}
