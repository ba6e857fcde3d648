package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/sales"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// SalesService is the part of sales.Service the handlers use.
type SalesService interface {
	Complete(ctx context.Context, t sales.Transaction) (*sales.Transaction, error)
	Get(ctx context.Context, txID id.ID) (*sales.Transaction, error)
}

// TransactionHandler serves /transactions.
type TransactionHandler struct {
	*BaseHandler
	service SalesService
}

// NewTransactionHandler creates a transaction handler.
func NewTransactionHandler(service SalesService) *TransactionHandler {
	return &TransactionHandler{BaseHandler: NewBaseHandler(), service: service}
}

// Complete handles POST /transactions: persist, adjust stock, enqueue.
func (h *TransactionHandler) Complete(c *gin.Context) {
	var req dto.CreateTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	ctx := appctx.WithTrigger(c.Request.Context(), appctx.TriggerCheckout)
	saved, err := h.service.Complete(ctx, t)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// Get handles GET /transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	txID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.service.Get(c.Request.Context(), txID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}
