package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/material"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// MaterialService is the part of material.Service the handlers use.
type MaterialService interface {
	AutoMap(ctx context.Context) ([]material.MappingResult, error)
	SyncDeltas(ctx context.Context) ([]material.SyncResult, error)
	Link(ctx context.Context, materialID, itemID id.ID) error
	Unlink(ctx context.Context, materialID id.ID) error
}

// MaterialHandler serves /materials.
type MaterialHandler struct {
	*BaseHandler
	service MaterialService
}

// NewMaterialHandler creates a material handler.
func NewMaterialHandler(service MaterialService) *MaterialHandler {
	return &MaterialHandler{BaseHandler: NewBaseHandler(), service: service}
}

// AutoMap handles POST /materials/auto-map.
func (h *MaterialHandler) AutoMap(c *gin.Context) {
	results, err := h.service.AutoMap(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMappingResults(results))
}

// Sync handles POST /materials/sync.
func (h *MaterialHandler) Sync(c *gin.Context) {
	results, err := h.service.SyncDeltas(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSyncResults(results))
}

// SetLink handles PUT /materials/:id/link.
func (h *MaterialHandler) SetLink(c *gin.Context) {
	materialID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.LinkMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if req.ItemID == nil {
		if err := h.service.Unlink(c.Request.Context(), materialID); err != nil {
			h.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	itemID, err := id.Parse(*req.ItemID)
	if err != nil {
		h.Error(c, invalidID("itemId", *req.ItemID))
		return
	}
	if err := h.service.Link(c.Request.Context(), materialID, itemID); err != nil {
		h.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
