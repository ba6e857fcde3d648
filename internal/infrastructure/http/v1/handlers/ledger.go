package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/syncqueue"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/storage/postgres"
)

// LedgerEngine is the part of ledger.Engine the handlers use.
type LedgerEngine interface {
	ProcessBatch(ctx context.Context, limit int) (*ledger.BatchSummary, error)
	Reverse(ctx context.Context, entryID id.ID, reason string) (id.ID, error)
	GetEntry(ctx context.Context, entryID id.ID) (*ledger.JournalEntry, error)
	GetByReference(ctx context.Context, reference string) (*ledger.JournalEntry, error)
}

// QueueService is the part of syncqueue.Service the handlers use.
type QueueService interface {
	Reset(ctx context.Context, txIDs []id.ID, staleAfter time.Duration) (int64, error)
	Stats(ctx context.Context) (syncqueue.Stats, error)
	Errors(ctx context.Context, limit int) ([]syncqueue.Entry, error)
	Get(ctx context.Context, txID id.ID) (*syncqueue.Entry, error)
}

// AuditHistory reads the posting audit trail.
type AuditHistory interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// LedgerHandler serves /ledger.
type LedgerHandler struct {
	*BaseHandler
	engine     LedgerEngine
	queue      QueueService
	audit      AuditHistory
	batchLimit int
}

// NewLedgerHandler creates a ledger handler. audit may be nil. batchLimit is
// used when a batch request names no limit.
func NewLedgerHandler(engine LedgerEngine, queue QueueService, audit AuditHistory, batchLimit int) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler: NewBaseHandler(),
		engine:      engine,
		queue:       queue,
		audit:       audit,
		batchLimit:  batchLimit,
	}
}

// ProcessBatch handles POST /ledger/batches.
func (h *LedgerHandler) ProcessBatch(c *gin.Context) {
	var req dto.ProcessBatchRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.batchLimit
	}

	summary, err := h.engine.ProcessBatch(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// ResetQueue handles POST /ledger/queue/reset.
func (h *LedgerHandler) ResetQueue(c *gin.Context) {
	var req dto.ResetQueueRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ids, err := req.ParseIDs()
	if err != nil {
		h.Error(c, err)
		return
	}

	var staleAfter time.Duration
	if req.StaleAfter != "" {
		staleAfter, err = time.ParseDuration(req.StaleAfter)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid staleAfter duration").WithDetail("staleAfter", req.StaleAfter))
			return
		}
	}

	n, err := h.queue.Reset(c.Request.Context(), ids, staleAfter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}

// QueueStats handles GET /ledger/queue/stats.
func (h *LedgerHandler) QueueStats(c *gin.Context) {
	st, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// QueueErrors handles GET /ledger/queue/errors.
func (h *LedgerHandler) QueueErrors(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", syncqueue.DefaultErrorListLimit)
	entries, err := h.queue.Errors(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries))
}

// QueueEntry handles GET /ledger/queue/:transactionId.
func (h *LedgerHandler) QueueEntry(c *gin.Context) {
	txID, ok := h.ParamID(c, "transactionId")
	if !ok {
		return
	}
	entry, err := h.queue.Get(c.Request.Context(), txID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

// GetEntry handles GET /ledger/entries/:id.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	entry, err := h.engine.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromJournalEntry(entry))
}

// GetEntryByReference handles GET /ledger/entries?reference=...
func (h *LedgerHandler) GetEntryByReference(c *gin.Context) {
	ref := c.Query("reference")
	if ref == "" {
		h.Error(c, apperror.NewValidation("reference query parameter is required"))
		return
	}
	entry, err := h.engine.GetByReference(c.Request.Context(), ref)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromJournalEntry(entry))
}

// Reverse handles POST /ledger/entries/:id/reverse.
func (h *LedgerHandler) Reverse(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReverseEntryRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	reversalID, err := h.engine.Reverse(c.Request.Context(), entryID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, reversalID.String())
}

// EntryHistory handles GET /ledger/entries/:id/audit.
func (h *LedgerHandler) EntryHistory(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if h.audit == nil {
		h.OK(c, dto.NewListResponse[postgres.AuditEntry](nil))
		return
	}
	limit := h.ParseIntQuery(c, "limit", 0)
	entries, err := h.audit.GetEntityHistory(c.Request.Context(), postgres.AuditEntityJournalEntry, entryID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries))
}
