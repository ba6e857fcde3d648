package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/http/v1/handlers"
)

func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Stock == nil {
		return
	}
	h := handlers.NewStockHandler(cfg.Stock)

	stock := rg.Group("/stock")
	stock.POST("/reconcile", h.ReconcileAll)

	items := stock.Group("/items/:id")
	items.GET("", h.GetItem)
	items.POST("/delta", h.ApplyDelta)
	items.PUT("/quantity", h.SetQuantity)
	items.POST("/reconcile", h.Reconcile)
	items.GET("/history", h.History)
}

func registerMaterialRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Materials == nil {
		return
	}
	h := handlers.NewMaterialHandler(cfg.Materials)

	materials := rg.Group("/materials")
	materials.POST("/auto-map", h.AutoMap)
	materials.POST("/sync", h.Sync)
	materials.PUT("/:id/link", h.SetLink)
}

func registerLedgerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Ledger == nil || cfg.Queue == nil {
		return
	}
	h := handlers.NewLedgerHandler(cfg.Ledger, cfg.Queue, cfg.Audit, cfg.BatchLimit)

	ledger := rg.Group("/ledger")
	ledger.POST("/batches", h.ProcessBatch)

	queue := ledger.Group("/queue")
	queue.POST("/reset", h.ResetQueue)
	queue.GET("/stats", h.QueueStats)
	queue.GET("/errors", h.QueueErrors)
	queue.GET("/:transactionId", h.QueueEntry)

	entries := ledger.Group("/entries")
	entries.GET("", h.GetEntryByReference)
	entries.GET("/:id", h.GetEntry)
	entries.POST("/:id/reverse", h.Reverse)
	entries.GET("/:id/audit", h.EntryHistory)
}

func registerTransactionRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Transactions == nil {
		return
	}
	h := handlers.NewTransactionHandler(cfg.Transactions)

	txs := rg.Group("/transactions")
	txs.POST("", h.Complete)
	txs.GET("/:id", h.Get)
}
