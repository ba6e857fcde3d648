// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	Stock        handlers.StockEngine
	Materials    handlers.MaterialService
	Ledger       handlers.LedgerEngine
	Queue        handlers.QueueService
	Audit        handlers.AuditHistory // optional
	Transactions handlers.SalesService

	// BatchLimit is the default posting batch size for POST /ledger/batches.
	BatchLimit int

	// Readiness probes run by /health/ready.
	Readiness []handlers.ReadinessCheck
	// Info is reported by /health/info; optional.
	Info func() any

	// Development keeps gin in debug mode.
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Info, cfg.Readiness...)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		registerStockRoutes(v1, cfg)
		registerMaterialRoutes(v1, cfg)
		registerLedgerRoutes(v1, cfg)
		registerTransactionRoutes(v1, cfg)
	}

	return router
}
