// Package app wires configuration, storage, and the engines shared by the
// server and worker processes.
package app

import (
	"context"
	"fmt"

	"stockledger/internal/config"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/material"
	"stockledger/internal/domain/sales"
	"stockledger/internal/domain/stock"
	"stockledger/internal/domain/syncqueue"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/material_repo"
	"stockledger/internal/infrastructure/storage/postgres/queue_repo"
	"stockledger/internal/infrastructure/storage/postgres/sales_repo"
	"stockledger/internal/infrastructure/storage/postgres/stock_repo"
	"stockledger/pkg/logger"
)

// App holds the connected pool and every engine built on it.
type App struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Audit     *postgres.AuditService

	Stock     *stock.Engine
	Materials *material.Service
	Sales     *sales.Service
	Ledger    *ledger.Engine
	Queue     *syncqueue.Service
}

// New connects to the database, optionally migrates it, verifies the schema
// and builds the engines. The caller owns Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{Pool: pool}
	if err := a.init(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, a.Pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := postgres.CheckSchema(ctx, a.Pool); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	a.TxManager = postgres.NewTxManager(a.Pool, cfg.Database.StatementTimeout)

	audit, err := postgres.NewAuditService(a.TxManager, cfg.Ledger.AuditCompressThreshold)
	if err != nil {
		return err
	}
	a.Audit = audit

	builder, err := newBuilder(cfg.Ledger)
	if err != nil {
		return err
	}
	tolerance, err := cfg.Material.ToleranceValue()
	if err != nil {
		return err
	}

	stockRepo := stock_repo.NewStockRepo(a.TxManager)
	txRepo := sales_repo.NewTransactionRepo(a.TxManager)
	queueRepo := queue_repo.NewQueueRepo(a.TxManager)

	a.Stock = stock.NewEngine(stockRepo, a.TxManager, cfg.Stock.Scale)
	a.Queue = syncqueue.NewService(queueRepo)
	a.Materials = material.NewService(
		material_repo.NewMaterialRepo(a.TxManager),
		stockRepo,
		a.Stock,
		material.Config{Tolerance: tolerance, Patterns: cfg.Material.Patterns},
	)
	a.Sales = sales.NewService(txRepo, a.Stock, a.Queue, a.TxManager)
	a.Ledger = ledger.NewEngine(ledger.EngineConfig{
		Builder:      builder,
		Entries:      ledger_repo.NewJournalRepo(a.TxManager),
		Transactions: txRepo,
		Queue:        queueRepo,
		Audit:        a.Audit,
		TxManager:    a.TxManager,
		Lease:        cfg.Ledger.ProcessingLease,
	})

	logger.Info(ctx, "engines initialized",
		"stock_scale", cfg.Stock.Scale,
		"discount_mode", cfg.Ledger.DiscountMode,
		"revenue_rules", len(cfg.Ledger.RevenueRules),
	)
	return nil
}

func newBuilder(cfg config.LedgerConfig) (*ledger.Builder, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	var revenue *ledger.RevenueCategorizer
	if len(cfg.RevenueRules) > 0 {
		if revenue, err = ledger.NewRevenueCategorizer(cfg.RevenueRules, cfg.Chart.Revenue); err != nil {
			return nil, fmt.Errorf("revenue rules: %w", err)
		}
	}
	return ledger.NewBuilder(cfg.Chart, policy, revenue)
}

// Ready pings the database and re-checks the schema.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Pool.Ping(ctx); err != nil {
		return err
	}
	return postgres.CheckSchema(ctx, a.Pool)
}

// Close releases the audit codecs and the pool.
func (a *App) Close() {
	if a.Audit != nil {
		a.Audit.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
