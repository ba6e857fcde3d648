// Package main is the entry point for the stockledger background worker. It
// runs the posting batch, the material sync and the stock reconcile on their
// configured intervals.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/worker"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting stockledger worker")

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	sup := worker.NewSupervisor("stockledger-worker", log, worker.DefaultTreeConfig())

	sup.Add(worker.NewJob("ledger-posting", cfg.Worker.PostingInterval, log, func(ctx context.Context) error {
		_, err := a.Ledger.ProcessBatch(ctx, cfg.Ledger.BatchSize)
		return err
	}))
	sup.Add(worker.NewJob("material-sync", cfg.Worker.MaterialInterval, log, func(ctx context.Context) error {
		_, err := a.Materials.SyncDeltas(ctx)
		return err
	}))
	sup.Add(worker.NewJob("stock-reconcile", cfg.Worker.ReconcileInterval, log, func(ctx context.Context) error {
		_, err := a.Stock.ReconcileAll(ctx)
		return err
	}))
	sup.Add(worker.NewJob("queue-stats", time.Minute, log, func(ctx context.Context) error {
		_, err := a.Queue.Stats(ctx)
		return err
	}))

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("metrics listening", "addr", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("supervisor stopped", "error", err)
	}

	log.Info("shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}
