// Package metrics holds the Prometheus instruments for stock, ledger and queue work.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stock

	StockChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_stock_changes_total",
			Help: "Canonical quantity changes by kind",
		},
		[]string{"kind"}, // "delta", "absolute"
	)

	RedistributionWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_redistribution_writes_total",
			Help: "Location inventory writes by result",
		},
		[]string{"result"}, // "written", "unchanged", "failed"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockledger_reconcile_all_duration_seconds",
			Help:    "Duration of a full reconciliation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Material mapping

	MaterialSyncResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_material_sync_results_total",
			Help: "Material-to-stock sync outcomes",
		},
		[]string{"status"}, // "updated", "in_sync", "error"
	)

	// Ledger

	JournalEntriesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_journal_entries_posted_total",
			Help: "Journal entries persisted by transaction kind",
		},
		[]string{"kind"},
	)

	LedgerImbalances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockledger_ledger_imbalances_total",
			Help: "Entries rejected because debits and credits differ",
		},
	)

	LedgerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockledger_ledger_batch_duration_seconds",
			Help:    "Duration of a posting batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync queue

	SyncQueueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_sync_queue_transitions_total",
			Help: "Sync queue status transitions",
		},
		[]string{"to"}, // "processing", "synced", "error", "pending"
	)

	SyncQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stockledger_sync_queue_entries",
			Help: "Sync queue entries by status, sampled on stats requests",
		},
		[]string{"status"},
	)

	// HTTP

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_api_requests_total",
			Help: "Admin API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockledger_api_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_api_panics_total",
			Help: "Handler panics recovered by the admin API",
		},
		[]string{"route"},
	)
)

// RecordAPIRequest records one admin API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRedistribution records the write counts of one redistribution pass.
func RecordRedistribution(written, unchanged, failed int) {
	RedistributionWrites.WithLabelValues("written").Add(float64(written))
	RedistributionWrites.WithLabelValues("unchanged").Add(float64(unchanged))
	RedistributionWrites.WithLabelValues("failed").Add(float64(failed))
}

// RecordQueueTransition counts entries moved into a status.
func RecordQueueTransition(to string, n int) {
	if n <= 0 {
		return
	}
	SyncQueueTransitions.WithLabelValues(to).Add(float64(n))
}

// UpdateQueueDepth sets the per-status gauge from a stats snapshot.
func UpdateQueueDepth(byStatus map[string]int64) {
	for status, n := range byStatus {
		SyncQueueDepth.WithLabelValues(status).Set(float64(n))
	}
}
