package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/sales"
	"stockledger/internal/domain/syncqueue"
	"stockledger/internal/metrics"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/ledger")

// DefaultBatchSize is used when ProcessBatch gets a non-positive limit.
const DefaultBatchSize = 25

// Engine posts transactions to the journal and works the sync queue.
type Engine struct {
	builder *Builder
	entries Repository
	txs     TransactionSource
	queue   Queue
	audit   Auditor
	txm     tx.Manager
	lease   time.Duration
}

// EngineConfig bundles the engine's collaborators.
type EngineConfig struct {
	Builder      *Builder
	Entries      Repository
	Transactions TransactionSource
	Queue        Queue
	Audit        Auditor // optional
	TxManager    tx.Manager

	// Lease is how long a processing claim is honoured before another batch
	// may reclaim it. Zero leaves stuck entries to the manual reset.
	Lease time.Duration
}

// NewEngine creates a posting engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		builder: cfg.Builder,
		entries: cfg.Entries,
		txs:     cfg.Transactions,
		queue:   cfg.Queue,
		audit:   cfg.Audit,
		txm:     cfg.TxManager,
		lease:   cfg.Lease,
	}
}

// BuildAndPost posts t and returns the entry id. A transaction already posted
// under the same reference returns the existing id without writing.
func (e *Engine) BuildAndPost(ctx context.Context, t *sales.Transaction) (id.ID, error) {
	ctx, span := tracer.Start(ctx, "ledger.BuildAndPost")
	defer span.End()
	span.SetAttributes(attribute.String("reference", t.Reference()))

	t, err := e.withOriginalCost(ctx, t)
	if err != nil {
		return id.ID{}, err
	}

	var (
		entryID id.ID
		posted  bool
	)
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, found, err := e.entries.FindIDByReference(ctx, t.Reference())
		if err != nil {
			return fmt.Errorf("check existing entry: %w", err)
		}
		if found {
			entryID = existing
			return nil
		}

		entry, err := e.builder.Build(t)
		if err != nil {
			return err
		}
		if err := e.entries.Create(ctx, entry); err != nil {
			return fmt.Errorf("create journal entry: %w", err)
		}
		if e.audit != nil {
			if err := e.audit.RecordPosting(ctx, entry, t); err != nil {
				return fmt.Errorf("audit journal entry: %w", err)
			}
		}
		entryID, posted = entry.ID, true
		return nil
	})

	// A concurrent poster won the unique index; its entry is ours.
	if errors.Is(err, ErrDuplicateReference) {
		existing, found, ferr := e.entries.FindIDByReference(ctx, t.Reference())
		if ferr == nil && found {
			return existing, nil
		}
	}
	if err != nil {
		return id.ID{}, err
	}

	if posted {
		metrics.JournalEntriesPosted.WithLabelValues(string(t.Kind)).Inc()
		logger.Info(ctx, "journal entry posted",
			"entry_id", entryID, "reference", t.Reference(), "kind", t.Kind)
	} else {
		logger.Debug(ctx, "journal entry already posted", "entry_id", entryID, "reference", t.Reference())
	}
	return entryID, nil
}

// withOriginalCost returns a copy of a refund whose lines carry the cost basis
// of the sale it refers to. Other kinds are returned as is.
func (e *Engine) withOriginalCost(ctx context.Context, t *sales.Transaction) (*sales.Transaction, error) {
	if t.Kind != sales.KindRefund || t.RefersTo == nil || e.txs == nil {
		return t, nil
	}
	resolved := *t
	resolved.Lines = append([]sales.LineItem(nil), t.Lines...)
	if err := sales.ResolveOriginal(ctx, e.txs, &resolved); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// ProcessBatch claims up to limit queue entries and posts each one. A failing
// entry is marked error and recorded in the summary; the batch continues.
// Failing to claim, or to open a transaction at all, aborts the batch.
func (e *Engine) ProcessBatch(ctx context.Context, limit int) (*BatchSummary, error) {
	ctx, span := tracer.Start(ctx, "ledger.ProcessBatch")
	defer span.End()

	start := time.Now()
	defer func() { metrics.LedgerBatchDuration.Observe(time.Since(start).Seconds()) }()

	if limit <= 0 {
		limit = DefaultBatchSize
	}

	claimed, err := e.queue.Claim(ctx, limit, e.lease)
	if err != nil {
		return nil, fmt.Errorf("claim queue entries: %w", err)
	}
	metrics.RecordQueueTransition("processing", len(claimed))

	summary := &BatchSummary{Errors: []ItemError{}}
	for i, entry := range claimed {
		summary.Processed++

		entryID, err := e.postQueued(ctx, entry.TransactionID)
		if errors.Is(err, tx.ErrUnavailable) {
			logger.Error(ctx, "storage unavailable, aborting batch",
				"transaction_id", entry.TransactionID, "error", err)
			e.releaseClaims(ctx, claimed[i:])
			return summary, err
		}
		if err == nil {
			err = e.queue.MarkSynced(ctx, entry.TransactionID, entryID)
			if err == nil {
				summary.Synced++
				metrics.RecordQueueTransition("synced", 1)
				continue
			}
			err = fmt.Errorf("mark synced: %w", err)
		}

		summary.Failed++
		summary.Errors = append(summary.Errors, itemError(entry.TransactionID, err))
		logger.Warn(ctx, "queue entry failed",
			"transaction_id", entry.TransactionID, "error", err)

		if merr := e.queue.MarkError(ctx, entry.TransactionID, err.Error()); merr != nil {
			logger.Error(ctx, "failed to record queue error",
				"transaction_id", entry.TransactionID, "error", merr)
		} else {
			metrics.RecordQueueTransition("error", 1)
		}
	}

	logger.Info(ctx, "posting batch finished",
		"processed", summary.Processed,
		"synced", summary.Synced,
		"failed", summary.Failed,
	)
	return summary, nil
}

// releaseClaims hands unprocessed claims back to pending so the next batch
// picks them up without waiting for the lease to expire.
func (e *Engine) releaseClaims(ctx context.Context, claims []syncqueue.Entry) {
	txIDs := make([]id.ID, len(claims))
	for i, c := range claims {
		txIDs[i] = c.TransactionID
	}
	n, err := e.queue.ResetToPending(ctx, txIDs)
	if err != nil {
		logger.Warn(ctx, "failed to release claimed entries, lease will expire",
			"count", len(txIDs), "error", err)
		return
	}
	metrics.RecordQueueTransition("pending", int(n))
}

func (e *Engine) postQueued(ctx context.Context, txID id.ID) (id.ID, error) {
	t, err := e.txs.Get(ctx, txID)
	if errors.Is(err, sales.ErrTransactionNotFound) {
		return id.ID{}, apperror.NewNotFound("transaction", txID)
	}
	if err != nil {
		return id.ID{}, fmt.Errorf("load transaction: %w", err)
	}
	return e.BuildAndPost(ctx, t)
}

func itemError(txID id.ID, err error) ItemError {
	code := apperror.CodeInternal
	if appErr, ok := apperror.AsAppError(err); ok {
		code = appErr.Code
	}
	return ItemError{TransactionID: txID, Code: code, Message: err.Error()}
}

// Reverse posts an entry cancelling entryID. Reversing twice returns the
// first reversal.
func (e *Engine) Reverse(ctx context.Context, entryID id.ID, reason string) (id.ID, error) {
	original, err := e.GetEntry(ctx, entryID)
	if err != nil {
		return id.ID{}, err
	}
	if original.ReversesEntryID != nil {
		return id.ID{}, apperror.NewValidation("a reversing entry cannot be reversed")
	}

	var reversalID id.ID
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, found, err := e.entries.FindIDByReference(ctx, ReversalPrefix+original.Reference)
		if err != nil {
			return fmt.Errorf("check existing reversal: %w", err)
		}
		if found {
			reversalID = existing
			return nil
		}

		reversal, err := e.builder.Reversal(original, reason)
		if err != nil {
			return err
		}
		if err := e.entries.Create(ctx, reversal); err != nil {
			return fmt.Errorf("create reversal: %w", err)
		}
		if e.audit != nil {
			if err := e.audit.RecordPosting(ctx, reversal, nil); err != nil {
				return fmt.Errorf("audit reversal: %w", err)
			}
		}
		reversalID = reversal.ID
		return nil
	})
	if err != nil {
		return id.ID{}, err
	}

	logger.Info(ctx, "journal entry reversed", "entry_id", entryID, "reversal_id", reversalID)
	return reversalID, nil
}

// GetEntry loads a journal entry with its lines.
func (e *Engine) GetEntry(ctx context.Context, entryID id.ID) (*JournalEntry, error) {
	entry, err := e.entries.Get(ctx, entryID)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, apperror.NewNotFound("journal entry", entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return entry, nil
}

// GetByReference loads the entry posted under a business reference.
func (e *Engine) GetByReference(ctx context.Context, reference string) (*JournalEntry, error) {
	entry, err := e.entries.GetByReference(ctx, reference)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, apperror.NewNotFound("journal entry", reference)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return entry, nil
}
