// Package queue_repo provides the PostgreSQL implementation of syncqueue.Repository.
package queue_repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/syncqueue"
	"stockledger/internal/infrastructure/storage/postgres"
)

const queueTable = "sync_queue"

var entryColumns = postgres.Columns[syncqueue.Entry]()

// QueueRepo implements syncqueue.Repository on the sync_queue table.
// Claims use FOR UPDATE SKIP LOCKED so concurrent workers never share an entry.
type QueueRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ syncqueue.Repository = (*QueueRepo)(nil)

// NewQueueRepo creates a new queue repository.
func NewQueueRepo(txm *postgres.TxManager) *QueueRepo {
	return &QueueRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Enqueue inserts a pending entry; an existing entry is left untouched.
func (r *QueueRepo) Enqueue(ctx context.Context, txID id.ID) error {
	sql, args, err := r.builder.Insert(queueTable).
		Columns("transaction_id", "status").
		Values(txID, syncqueue.StatusPending).
		Suffix("ON CONFLICT (transaction_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewPersistence("enqueue transaction", err)
	}
	return nil
}

// claimQuery renders the single-statement claim. The inner select is built
// with ? placeholders; the outer builder renumbers them.
func (r *QueueRepo) claimQuery(limit int, lease time.Duration) (string, []any, error) {
	claimable := squirrel.Or{
		squirrel.Eq{"status": []string{string(syncqueue.StatusPending), string(syncqueue.StatusError)}},
	}
	if lease > 0 {
		claimable = append(claimable, squirrel.And{
			squirrel.Eq{"status": string(syncqueue.StatusProcessing)},
			squirrel.Expr("claimed_at < now() - make_interval(secs => ?)", lease.Seconds()),
		})
	}

	inner, innerArgs, err := squirrel.Select("transaction_id").
		From(queueTable).
		Where(claimable).
		OrderBy("created_at", "transaction_id").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build claim select: %w", err)
	}

	return r.builder.Update(queueTable).
		Set("status", string(syncqueue.StatusProcessing)).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("claimed_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Expr("transaction_id IN ("+inner+")", innerArgs...)).
		Suffix("RETURNING " + strings.Join(entryColumns, ", ")).
		ToSql()
}

// Claim moves up to limit claimable entries to processing and returns them
// oldest first.
func (r *QueueRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]syncqueue.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	sql, args, err := r.claimQuery(limit, lease)
	if err != nil {
		return nil, err
	}

	var entries []syncqueue.Entry
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, apperror.NewPersistence("claim queue entries", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].TransactionID.String() < entries[j].TransactionID.String()
	})
	return entries, nil
}

// MarkSynced records the posted entry. Synced is terminal.
func (r *QueueRepo) MarkSynced(ctx context.Context, txID id.ID, entryID id.ID) error {
	return r.transition(ctx, "mark queue entry synced", txID, r.builder.Update(queueTable).
		Set("status", string(syncqueue.StatusSynced)).
		Set("synced_entry_id", entryID).
		Set("last_error", nil))
}

// MarkError records the failure message; the entry stays claimable.
func (r *QueueRepo) MarkError(ctx context.Context, txID id.ID, message string) error {
	return r.transition(ctx, "mark queue entry error", txID, r.builder.Update(queueTable).
		Set("status", string(syncqueue.StatusError)).
		Set("last_error", message))
}

func (r *QueueRepo) transition(ctx context.Context, op string, txID id.ID, q squirrel.UpdateBuilder) error {
	sql, args, err := q.
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"transaction_id": txID}).
		Where(squirrel.NotEq{"status": string(syncqueue.StatusSynced)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewPersistence(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sync queue entry", txID)
	}
	return nil
}

func (r *QueueRepo) resetQuery() squirrel.UpdateBuilder {
	return r.builder.Update(queueTable).
		Set("status", string(syncqueue.StatusPending)).
		Set("claimed_at", nil).
		Set("updated_at", squirrel.Expr("now()"))
}

// ResetToPending moves the given processing or error entries back to pending.
func (r *QueueRepo) ResetToPending(ctx context.Context, txIDs []id.ID) (int64, error) {
	if len(txIDs) == 0 {
		return 0, nil
	}
	return r.reset(ctx, r.resetQuery().
		Where(squirrel.Eq{"transaction_id": txIDs}).
		Where(squirrel.Eq{"status": []string{string(syncqueue.StatusProcessing), string(syncqueue.StatusError)}}))
}

// ResetStale moves entries claimed more than olderThan ago back to pending.
func (r *QueueRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return r.reset(ctx, r.resetQuery().
		Where(squirrel.Eq{"status": string(syncqueue.StatusProcessing)}).
		Where(squirrel.Expr("claimed_at < now() - make_interval(secs => ?)", olderThan.Seconds())))
}

func (r *QueueRepo) reset(ctx context.Context, q squirrel.UpdateBuilder) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, apperror.NewPersistence("reset queue entries", err)
	}
	return tag.RowsAffected(), nil
}

type statusCount struct {
	Status syncqueue.Status `db:"status"`
	N      int64            `db:"n"`
}

// Stats counts entries per status.
func (r *QueueRepo) Stats(ctx context.Context) (syncqueue.Stats, error) {
	sql, args, err := r.builder.Select("status", "count(*) AS n").
		From(queueTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return syncqueue.Stats{}, fmt.Errorf("build query: %w", err)
	}

	var counts []statusCount
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &counts, sql, args...); err != nil {
		return syncqueue.Stats{}, apperror.NewPersistence("count queue entries", err)
	}

	var st syncqueue.Stats
	for _, c := range counts {
		st.Set(c.Status, c.N)
	}
	return st, nil
}

// ListErrors returns entries in error, most recently updated first.
func (r *QueueRepo) ListErrors(ctx context.Context, limit int) ([]syncqueue.Entry, error) {
	sql, args, err := r.builder.Select(entryColumns...).
		From(queueTable).
		Where(squirrel.Eq{"status": string(syncqueue.StatusError)}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []syncqueue.Entry
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list queue errors", err)
	}
	return entries, nil
}

// Get loads one entry.
func (r *QueueRepo) Get(ctx context.Context, txID id.ID) (*syncqueue.Entry, error) {
	sql, args, err := r.builder.Select(entryColumns...).
		From(queueTable).
		Where(squirrel.Eq{"transaction_id": txID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e syncqueue.Entry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, syncqueue.ErrEntryNotFound
		}
		return nil, apperror.NewPersistence("get queue entry", err)
	}
	return &e, nil
}
