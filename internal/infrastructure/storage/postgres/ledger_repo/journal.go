// Package ledger_repo provides the PostgreSQL implementation of ledger.Repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	entriesTable = "journal_entries"
	linesTable   = "journal_lines"
)

var (
	entryColumns = postgres.Columns[ledger.JournalEntry]()
	lineColumns  = append([]string{"entry_id"}, postgres.Columns[ledger.JournalLine]()...)
)

// JournalRepo implements ledger.Repository. Entries are append-only; the
// unique index on reference makes posting idempotent.
type JournalRepo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter
}

var _ ledger.Repository = (*JournalRepo)(nil)

// NewJournalRepo creates a new journal repository.
func NewJournalRepo(txm *postgres.TxManager) *JournalRepo {
	return &JournalRepo{
		txm:      txm,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// Create inserts the entry header and its lines.
func (r *JournalRepo) Create(ctx context.Context, entry *ledger.JournalEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.Insert(entriesTable).
		Columns(entryColumns...).
		Values(postgres.Values(entry)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ledger.ErrDuplicateReference
		}
		return apperror.NewPersistence("insert journal entry", err)
	}

	if _, err := r.inserter.Insert(ctx, linesTable, lineColumns, lineRows(entry)); err != nil {
		return apperror.NewPersistence("insert journal lines", err)
	}
	return nil
}

func lineRows(entry *ledger.JournalEntry) [][]any {
	rows := make([][]any, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		rows = append(rows, append([]any{entry.ID}, postgres.Values(l)...))
	}
	return rows
}

// FindIDByReference returns the id of the entry posted under reference.
func (r *JournalRepo) FindIDByReference(ctx context.Context, reference string) (id.ID, bool, error) {
	sql, args, err := r.builder.Select("id").
		From(entriesTable).
		Where(squirrel.Eq{"reference": reference}).
		ToSql()
	if err != nil {
		return id.ID{}, false, fmt.Errorf("build query: %w", err)
	}

	var entryID id.ID
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &entryID, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return id.ID{}, false, nil
		}
		return id.ID{}, false, apperror.NewPersistence("find journal entry", err)
	}
	return entryID, true, nil
}

// Get loads an entry with its lines.
func (r *JournalRepo) Get(ctx context.Context, entryID id.ID) (*ledger.JournalEntry, error) {
	return r.getWhere(ctx, squirrel.Eq{"id": entryID})
}

// GetByReference loads the entry posted under reference.
func (r *JournalRepo) GetByReference(ctx context.Context, reference string) (*ledger.JournalEntry, error) {
	return r.getWhere(ctx, squirrel.Eq{"reference": reference})
}

func (r *JournalRepo) getWhere(ctx context.Context, pred squirrel.Eq) (*ledger.JournalEntry, error) {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := r.builder.Select(entryColumns...).From(entriesTable).Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.JournalEntry
	if err := pgxscan.Get(ctx, querier, &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ledger.ErrEntryNotFound
		}
		return nil, apperror.NewPersistence("get journal entry", err)
	}

	sql, args, err = r.linesQuery(entry.ID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &entry.Lines, sql, args...); err != nil {
		return nil, apperror.NewPersistence("get journal lines", err)
	}
	return &entry, nil
}

func (r *JournalRepo) linesQuery(entryID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(postgres.Columns[ledger.JournalLine]()...).
		From(linesTable).
		Where(squirrel.Eq{"entry_id": entryID}).
		OrderBy("line_no")
}
