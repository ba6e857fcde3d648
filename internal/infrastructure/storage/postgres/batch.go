package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// BatchInserter writes child rows (transaction lines, journal lines) in one
// round-trip. Inside a transaction it uses the COPY protocol; outside one it
// falls back to a multi-row INSERT.
type BatchInserter struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert writes rows into table. Each row must match columns.
func (b *BatchInserter) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if tx := b.txManager.GetTx(ctx); tx != nil {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, fmt.Errorf("copy into %s: %w", table, err)
		}
		return n, nil
	}

	sql, args, err := InsertSQL(b.builder, table, columns, rows)
	if err != nil {
		return 0, err
	}
	tag, err := b.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// InsertSQL renders a multi-row INSERT for rows.
func InsertSQL(builder squirrel.StatementBuilderType, table string, columns []string, rows [][]any) (string, []any, error) {
	q := builder.Insert(table).Columns(columns...)
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return sql, args, nil
}
