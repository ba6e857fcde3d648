// Package sales_repo provides the PostgreSQL implementation of sales.Repository.
package sales_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/sales"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	transactionsTable = "transactions"
	linesTable        = "transaction_lines"
	paymentsTable     = "transaction_payments"
)

var (
	headerColumns  = postgres.Columns[sales.Transaction]()
	lineColumns    = append([]string{"transaction_id"}, postgres.Columns[sales.LineItem]()...)
	paymentColumns = append([]string{"transaction_id"}, postgres.Columns[sales.Payment]()...)
)

// TransactionRepo implements sales.Repository. Transactions are written once.
type TransactionRepo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter
}

var _ sales.Repository = (*TransactionRepo)(nil)

// NewTransactionRepo creates a new transaction repository.
func NewTransactionRepo(txm *postgres.TxManager) *TransactionRepo {
	return &TransactionRepo{
		txm:      txm,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// Create inserts the header, lines and payments.
func (r *TransactionRepo) Create(ctx context.Context, t *sales.Transaction) error {
	sql, args, err := r.builder.Insert(transactionsTable).
		Columns(headerColumns...).
		Values(postgres.Values(t)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return sales.ErrDuplicateTransaction
		}
		return apperror.NewPersistence("insert transaction", err)
	}

	if _, err := r.inserter.Insert(ctx, linesTable, lineColumns, lineRows(t)); err != nil {
		return apperror.NewPersistence("insert transaction lines", err)
	}
	if _, err := r.inserter.Insert(ctx, paymentsTable, paymentColumns, paymentRows(t)); err != nil {
		return apperror.NewPersistence("insert transaction payments", err)
	}
	return nil
}

func lineRows(t *sales.Transaction) [][]any {
	rows := make([][]any, 0, len(t.Lines))
	for _, l := range t.Lines {
		rows = append(rows, append([]any{t.ID}, postgres.Values(l)...))
	}
	return rows
}

func paymentRows(t *sales.Transaction) [][]any {
	rows := make([][]any, 0, len(t.Payments))
	for _, p := range t.Payments {
		rows = append(rows, append([]any{t.ID}, postgres.Values(p)...))
	}
	return rows
}

// Get loads a transaction with lines and payments in line order.
func (r *TransactionRepo) Get(ctx context.Context, txID id.ID) (*sales.Transaction, error) {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := r.builder.Select(headerColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"id": txID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t sales.Transaction
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, sales.ErrTransactionNotFound
		}
		return nil, apperror.NewPersistence("get transaction", err)
	}

	sql, args, err = r.childQuery(linesTable, postgres.Columns[sales.LineItem](), txID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &t.Lines, sql, args...); err != nil {
		return nil, apperror.NewPersistence("get transaction lines", err)
	}

	sql, args, err = r.childQuery(paymentsTable, postgres.Columns[sales.Payment](), txID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build payments query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &t.Payments, sql, args...); err != nil {
		return nil, apperror.NewPersistence("get transaction payments", err)
	}

	return &t, nil
}

func (r *TransactionRepo) childQuery(table string, columns []string, txID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"transaction_id": txID}).
		OrderBy("line_no")
}
