// Package material_repo provides the PostgreSQL implementation of material.Repository.
package material_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/material"
	"stockledger/internal/infrastructure/storage/postgres"
)

const materialsTable = "material_records"

var recordColumns = postgres.Columns[material.Record]()

// MaterialRepo implements material.Repository.
type MaterialRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ material.Repository = (*MaterialRepo)(nil)

// NewMaterialRepo creates a new material repository.
func NewMaterialRepo(txm *postgres.TxManager) *MaterialRepo {
	return &MaterialRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetRecord loads one material record.
func (r *MaterialRepo) GetRecord(ctx context.Context, materialID id.ID) (*material.Record, error) {
	sql, args, err := r.builder.Select(recordColumns...).
		From(materialsTable).
		Where(squirrel.Eq{"id": materialID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec material.Record
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, material.ErrMaterialNotFound
		}
		return nil, apperror.NewPersistence("get material record", err)
	}
	return &rec, nil
}

func (r *MaterialRepo) listQuery(mapped bool) squirrel.SelectBuilder {
	q := r.builder.Select(recordColumns...).From(materialsTable)
	if mapped {
		return q.Where(squirrel.NotEq{"linked_item_id": nil}).OrderBy("linked_item_id", "material_key")
	}
	return q.Where(squirrel.Eq{"linked_item_id": nil}).OrderBy("material_key", "id")
}

// ListUnmapped returns records without a linked item, ordered by material key.
func (r *MaterialRepo) ListUnmapped(ctx context.Context) ([]material.Record, error) {
	return r.list(ctx, false)
}

// ListMapped returns records with a linked item, grouped by item.
func (r *MaterialRepo) ListMapped(ctx context.Context) ([]material.Record, error) {
	return r.list(ctx, true)
}

func (r *MaterialRepo) list(ctx context.Context, mapped bool) ([]material.Record, error) {
	sql, args, err := r.listQuery(mapped).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []material.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, apperror.NewPersistence("list material records", err)
	}
	return records, nil
}

// SetLink points a record at an item; nil clears the link.
func (r *MaterialRepo) SetLink(ctx context.Context, materialID id.ID, itemID *id.ID) error {
	sql, args, err := r.builder.Update(materialsTable).
		Set("linked_item_id", itemID).
		Where(squirrel.Eq{"id": materialID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if itemID != nil && postgres.IsForeignKeyViolation(err) {
			return apperror.NewInvalidItem(*itemID)
		}
		return apperror.NewPersistence("set material link", err)
	}
	if tag.RowsAffected() == 0 {
		return material.ErrMaterialNotFound
	}
	return nil
}
