package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SchemaVersion is the schema_version row this build expects.
const SchemaVersion = 1

// requiredColumns lists the columns the repositories read or write.
// CheckSchema refuses to start against a database missing any of them.
var requiredColumns = map[string][]string{
	"stock_items":         {"id", "sku", "name", "quantity_on_hand", "is_active", "updated_at"},
	"locations":           {"id", "name", "is_active"},
	"item_location_links": {"item_id", "location_id", "product_ref"},
	"location_inventory":  {"item_id", "location_id", "product_ref", "quantity", "updated_at"},
	"stock_adjustments":   {"id", "item_id", "reason", "delta", "quantity_before", "quantity_after", "created_at"},
	"material_records":    {"id", "material_key", "name", "category", "quantity_remaining", "linked_item_id"},
	"transactions": {
		"id", "number", "kind", "refers_to", "occurred_at",
		"subtotal", "discount_total", "tax_total", "total_amount", "amount_paid",
	},
	"transaction_lines": {
		"transaction_id", "line_no", "item_id", "description", "category",
		"quantity", "unit_price", "unit_cost", "tax", "discount",
	},
	"transaction_payments": {"transaction_id", "line_no", "method", "amount"},
	"journal_entries": {
		"id", "entry_date", "reference", "description",
		"transaction_id", "reverses_entry_id", "created_at",
	},
	"journal_lines": {"entry_id", "line_no", "side", "account_code", "amount", "memo"},
	"sync_queue": {
		"transaction_id", "status", "last_error", "attempts",
		"claimed_at", "synced_entry_id", "created_at", "updated_at",
	},
	"sys_audit": {
		"id", "entity_type", "entity_id", "action",
		"changes", "changes_compressed", "compression_algo", "metadata", "created_at",
	},
}

type migration struct {
	version int
	name    string
	sql     string
}

func loadMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	out := make([]migration, 0, len(files))
	for _, f := range files {
		name := path.Base(f)
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: name must start with <version>_", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", name, err)
		}
		body, err := migrationFS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Migrate applies every embedded migration newer than the recorded schema
// version. Each file runs in its own transaction.
func Migrate(ctx context.Context, pool *Pool) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(context.Background())
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		logger.Info(ctx, "migration applied", "migration", m.name, "version", m.version)
	}

	return nil
}

// currentVersion returns 0 when schema_version does not exist yet.
func currentVersion(ctx context.Context, pool *Pool) (int, error) {
	var exists bool
	err := pool.QueryRow(ctx, "SELECT to_regclass('schema_version') IS NOT NULL").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("probe schema_version: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version *int
	if err := pool.QueryRow(ctx, "SELECT max(version) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

type columnRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
}

// CheckSchema verifies the database carries SchemaVersion and every column
// the repositories depend on. It names everything missing in one error.
func CheckSchema(ctx context.Context, pool *Pool) error {
	version, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}
	if version < SchemaVersion {
		return fmt.Errorf("schema version %d is older than required %d; run migrations", version, SchemaVersion)
	}

	tables := make([]string, 0, len(requiredColumns))
	for t := range requiredColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("table_name", "column_name").
		From("information_schema.columns").
		Where(squirrel.Expr("table_schema = current_schema()")).
		Where(squirrel.Eq{"table_name": tables}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build schema query: %w", err)
	}

	var rows []columnRow
	if err := pgxscan.Select(ctx, pool, &rows, sql, args...); err != nil {
		return fmt.Errorf("read columns: %w", err)
	}

	if missing := missingColumns(rows); len(missing) > 0 {
		return fmt.Errorf("schema check failed, missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// missingColumns returns "table.column" for every required column absent from present.
func missingColumns(present []columnRow) []string {
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c.TableName+"."+c.ColumnName] = true
	}

	var missing []string
	for table, cols := range requiredColumns {
		for _, c := range cols {
			if key := table + "." + c; !have[key] {
				missing = append(missing, key)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
