package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// snapshotTables maps JSONL files to their SQLite tables and column lists.
// Tables with foreign keys come after the tables they reference.
var snapshotTables = []struct {
	file    string
	table   string
	columns []string
	orderBy string
}{
	{"schemas.jsonl", types.SchemasTable, []string{"schema_id", "name", "description", "deleted", "created_at"}, "schema_id"},
	{"fields.jsonl", types.FieldsTable, []string{"field_id", "schema_id", "name", "meta", "ref_id", "deleted", "created_at"}, "field_id"},
	{"entities.jsonl", types.EntitiesTable, []string{"entity_id", "schema_id", "deleted", "created_at"}, "entity_id"},
	{"field_values.jsonl", types.ValuesTable, []string{"entity_id", "field_id", "value"}, "entity_id, field_id"},
}

// Export writes every table, deleted rows included, to one JSONL file per
// table in dir.
func (b *Backend) Export(ctx context.Context, dir string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	for _, m := range snapshotTables {
		records, err := exportTable(ctx, b.db, m.table, m.columns, m.orderBy)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", m.table, err)
		}
		if err := writeJSONL(filepath.Join(dir, m.file), records); err != nil {
			return fmt.Errorf("writing %s: %w", m.file, err)
		}
	}
	return nil
}

func exportTable(ctx context.Context, db *sql.DB, table string, columns []string, orderBy string) ([]json.RawMessage, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(columns, ", "), table, orderBy))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			obj[col] = vals[i]
		}
		rec, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Import loads the JSONL files in dir into the database inside one
// transaction: either every file loads or nothing changes. Records whose
// primary key already exists are skipped, as are malformed lines. Unknown
// fields in a record are ignored. Import returns the number of rows added.
func (b *Backend) Import(ctx context.Context, dir string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, m := range snapshotTables {
		records, err := readJSONL(filepath.Join(dir, m.file))
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", m.file, err)
		}
		if len(records) == 0 {
			continue
		}
		n, err := insertRecords(ctx, tx, m.table, m.columns, records)
		if err != nil {
			return 0, fmt.Errorf("loading %s into %s: %w", m.file, m.table, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return total, nil
}

// insertRecords inserts parsed JSONL records into a table. Only the listed
// columns are read from each record; missing ones are stored as NULL.
func insertRecords(ctx context.Context, tx *sql.Tx, table string, columns []string, records []json.RawMessage) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders,
	))
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				enc, err := json.Marshal(v)
				if err != nil {
					return 0, fmt.Errorf("re-encoding %s.%s: %w", table, col, err)
				}
				args[i] = string(enc)
			case float64:
				args[i] = int64(v)
			default:
				args[i] = v
			}
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}
