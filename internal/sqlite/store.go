package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

var (
	_ types.Store      = (*store)(nil)
	_ types.Transactor = (*store)(nil)
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements types.Store over a querier. db is nil when the store is
// bound to a transaction.
type store struct {
	q  querier
	db *sql.DB
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const timeLayout = time.RFC3339Nano

// WithTx runs fn inside a transaction. Nested calls reuse the outer
// transaction.
func (s *store) WithTx(ctx context.Context, fn func(types.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Schemas.

const schemaColumns = "schema_id, name, description, deleted, created_at"

func (s *store) CreateSchema(ctx context.Context, sc *types.Schema) error {
	if sc.Name == "" {
		return types.ErrInvalidName
	}
	if _, err := s.FindSchema(ctx, sc.Name); err == nil {
		return fmt.Errorf("%w: schema %q", types.ErrDuplicateName, sc.Name)
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	sc.SchemaID = newUUID()
	sc.CreatedAt = time.Now().UTC()
	sc.Deleted = false

	var desc *string
	if sc.Description != "" {
		desc = &sc.Description
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO schemas ("+schemaColumns+") VALUES (?, ?, ?, 0, ?)",
		sc.SchemaID, sc.Name, desc, sc.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting schema %q: %w", sc.Name, err)
	}
	return nil
}

func (s *store) GetSchema(ctx context.Context, id string) (*types.Schema, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.q.QueryRowContext(ctx, "SELECT "+schemaColumns+" FROM schemas WHERE schema_id = ?", id)
	return notFound(scanSchema(row))
}

func (s *store) FindSchema(ctx context.Context, name string) (*types.Schema, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE name = ? AND "+live(""), name)
	return notFound(scanSchema(row))
}

func (s *store) ListSchemas(ctx context.Context, page types.Page) ([]*types.Schema, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE "+live("")+" AND schema_id > ? ORDER BY schema_id LIMIT ?",
		page.After, page.Size())
	if err != nil {
		return nil, fmt.Errorf("querying schemas: %w", err)
	}
	defer rows.Close()

	result := []*types.Schema{}
	for rows.Next() {
		sc, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (s *store) DeleteSchema(ctx context.Context, id string) error {
	return s.softDelete(ctx, "schemas", "schema_id", id)
}

func scanSchema(row rowScanner) (*types.Schema, error) {
	var (
		sc      types.Schema
		desc    sql.NullString
		deleted int
		created string
	)
	if err := row.Scan(&sc.SchemaID, &sc.Name, &desc, &deleted, &created); err != nil {
		return nil, err
	}
	sc.Description = desc.String
	sc.Deleted = deleted != 0
	sc.CreatedAt = parseTime(created)
	return &sc, nil
}

// Fields.

const fieldColumns = "field_id, schema_id, name, meta, ref_id, deleted, created_at"

func (s *store) CreateField(ctx context.Context, f *types.Field) error {
	if f.Name == "" {
		return types.ErrInvalidName
	}
	if f.SchemaID == "" {
		return types.ErrInvalidID
	}
	if _, err := s.FindField(ctx, f.SchemaID, f.Name); err == nil {
		return fmt.Errorf("%w: field %q", types.ErrDuplicateName, f.Name)
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	meta, err := json.Marshal(f.Meta)
	if err != nil {
		return fmt.Errorf("encoding field meta: %w", err)
	}

	f.FieldID = newUUID()
	f.CreatedAt = time.Now().UTC()
	f.Deleted = false

	_, err = s.q.ExecContext(ctx,
		"INSERT INTO fields ("+fieldColumns+") VALUES (?, ?, ?, ?, ?, 0, ?)",
		f.FieldID, f.SchemaID, f.Name, string(meta), f.RefID, f.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting field %q: %w", f.Name, err)
	}
	return nil
}

func (s *store) GetField(ctx context.Context, id string) (*types.Field, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.q.QueryRowContext(ctx, "SELECT "+fieldColumns+" FROM fields WHERE field_id = ?", id)
	return notFound(scanField(row))
}

func (s *store) FindField(ctx context.Context, schemaID, name string) (*types.Field, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+fieldColumns+" FROM fields WHERE schema_id = ? AND name = ? AND "+live(""),
		schemaID, name)
	return notFound(scanField(row))
}

func (s *store) ListFields(ctx context.Context, schemaID string) ([]*types.Field, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+fieldColumns+" FROM fields WHERE schema_id = ? AND "+live("")+" ORDER BY field_id",
		schemaID)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	result := []*types.Field{}
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *store) DeleteField(ctx context.Context, id string) error {
	return s.softDelete(ctx, "fields", "field_id", id)
}

func (s *store) PurgeField(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM fields WHERE field_id = ?", id); err != nil {
		return fmt.Errorf("purging field %s: %w", id, err)
	}
	return nil
}

func scanField(row rowScanner) (*types.Field, error) {
	var (
		f       types.Field
		meta    string
		ref     sql.NullString
		deleted int
		created string
	)
	if err := row.Scan(&f.FieldID, &f.SchemaID, &f.Name, &meta, &ref, &deleted, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &f.Meta); err != nil {
		return nil, fmt.Errorf("decoding meta of field %s: %w", f.FieldID, err)
	}
	if ref.Valid {
		f.RefID = &ref.String
	}
	f.Deleted = deleted != 0
	f.CreatedAt = parseTime(created)
	return &f, nil
}

// Entities.

const entityColumns = "entity_id, schema_id, deleted, created_at"

func (s *store) CreateEntity(ctx context.Context, e *types.Entity) error {
	if e.SchemaID == "" {
		return types.ErrInvalidID
	}
	e.EntityID = newUUID()
	e.CreatedAt = time.Now().UTC()
	e.Deleted = false

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO entities ("+entityColumns+") VALUES (?, ?, 0, ?)",
		e.EntityID, e.SchemaID, e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

func (s *store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.q.QueryRowContext(ctx, "SELECT "+entityColumns+" FROM entities WHERE entity_id = ?", id)
	return notFound(scanEntity(row))
}

func (s *store) ListEntities(ctx context.Context, schemaID string, page types.Page) ([]*types.Entity, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE schema_id = ? AND "+live("")+
			" AND entity_id > ? ORDER BY entity_id LIMIT ?",
		schemaID, page.After, page.Size())
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	result := []*types.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *store) HasEntities(ctx context.Context, schemaID string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		"SELECT 1 FROM entities WHERE schema_id = ? AND "+live("")+" LIMIT 1", schemaID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking entities of schema %s: %w", schemaID, err)
	}
	return true, nil
}

func (s *store) DeleteEntity(ctx context.Context, id string) error {
	return s.softDelete(ctx, "entities", "entity_id", id)
}

func (s *store) PurgeEntity(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM field_values WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("purging values of entity %s: %w", id, err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM entities WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("purging entity %s: %w", id, err)
	}
	return nil
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		e       types.Entity
		deleted int
		created string
	)
	if err := row.Scan(&e.EntityID, &e.SchemaID, &deleted, &created); err != nil {
		return nil, err
	}
	e.Deleted = deleted != 0
	e.CreatedAt = parseTime(created)
	return &e, nil
}

// Values.

func (s *store) CreateValue(ctx context.Context, v *types.Value) error {
	if v.EntityID == "" || v.FieldID == "" {
		return types.ErrInvalidID
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO field_values (entity_id, field_id, value) VALUES (?, ?, ?)",
		v.EntityID, v.FieldID, v.Value,
	)
	if err != nil {
		return fmt.Errorf("inserting value of entity %s field %s: %w", v.EntityID, v.FieldID, err)
	}
	return nil
}

func (s *store) PutValue(ctx context.Context, v *types.Value) error {
	if v.EntityID == "" || v.FieldID == "" {
		return types.ErrInvalidID
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO field_values (entity_id, field_id, value) VALUES (?, ?, ?)
		 ON CONFLICT (entity_id, field_id) DO UPDATE SET value = excluded.value`,
		v.EntityID, v.FieldID, v.Value,
	)
	if err != nil {
		return fmt.Errorf("storing value of entity %s field %s: %w", v.EntityID, v.FieldID, err)
	}
	return nil
}

func (s *store) GetValue(ctx context.Context, entityID, fieldID string) (*types.Value, error) {
	v := types.Value{EntityID: entityID, FieldID: fieldID}
	err := s.q.QueryRowContext(ctx,
		"SELECT value FROM field_values WHERE entity_id = ? AND field_id = ?", entityID, fieldID,
	).Scan(&v.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading value: %w", err)
	}
	return &v, nil
}

func (s *store) ListValues(ctx context.Context, entityID string) ([]*types.Value, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT entity_id, field_id, value FROM field_values WHERE entity_id = ? ORDER BY field_id", entityID)
	if err != nil {
		return nil, fmt.Errorf("querying values: %w", err)
	}
	defer rows.Close()

	result := []*types.Value{}
	for rows.Next() {
		var v types.Value
		if err := rows.Scan(&v.EntityID, &v.FieldID, &v.Value); err != nil {
			return nil, err
		}
		result = append(result, &v)
	}
	return result, rows.Err()
}

func (s *store) ValueExists(ctx context.Context, fieldID, text string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM field_values v JOIN entities e ON e.entity_id = v.entity_id
		 WHERE v.field_id = ? AND v.value = ? AND `+live("e")+` LIMIT 1`,
		fieldID, text,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up value of field %s: %w", fieldID, err)
	}
	return true, nil
}

func (s *store) PurgeValues(ctx context.Context, fieldID string) error {
	if fieldID == "" {
		return types.ErrInvalidID
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM field_values WHERE field_id = ?", fieldID); err != nil {
		return fmt.Errorf("purging values of field %s: %w", fieldID, err)
	}
	return nil
}

// softDelete marks a live row deleted. Returns ErrNotFound when no live row
// has the id.
func (s *store) softDelete(ctx context.Context, table, idColumn, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET deleted = 1 WHERE %s = ? AND %s", table, idColumn, live("")), id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// notFound maps sql.ErrNoRows to types.ErrNotFound.
func notFound[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
