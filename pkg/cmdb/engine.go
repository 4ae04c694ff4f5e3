package cmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/cmdb/pkg/typedvalue"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Options configures an Engine.
type Options struct {
	// PageSize is the number of entities fetched per page while
	// backfilling. Zero means types.DefaultPageSize.
	PageSize int
	Logger   *slog.Logger
}

// Engine evolves schemas and writes records on top of a types.Store.
//
// Operations on one schema are serialized by a per-schema lock. When the
// store implements types.Transactor every operation runs in a single
// transaction; otherwise the engine undoes its own writes on failure.
type Engine struct {
	store    types.Store
	registry *typedvalue.Registry
	logger   *slog.Logger
	pageSize int
	locks    schemaLocks
}

// NewEngine returns an engine over store that resolves field types through
// registry.
func NewEngine(store types.Store, registry *typedvalue.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:    store,
		registry: registry,
		logger:   logger,
		pageSize: opts.PageSize,
	}
}

// plainText stores values of untyped fields.
var plainText typedvalue.Handler = new(typedvalue.Text)

// AddField adds fieldName to the live schema schemaName, using raw as its
// metadata document. When the schema already holds entities, a field that
// is neither nullable nor unique gets its default written to every one of
// them; either the field and all of those values persist, or nothing does.
//
// Errors, checked in order: ErrUnknownSchema, ErrMalformedMeta,
// ErrUnknownReference, ErrUnknownType or ErrInvalidOption, ErrInvalidName
// or ErrDuplicateName, ErrUnsatisfiableConstraint, ErrDefaultRequired,
// ErrValidation or ErrReferenceViolation for the default, and
// ErrBackfillFailed when a write fails.
func (e *Engine) AddField(ctx context.Context, schemaName, fieldName string, raw map[string]any) (*types.Field, error) {
	schema, err := e.findSchema(ctx, schemaName)
	if err != nil {
		return nil, err
	}

	meta, err := types.ParseFieldMeta(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", fieldName, err)
	}

	field := &types.Field{SchemaID: schema.SchemaID, Name: fieldName, Meta: meta}
	if meta.Reference != nil {
		target, err := e.resolveReference(ctx, *meta.Reference)
		if err != nil {
			return nil, err
		}
		field.RefID = &target.FieldID
	}

	handler, err := e.handlerFor(meta)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", fieldName, err)
	}

	if fieldName == "" {
		return nil, fmt.Errorf("%w: empty field name", types.ErrInvalidName)
	}

	unlock := e.locks.lock(schema.SchemaID)
	defer unlock()

	var backfilled int
	err = e.inUnit(ctx, func(u *unit) error {
		if _, err := u.store.FindField(ctx, schema.SchemaID, fieldName); err == nil {
			return fmt.Errorf("%w: field %q on schema %q", types.ErrDuplicateName, fieldName, schemaName)
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}

		used, err := u.store.HasEntities(ctx, schema.SchemaID)
		if err != nil {
			return fmt.Errorf("checking usage of schema %q: %w", schemaName, err)
		}

		backfill := used && !meta.Nullable
		if backfill && meta.Unique {
			return fmt.Errorf("%w: unique field %q on used schema %q cannot share one default",
				types.ErrUnsatisfiableConstraint, fieldName, schemaName)
		}
		if backfill && !meta.HasDefault() {
			return fmt.Errorf("%w: field %q on used schema %q", types.ErrDefaultRequired, fieldName, schemaName)
		}

		var text string
		if meta.HasDefault() {
			if text, err = e.serialize(ctx, u.store, field, handler, *meta.Default); err != nil {
				return fmt.Errorf("default of field %q: %w", fieldName, err)
			}
			field.Meta.Default = &text
		}

		if err := u.store.CreateField(ctx, field); err != nil {
			if backfill {
				return fmt.Errorf("%w: %w", types.ErrBackfillFailed, err)
			}
			return err
		}
		u.onFailure(func(ctx context.Context) error { return e.store.PurgeField(ctx, field.FieldID) })

		if !backfill {
			return nil
		}
		u.onFailure(func(ctx context.Context) error { return e.store.PurgeValues(ctx, field.FieldID) })
		backfilled, err = e.backfill(ctx, u.store, field, text)
		if err != nil {
			return fmt.Errorf("%w: field %q after %d entities: %w", types.ErrBackfillFailed, fieldName, backfilled, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("field added",
		"schema", schemaName,
		"field", fieldName,
		"field_id", field.FieldID,
		"backfilled", backfilled,
	)
	return field, nil
}

// backfill writes text as the value of field for every live entity of its
// schema and returns the number of values written.
func (e *Engine) backfill(ctx context.Context, s types.Store, field *types.Field, text string) (int, error) {
	n := 0
	stream := StreamEntities(ctx, s, field.SchemaID, e.pageSize)
	for stream.Next() {
		v := &types.Value{EntityID: stream.Entity().EntityID, FieldID: field.FieldID, Value: text}
		if err := s.CreateValue(ctx, v); err != nil {
			return n, err
		}
		n++
	}
	e.logger.Debug("backfill finished", "field_id", field.FieldID, "values", n, "pages", stream.Fetches())
	return n, stream.Err()
}

// CreateEntity creates a record of schemaName. values maps field names to
// raw values. Fields left out take their default; a field without default
// must be nullable, else ErrRequiredValue.
func (e *Engine) CreateEntity(ctx context.Context, schemaName string, values map[string]any) (*types.Entity, error) {
	schema, err := e.findSchema(ctx, schemaName)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(schema.SchemaID)
	defer unlock()

	entity := &types.Entity{SchemaID: schema.SchemaID}
	err = e.inUnit(ctx, func(u *unit) error {
		fields, err := u.store.ListFields(ctx, schema.SchemaID)
		if err != nil {
			return err
		}
		if err := checkUnknown(schemaName, fields, values); err != nil {
			return err
		}

		rows := make([]*types.Value, 0, len(fields))
		for _, f := range fields {
			raw, ok := values[f.Name]
			if !ok || raw == nil {
				switch {
				case f.Meta.HasDefault():
					raw = *f.Meta.Default
				case f.Meta.Nullable:
					continue
				default:
					return fmt.Errorf("%w: field %q of schema %q", types.ErrRequiredValue, f.Name, schemaName)
				}
			}
			text, err := e.checkedValue(ctx, u.store, f, raw, "")
			if err != nil {
				return err
			}
			rows = append(rows, &types.Value{FieldID: f.FieldID, Value: text})
		}

		if err := u.store.CreateEntity(ctx, entity); err != nil {
			return err
		}
		u.onFailure(func(ctx context.Context) error { return e.store.PurgeEntity(ctx, entity.EntityID) })
		for _, v := range rows {
			v.EntityID = entity.EntityID
			if err := u.store.CreateValue(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("entity created", "schema", schemaName, "entity_id", entity.EntityID)
	return entity, nil
}

// SetValue sets the value of fieldName on a live entity. raw must be
// non-nil.
func (e *Engine) SetValue(ctx context.Context, entityID, fieldName string, raw any) (*types.Value, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", entityID, err)
	}
	if entity.Deleted {
		return nil, fmt.Errorf("entity %s: %w", entityID, types.ErrNotFound)
	}

	unlock := e.locks.lock(entity.SchemaID)
	defer unlock()

	var value *types.Value
	err = e.inUnit(ctx, func(u *unit) error {
		field, err := u.store.FindField(ctx, entity.SchemaID, fieldName)
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%w: %q", types.ErrUnknownField, fieldName)
		} else if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("%w: field %q", types.ErrRequiredValue, fieldName)
		}

		text, err := e.checkedValue(ctx, u.store, field, raw, entityID)
		if err != nil {
			return err
		}
		value = &types.Value{EntityID: entityID, FieldID: field.FieldID, Value: text}
		return u.store.PutValue(ctx, value)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("value set", "entity_id", entityID, "field", fieldName)
	return value, nil
}

// EntityValues returns the values of a live entity keyed by field name,
// parsed back into their typed form. Values of deleted fields are left
// out.
func (e *Engine) EntityValues(ctx context.Context, entityID string) (map[string]any, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", entityID, err)
	}
	if entity.Deleted {
		return nil, fmt.Errorf("entity %s: %w", entityID, types.ErrNotFound)
	}

	fields, err := e.store.ListFields(ctx, entity.SchemaID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Field, len(fields))
	for _, f := range fields {
		byID[f.FieldID] = f
	}

	values, err := e.store.ListValues(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	for _, v := range values {
		f, ok := byID[v.FieldID]
		if !ok {
			continue
		}
		h, err := e.handlerFor(f.Meta)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		parsed, err := h.Parse(v.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = parsed
	}
	return out, nil
}

func (e *Engine) findSchema(ctx context.Context, name string) (*types.Schema, error) {
	schema, err := e.store.FindSchema(ctx, name)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSchema, name)
	}
	if err != nil {
		return nil, fmt.Errorf("finding schema %q: %w", name, err)
	}
	return schema, nil
}

func (e *Engine) resolveReference(ctx context.Context, ref types.Reference) (*types.Field, error) {
	schema, err := e.store.FindSchema(ctx, ref.Schema)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: schema %q", types.ErrUnknownReference, ref.Schema)
	} else if err != nil {
		return nil, err
	}
	field, err := e.store.FindField(ctx, schema.SchemaID, ref.Field)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: field %q of schema %q", types.ErrUnknownReference, ref.Field, ref.Schema)
	} else if err != nil {
		return nil, err
	}
	return field, nil
}

// handlerFor returns the typed-value handler of a field, or plainText when
// the field is untyped.
func (e *Engine) handlerFor(meta types.FieldMeta) (typedvalue.Handler, error) {
	if meta.Type == nil {
		return plainText, nil
	}
	return e.registry.Instance(meta.Type.Name, typedvalue.Options(meta.Type.Option))
}

// serialize stringifies raw with handler and checks the field's reference.
func (e *Engine) serialize(ctx context.Context, s types.Store, field *types.Field, handler typedvalue.Handler, raw any) (string, error) {
	text, err := handler.Stringify(raw)
	if err != nil {
		return "", err
	}
	if field.RefID != nil {
		ok, err := s.ValueExists(ctx, *field.RefID, text)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %q not found", types.ErrReferenceViolation, text)
		}
	}
	return text, nil
}

// checkedValue serializes raw for field and enforces uniqueness. owner is
// the entity being updated, or empty for a new one.
func (e *Engine) checkedValue(ctx context.Context, s types.Store, field *types.Field, raw any, owner string) (string, error) {
	handler, err := e.handlerFor(field.Meta)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field.Name, err)
	}
	text, err := e.serialize(ctx, s, field, handler, raw)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field.Name, err)
	}
	if !field.Meta.Unique {
		return text, nil
	}

	if owner != "" {
		current, err := s.GetValue(ctx, owner, field.FieldID)
		if err == nil && current.Value == text {
			return text, nil
		} else if err != nil && !errors.Is(err, types.ErrNotFound) {
			return "", err
		}
	}
	taken, err := s.ValueExists(ctx, field.FieldID, text)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("%w: field %q already holds %q", types.ErrUniqueViolation, field.Name, text)
	}
	return text, nil
}

func checkUnknown(schemaName string, fields []*types.Field, values map[string]any) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}
	for name := range values {
		if !known[name] {
			return fmt.Errorf("%w: %q on schema %q", types.ErrUnknownField, name, schemaName)
		}
	}
	return nil
}
