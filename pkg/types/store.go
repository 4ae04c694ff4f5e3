package types

import "context"

// Store is the persistence collaborator of the engine. Reads filtered by
// "live" only return rows whose deleted flag is false. Deletes are soft;
// the Purge methods physically remove rows and exist only so a caller can
// undo its own writes when the store offers no transactions.
type Store interface {
	CreateSchema(ctx context.Context, s *Schema) error
	GetSchema(ctx context.Context, id string) (*Schema, error)
	// FindSchema returns the live schema with the given name.
	FindSchema(ctx context.Context, name string) (*Schema, error)
	ListSchemas(ctx context.Context, page Page) ([]*Schema, error)
	DeleteSchema(ctx context.Context, id string) error

	CreateField(ctx context.Context, f *Field) error
	GetField(ctx context.Context, id string) (*Field, error)
	// FindField returns the live field with the given name on a schema.
	FindField(ctx context.Context, schemaID, name string) (*Field, error)
	ListFields(ctx context.Context, schemaID string) ([]*Field, error)
	DeleteField(ctx context.Context, id string) error
	PurgeField(ctx context.Context, id string) error

	CreateEntity(ctx context.Context, e *Entity) error
	GetEntity(ctx context.Context, id string) (*Entity, error)
	// ListEntities returns live entities of a schema in ascending id order.
	ListEntities(ctx context.Context, schemaID string, page Page) ([]*Entity, error)
	HasEntities(ctx context.Context, schemaID string) (bool, error)
	DeleteEntity(ctx context.Context, id string) error
	PurgeEntity(ctx context.Context, id string) error

	CreateValue(ctx context.Context, v *Value) error
	// PutValue inserts or replaces the value of an (entity, field) pair.
	PutValue(ctx context.Context, v *Value) error
	GetValue(ctx context.Context, entityID, fieldID string) (*Value, error)
	ListValues(ctx context.Context, entityID string) ([]*Value, error)
	// ValueExists reports whether a live entity holds text for the field.
	ValueExists(ctx context.Context, fieldID, text string) (bool, error)
	PurgeValues(ctx context.Context, fieldID string) error
}

// Transactor is implemented by stores that can run a group of writes
// atomically. fn receives a Store bound to the transaction; returning an
// error rolls every write back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Database is a Store with an attach/detach lifecycle.
type Database interface {
	// Attach connects to the backend described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Store returns the attached store, or ErrDetached.
	Store() (Store, error)
}
