package types

// Table names used by persistence backends and JSONL snapshots.
const (
	SchemasTable  = "schemas"
	FieldsTable   = "fields"
	EntitiesTable = "entities"
	ValuesTable   = "field_values"
)
