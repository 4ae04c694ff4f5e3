package sqlite

// Schema DDL for all tables.
const (
	createSchemas = `CREATE TABLE IF NOT EXISTS schemas (
    schema_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

	createFields = `CREATE TABLE IF NOT EXISTS fields (
    field_id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL,
    name TEXT NOT NULL,
    meta TEXT NOT NULL,
    ref_id TEXT,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (schema_id) REFERENCES schemas(schema_id),
    FOREIGN KEY (ref_id) REFERENCES fields(field_id)
);`

	createEntities = `CREATE TABLE IF NOT EXISTS entities (
    entity_id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (schema_id) REFERENCES schemas(schema_id)
);`

	createFieldValues = `CREATE TABLE IF NOT EXISTS field_values (
    entity_id TEXT NOT NULL,
    field_id TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (entity_id, field_id),
    FOREIGN KEY (entity_id) REFERENCES entities(entity_id),
    FOREIGN KEY (field_id) REFERENCES fields(field_id)
);`
)

// Index DDL. Name uniqueness only applies to live rows.
const (
	idxSchemasLiveName = `CREATE UNIQUE INDEX IF NOT EXISTS idx_schemas_live_name ON schemas(name) WHERE deleted = 0;`
	idxFieldsLiveName  = `CREATE UNIQUE INDEX IF NOT EXISTS idx_fields_live_name ON fields(schema_id, name) WHERE deleted = 0;`
	idxEntitiesSchema  = `CREATE INDEX IF NOT EXISTS idx_entities_schema ON entities(schema_id, deleted, entity_id);`
	idxValuesField     = `CREATE INDEX IF NOT EXISTS idx_field_values_field ON field_values(field_id, value);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSchemas,
	createFields,
	createEntities,
	createFieldValues,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSchemasLiveName,
	idxFieldsLiveName,
	idxEntitiesSchema,
	idxValuesField,
}

// live returns the soft-delete filter for a table alias ("" for none).
func live(alias string) string {
	if alias == "" {
		return "deleted = 0"
	}
	return alias + ".deleted = 0"
}
