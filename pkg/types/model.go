package types

import "time"

// Schema is a logical table in the EAV model.
// Name is unique among live schemas; deleted schemas keep their rows.
type Schema struct {
	SchemaID    string    `json:"schema_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Field is a typed column on a Schema. RefID, when set, is the id of the
// Field this one references.
type Field struct {
	FieldID   string    `json:"field_id"`
	SchemaID  string    `json:"schema_id"`
	Name      string    `json:"name"`
	Meta      FieldMeta `json:"meta"`
	RefID     *string   `json:"ref_id,omitempty"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// Entity is one record of a Schema.
type Entity struct {
	EntityID  string    `json:"entity_id"`
	SchemaID  string    `json:"schema_id"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// Value is the serialized datum for one (Entity, Field) pair.
type Value struct {
	EntityID string `json:"entity_id"`
	FieldID  string `json:"field_id"`
	Value    string `json:"value"`
}

// Page selects a window of a keyset-paginated listing: records with an id
// strictly greater than After, at most Limit of them. A zero Limit means
// DefaultPageSize.
type Page struct {
	After string
	Limit int
}

// Size returns the effective page limit.
func (p Page) Size() int {
	if p.Limit <= 0 {
		return DefaultPageSize
	}
	return p.Limit
}

// Next returns the page following the one that ended with lastID.
func (p Page) Next(lastID string) Page {
	return Page{After: lastID, Limit: p.Limit}
}
