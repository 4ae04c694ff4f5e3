package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// FieldMeta is the structured view of a field's metadata document:
//
//	{"nullable": false, "unique": false, "default": "0",
//	 "reference": {"schema": "host", "field": "ip"},
//	 "type": {"name": "Int", "option": {"min": 0}}}
//
// Nullable and Unique default to false. Type is optional; untyped fields
// store values verbatim.
type FieldMeta struct {
	Nullable  bool       `json:"nullable" mapstructure:"nullable"`
	Unique    bool       `json:"unique" mapstructure:"unique"`
	Default   *string    `json:"default,omitempty" mapstructure:"default"`
	Reference *Reference `json:"reference,omitempty" mapstructure:"reference"`
	Type      *TypeSpec  `json:"type,omitempty" mapstructure:"type"`
}

// Reference names the field another field points at.
type Reference struct {
	Schema string `json:"schema" mapstructure:"schema"`
	Field  string `json:"field" mapstructure:"field"`
}

// TypeSpec names a typed-value handler and its options.
type TypeSpec struct {
	Name   string         `json:"name" mapstructure:"name"`
	Option map[string]any `json:"option,omitempty" mapstructure:"option"`
}

// HasDefault reports whether the metadata supplies a default value.
func (m FieldMeta) HasDefault() bool {
	return m.Default != nil
}

// ParseFieldMeta validates the shape of a decoded metadata document and
// returns its descriptor. Unknown keys and values of the wrong kind are
// rejected with ErrMalformedMeta. A nil document yields the zero
// descriptor. Referential existence is not checked here.
func ParseFieldMeta(raw map[string]any) (FieldMeta, error) {
	var meta FieldMeta
	if raw == nil {
		return meta, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &meta,
	})
	if err != nil {
		return FieldMeta{}, fmt.Errorf("building meta decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return FieldMeta{}, fmt.Errorf("%w: %v", ErrMalformedMeta, err)
	}

	if ref := meta.Reference; ref != nil && (ref.Schema == "" || ref.Field == "") {
		return FieldMeta{}, fmt.Errorf("%w: reference needs both schema and field", ErrMalformedMeta)
	}
	if meta.Type != nil && meta.Type.Name == "" {
		return FieldMeta{}, fmt.Errorf("%w: type needs a name", ErrMalformedMeta)
	}
	return meta, nil
}

// ParseFieldMetaJSON decodes a JSON metadata document and parses it with
// ParseFieldMeta. Empty input yields the zero descriptor.
func ParseFieldMetaJSON(data []byte) (FieldMeta, error) {
	if len(data) == 0 {
		return FieldMeta{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return FieldMeta{}, fmt.Errorf("%w: %v", ErrMalformedMeta, err)
	}
	return ParseFieldMeta(raw)
}
