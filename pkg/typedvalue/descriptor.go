package typedvalue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Descriptor is the type descriptor document:
//
//	{"type": "cmdb.types.IP", "value": "192.128.1.25", "option": {"prefix": "192.128."}}
type Descriptor struct {
	Type   string  `json:"type"`
	Value  any     `json:"value"`
	Option Options `json:"option,omitempty"`
}

// ParseDescriptor decodes a descriptor document. Numbers are kept as
// json.Number so large integers survive decoding.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := decodeJSON(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decoding type descriptor: %w", err)
	}
	if d.Type == "" {
		return Descriptor{}, fmt.Errorf("%w: descriptor has no type", types.ErrUnknownType)
	}
	return d, nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
