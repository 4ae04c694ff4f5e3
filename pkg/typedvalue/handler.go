package typedvalue

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Options is the raw option set of a handler, as found in a descriptor or
// field metadata document.
type Options map[string]any

// Handler validates, serializes and parses values of one type under one
// configuration. Handlers are immutable and safe for concurrent use.
type Handler interface {
	// Stringify validates raw and returns its canonical text form.
	Stringify(raw any) (string, error)

	// Parse is the inverse of Stringify.
	Parse(text string) (any, error)
}

// Class builds handlers of one type. New must be free of side effects so
// that concurrent construction for the same key is harmless.
type Class interface {
	Name() string
	New(opts Options) (Handler, error)
}

type classFunc struct {
	name string
	fn   func(Options) (Handler, error)
}

func (c classFunc) Name() string { return c.name }

func (c classFunc) New(opts Options) (Handler, error) { return c.fn(opts) }

// NewClass returns a Class named name whose handlers are built by fn.
func NewClass(name string, fn func(Options) (Handler, error)) Class {
	return classFunc{name: name, fn: fn}
}

// Validation rules reported by the built-in handlers.
const (
	RuleTooLarge = "too large"
	RuleTooSmall = "too small"
	RulePrefix   = "outside allowed prefix"
	RuleTooLong  = "too long"
	RuleSyntax   = "invalid syntax"
)

// ValidationError reports a value rejected by a handler. It matches
// types.ErrValidation under errors.Is.
type ValidationError struct {
	Type  string
	Rule  string
	Value any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s value %v: %s", e.Type, e.Value, e.Rule)
}

func (e *ValidationError) Unwrap() error {
	return types.ErrValidation
}

func invalid(typeName, rule string, value any) error {
	return &ValidationError{Type: typeName, Rule: rule, Value: value}
}

// decodeOptions decodes opts into the typed option struct out. Unknown keys
// are rejected; numeric strings are accepted for numeric options.
func decodeOptions(typeName string, opts Options, out any) error {
	if len(opts) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("building option decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrInvalidOption, typeName, err)
	}
	return nil
}
