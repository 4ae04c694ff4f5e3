package typedvalue

import (
	"unicode/utf8"

	"github.com/spf13/cast"
)

// TextName is the short identifier of the text type.
const TextName = "Text"

// TextOptions limits a Text handler. MaxLength counts runes.
type TextOptions struct {
	MaxLength *int `mapstructure:"max_length"`
}

// Text is the free-form text handler.
type Text struct {
	opts TextOptions
}

// TextClass builds Text handlers.
var TextClass = NewClass(TextName, func(opts Options) (Handler, error) {
	var o TextOptions
	if err := decodeOptions(TextName, opts, &o); err != nil {
		return nil, err
	}
	return &Text{opts: o}, nil
})

// Stringify coerces raw to a string and enforces MaxLength in runes.
func (h *Text) Stringify(raw any) (string, error) {
	if raw == nil {
		return "", invalid(TextName, RuleSyntax, raw)
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", invalid(TextName, RuleSyntax, raw)
	}
	if h.opts.MaxLength != nil && utf8.RuneCountInString(s) > *h.opts.MaxLength {
		return "", invalid(TextName, RuleTooLong, s)
	}
	return s, nil
}

// Parse returns text unchanged.
func (h *Text) Parse(text string) (any, error) {
	return text, nil
}
