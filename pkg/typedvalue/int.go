package typedvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// IntName is the short identifier of the bounded integer type.
const IntName = "Int"

// IntOptions bounds an Int handler. A nil bound is not enforced.
type IntOptions struct {
	Min *int64 `mapstructure:"min"`
	Max *int64 `mapstructure:"max"`
}

// Int is the bounded integer handler.
type Int struct {
	opts IntOptions
}

// IntClass builds Int handlers.
var IntClass = NewClass(IntName, func(opts Options) (Handler, error) {
	var o IntOptions
	if err := decodeOptions(IntName, opts, &o); err != nil {
		return nil, err
	}
	return NewInt(o)
})

// NewInt returns an Int handler. It fails with types.ErrInvalidOption when
// min is greater than max.
func NewInt(opts IntOptions) (*Int, error) {
	if opts.Min != nil && opts.Max != nil && *opts.Min > *opts.Max {
		return nil, fmt.Errorf("%w: %s: min %d greater than max %d", types.ErrInvalidOption, IntName, *opts.Min, *opts.Max)
	}
	return &Int{opts: opts}, nil
}

// Stringify accepts integers of any Go kind, integral floats, json.Number
// and base-10 strings. Values outside the int64 range fail as too large or
// too small rather than wrapping.
func (h *Int) Stringify(raw any) (string, error) {
	v, err := toInt64(raw)
	var oor *outOfRange
	if errors.As(err, &oor) {
		return "", invalid(IntName, oor.rule, raw)
	}
	if err != nil {
		return "", invalid(IntName, RuleSyntax, raw)
	}
	if h.opts.Max != nil && v > *h.opts.Max {
		return "", invalid(IntName, RuleTooLarge, v)
	}
	if h.opts.Min != nil && v < *h.opts.Min {
		return "", invalid(IntName, RuleTooSmall, v)
	}
	return strconv.FormatInt(v, 10), nil
}

// Parse returns the int64 held by text.
func (h *Int) Parse(text string) (any, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, invalid(IntName, RuleSyntax, text)
	}
	return v, nil
}

// outOfRange reports an integral value that does not fit in an int64.
type outOfRange struct {
	rule string
}

func (e *outOfRange) Error() string { return "integer " + e.rule }

// twoTo63 is 2^63, exactly representable as a float64.
const twoTo63 = float64(1 << 63)

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil, bool:
		return 0, fmt.Errorf("not an integer: %v", raw)
	case string:
		return parseInt(strings.TrimSpace(v))
	case json.Number:
		return parseInt(v.String())
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case uint:
		return uintToInt64(uint64(v))
	case uint64:
		return uintToInt64(v)
	case uintptr:
		return uintToInt64(uint64(v))
	}
	return cast.ToInt64E(raw)
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return 0, &outOfRange{rule: RuleTooSmall}
		}
		return 0, &outOfRange{rule: RuleTooLarge}
	}
	return v, err
}

func floatToInt64(f float64) (int64, error) {
	switch {
	case math.IsNaN(f) || f != math.Trunc(f):
		return 0, fmt.Errorf("not an integer: %v", f)
	case f >= twoTo63:
		return 0, &outOfRange{rule: RuleTooLarge}
	case f < -twoTo63:
		return 0, &outOfRange{rule: RuleTooSmall}
	}
	return int64(f), nil
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, &outOfRange{rule: RuleTooLarge}
	}
	return int64(u), nil
}
