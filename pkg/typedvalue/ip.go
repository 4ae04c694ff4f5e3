package typedvalue

import (
	"fmt"
	"net/netip"
	"strings"
)

// IPName is the short identifier of the prefix-constrained IP type.
const IPName = "IP"

// IPOptions constrains the canonical text form of an address. An empty
// Prefix accepts every address.
type IPOptions struct {
	Prefix string `mapstructure:"prefix"`
}

// IP is the prefix-constrained IP address handler.
type IP struct {
	opts IPOptions
}

// IPClass builds IP handlers.
var IPClass = NewClass(IPName, func(opts Options) (Handler, error) {
	var o IPOptions
	if err := decodeOptions(IPName, opts, &o); err != nil {
		return nil, err
	}
	return NewIP(o), nil
})

// NewIP returns an IP handler.
func NewIP(opts IPOptions) *IP {
	return &IP{opts: opts}
}

// Stringify canonicalizes an IPv4 or IPv6 address given as a string or
// netip.Addr and checks it against the configured prefix.
func (h *IP) Stringify(raw any) (string, error) {
	addr, err := toAddr(raw)
	if err != nil {
		return "", invalid(IPName, RuleSyntax, raw)
	}
	s := addr.String()
	if !strings.HasPrefix(s, h.opts.Prefix) {
		return "", invalid(IPName, RulePrefix, s)
	}
	return s, nil
}

// Parse returns the netip.Addr held by text.
func (h *IP) Parse(text string) (any, error) {
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return nil, invalid(IPName, RuleSyntax, text)
	}
	return addr, nil
}

func toAddr(raw any) (netip.Addr, error) {
	switch v := raw.(type) {
	case netip.Addr:
		if !v.IsValid() {
			return netip.Addr{}, fmt.Errorf("zero address")
		}
		return v, nil
	case string:
		return netip.ParseAddr(strings.TrimSpace(v))
	case fmt.Stringer:
		return netip.ParseAddr(v.String())
	default:
		return netip.Addr{}, fmt.Errorf("unsupported address value %T", raw)
	}
}
