package typedvalue

import (
	"fmt"
	"plugin"
	"strings"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Loader resolves a type identifier to a candidate class. Load returns an
// error matching types.ErrUnknownType when it does not know the identifier,
// which lets the Registry move on to its next loader. The candidate is
// checked for the Class capability by the Registry, not by the loader.
type Loader interface {
	Load(typeID string) (any, error)
}

// Namespace qualifies the built-in type identifiers.
const Namespace = "cmdb.types"

// StaticLoader is a registration table built at startup.
type StaticLoader map[string]any

// Load implements Loader.
func (s StaticLoader) Load(typeID string) (any, error) {
	c, ok := s[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, typeID)
	}
	return c, nil
}

// Register adds cls under its short name and under Namespace.<name>.
func (s StaticLoader) Register(cls Class) {
	s[cls.Name()] = cls
	s[Namespace+"."+cls.Name()] = cls
}

// Builtins returns a StaticLoader holding Int, IP and Text.
func Builtins() StaticLoader {
	s := StaticLoader{}
	s.Register(IntClass)
	s.Register(IPClass)
	s.Register(TextClass)
	return s
}

// symbolLookup is the part of *plugin.Plugin the loader uses.
type symbolLookup interface {
	Lookup(name string) (plugin.Symbol, error)
}

// PluginLoader loads classes from Go plugins. Only identifiers present in
// Plugins are considered; each maps to the path of a plugin file that must
// export a symbol named after the identifier's last dot-separated segment
// ("acme.types.Money" looks up "Money"). The symbol may be a Class value or
// a *Class variable.
type PluginLoader struct {
	Plugins map[string]string

	open func(path string) (symbolLookup, error)
}

// NewPluginLoader returns a loader restricted to the given allowlist of
// type identifier to plugin path.
func NewPluginLoader(plugins map[string]string) *PluginLoader {
	return &PluginLoader{
		Plugins: plugins,
		open: func(path string) (symbolLookup, error) {
			p, err := plugin.Open(path)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// Load implements Loader.
func (l *PluginLoader) Load(typeID string) (any, error) {
	path, ok := l.Plugins[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an allowed plugin type", types.ErrUnknownType, typeID)
	}
	p, err := l.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plugin %s for %q: %w", path, typeID, err)
	}
	sym, err := p.Lookup(symbolName(typeID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", types.ErrUnknownType, typeID, err)
	}
	if ptr, ok := sym.(*Class); ok && ptr != nil {
		return *ptr, nil
	}
	return sym, nil
}

func symbolName(typeID string) string {
	if i := strings.LastIndexByte(typeID, '.'); i >= 0 {
		return typeID[i+1:]
	}
	return typeID
}
