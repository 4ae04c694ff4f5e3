package typedvalue

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Registry resolves type identifiers to classes and memoizes handler
// instances. It is safe for concurrent use.
//
// Both caches follow a first-writer-wins policy: when callers race on a
// missing key, each may build a class lookup or handler, but only the first
// one stored is kept and every caller, including the losers, returns that
// stored value.
type Registry struct {
	loaders []Loader
	logger  *slog.Logger

	mu        sync.RWMutex
	classes   map[string]Class
	instances map[string]Handler

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports instance cache lookups since the last Reset.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Classes   int
	Instances int
}

// NewRegistry returns a Registry consulting loaders in order. A nil logger
// discards diagnostics.
func NewRegistry(logger *slog.Logger, loaders ...Loader) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		loaders:   loaders,
		logger:    logger,
		classes:   make(map[string]Class),
		instances: make(map[string]Handler),
	}
}

// ResolveClass returns the class registered for typeID. It fails with
// types.ErrUnknownType when no loader knows the identifier and with
// types.ErrNotATypedValue when the loaded candidate is not a Class.
func (r *Registry) ResolveClass(typeID string) (Class, error) {
	r.mu.RLock()
	cls, ok := r.classes[typeID]
	r.mu.RUnlock()
	if ok {
		return cls, nil
	}

	if typeID == "" {
		return nil, fmt.Errorf("%w: empty type identifier", types.ErrUnknownType)
	}

	for _, l := range r.loaders {
		cand, err := l.Load(typeID)
		if errors.Is(err, types.ErrUnknownType) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading type %q: %w", typeID, err)
		}
		cls, ok := cand.(Class)
		if !ok || cls == nil {
			return nil, fmt.Errorf("%w: %q resolves to %T", types.ErrNotATypedValue, typeID, cand)
		}
		r.logger.Debug("resolved type class", "type", typeID, "class", cls.Name())
		return r.storeClass(typeID, cls), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, typeID)
}

// Instance returns the handler for typeID configured with opts. Two calls
// with the same identifier and equal option sets return the same handler
// regardless of option key order.
func (r *Registry) Instance(typeID string, opts Options) (Handler, error) {
	key := CacheKey(typeID, opts)

	r.mu.RLock()
	h, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return h, nil
	}
	r.misses.Add(1)

	cls, err := r.ResolveClass(typeID)
	if err != nil {
		return nil, err
	}
	h, err = cls.New(opts)
	if err != nil {
		return nil, fmt.Errorf("building %s handler: %w", typeID, err)
	}
	r.logger.Debug("built type handler", "key", key)
	return r.storeInstance(key, h), nil
}

// Stringify resolves the handler named by a descriptor document and
// serializes its value.
func (r *Registry) Stringify(d Descriptor) (string, error) {
	h, err := r.Instance(d.Type, d.Option)
	if err != nil {
		return "", err
	}
	return h.Stringify(d.Value)
}

// Stats returns cache counters.
func (r *Registry) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CacheStats{
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Classes:   len(r.classes),
		Instances: len(r.instances),
	}
}

// Reset empties both caches and the counters. Handlers already returned to
// callers stay usable.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]Class)
	r.instances = make(map[string]Handler)
	r.hits.Store(0)
	r.misses.Store(0)
}

func (r *Registry) storeClass(typeID string, cls Class) Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.classes[typeID]; ok {
		return existing
	}
	r.classes[typeID] = cls
	return cls
}

func (r *Registry) storeInstance(key string, h Handler) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instances[key]; ok {
		return existing
	}
	r.instances[key] = h
	return h
}

// CacheKey returns `<typeID>|"k1"="v1","k2"="v2"` with options sorted by
// key. Keys and values are quoted so separators inside them stay unambiguous.
func CacheKey(typeID string, opts Options) string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(typeID)
	b.WriteByte('|')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(fmt.Sprint(opts[k])))
	}
	return b.String()
}
