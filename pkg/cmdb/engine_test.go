package cmdb

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/cmdb/pkg/sqlite"
	"github.com/mesh-intelligence/cmdb/pkg/typedvalue"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

var errInjected = errors.New("injected write failure")

// newTestStore attaches a SQLite backend in a temp dir.
func newTestStore(t *testing.T) types.Store {
	t.Helper()
	db := sqlite.NewBackend()
	require.NoError(t, db.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { db.Detach() })
	s, err := db.Store()
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, s types.Store, pageSize int) *Engine {
	t.Helper()
	return NewEngine(s, typedvalue.NewRegistry(nil, typedvalue.Builtins()), Options{PageSize: pageSize})
}

// seedSchema creates a schema named name holding n entities.
func seedSchema(t *testing.T, e *Engine, s types.Store, name string, n int) []string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateSchema(ctx, &types.Schema{Name: name}))
	ids := make([]string, 0, n)
	for range n {
		ent, err := e.CreateEntity(ctx, name, nil)
		require.NoError(t, err)
		ids = append(ids, ent.EntityID)
	}
	return ids
}

func intMeta(extra map[string]any) map[string]any {
	m := map[string]any{"type": map[string]any{"name": "Int"}}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// failingStore fails the failAt-th CreateValue call.
type failingStore struct {
	types.Store
	failAt int
	calls  *int
}

func (f failingStore) CreateValue(ctx context.Context, v *types.Value) error {
	*f.calls++
	if *f.calls == f.failAt {
		return errInjected
	}
	return f.Store.CreateValue(ctx, v)
}

// txFailingStore is a failingStore that keeps the transactions of the
// store it wraps.
type txFailingStore struct {
	failingStore
}

func (f txFailingStore) WithTx(ctx context.Context, fn func(types.Store) error) error {
	return f.Store.(types.Transactor).WithTx(ctx, func(s types.Store) error {
		return fn(failingStore{Store: s, failAt: f.failAt, calls: f.calls})
	})
}

func TestAddField_DecisionTree(t *testing.T) {
	tests := []struct {
		name     string
		entities int
		field    string
		meta     map[string]any
		wantErr  error
		backfill bool
	}{
		{
			name:     "unused schema accepts non-nullable unique field",
			entities: 0,
			field:    "serial",
			meta:     intMeta(map[string]any{"unique": true}),
		},
		{
			name:     "unused schema needs no default",
			entities: 0,
			field:    "port",
			meta:     intMeta(nil),
		},
		{
			name:     "used schema rejects unique non-nullable field",
			entities: 2,
			field:    "serial",
			meta:     intMeta(map[string]any{"unique": true, "default": "1"}),
			wantErr:  types.ErrUnsatisfiableConstraint,
		},
		{
			name:     "used schema requires default",
			entities: 2,
			field:    "port",
			meta:     intMeta(nil),
			wantErr:  types.ErrDefaultRequired,
		},
		{
			name:     "used schema accepts nullable field without default",
			entities: 2,
			field:    "note",
			meta:     map[string]any{"nullable": true, "unique": true},
		},
		{
			name:     "used schema backfills default",
			entities: 3,
			field:    "port",
			meta:     intMeta(map[string]any{"default": "0"}),
			backfill: true,
		},
		{
			name:     "default failing validation",
			entities: 2,
			field:    "port",
			meta: map[string]any{
				"default": "70000",
				"type":    map[string]any{"name": "Int", "option": map[string]any{"max": 65535}},
			},
			wantErr: types.ErrValidation,
		},
		{
			name:     "malformed meta",
			entities: 0,
			field:    "port",
			meta:     map[string]any{"nullable": "sometimes"},
			wantErr:  types.ErrMalformedMeta,
		},
		{
			name:     "unknown type",
			entities: 0,
			field:    "port",
			meta:     map[string]any{"type": map[string]any{"name": "Bogus"}},
			wantErr:  types.ErrUnknownType,
		},
		{
			name:     "unknown reference",
			entities: 0,
			field:    "owner",
			meta:     map[string]any{"reference": map[string]any{"schema": "person", "field": "name"}},
			wantErr:  types.ErrUnknownReference,
		},
		{
			name:     "empty field name",
			entities: 0,
			field:    "",
			meta:     nil,
			wantErr:  types.ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			e := newTestEngine(t, s, 2)
			ids := seedSchema(t, e, s, "host", tt.entities)

			f, err := e.AddField(ctx, "host", tt.field, tt.meta)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				schema, ferr := s.FindSchema(ctx, "host")
				require.NoError(t, ferr)
				fields, ferr := s.ListFields(ctx, schema.SchemaID)
				require.NoError(t, ferr)
				assert.Empty(t, fields, "rejected field must not be stored")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, f.FieldID)

			for _, id := range ids {
				values, err := s.ListValues(ctx, id)
				require.NoError(t, err)
				if tt.backfill {
					require.Len(t, values, 1)
					assert.Equal(t, f.FieldID, values[0].FieldID)
					assert.Equal(t, tt.meta["default"].(string), values[0].Value)
				} else {
					assert.Empty(t, values)
				}
			}
		})
	}
}

func TestAddField_BackfillFailureLeavesNothing(t *testing.T) {
	tests := []struct {
		name string
		wrap func(s types.Store, calls *int) types.Store
	}{
		{
			name: "transactional store",
			wrap: func(s types.Store, calls *int) types.Store {
				return txFailingStore{failingStore{Store: s, failAt: 3, calls: calls}}
			},
		},
		{
			name: "store without transactions",
			wrap: func(s types.Store, calls *int) types.Store {
				return failingStore{Store: s, failAt: 3, calls: calls}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			ids := seedSchema(t, newTestEngine(t, s, 2), s, "host", 5)

			calls := 0
			e := newTestEngine(t, tt.wrap(s, &calls), 2)
			_, err := e.AddField(ctx, "host", "port", intMeta(map[string]any{"default": "0"}))
			require.ErrorIs(t, err, types.ErrBackfillFailed)
			require.ErrorIs(t, err, errInjected)
			assert.Equal(t, 3, calls)

			schema, err := s.FindSchema(ctx, "host")
			require.NoError(t, err)
			_, err = s.FindField(ctx, schema.SchemaID, "port")
			assert.ErrorIs(t, err, types.ErrNotFound)
			for _, id := range ids {
				values, err := s.ListValues(ctx, id)
				require.NoError(t, err)
				assert.Empty(t, values)
			}

			// The failure is transient: a retry on the plain store succeeds.
			f, err := newTestEngine(t, s, 2).AddField(ctx, "host", "port", intMeta(map[string]any{"default": "0"}))
			require.NoError(t, err)
			for _, id := range ids {
				v, err := s.GetValue(ctx, id, f.FieldID)
				require.NoError(t, err)
				assert.Equal(t, "0", v.Value)
			}
		})
	}
}

func TestAddField_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 0)
	seedSchema(t, e, s, "host", 0)

	_, err := e.AddField(ctx, "host", "name", nil)
	require.NoError(t, err)
	_, err = e.AddField(ctx, "host", "name", nil)
	assert.ErrorIs(t, err, types.ErrDuplicateName)
	_, err = e.AddField(ctx, "rack", "name", nil)
	assert.ErrorIs(t, err, types.ErrUnknownSchema)
}

func TestAddField_Reference(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 0)

	seedSchema(t, e, s, "person", 0)
	owner, err := e.AddField(ctx, "person", "name", map[string]any{"unique": true})
	require.NoError(t, err)
	_, err = e.CreateEntity(ctx, "person", map[string]any{"name": "ada"})
	require.NoError(t, err)

	seedSchema(t, e, s, "host", 2)
	_, err = e.AddField(ctx, "host", "owner", map[string]any{
		"default":   "grace",
		"reference": map[string]any{"schema": "person", "field": "name"},
	})
	require.ErrorIs(t, err, types.ErrReferenceViolation)

	f, err := e.AddField(ctx, "host", "owner", map[string]any{
		"default":   "ada",
		"reference": map[string]any{"schema": "person", "field": "name"},
	})
	require.NoError(t, err)
	require.NotNil(t, f.RefID)
	assert.Equal(t, owner.FieldID, *f.RefID)

	_, err = e.CreateEntity(ctx, "host", map[string]any{"owner": "linus"})
	assert.ErrorIs(t, err, types.ErrReferenceViolation)
}

func TestAddField_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 3)
	ids := seedSchema(t, e, s, "host", 7)

	const workers = 8
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			_, err := e.AddField(ctx, "host", fmt.Sprintf("f%d", i), intMeta(map[string]any{"default": fmt.Sprint(i)}))
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		values, err := s.ListValues(ctx, id)
		require.NoError(t, err)
		assert.Len(t, values, workers)
	}
}

func TestAddField_ConcurrentCreates(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		seeded   int
		creates  int
	}{
		{name: "page of one", pageSize: 1, seeded: 12, creates: 12},
		{name: "small pages", pageSize: 2, seeded: 20, creates: 20},
		{name: "page larger than schema", pageSize: 64, seeded: 5, creates: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			e := newTestEngine(t, s, tt.pageSize)
			seedSchema(t, e, s, "host", tt.seeded)

			var (
				g     errgroup.Group
				field *types.Field
			)
			g.Go(func() error {
				f, err := e.AddField(ctx, "host", "port", intMeta(map[string]any{"default": "7"}))
				field = f
				return err
			})
			for range tt.creates {
				g.Go(func() error {
					_, err := e.CreateEntity(ctx, "host", nil)
					return err
				})
			}
			require.NoError(t, g.Wait())
			require.NotNil(t, field)

			live := 0
			stream := StreamEntities(ctx, s, field.SchemaID, tt.pageSize)
			for stream.Next() {
				live++
				values, err := s.ListValues(ctx, stream.Entity().EntityID)
				require.NoError(t, err)
				var ports []string
				for _, v := range values {
					if v.FieldID == field.FieldID {
						ports = append(ports, v.Value)
					}
				}
				assert.Equal(t, []string{"7"}, ports, "entity %s", stream.Entity().EntityID)
			}
			require.NoError(t, stream.Err())
			assert.Equal(t, tt.seeded+tt.creates, live)
		})
	}
}

func TestCreateEntity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 0)
	seedSchema(t, e, s, "host", 0)

	_, err := e.AddField(ctx, "host", "ip", map[string]any{
		"unique": true,
		"type":   map[string]any{"name": "IP", "option": map[string]any{"prefix": "10."}},
	})
	require.NoError(t, err)
	_, err = e.AddField(ctx, "host", "port", intMeta(map[string]any{"default": "22"}))
	require.NoError(t, err)
	_, err = e.AddField(ctx, "host", "note", map[string]any{"nullable": true})
	require.NoError(t, err)

	ent, err := e.CreateEntity(ctx, "host", map[string]any{"ip": "10.1.2.3"})
	require.NoError(t, err)

	got, err := e.EntityValues(ctx, ent.EntityID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"ip":   netip.MustParseAddr("10.1.2.3"),
		"port": int64(22),
	}, got)

	_, err = e.CreateEntity(ctx, "host", map[string]any{"ip": "10.1.2.3"})
	assert.ErrorIs(t, err, types.ErrUniqueViolation)
	_, err = e.CreateEntity(ctx, "host", map[string]any{"ip": "192.168.0.1"})
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = e.CreateEntity(ctx, "host", nil)
	assert.ErrorIs(t, err, types.ErrRequiredValue)
	_, err = e.CreateEntity(ctx, "host", map[string]any{"ip": "10.0.0.9", "rack": "r1"})
	assert.ErrorIs(t, err, types.ErrUnknownField)
	_, err = e.CreateEntity(ctx, "rack", nil)
	assert.ErrorIs(t, err, types.ErrUnknownSchema)
}

func TestCreateEntity_CompensatesWithoutTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 0)
	seedSchema(t, e, s, "host", 0)
	_, err := e.AddField(ctx, "host", "a", nil)
	require.NoError(t, err)
	_, err = e.AddField(ctx, "host", "b", nil)
	require.NoError(t, err)

	calls := 0
	failing := newTestEngine(t, failingStore{Store: s, failAt: 2, calls: &calls}, 0)
	_, err = failing.CreateEntity(ctx, "host", map[string]any{"a": "x", "b": "y"})
	require.ErrorIs(t, err, errInjected)

	schema, err := s.FindSchema(ctx, "host")
	require.NoError(t, err)
	used, err := s.HasEntities(ctx, schema.SchemaID)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestSetValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := newTestEngine(t, s, 0)
	seedSchema(t, e, s, "host", 0)
	_, err := e.AddField(ctx, "host", "port", intMeta(map[string]any{
		"unique": true,
		"type":   map[string]any{"name": "Int", "option": map[string]any{"min": 1, "max": 65535}},
	}))
	require.NoError(t, err)

	a, err := e.CreateEntity(ctx, "host", map[string]any{"port": 22})
	require.NoError(t, err)
	b, err := e.CreateEntity(ctx, "host", map[string]any{"port": "80"})
	require.NoError(t, err)

	v, err := e.SetValue(ctx, a.EntityID, "port", 2222)
	require.NoError(t, err)
	assert.Equal(t, "2222", v.Value)

	_, err = e.SetValue(ctx, a.EntityID, "port", 2222)
	assert.NoError(t, err, "re-setting an entity's own unique value")
	_, err = e.SetValue(ctx, b.EntityID, "port", 2222)
	assert.ErrorIs(t, err, types.ErrUniqueViolation)
	_, err = e.SetValue(ctx, b.EntityID, "port", 0)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = e.SetValue(ctx, b.EntityID, "speed", 1)
	assert.ErrorIs(t, err, types.ErrUnknownField)
	_, err = e.SetValue(ctx, b.EntityID, "port", nil)
	assert.ErrorIs(t, err, types.ErrRequiredValue)

	require.NoError(t, s.DeleteEntity(ctx, b.EntityID))
	_, err = e.SetValue(ctx, b.EntityID, "port", 443)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.EntityValues(ctx, b.EntityID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
