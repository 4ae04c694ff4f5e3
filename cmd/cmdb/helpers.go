// Shared helpers for cmdb CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/cmdb/internal/sqlite"
	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// attachBackend opens the SQLite database in the resolved data dir. It is
// detached when the command finishes.
func (a *app) attachBackend() (*sqlite.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b := sqlite.NewBackend()
	if err := b.Attach(a.cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	a.backend = b
	a.logger.Debug("backend attached", "data_dir", a.cfg.DataDir)
	return b, nil
}

func (a *app) store() (types.Store, error) {
	b, err := a.attachBackend()
	if err != nil {
		return nil, err
	}
	return b.Store()
}

func (a *app) engine() (*cmdb.Engine, types.Store, error) {
	s, err := a.store()
	if err != nil {
		return nil, nil, err
	}
	e := cmdb.NewEngine(s, a.registry, cmdb.Options{
		PageSize: a.cfg.EffectivePageSize(),
		Logger:   a.logger,
	})
	return e, s, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// parseValue reads a command-line value as JSON when it is valid JSON and
// as a plain string otherwise. Numbers keep their exact text.
func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

// parseAssignments turns name=value arguments into a value map.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: invalid assignment %q (expected name=value)", errUsage, arg)
		}
		values[name] = parseValue(raw)
	}
	return values, nil
}

// parseMeta decodes a field metadata document given on the command line.
func parseMeta(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedMeta, err)
	}
	return raw, nil
}
