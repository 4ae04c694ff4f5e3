// Package sqlite provides the public API for the SQLite CMDB backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/cmdb/internal/sqlite"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	db := sqlite.NewBackend()
//	err := db.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".cmdb-db",
//	})
//	defer db.Detach()
//	store, err := db.Store()
func NewBackend() types.Database {
	return sqlite.NewBackend()
}
