package cmdb

import "sync"

// schemaLocks hands out one mutex per schema id.
type schemaLocks struct {
	m sync.Map
}

// lock acquires the mutex of schemaID and returns its release func.
func (l *schemaLocks) lock(schemaID string) func() {
	v, _ := l.m.LoadOrStore(schemaID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
