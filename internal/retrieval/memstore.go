package retrieval

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-process [Store]. Its contents are lost on restart.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

// Lookup implements [Store].
func (m *MemStore) Lookup(_ context.Context, query string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[query]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Put implements [Store]. An existing entry for the same query is kept.
func (m *MemStore) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Query]; ok {
		return nil
	}
	m.entries[e.Query] = e
	return nil
}

// Len returns the number of cached queries.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
