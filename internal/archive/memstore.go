package archive

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-process [Store] used by the memory storage backend and
// tests. Its contents are lost on restart.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{now: time.Now}
}

// Insert implements [Store]. Assigned ids are random UUIDs; caller-supplied
// ids may be any non-empty string.
func (m *MemStore) Insert(_ context.Context, r Record) (string, error) {
	r = r.Clone()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.ID == r.ID {
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
	}
	m.records = append(m.records, r)
	return r.ID, nil
}

// List implements [Store]. Records with equal timestamps keep insertion order
// reversed, so the latest insert comes first.
func (m *MemStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i].Clone())
	}
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out, nil
}

// Get implements [Store].
func (m *MemStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return Record{}, ErrNotFound
}

// Count implements [Store].
func (m *MemStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
