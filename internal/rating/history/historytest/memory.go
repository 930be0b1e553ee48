// Package historytest provides an in-process history.Store for tests.
package historytest

import (
	"context"
	"sync"

	"safety-rating/internal/rating/history"
)

// MemoryStore keeps entries in append order, which is created_at order for
// entries written through a Recorder.
type MemoryStore struct {
	lock    sync.Mutex
	mu      sync.RWMutex
	entries []history.Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) WithCompanyLock(_ context.Context, _ string, fn func(history.Store) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(m)
}

func (m *MemoryStore) Append(_ context.Context, e history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryStore) Latest(_ context.Context, companyID string, categories ...string) (*history.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.CompanyID != companyID {
			continue
		}
		if _, ok := want[e.Category]; ok {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) List(_ context.Context, companyID string, limit int) ([]history.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []history.Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].CompanyID == companyID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}
