package sysconfig

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory config store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string // channelID → key → value
}

// NewMemoryStore creates a new in-memory config store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key, channelID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scope, ok := m.values[channelID]
	if !ok {
		return "", ErrNotFound
	}
	v, ok := scope[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, channelID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope, ok := m.values[channelID]
	if !ok {
		scope = make(map[string]string)
		m.values[channelID] = scope
	}
	scope[key] = value
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope, ok := m.values[channelID]; ok {
		delete(scope, key)
	}
	return nil
}
