package order

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory order store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *MemoryStore) UpdateCustomFields(ctx context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.CustomFields == nil {
		o.CustomFields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		o.CustomFields[k] = v
	}
	return nil
}

// List returns orders newest first. A cursor narrows results to orders
// strictly older than the cursor position.
func (m *MemoryStore) List(ctx context.Context, limit int, opts ...ListOption) ([]*Order, error) {
	lo := applyListOpts(opts)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Order
	for _, o := range m.orders {
		if lo.cursor != nil {
			if o.CreatedAt.After(lo.cursor.CreatedAt) {
				continue
			}
			if o.CreatedAt.Equal(lo.cursor.CreatedAt) && o.ID >= lo.cursor.ID {
				continue
			}
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListScored(ctx context.Context, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Order
	for _, o := range m.orders {
		if HasRiskFields(o.CustomFields) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyOrder(o *Order) *Order {
	cp := *o
	if o.CustomFields != nil {
		cp.CustomFields = make(map[string]any, len(o.CustomFields))
		for k, v := range o.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	return &cp
}
