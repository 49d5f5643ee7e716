package catalog

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory product store for demo/development mode.
type MemoryStore struct {
	products map[string]*Product
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory product store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	// Return a copy to prevent races on the shared pointer.
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) Insert(ctx context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; ok {
		return ErrProductExists
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	delete(m.products, id)
	return p, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Product
	for _, p := range m.products {
		cp := *p
		result = append(result, &cp)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) IncrementSold(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.SoldCount++
	return nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
