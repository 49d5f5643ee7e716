package escrow

import (
	"context"
	"sync"
	"time"
)

// MemoryPendingStore is an in-memory reservation store for demo/development
// mode. Remove deletes and returns under one lock, which gives the atomicity
// the completion/expiry race relies on.
type MemoryPendingStore struct {
	reservations map[uint64]*Reservation
	mu           sync.RWMutex
}

// NewMemoryPendingStore creates a new in-memory pending store.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		reservations: make(map[uint64]*Reservation),
	}
}

func (m *MemoryPendingStore) Insert(ctx context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reservations[r.Token]; ok {
		return ErrTokenCollision
	}
	cp := *r
	m.reservations[r.Token] = &cp
	return nil
}

func (m *MemoryPendingStore) Get(ctx context.Context, token uint64) (*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[token]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent races on the shared pointer.
	cp := *r
	return &cp, nil
}

func (m *MemoryPendingStore) Remove(ctx context.Context, token uint64) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.reservations, token)
	return r, nil
}

func (m *MemoryPendingStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Reservation
	for _, r := range m.reservations {
		if r.ExpiresAt.Before(before) {
			cp := *r
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryPendingStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reservations), nil
}

// Compile-time assertion that MemoryPendingStore implements PendingStore.
var _ PendingStore = (*MemoryPendingStore)(nil)

// MemoryOrderStore is an in-memory completed-order store.
type MemoryOrderStore struct {
	orders map[string]*Order
	mu     sync.RWMutex
}

// NewMemoryOrderStore creates a new in-memory order store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[string]*Order),
	}
}

func (m *MemoryOrderStore) Insert(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryOrderStore) Get(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryOrderStore) ListByBuyer(ctx context.Context, buyer string, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Order
	for _, o := range m.orders {
		if o.Buyer == buyer {
			cp := *o
			result = append(result, &cp)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Compile-time assertion that MemoryOrderStore implements OrderStore.
var _ OrderStore = (*MemoryOrderStore)(nil)
