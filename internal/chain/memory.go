package chain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for testing and for single-process deployments that do
// not require durable persistence across restarts.
//
// Each tenant has its own append mutex, so appends for different tenants
// proceed in parallel while appends for one tenant are serialized — the
// same guarantee PostgresStore gets from per-tenant advisory locks.
type MemoryStore struct {
	mu      sync.Mutex // guards the maps and seq, never held across an append
	locks   map[string]*sync.Mutex
	tenants map[string][]*Event
	chains  map[string]struct{}
	seq     int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   make(map[string]*sync.Mutex),
		tenants: make(map[string][]*Event),
		chains:  make(map[string]struct{}),
	}
}

// tenantLock returns the append mutex for a tenant, creating it on first use.
func (s *MemoryStore) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// Append implements Store. The tenant lock spans the tip read and the
// insert; the map mutex is only held for the short accesses so appends for
// different tenants interleave freely.
func (s *MemoryStore) Append(_ context.Context, e *Event) (*Event, error) {
	lock := s.tenantLock(e.TenantID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	prev := GenesisHash
	if events := s.tenants[e.TenantID]; len(events) > 0 {
		prev = events[len(events)-1].ChainHash
	}
	s.mu.Unlock()

	e.PreviousHash = prev
	e.ChainHash = ChainHash(e.ContentHash, prev)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chains[e.ChainHash]; exists {
		return nil, ErrChainCollision
	}

	s.seq++
	e.ID = uuid.New()
	e.Seq = s.seq
	e.CreatedAt = time.Now().UTC()

	s.tenants[e.TenantID] = append(s.tenants[e.TenantID], e)
	s.chains[e.ChainHash] = struct{}{}
	return e, nil
}

// Tip implements Store.
func (s *MemoryStore) Tip(_ context.Context, tenantID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.tenants[tenantID]
	if len(events) == 0 {
		return "", false, nil
	}
	return events[len(events)-1].ChainHash, true, nil
}

// ListByTenant implements Store. Events are held in insertion order, which
// is seq order: both are assigned under the append lock.
func (s *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.tenants[tenantID]
	out := make([]*Event, len(events))
	copy(out, events)
	return out, nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.tenants[tenantID] {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// Tenants implements Store.
func (s *MemoryStore) Tenants(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// CountAll implements Store.
func (s *MemoryStore) CountAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, events := range s.tenants {
		n += int64(len(events))
	}
	return n, nil
}

// Ping implements Store. A MemoryStore is always reachable.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
