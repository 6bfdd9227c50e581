package eventbus

import (
	"context"
	"sync"

	id "veridoc/pkg/domain"
)

// MemoryStore is the in-memory event log used in tests and single-node
// deployments. Arrival order is preserved per document and per tenant.
type MemoryStore struct {
	mu         sync.RWMutex
	byDocument map[id.DocumentID][]Event
	byTenant   map[id.TenantID][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDocument: make(map[id.DocumentID][]Event),
		byTenant:   make(map[id.TenantID][]Event),
	}
}

func (s *MemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDocument[event.DocumentID] = append(s.byDocument[event.DocumentID], event)
	s.byTenant[event.TenantID] = append(s.byTenant[event.TenantID], event)
	return nil
}

func (s *MemoryStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.byDocument[documentID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.byTenant[tenantID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}
