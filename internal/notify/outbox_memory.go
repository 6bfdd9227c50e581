package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type MemoryOutboxStore struct {
	mu      sync.RWMutex
	entries map[string]OutboxEntry
}

func NewMemoryOutboxStore() *MemoryOutboxStore {
	return &MemoryOutboxStore{entries: make(map[string]OutboxEntry)}
}

func (s *MemoryOutboxStore) Enqueue(ctx context.Context, entry OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.OutboxID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "outbox entry %s already exists", entry.OutboxID)
	}
	s.entries[entry.OutboxID] = entry
	return nil
}

func (s *MemoryOutboxStore) Get(ctx context.Context, outboxID string) (OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[outboxID]
	if !ok {
		return OutboxEntry{}, dErrors.Newf(dErrors.CodeNotFound, "outbox entry %s not found", outboxID)
	}
	return entry, nil
}

func (s *MemoryOutboxStore) ListPending(ctx context.Context, tenantID id.TenantID, limit int) ([]OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboxEntry
	for _, entry := range s.entries {
		if entry.TenantID == tenantID && entry.Status == OutboxPending {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOutboxStore) MarkDelivered(ctx context.Context, outboxID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[outboxID]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "outbox entry %s not found", outboxID)
	}
	entry.Status = OutboxDelivered
	entry.DeliveredAt = &at
	s.entries[outboxID] = entry
	return nil
}
