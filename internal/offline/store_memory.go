package offline

import (
	"context"
	"sort"
	"sync"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// MemoryRecordStore is the in-memory RecordStore used in tests and local
// development.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.OfflineRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]domain.OfflineRecord)}
}

func (s *MemoryRecordStore) Create(ctx context.Context, record domain.OfflineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.RecordID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "offline record %s already exists", record.RecordID)
	}
	s.records[record.RecordID] = record
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, recordID string) (domain.OfflineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok {
		return domain.OfflineRecord{}, dErrors.Newf(dErrors.CodeNotFound, "offline record %s not found", recordID)
	}
	return record, nil
}

func (s *MemoryRecordStore) Update(ctx context.Context, record domain.OfflineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.RecordID]; !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "offline record %s not found", record.RecordID)
	}
	s.records[record.RecordID] = record
	return nil
}

func (s *MemoryRecordStore) ListBacklog(ctx context.Context, tenantID id.TenantID) ([]domain.OfflineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OfflineRecord
	for _, record := range s.records {
		if record.TenantID == tenantID && inBacklog(record.SyncStatus) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (s *MemoryRecordStore) CountBacklog(ctx context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.records {
		if record.TenantID == tenantID && inBacklog(record.SyncStatus) {
			count++
		}
	}
	return count, nil
}

func inBacklog(status domain.SyncStatus) bool {
	return status == domain.SyncPending || status == domain.SyncQueueOverflow
}
