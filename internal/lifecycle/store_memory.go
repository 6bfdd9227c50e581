package lifecycle

import (
	"context"
	"sort"
	"sync"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// MemoryJobStore keeps jobs in memory for tests and single-node runs.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[id.DocumentID]domain.DocumentJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[id.DocumentID]domain.DocumentJob)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job domain.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.DocumentID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "document %s already exists", job.DocumentID)
	}
	s.jobs[job.DocumentID] = job
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[documentID]
	if !ok {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeNotFound, "document %s not found", documentID)
	}
	return job, nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job domain.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.DocumentID]; !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "document %s not found", job.DocumentID)
	}
	s.jobs[job.DocumentID] = job
	return nil
}

func (s *MemoryJobStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]domain.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DocumentJob
	for _, job := range s.jobs {
		if job.TenantID == tenantID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryJobStore) Tenants(ctx context.Context) ([]id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.TenantID]bool)
	var out []id.TenantID
	for _, job := range s.jobs {
		if !seen[job.TenantID] {
			seen[job.TenantID] = true
			out = append(out, job.TenantID)
		}
	}
	return out, nil
}

func (s *MemoryJobStore) CountByDedupHash(ctx context.Context, tenantID id.TenantID, hash string, exclude id.DocumentID) (int, error) {
	if hash == "" {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.TenantID == tenantID && job.DedupHash == hash && job.DocumentID != exclude {
			count++
		}
	}
	return count, nil
}

func (s *MemoryJobStore) CountByDedupHashGlobal(ctx context.Context, hash string, exclude id.DocumentID) (int, error) {
	if hash == "" {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.DedupHash == hash && job.DocumentID != exclude {
			count++
		}
	}
	return count, nil
}
