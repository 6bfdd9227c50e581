package tenant

import (
	"context"
	"sync"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[id.TenantID][]domain.TenantPolicy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[id.TenantID][]domain.TenantPolicy)}
}

func (s *MemoryPolicyStore) Latest(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.policies[tenantID]
	if len(versions) == 0 {
		return domain.TenantPolicy{}, dErrors.Newf(dErrors.CodeNotFound, "no policy for tenant %s", tenantID)
	}
	return versions[len(versions)-1], nil
}

func (s *MemoryPolicyStore) Version(ctx context.Context, tenantID id.TenantID, version int) (domain.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies[tenantID] {
		if p.Version == version {
			return p, nil
		}
	}
	return domain.TenantPolicy{}, dErrors.Newf(dErrors.CodeNotFound, "policy version %d for tenant %s not found", version, tenantID)
}

func (s *MemoryPolicyStore) Save(ctx context.Context, policy domain.TenantPolicy) (domain.TenantPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.policies[policy.TenantID]
	policy.Version = len(versions) + 1
	s.policies[policy.TenantID] = append(versions, policy)
	return policy, nil
}
