package tenant

import (
	"context"
	"log/slog"

	"veridoc/internal/domain"
	tenantmetrics "veridoc/internal/tenant/metrics"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// Service resolves tenant policies. A tenant with no stored policy gets the
// platform defaults; a job pins the version it resolved so mid-flight policy
// updates never change a running job's thresholds.
type Service struct {
	store   PolicyStore
	cache   Cache
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache adds a read-through policy cache.
func WithCache(cache Cache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches tenant metrics.
func WithMetrics(m *tenantmetrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(store PolicyStore, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the latest policy for a tenant, falling back to defaults.
func (s *Service) Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error) {
	if tenantID.IsZero() {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if s.cache != nil {
		if policy, ok := s.cache.Get(ctx, tenantID); ok {
			s.metrics.IncrementCacheHits()
			return policy, nil
		}
	}
	s.metrics.IncrementCacheMisses()

	policy, err := s.store.Latest(ctx, tenantID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		policy = domain.DefaultPolicy(tenantID)
	} else if err != nil {
		return domain.TenantPolicy{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, policy)
	}
	return policy, nil
}

// ResolveVersion returns the exact policy version a stored event references.
func (s *Service) ResolveVersion(ctx context.Context, tenantID id.TenantID, version int) (domain.TenantPolicy, error) {
	if version == 1 {
		// Version 1 may be the implicit default for tenants never configured.
		policy, err := s.store.Version(ctx, tenantID, version)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return domain.DefaultPolicy(tenantID), nil
		}
		return policy, err
	}
	return s.store.Version(ctx, tenantID, version)
}

// Update stores a new policy version and invalidates the cache.
func (s *Service) Update(ctx context.Context, policy domain.TenantPolicy) (domain.TenantPolicy, error) {
	if policy.TenantID.IsZero() {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if policy.HardRejectRisk <= 0 || policy.HardRejectRisk > 1 {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "hard reject risk must be in (0, 1]")
	}
	if policy.MinApprovalConfidence <= 0 || policy.MinApprovalConfidence > 1 {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "min approval confidence must be in (0, 1]")
	}
	if policy.MaxApprovalRisk >= policy.HardRejectRisk {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "max approval risk must be below hard reject risk")
	}
	if policy.SyncCapacityPerMinute <= 0 {
		return domain.TenantPolicy{}, dErrors.New(dErrors.CodeBadRequest, "sync capacity must be positive")
	}

	saved, err := s.store.Save(ctx, policy)
	if err != nil {
		return domain.TenantPolicy{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, policy.TenantID)
	}
	s.metrics.IncrementPolicyUpdates()
	s.logger.InfoContext(ctx, "tenant policy updated",
		"tenant_id", saved.TenantID.String(),
		"version", saved.Version,
	)
	return saved, nil
}
