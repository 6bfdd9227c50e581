package tenant

import (
	"context"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// PolicyStore persists per-tenant policies. Saving bumps the version; old
// versions stay readable so stored events referencing them remain auditable.
type PolicyStore interface {
	Latest(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
	Version(ctx context.Context, tenantID id.TenantID, version int) (domain.TenantPolicy, error)
	Save(ctx context.Context, policy domain.TenantPolicy) (domain.TenantPolicy, error)
}
