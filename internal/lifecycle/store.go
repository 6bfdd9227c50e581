package lifecycle

import (
	"context"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// JobStore persists DocumentJob records. The lifecycle manager is the only
// writer of the State column; other fields are updated through the manager so
// the per-document serialization covers them too.
type JobStore interface {
	Create(ctx context.Context, job domain.DocumentJob) error
	Get(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error)
	Update(ctx context.Context, job domain.DocumentJob) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]domain.DocumentJob, error)
	Tenants(ctx context.Context) ([]id.TenantID, error)
	CountByDedupHash(ctx context.Context, tenantID id.TenantID, hash string, exclude id.DocumentID) (int, error)
	CountByDedupHashGlobal(ctx context.Context, hash string, exclude id.DocumentID) (int, error)
}
