package offline

import (
	"context"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// RecordStore persists provisional offline captures awaiting reconciliation.
type RecordStore interface {
	Create(ctx context.Context, record domain.OfflineRecord) error
	Get(ctx context.Context, recordID string) (domain.OfflineRecord, error)
	Update(ctx context.Context, record domain.OfflineRecord) error

	// ListBacklog returns records still awaiting a successful sync (PENDING
	// or QUEUE_OVERFLOW) for a tenant, oldest capture first.
	ListBacklog(ctx context.Context, tenantID id.TenantID) ([]domain.OfflineRecord, error)

	// CountBacklog returns the size of the unsynced backlog for a tenant.
	CountBacklog(ctx context.Context, tenantID id.TenantID) (int, error)
}
