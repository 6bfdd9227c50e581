package eventbus

import (
	"context"

	id "veridoc/pkg/domain"
)

// Store persists the append-only event log. Events are never updated or
// deleted; the ordered per-document sequence is the source of truth for audit
// reconstruction and crash recovery.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]Event, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error)
}
