package notify

import (
	"context"
	"time"

	id "veridoc/pkg/domain"
)

// OutboxStatus tracks a queued webhook delivery.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxDelivered OutboxStatus = "DELIVERED"
)

// OutboxEntry is one webhook queued for an external delivery worker. Delivery
// itself stays outside this system; the entry is the durable handoff point.
type OutboxEntry struct {
	OutboxID   string
	DocumentID id.DocumentID
	TenantID   id.TenantID

	EventType string
	Payload   map[string]any
	Status    OutboxStatus

	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// OutboxStore persists queued webhooks.
type OutboxStore interface {
	Enqueue(ctx context.Context, entry OutboxEntry) error
	Get(ctx context.Context, outboxID string) (OutboxEntry, error)

	// ListPending returns undelivered entries for a tenant, oldest first.
	ListPending(ctx context.Context, tenantID id.TenantID, limit int) ([]OutboxEntry, error)

	// MarkDelivered is called by the external delivery worker.
	MarkDelivered(ctx context.Context, outboxID string, at time.Time) error
}
