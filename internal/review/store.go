package review

import (
	"context"
	"time"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
)

// AssignmentStore persists review assignments. Claim ordering (priority desc,
// then FIFO) and the one-open-assignment-per-document invariant live in the
// service; stores only answer queries.
type AssignmentStore interface {
	Create(ctx context.Context, assignment domain.ReviewAssignment) error
	Get(ctx context.Context, assignmentID id.AssignmentID) (domain.ReviewAssignment, error)
	Update(ctx context.Context, assignment domain.ReviewAssignment) error

	// OpenByDocument returns the non-resolved assignment for a document, if any.
	OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.ReviewAssignment, bool, error)

	// NextWaiting returns waiting assignments for a queue ordered by priority
	// descending, then creation time ascending.
	NextWaiting(ctx context.Context, tenantID id.TenantID, queueName string, limit int) ([]domain.ReviewAssignment, error)

	// CountAssigned returns the number of currently ASSIGNED items per officer.
	CountAssigned(ctx context.Context, tenantID id.TenantID, officerID id.OfficerID) (int, error)

	// ListUnresolvedOlderThan returns assignments created before the cutoff
	// that are still waiting or assigned.
	ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ReviewAssignment, error)
}

// OfficerStore persists the reviewer roster.
type OfficerStore interface {
	Upsert(ctx context.Context, officer domain.Officer) error
	Get(ctx context.Context, officerID id.OfficerID) (domain.Officer, error)
	ListEligible(ctx context.Context, tenantID id.TenantID, queueName string) ([]domain.Officer, error)
}

// DisputeStore persists citizen disputes.
type DisputeStore interface {
	Create(ctx context.Context, dispute domain.Dispute) error
	OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.Dispute, bool, error)
	Resolve(ctx context.Context, disputeID string, at time.Time) error
}
