package domain

import (
	"time"

	id "veridoc/pkg/domain"
)

// AssignmentStatus is the position of a review assignment in its lifecycle.
type AssignmentStatus string

const (
	AssignmentWaiting  AssignmentStatus = "WAITING_FOR_REVIEW"
	AssignmentAssigned AssignmentStatus = "ASSIGNED"
	AssignmentResolved AssignmentStatus = "RESOLVED"
)

// ReviewAssignment is one unit of officer work. At most one non-RESOLVED
// assignment exists per document.
type ReviewAssignment struct {
	AssignmentID id.AssignmentID
	DocumentID   id.DocumentID
	TenantID     id.TenantID

	QueueName string
	Priority  int
	Status    AssignmentStatus

	AssignedOfficer id.OfficerID
	EscalationLevel int

	CreatedAt  time.Time
	ClaimedAt  *time.Time
	ResolvedAt *time.Time
}

// DisputeStatus tracks a citizen dispute.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "OPEN"
	DisputeResolved DisputeStatus = "RESOLVED"
)

// Dispute is a citizen challenge against a rejection. Opening one re-enters
// the review path.
type Dispute struct {
	DisputeID    string
	DocumentID   id.DocumentID
	TenantID     id.TenantID
	Reason       string
	EvidenceNote string
	Status       DisputeStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// Officer is a reviewer eligible for assignment in a tenant.
type Officer struct {
	OfficerID id.OfficerID
	TenantID  id.TenantID
	Role      string
	Queues    []string
	Active    bool
	CreatedAt time.Time
}
