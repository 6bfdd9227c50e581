package eventbus

import (
	"fmt"
	"sort"

	dErrors "veridoc/pkg/domain-errors"
)

// Core event types. Branch completions additionally use
// BranchCompleted(module) per parallel module.
const (
	TypeDocumentReceived     Type = "document.received"
	TypeDocumentPreprocessed Type = "document.preprocessed"
	TypeOCRCompleted         Type = "ocr.completed"
	TypeBranchStarted        Type = "branch.started"
	TypeDocumentMerged       Type = "document.merged"
	TypeFlaggedForReview     Type = "document.flagged.for_review"
	TypeReviewStarted        Type = "review.started"
	TypeReviewCompleted      Type = "review.completed"
	TypeDocumentApproved     Type = "document.approved"
	TypeDocumentRejected     Type = "document.rejected"
	TypeDocumentDisputed     Type = "document.disputed"
	TypeFraudFlagged         Type = "document.fraud_flagged"
	TypeRequiresReupload     Type = "document.requires_reupload"
	TypeDocumentExpired      Type = "document.expired"
	TypeDocumentArchived     Type = "document.archived"
	TypeDocumentFailed       Type = "document.failed"
	TypeOfflineConflict      Type = "offline.conflict.detected"
	TypeOfflineOverflow      Type = "offline.queue_overflow"
	TypeNotificationSent     Type = "notification.sent"
	TypeReviewEscalated      Type = "review.escalated"
	TypeAssignmentCreated    Type = "review.assignment.created"
	TypeWebhookQueued        Type = "webhook.queued"
	TypeCorrectionLogged     Type = "correction.logged"
)

// BranchModules are the parallel pipeline modules that report individual
// branch completion events.
var BranchModules = []string{
	"classification",
	"authenticity",
	"dedup_behavioral",
}

// BranchCompleted builds the completion event type for a branch module.
func BranchCompleted(module string) Type {
	return Type(fmt.Sprintf("branch.completed.%s", module))
}

// contract is the versioned schema for one event type. Payloads missing a
// required key are rejected at publish time and never stored.
type contract struct {
	version  int
	required []string
}

var contracts = map[Type]contract{
	TypeDocumentReceived:     {version: 1, required: []string{"file_name"}},
	TypeDocumentPreprocessed: {version: 1, required: []string{"quality_score", "dedup_hash"}},
	TypeOCRCompleted:         {version: 1, required: []string{"ocr_confidence"}},
	TypeBranchStarted:        {version: 1, required: []string{"modules"}},
	TypeDocumentMerged:       {version: 1, required: []string{"confidence", "risk_score"}},
	TypeFlaggedForReview:     {version: 1, required: []string{"reason_codes"}},
	TypeReviewStarted:        {version: 1, required: []string{"review_level"}},
	TypeReviewCompleted:      {version: 1, required: []string{"decision"}},
	TypeDocumentApproved:     {version: 1, required: []string{"decision"}},
	TypeDocumentRejected:     {version: 1, required: []string{"decision", "reason_codes"}},
	TypeDocumentDisputed:     {version: 1, required: []string{"reason"}},
	TypeFraudFlagged:         {version: 1, required: []string{"risk_level", "aggregate_fraud_risk_score"}},
	TypeRequiresReupload:     {version: 1, required: []string{"message", "reason_code"}},
	TypeDocumentExpired:      {version: 1, required: []string{"expired_at"}},
	TypeDocumentArchived:     {version: 1, required: []string{"archive_reason"}},
	TypeDocumentFailed:       {version: 1, required: []string{"error"}},
	TypeOfflineConflict:      {version: 1, required: []string{"local_provisional", "central_decision"}},
	TypeOfflineOverflow:      {version: 1, required: []string{"backlog_size", "sync_capacity_per_minute"}},
	TypeNotificationSent:     {version: 1, required: []string{"channels", "message"}},
	TypeReviewEscalated:      {version: 1, required: []string{"escalation_level", "queue_name"}},
	TypeAssignmentCreated:    {version: 1, required: []string{"assignment_id", "queue_name", "priority"}},
	TypeWebhookQueued:        {version: 1, required: []string{"event_type", "outbox_id"}},
	TypeCorrectionLogged:     {version: 1, required: []string{"field_name", "officer_id"}},
}

var branchContract = contract{version: 1, required: []string{"module", "status"}}

// lookupContract resolves the schema for an event type, handling the
// parameterized branch completion family.
func lookupContract(t Type) (contract, bool) {
	if c, ok := contracts[t]; ok {
		return c, true
	}
	for _, module := range BranchModules {
		if t == BranchCompleted(module) {
			return branchContract, true
		}
	}
	return contract{}, false
}

// KnownTypes returns every valid event type, sorted, for diagnostics.
func KnownTypes() []Type {
	out := make([]Type, 0, len(contracts)+len(BranchModules))
	for t := range contracts {
		out = append(out, t)
	}
	for _, module := range BranchModules {
		out = append(out, BranchCompleted(module))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks an event against its versioned contract before publish.
func Validate(e Event) error {
	c, ok := lookupContract(e.Type)
	if !ok {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported event type %q", e.Type)
	}
	var missing []string
	for _, key := range c.required {
		if _, present := e.Payload[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeBadRequest, "event %s payload missing required keys %v", e.Type, missing)
	}
	return nil
}

// contractVersion reports the schema version stamped onto stored events.
func contractVersion(t Type) int {
	c, ok := lookupContract(t)
	if !ok {
		return 0
	}
	return c.version
}
