package domain

import (
	"time"

	id "veridoc/pkg/domain"
)

// DocumentState is the lifecycle position of a document job. Only the
// lifecycle manager mutates it.
type DocumentState string

const (
	StateReceived         DocumentState = "RECEIVED"
	StatePreprocessing    DocumentState = "PREPROCESSING"
	StateOCRComplete      DocumentState = "OCR_COMPLETE"
	StateBranched         DocumentState = "BRANCHED"
	StateMerged           DocumentState = "MERGED"
	StateWaitingForReview DocumentState = "WAITING_FOR_REVIEW"
	StateReviewInProgress DocumentState = "REVIEW_IN_PROGRESS"
	StateApproved         DocumentState = "APPROVED"
	StateRejected         DocumentState = "REJECTED"
	StateDisputed         DocumentState = "DISPUTED"
	StateExpired          DocumentState = "EXPIRED"
	StateFailed           DocumentState = "FAILED"
	StateArchived         DocumentState = "ARCHIVED"
)

// Terminal reports whether no further transitions may leave the state.
func (s DocumentState) Terminal() bool { return s == StateArchived }

// Decision is the outcome produced by the decision stage or an officer.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionReview  Decision = "REVIEW"
)

// ActorType identifies who triggered a transition or event.
type ActorType string

const (
	ActorSystem  ActorType = "SYSTEM"
	ActorOfficer ActorType = "OFFICER"
	ActorCitizen ActorType = "CITIZEN"
)

// Actor pairs an actor type with its identifier. System actors carry an empty
// id.
type Actor struct {
	Type ActorType
	ID   string
}

func SystemActor() Actor { return Actor{Type: ActorSystem} }

func OfficerActor(officerID id.OfficerID) Actor {
	return Actor{Type: ActorOfficer, ID: officerID.String()}
}

func CitizenActor(citizenID id.CitizenID) Actor {
	return Actor{Type: ActorCitizen, ID: citizenID.String()}
}

// SyncStatus tracks offline reconciliation progress for a document.
type SyncStatus string

const (
	SyncNone          SyncStatus = ""
	SyncPending       SyncStatus = "PENDING"
	SyncSynced        SyncStatus = "SYNCED"
	SyncConflict      SyncStatus = "CONFLICT"
	SyncQueueOverflow SyncStatus = "QUEUE_OVERFLOW"
)

// LegalStanding states whether a result may be reported as final.
type LegalStanding string

const (
	StandingProvisional   LegalStanding = "PROVISIONAL"
	StandingAuthoritative LegalStanding = "AUTHORITATIVE"
)

// Submission is the caller-supplied input for a document job.
type Submission struct {
	TenantID  id.TenantID
	CitizenID id.CitizenID
	FileName  string
	RawText   string
	Channel   string
	Metadata  map[string]any

	// Provisional marks submissions whose local decision must stay withheld
	// until offline reconciliation confirms it against the central record.
	Provisional bool
}

// DocumentJob is one document moving through the pipeline. JobID identifies
// the current execution attempt; re-processing allocates a fresh JobID while
// DocumentID stays stable.
type DocumentJob struct {
	DocumentID id.DocumentID
	JobID      id.JobID
	TenantID   id.TenantID
	CitizenID  id.CitizenID

	State    DocumentState
	FileName string
	RawText  string

	DedupHash  string
	Decision   Decision
	Confidence float64
	RiskScore  float64

	Provisional   bool
	SyncStatus    SyncStatus
	LegalStanding LegalStanding

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReportableDecision returns the decision callers may see. Provisional results
// are withheld until reconciliation declares them authoritative.
func (j DocumentJob) ReportableDecision() (Decision, bool) {
	if j.Provisional && j.LegalStanding != StandingAuthoritative {
		return "", false
	}
	if j.Decision == "" {
		return "", false
	}
	return j.Decision, true
}
