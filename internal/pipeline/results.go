package pipeline

import (
	"time"

	id "veridoc/pkg/domain"
)

// BranchStatus is the terminal state of one parallel branch.
type BranchStatus string

const (
	BranchDone    BranchStatus = "DONE"
	BranchSkipped BranchStatus = "SKIPPED"
	BranchFailed  BranchStatus = "FAILED"
)

// BranchResult is the audit record of one parallel branch execution. The
// executor is its only writer; results are persisted as soon as a branch
// finishes so a later job failure cannot discard them.
type BranchResult struct {
	DocumentID id.DocumentID
	JobID      id.JobID
	Module     string
	Status     BranchStatus
	Output     map[string]any
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record is the unified structured output of one execution attempt, versioned
// per (document id, job id).
type Record struct {
	DocumentID id.DocumentID
	JobID      id.JobID
	TenantID   id.TenantID

	Decision    string
	Confidence  float64
	RiskScore   float64
	RiskLevel   string
	ReasonCodes []string

	Fields          map[string]string
	MissingFields   []string
	RegistryStatus  string
	DedupHash       string
	DuplicateCount  int
	Script          string
	DocumentType    string
	QualityScore    float64
	TamperRisk      float64
	PolicyVersion   int
	ModelVersions   map[string]string
	CreatedAt       time.Time
}
