package pipeline

import (
	"context"

	id "veridoc/pkg/domain"
)

// ResultStore persists branch results and the unified record snapshots.
type ResultStore interface {
	SaveBranch(ctx context.Context, result BranchResult) error
	ListBranches(ctx context.Context, documentID id.DocumentID, jobID id.JobID) ([]BranchResult, error)
	SaveRecord(ctx context.Context, record Record) error
	GetRecord(ctx context.Context, documentID id.DocumentID, jobID id.JobID) (Record, error)
	LatestRecord(ctx context.Context, documentID id.DocumentID) (Record, error)
}
