package pipeline

import (
	"context"
	"sync"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type recordKey struct {
	documentID id.DocumentID
	jobID      id.JobID
}

type MemoryResultStore struct {
	mu       sync.RWMutex
	branches map[recordKey][]BranchResult
	records  map[recordKey]Record
	latest   map[id.DocumentID]Record
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		branches: make(map[recordKey][]BranchResult),
		records:  make(map[recordKey]Record),
		latest:   make(map[id.DocumentID]Record),
	}
}

func (s *MemoryResultStore) SaveBranch(ctx context.Context, result BranchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{result.DocumentID, result.JobID}
	s.branches[key] = append(s.branches[key], result)
	return nil
}

func (s *MemoryResultStore) ListBranches(ctx context.Context, documentID id.DocumentID, jobID id.JobID) ([]BranchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.branches[recordKey{documentID, jobID}]
	out := make([]BranchResult, len(results))
	copy(out, results)
	return out, nil
}

func (s *MemoryResultStore) SaveRecord(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{record.DocumentID, record.JobID}] = record
	s.latest[record.DocumentID] = record
	return nil
}

func (s *MemoryResultStore) GetRecord(ctx context.Context, documentID id.DocumentID, jobID id.JobID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey{documentID, jobID}]
	if !ok {
		return Record{}, dErrors.Newf(dErrors.CodeNotFound, "no record for document %s job %s", documentID, jobID)
	}
	return record, nil
}

func (s *MemoryResultStore) LatestRecord(ctx context.Context, documentID id.DocumentID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.latest[documentID]
	if !ok {
		return Record{}, dErrors.Newf(dErrors.CodeNotFound, "no record for document %s", documentID)
	}
	return record, nil
}
