package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"veridoc/internal/domain"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments map[id.AssignmentID]domain.ReviewAssignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make(map[id.AssignmentID]domain.ReviewAssignment)}
}

func (s *MemoryAssignmentStore) Create(ctx context.Context, assignment domain.ReviewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assignments[assignment.AssignmentID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "assignment %s already exists", assignment.AssignmentID)
	}
	s.assignments[assignment.AssignmentID] = assignment
	return nil
}

func (s *MemoryAssignmentStore) Get(ctx context.Context, assignmentID id.AssignmentID) (domain.ReviewAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[assignmentID]
	if !ok {
		return domain.ReviewAssignment{}, dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", assignmentID)
	}
	return assignment, nil
}

func (s *MemoryAssignmentStore) Update(ctx context.Context, assignment domain.ReviewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[assignment.AssignmentID]; !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", assignment.AssignmentID)
	}
	s.assignments[assignment.AssignmentID] = assignment
	return nil
}

func (s *MemoryAssignmentStore) OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.ReviewAssignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, assignment := range s.assignments {
		if assignment.DocumentID == documentID && assignment.Status != domain.AssignmentResolved {
			return assignment, true, nil
		}
	}
	return domain.ReviewAssignment{}, false, nil
}

func (s *MemoryAssignmentStore) NextWaiting(ctx context.Context, tenantID id.TenantID, queueName string, limit int) ([]domain.ReviewAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var waiting []domain.ReviewAssignment
	for _, assignment := range s.assignments {
		if assignment.TenantID == tenantID && assignment.QueueName == queueName && assignment.Status == domain.AssignmentWaiting {
			waiting = append(waiting, assignment)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].Priority != waiting[j].Priority {
			return waiting[i].Priority > waiting[j].Priority
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	if limit > 0 && len(waiting) > limit {
		waiting = waiting[:limit]
	}
	return waiting, nil
}

func (s *MemoryAssignmentStore) CountAssigned(ctx context.Context, tenantID id.TenantID, officerID id.OfficerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, assignment := range s.assignments {
		if assignment.TenantID == tenantID && assignment.AssignedOfficer == officerID && assignment.Status == domain.AssignmentAssigned {
			count++
		}
	}
	return count, nil
}

func (s *MemoryAssignmentStore) ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time) ([]domain.ReviewAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReviewAssignment
	for _, assignment := range s.assignments {
		if assignment.Status != domain.AssignmentResolved && assignment.CreatedAt.Before(cutoff) {
			out = append(out, assignment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemoryOfficerStore struct {
	mu       sync.RWMutex
	officers map[id.OfficerID]domain.Officer
}

func NewMemoryOfficerStore() *MemoryOfficerStore {
	return &MemoryOfficerStore{officers: make(map[id.OfficerID]domain.Officer)}
}

func (s *MemoryOfficerStore) Upsert(ctx context.Context, officer domain.Officer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officers[officer.OfficerID] = officer
	return nil
}

func (s *MemoryOfficerStore) Get(ctx context.Context, officerID id.OfficerID) (domain.Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	officer, ok := s.officers[officerID]
	if !ok {
		return domain.Officer{}, dErrors.Newf(dErrors.CodeNotFound, "officer %s not found", officerID)
	}
	return officer, nil
}

func (s *MemoryOfficerStore) ListEligible(ctx context.Context, tenantID id.TenantID, queueName string) ([]domain.Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Officer
	for _, officer := range s.officers {
		if officer.TenantID != tenantID || !officer.Active {
			continue
		}
		for _, queue := range officer.Queues {
			if queue == queueName {
				out = append(out, officer)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemoryDisputeStore struct {
	mu       sync.RWMutex
	disputes map[string]domain.Dispute
}

func NewMemoryDisputeStore() *MemoryDisputeStore {
	return &MemoryDisputeStore{disputes: make(map[string]domain.Dispute)}
}

func (s *MemoryDisputeStore) Create(ctx context.Context, dispute domain.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.disputes[dispute.DisputeID]; exists {
		return dErrors.Newf(dErrors.CodeConflict, "dispute %s already exists", dispute.DisputeID)
	}
	s.disputes[dispute.DisputeID] = dispute
	return nil
}

func (s *MemoryDisputeStore) OpenByDocument(ctx context.Context, documentID id.DocumentID) (domain.Dispute, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dispute := range s.disputes {
		if dispute.DocumentID == documentID && dispute.Status == domain.DisputeOpen {
			return dispute, true, nil
		}
	}
	return domain.Dispute{}, false, nil
}

func (s *MemoryDisputeStore) Resolve(ctx context.Context, disputeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dispute, ok := s.disputes[disputeID]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "dispute %s not found", disputeID)
	}
	dispute.Status = domain.DisputeResolved
	dispute.ResolvedAt = &at
	s.disputes[disputeID] = dispute
	return nil
}
