package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	reviewmetrics "veridoc/internal/review/metrics"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// DefaultQueue is the queue flagged documents land in before any escalation.
const DefaultQueue = "standard-review"

// disputePriority outranks normal flagged work so disputed documents are
// re-reviewed promptly.
const disputePriority = 80

// PolicyResolver supplies the tenant policy for SLA and queue configuration.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
}

// Service turns flagged documents into officer work and applies the
// officer-driven and citizen-driven transitions. The per-queue mutex keeps
// assignment selection and load counting atomic without a global lock.
type Service struct {
	assignments AssignmentStore
	officers    OfficerStore
	disputes    DisputeStore
	manager     *lifecycle.Manager
	policies    PolicyResolver
	bus         *eventbus.Bus
	logger      *slog.Logger

	metrics *reviewmetrics.Metrics
	clock   func() time.Time

	mu     sync.Mutex
	queues map[string]*sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithMetrics(m *reviewmetrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(
	assignments AssignmentStore,
	officers OfficerStore,
	disputes DisputeStore,
	manager *lifecycle.Manager,
	policies PolicyResolver,
	bus *eventbus.Bus,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		assignments: assignments,
		officers:    officers,
		disputes:    disputes,
		manager:     manager,
		policies:    policies,
		bus:         bus,
		logger:      logger,
		clock:       time.Now,
		queues:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) queueLock(tenantID id.TenantID, queueName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID.String() + "/" + queueName
	lock, ok := s.queues[key]
	if !ok {
		lock = &sync.Mutex{}
		s.queues[key] = lock
	}
	return lock
}

// PriorityFromRisk maps the aggregate risk score onto a queue priority.
func PriorityFromRisk(riskScore float64) int {
	switch {
	case riskScore >= 0.9:
		return 90
	case riskScore >= 0.75:
		return 75
	case riskScore >= 0.45:
		return 50
	default:
		return 30
	}
}

// Enqueue creates a WAITING assignment for a flagged document. A document
// with an existing non-resolved assignment is rejected.
func (s *Service) Enqueue(ctx context.Context, documentID id.DocumentID, tenantID id.TenantID, queueName string, priority int) (domain.ReviewAssignment, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}
	lock := s.queueLock(tenantID, queueName)
	lock.Lock()
	defer lock.Unlock()

	if existing, open, err := s.assignments.OpenByDocument(ctx, documentID); err != nil {
		return domain.ReviewAssignment{}, err
	} else if open {
		return domain.ReviewAssignment{}, dErrors.Newf(dErrors.CodeConflict,
			"document %s already has open assignment %s", documentID, existing.AssignmentID)
	}

	assignment := domain.ReviewAssignment{
		AssignmentID: id.NewAssignmentID(),
		DocumentID:   documentID,
		TenantID:     tenantID,
		QueueName:    queueName,
		Priority:     priority,
		Status:       domain.AssignmentWaiting,
		CreatedAt:    s.clock(),
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return domain.ReviewAssignment{}, err
	}
	s.metrics.IncrementEnqueued(queueName)

	if _, err := s.bus.Publish(ctx, eventbus.Event{
		DocumentID: documentID,
		TenantID:   tenantID,
		Type:       eventbus.TypeAssignmentCreated,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"assignment_id": assignment.AssignmentID.String(),
			"queue_name":    queueName,
			"priority":      priority,
		},
	}); err != nil {
		s.logger.WarnContext(ctx, "assignment event publish failed", "error", err)
	}
	return assignment, nil
}

// Assign hands the highest-priority waiting assignment in a queue to the
// least-loaded eligible officer. Ties on load break by officer seniority
// (earliest created). Returns false when the queue is empty or no officer is
// eligible.
func (s *Service) Assign(ctx context.Context, tenantID id.TenantID, queueName string) (domain.ReviewAssignment, bool, error) {
	lock := s.queueLock(tenantID, queueName)
	lock.Lock()
	defer lock.Unlock()

	waiting, err := s.assignments.NextWaiting(ctx, tenantID, queueName, 1)
	if err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	if len(waiting) == 0 {
		return domain.ReviewAssignment{}, false, nil
	}

	eligible, err := s.officers.ListEligible(ctx, tenantID, queueName)
	if err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	if len(eligible) == 0 {
		return domain.ReviewAssignment{}, false, nil
	}

	var (
		best     domain.Officer
		bestLoad = -1
	)
	for _, officer := range eligible {
		load, err := s.assignments.CountAssigned(ctx, tenantID, officer.OfficerID)
		if err != nil {
			return domain.ReviewAssignment{}, false, err
		}
		if bestLoad < 0 || load < bestLoad {
			best, bestLoad = officer, load
		}
	}

	assignment := waiting[0]
	now := s.clock()
	assignment.Status = domain.AssignmentAssigned
	assignment.AssignedOfficer = best.OfficerID
	assignment.ClaimedAt = &now
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	s.metrics.IncrementClaimed()

	s.logger.InfoContext(ctx, "assignment dispatched",
		"assignment_id", assignment.AssignmentID.String(),
		"officer_id", best.OfficerID.String(),
		"queue", queueName,
	)
	return assignment, true, nil
}

// Claim lets a specific officer pull the next assignment from a queue.
func (s *Service) Claim(ctx context.Context, officerID id.OfficerID, queueName string) (domain.ReviewAssignment, bool, error) {
	officer, err := s.officers.Get(ctx, officerID)
	if err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	if !officer.Active {
		return domain.ReviewAssignment{}, false, dErrors.Newf(dErrors.CodeUnauthorized, "officer %s is inactive", officerID)
	}
	eligible := false
	for _, queue := range officer.Queues {
		if queue == queueName {
			eligible = true
			break
		}
	}
	if !eligible {
		return domain.ReviewAssignment{}, false, dErrors.Newf(dErrors.CodeUnauthorized,
			"officer %s is not eligible for queue %s", officerID, queueName)
	}

	lock := s.queueLock(officer.TenantID, queueName)
	lock.Lock()
	defer lock.Unlock()

	waiting, err := s.assignments.NextWaiting(ctx, officer.TenantID, queueName, 1)
	if err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	if len(waiting) == 0 {
		return domain.ReviewAssignment{}, false, nil
	}

	assignment := waiting[0]
	now := s.clock()
	assignment.Status = domain.AssignmentAssigned
	assignment.AssignedOfficer = officerID
	assignment.ClaimedAt = &now
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return domain.ReviewAssignment{}, false, err
	}
	s.metrics.IncrementClaimed()
	return assignment, true, nil
}

// Start moves a document into REVIEW_IN_PROGRESS on behalf of the assigned
// officer.
func (s *Service) Start(ctx context.Context, documentID id.DocumentID, officerID id.OfficerID) (domain.DocumentJob, error) {
	assignment, open, err := s.assignments.OpenByDocument(ctx, documentID)
	if err != nil {
		return domain.DocumentJob{}, err
	}
	if !open {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeNotFound, "document %s has no open assignment", documentID)
	}
	if assignment.Status == domain.AssignmentAssigned && assignment.AssignedOfficer != officerID {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeUnauthorized,
			"assignment %s belongs to another officer", assignment.AssignmentID)
	}

	job, _, err := s.manager.Apply(ctx, lifecycle.TransitionRequest{
		DocumentID: documentID,
		Trigger:    eventbus.TypeReviewStarted,
		Actor:      domain.OfficerActor(officerID),
		Payload:    map[string]any{"review_level": assignment.EscalationLevel},
	})
	if err != nil {
		return domain.DocumentJob{}, err
	}

	if assignment.Status == domain.AssignmentWaiting {
		now := s.clock()
		assignment.Status = domain.AssignmentAssigned
		assignment.AssignedOfficer = officerID
		assignment.ClaimedAt = &now
		if err := s.assignments.Update(ctx, assignment); err != nil {
			return domain.DocumentJob{}, err
		}
		s.metrics.IncrementClaimed()
	}
	return job, nil
}

// Decide applies an officer's review decision, resolves the assignment, and
// closes any open dispute.
func (s *Service) Decide(ctx context.Context, documentID id.DocumentID, officerID id.OfficerID, decision domain.Decision, reason string) (domain.DocumentJob, error) {
	assignment, open, err := s.assignments.OpenByDocument(ctx, documentID)
	if err != nil {
		return domain.DocumentJob{}, err
	}
	if !open {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeNotFound, "document %s has no open assignment", documentID)
	}
	if assignment.AssignedOfficer != officerID {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeUnauthorized,
			"assignment %s belongs to another officer", assignment.AssignmentID)
	}

	var trigger eventbus.Type
	payload := map[string]any{"decision": string(decision)}
	switch decision {
	case domain.DecisionApprove:
		trigger = eventbus.TypeDocumentApproved
	case domain.DecisionReject:
		trigger = eventbus.TypeDocumentRejected
		payload["reason_codes"] = []string{reason}
	default:
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeBadRequest, "unsupported review decision %q", decision)
	}

	job, event, err := s.manager.Apply(ctx, lifecycle.TransitionRequest{
		DocumentID: documentID,
		Trigger:    trigger,
		Actor:      domain.OfficerActor(officerID),
		Decision:   decision,
		Payload:    payload,
		Reason:     reason,
		Mutate: func(j *domain.DocumentJob) {
			j.Decision = decision
			// Officer resolution is final even for conflicted offline jobs.
			j.Provisional = false
			j.LegalStanding = domain.StandingAuthoritative
		},
	})
	if err != nil {
		return domain.DocumentJob{}, err
	}

	now := s.clock()
	assignment.Status = domain.AssignmentResolved
	assignment.ResolvedAt = &now
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return domain.DocumentJob{}, err
	}
	s.metrics.IncrementResolved(string(decision))

	if dispute, openDispute, err := s.disputes.OpenByDocument(ctx, documentID); err == nil && openDispute {
		if err := s.disputes.Resolve(ctx, dispute.DisputeID, now); err != nil {
			s.logger.WarnContext(ctx, "dispute resolve failed", "dispute_id", dispute.DisputeID, "error", err)
		}
	}

	if _, err := s.bus.Publish(ctx, eventbus.Event{
		DocumentID:    documentID,
		TenantID:      job.TenantID,
		Type:          eventbus.TypeReviewCompleted,
		Actor:         domain.OfficerActor(officerID),
		Payload:       map[string]any{"decision": string(decision)},
		Reason:        reason,
		CorrelationID: job.JobID,
		CausationID:   event.EventID,
	}); err != nil {
		s.logger.WarnContext(ctx, "review completion event publish failed", "error", err)
	}
	return job, nil
}

// LogCorrection records an officer's field-level fix during an open review.
// The correction is an audit event; extraction output is not rewritten.
func (s *Service) LogCorrection(ctx context.Context, documentID id.DocumentID, officerID id.OfficerID, fieldName, oldValue, newValue string) error {
	if fieldName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "field name is required")
	}
	assignment, open, err := s.assignments.OpenByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !open {
		return dErrors.Newf(dErrors.CodeNotFound, "document %s has no open assignment", documentID)
	}
	if assignment.AssignedOfficer != officerID {
		return dErrors.Newf(dErrors.CodeUnauthorized,
			"assignment %s belongs to another officer", assignment.AssignmentID)
	}

	job, err := s.manager.Get(ctx, documentID)
	if err != nil {
		return err
	}
	_, err = s.bus.Publish(ctx, eventbus.Event{
		DocumentID:    documentID,
		TenantID:      job.TenantID,
		Type:          eventbus.TypeCorrectionLogged,
		Actor:         domain.OfficerActor(officerID),
		CorrelationID: job.JobID,
		Payload: map[string]any{
			"field_name": fieldName,
			"officer_id": officerID.String(),
			"old_value":  oldValue,
			"new_value":  newValue,
		},
	})
	return err
}

// Dispute opens a citizen challenge against a rejection and re-enqueues the
// document at elevated priority.
func (s *Service) Dispute(ctx context.Context, documentID id.DocumentID, citizenID id.CitizenID, reason string) (domain.DocumentJob, error) {
	if reason == "" {
		return domain.DocumentJob{}, dErrors.New(dErrors.CodeBadRequest, "dispute reason is required")
	}
	if _, open, err := s.disputes.OpenByDocument(ctx, documentID); err != nil {
		return domain.DocumentJob{}, err
	} else if open {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeConflict, "document %s already has an open dispute", documentID)
	}

	job, _, err := s.manager.Apply(ctx, lifecycle.TransitionRequest{
		DocumentID: documentID,
		Trigger:    eventbus.TypeDocumentDisputed,
		Actor:      domain.CitizenActor(citizenID),
		Payload:    map[string]any{"reason": reason},
		Reason:     reason,
	})
	if err != nil {
		return domain.DocumentJob{}, err
	}

	dispute := domain.Dispute{
		DisputeID:  fmt.Sprintf("dsp_%s", id.NewEventID()),
		DocumentID: documentID,
		TenantID:   job.TenantID,
		Reason:     reason,
		Status:     domain.DisputeOpen,
		CreatedAt:  s.clock(),
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		return domain.DocumentJob{}, err
	}
	s.metrics.IncrementDisputes()

	if _, err := s.Enqueue(ctx, documentID, job.TenantID, DefaultQueue, disputePriority); err != nil {
		// A leftover open assignment keeps the document claimable.
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return domain.DocumentJob{}, err
		}
	}
	return job, nil
}
