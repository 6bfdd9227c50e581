package review

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	"veridoc/internal/tenant"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type ReviewSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	assignments *MemoryAssignmentStore
	officers    *MemoryOfficerStore
	bus         *eventbus.Bus
	manager     *lifecycle.Manager
	service     *Service
	escalator   *Escalator
	tenantID    id.TenantID
}

func TestReviewSuite(t *testing.T) {
	suite.Run(t, new(ReviewSuite))
}

func (s *ReviewSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.assignments = NewMemoryAssignmentStore()
	s.officers = NewMemoryOfficerStore()
	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger,
		eventbus.WithClock(clock))
	s.manager = lifecycle.NewManager(lifecycle.NewMemoryJobStore(), s.bus, logger,
		lifecycle.WithManagerClock(clock))
	policies := tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
	s.service = NewService(s.assignments, s.officers, NewMemoryDisputeStore(), s.manager, policies, s.bus, logger,
		WithClock(clock))
	s.escalator = NewEscalator(s.assignments, policies, s.bus, logger,
		WithEscalatorClock(clock))
	s.tenantID = id.NewTenantID()
}

func (s *ReviewSuite) addOfficer(queues ...string) id.OfficerID {
	officerID := id.NewOfficerID()
	s.Require().NoError(s.officers.Upsert(s.ctx, domain.Officer{
		OfficerID: officerID,
		TenantID:  s.tenantID,
		Role:      "reviewer",
		Queues:    queues,
		Active:    true,
		CreatedAt: s.now,
	}))
	s.now = s.now.Add(time.Second)
	return officerID
}

// flaggedJob walks a fresh submission through the pipeline transitions up to
// WAITING_FOR_REVIEW.
func (s *ReviewSuite) flaggedJob() domain.DocumentJob {
	job, _, err := s.manager.Create(s.ctx, domain.Submission{
		TenantID:  s.tenantID,
		CitizenID: id.NewCitizenID(),
		FileName:  "claim.pdf",
	})
	s.Require().NoError(err)

	steps := []struct {
		trigger eventbus.Type
		payload map[string]any
	}{
		{eventbus.TypeDocumentPreprocessed, map[string]any{"quality_score": 0.5, "dedup_hash": "h"}},
		{eventbus.TypeOCRCompleted, map[string]any{"ocr_confidence": 0.6}},
		{eventbus.TypeBranchStarted, map[string]any{"modules": eventbus.BranchModules}},
		{eventbus.TypeDocumentMerged, map[string]any{"confidence": 0.5, "risk_score": 0.5}},
		{eventbus.TypeFlaggedForReview, map[string]any{"reason_codes": []string{"LOW_CONFIDENCE"}}},
	}
	for _, step := range steps {
		job, _, err = s.manager.Apply(s.ctx, lifecycle.TransitionRequest{
			DocumentID: job.DocumentID,
			Trigger:    step.trigger,
			Actor:      domain.SystemActor(),
			Payload:    step.payload,
		})
		s.Require().NoError(err)
	}
	s.Equal(domain.StateWaitingForReview, job.State)
	return job
}

func (s *ReviewSuite) TestEnqueue_OneOpenAssignmentPerDocument() {
	job := s.flaggedJob()

	first, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)
	s.Equal(domain.AssignmentWaiting, first.Status)

	_, err = s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 90)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ReviewSuite) TestClaim_PriorityThenFIFO() {
	officerID := s.addOfficer(DefaultQueue)

	low := s.flaggedJob()
	highOld := s.flaggedJob()
	s.now = s.now.Add(time.Minute)
	highNew := s.flaggedJob()

	_, err := s.service.Enqueue(s.ctx, low.DocumentID, s.tenantID, DefaultQueue, 30)
	s.Require().NoError(err)
	_, err = s.service.Enqueue(s.ctx, highOld.DocumentID, s.tenantID, DefaultQueue, 75)
	s.Require().NoError(err)
	s.now = s.now.Add(time.Minute)
	_, err = s.service.Enqueue(s.ctx, highNew.DocumentID, s.tenantID, DefaultQueue, 75)
	s.Require().NoError(err)

	claimed, ok, err := s.service.Claim(s.ctx, officerID, DefaultQueue)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(highOld.DocumentID, claimed.DocumentID, "higher priority, earlier creation wins")

	claimed, ok, err = s.service.Claim(s.ctx, officerID, DefaultQueue)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(highNew.DocumentID, claimed.DocumentID)

	claimed, ok, err = s.service.Claim(s.ctx, officerID, DefaultQueue)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(low.DocumentID, claimed.DocumentID)

	_, ok, err = s.service.Claim(s.ctx, officerID, DefaultQueue)
	s.Require().NoError(err)
	s.False(ok, "queue drained")
}

func (s *ReviewSuite) TestClaim_RejectsIneligibleOfficer() {
	officerID := s.addOfficer("some-other-queue")
	_, _, err := s.service.Claim(s.ctx, officerID, DefaultQueue)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ReviewSuite) TestAssign_LeastLoaded() {
	busy := s.addOfficer(DefaultQueue)
	idle := s.addOfficer(DefaultQueue)

	// Load the first officer with one claimed assignment.
	preload := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, preload.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)
	claimed, ok, err := s.service.Claim(s.ctx, busy, DefaultQueue)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(busy, claimed.AssignedOfficer)

	job := s.flaggedJob()
	_, err = s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)

	assigned, ok, err := s.service.Assign(s.ctx, s.tenantID, DefaultQueue)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(idle, assigned.AssignedOfficer, "least-loaded officer gets the work")
}

func (s *ReviewSuite) TestStartAndDecide() {
	officerID := s.addOfficer(DefaultQueue)
	job := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)

	started, err := s.service.Start(s.ctx, job.DocumentID, officerID)
	s.Require().NoError(err)
	s.Equal(domain.StateReviewInProgress, started.State)

	decided, err := s.service.Decide(s.ctx, job.DocumentID, officerID, domain.DecisionApprove, "manual check passed")
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, decided.State)
	s.Equal(domain.DecisionApprove, decided.Decision)
	s.False(decided.Provisional, "officer resolution is final")
	s.Equal(domain.StandingAuthoritative, decided.LegalStanding)

	_, open, err := s.assignments.OpenByDocument(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.False(open, "assignment resolved")

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	last := log[len(log)-1]
	s.Equal(eventbus.TypeReviewCompleted, last.Type)
	s.Equal(domain.ActorOfficer, last.Actor.Type)
}

func (s *ReviewSuite) TestDecide_RejectsForeignOfficer() {
	owner := s.addOfficer(DefaultQueue)
	other := s.addOfficer(DefaultQueue)

	job := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)
	_, err = s.service.Start(s.ctx, job.DocumentID, owner)
	s.Require().NoError(err)

	_, err = s.service.Decide(s.ctx, job.DocumentID, other, domain.DecisionApprove, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ReviewSuite) TestLogCorrection() {
	officerID := s.addOfficer(DefaultQueue)
	other := s.addOfficer(DefaultQueue)
	job := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)
	_, err = s.service.Start(s.ctx, job.DocumentID, officerID)
	s.Require().NoError(err)

	err = s.service.LogCorrection(s.ctx, job.DocumentID, other, "name", "Jhon Doe", "John Doe")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.service.LogCorrection(s.ctx, job.DocumentID, officerID, "name", "Jhon Doe", "John Doe"))

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	last := log[len(log)-1]
	s.Equal(eventbus.TypeCorrectionLogged, last.Type)
	s.Equal("name", last.Payload["field_name"])
	s.Equal(officerID.String(), last.Payload["officer_id"])
}

func (s *ReviewSuite) TestDisputeReopensReview() {
	officerID := s.addOfficer(DefaultQueue)
	job := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)
	_, err = s.service.Start(s.ctx, job.DocumentID, officerID)
	s.Require().NoError(err)
	_, err = s.service.Decide(s.ctx, job.DocumentID, officerID, domain.DecisionReject, "inconsistent fields")
	s.Require().NoError(err)

	citizenID := id.NewCitizenID()
	disputed, err := s.service.Dispute(s.ctx, job.DocumentID, citizenID, "the rejection is wrong")
	s.Require().NoError(err)
	s.Equal(domain.StateDisputed, disputed.State)

	// The dispute re-enters review at elevated priority.
	assignment, open, err := s.assignments.OpenByDocument(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Require().True(open)
	s.Equal(disputePriority, assignment.Priority)

	restarted, err := s.service.Start(s.ctx, job.DocumentID, officerID)
	s.Require().NoError(err)
	s.Equal(domain.StateReviewInProgress, restarted.State)

	resolved, err := s.service.Decide(s.ctx, job.DocumentID, officerID, domain.DecisionApprove, "dispute upheld")
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, resolved.State)

	_, err = s.service.Dispute(s.ctx, job.DocumentID, citizenID, "again")
	s.Require().Error(err, "approved documents cannot be disputed")
}

func (s *ReviewSuite) TestEscalation() {
	job := s.flaggedJob()
	_, err := s.service.Enqueue(s.ctx, job.DocumentID, s.tenantID, DefaultQueue, 50)
	s.Require().NoError(err)

	// Inside the SLA nothing escalates.
	s.now = s.now.Add(48 * time.Hour)
	count, err := s.escalator.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	// Past review_sla_days the assignment moves to the senior queue.
	s.now = s.now.Add(26 * time.Hour)
	count, err = s.escalator.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	assignment, open, err := s.assignments.OpenByDocument(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Require().True(open)
	s.Equal("senior-review", assignment.QueueName)
	s.Equal(1, assignment.EscalationLevel)
	s.Equal(60, assignment.Priority)

	// The next sweep inside the escalation step is quiet.
	s.now = s.now.Add(12 * time.Hour)
	count, err = s.escalator.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	// escalation_step_days later it escalates again.
	s.now = s.now.Add(13 * time.Hour)
	count, err = s.escalator.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	log, err := s.bus.TenantLog(s.ctx, s.tenantID)
	s.Require().NoError(err)
	escalations := 0
	for _, event := range log {
		if event.Type == eventbus.TypeReviewEscalated {
			escalations++
		}
	}
	s.Equal(2, escalations)
}
