package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/tenant"
	id "veridoc/pkg/domain"
)

type RetentionSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	bus       *eventbus.Bus
	manager   *Manager
	retention *Retention
	tenantID  id.TenantID
}

func TestRetentionSuite(t *testing.T) {
	suite.Run(t, new(RetentionSuite))
}

func (s *RetentionSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger,
		eventbus.WithClock(clock))
	s.manager = NewManager(NewMemoryJobStore(), s.bus, logger, WithManagerClock(clock))
	policies := tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
	s.retention = NewRetention(s.manager, policies, logger, WithRetentionClock(clock))
	s.tenantID = id.NewTenantID()
}

func (s *RetentionSuite) submit() domain.DocumentJob {
	job, _, err := s.manager.Create(s.ctx, domain.Submission{
		TenantID:  s.tenantID,
		CitizenID: id.NewCitizenID(),
		FileName:  "certificate.pdf",
	})
	s.Require().NoError(err)
	return job
}

func (s *RetentionSuite) reject(documentID id.DocumentID) {
	steps := []struct {
		trigger eventbus.Type
		payload map[string]any
	}{
		{eventbus.TypeDocumentPreprocessed, map[string]any{"quality_score": 0.5, "dedup_hash": "h"}},
		{eventbus.TypeOCRCompleted, map[string]any{"ocr_confidence": 0.6}},
		{eventbus.TypeBranchStarted, map[string]any{"modules": eventbus.BranchModules}},
		{eventbus.TypeDocumentMerged, map[string]any{"confidence": 0.3, "risk_score": 0.9}},
		{eventbus.TypeDocumentRejected, map[string]any{"decision": "REJECT", "reason_codes": []string{"HARD_REJECT"}}},
	}
	for _, step := range steps {
		_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: documentID,
			Trigger:    step.trigger,
			Actor:      domain.SystemActor(),
			Payload:    step.payload,
		})
		s.Require().NoError(err)
	}
}

func (s *RetentionSuite) TestSweep_ExpiresOverdueDocuments() {
	job := s.submit()
	deadline := s.now.Add(24 * time.Hour)
	_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
		DocumentID: job.DocumentID,
		Trigger:    eventbus.TypeDocumentPreprocessed,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"quality_score": 0.5, "dedup_hash": "h"},
		Mutate:     func(j *domain.DocumentJob) { j.ExpiresAt = &deadline },
	})
	s.Require().NoError(err)

	// Not yet due.
	outcome, err := s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Zero(outcome.Expired)

	s.now = s.now.Add(25 * time.Hour)
	outcome, err = s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(1, outcome.Expired)

	expired, err := s.manager.Get(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateExpired, expired.State)

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(eventbus.TypeDocumentExpired, log[len(log)-1].Type)
}

func (s *RetentionSuite) TestSweep_ArchivesPastRetentionWindow() {
	job := s.submit()
	s.reject(job.DocumentID)

	// Inside the retention window nothing is archived.
	s.now = s.now.Add(300 * 24 * time.Hour)
	outcome, err := s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Zero(outcome.Archived)

	s.now = s.now.Add(66 * 24 * time.Hour)
	outcome, err = s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Equal(1, outcome.Archived)

	archived, err := s.manager.Get(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateArchived, archived.State)

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	last := log[len(log)-1]
	s.Equal(eventbus.TypeDocumentArchived, last.Type)
	s.Equal("retention_window_elapsed", last.Payload["archive_reason"])

	// Archived documents are immutable; a second sweep changes nothing.
	outcome, err = s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Zero(outcome.Archived)
}

func (s *RetentionSuite) TestSweep_LeavesActiveDocumentsAlone() {
	s.submit()
	s.now = s.now.Add(400 * 24 * time.Hour)

	outcome, err := s.retention.Sweep(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Zero(outcome.Expired)
	s.Zero(outcome.Archived)
}
