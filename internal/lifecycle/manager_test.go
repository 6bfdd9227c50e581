package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *MemoryJobStore
	bus     *eventbus.Bus
	manager *Manager
	now     time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = NewMemoryJobStore()
	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger,
		eventbus.WithClock(func() time.Time { return s.now }))
	s.manager = NewManager(s.store, s.bus, logger,
		WithManagerClock(func() time.Time { return s.now }))
}

func (s *ManagerSuite) submit() domain.DocumentJob {
	job, _, err := s.manager.Create(s.ctx, domain.Submission{
		TenantID:  id.NewTenantID(),
		CitizenID: id.NewCitizenID(),
		FileName:  "passport.png",
	})
	s.Require().NoError(err)
	return job
}

func (s *ManagerSuite) TestCreate() {
	s.Run("valid submission lands in RECEIVED with a received event", func() {
		job, event, err := s.manager.Create(s.ctx, domain.Submission{
			TenantID:  id.NewTenantID(),
			CitizenID: id.NewCitizenID(),
			FileName:  "permit.pdf",
		})
		s.Require().NoError(err)
		s.Equal(domain.StateReceived, job.State)
		s.False(job.DocumentID.IsZero())
		s.False(job.JobID.IsZero())

		s.Equal(eventbus.TypeDocumentReceived, event.Type)
		s.Equal(job.JobID, event.CorrelationID)
		s.False(event.EventID.IsZero())

		log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Require().Len(log, 1)
		s.Equal("permit.pdf", log[0].Payload["file_name"])
	})

	s.Run("missing file name is rejected", func() {
		_, _, err := s.manager.Create(s.ctx, domain.Submission{
			TenantID:  id.NewTenantID(),
			CitizenID: id.NewCitizenID(),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing tenant is rejected", func() {
		_, _, err := s.manager.Create(s.ctx, domain.Submission{
			CitizenID: id.NewCitizenID(),
			FileName:  "x.png",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ManagerSuite) TestApply() {
	s.Run("accepted transition persists state and emits one event", func() {
		job := s.submit()

		updated, event, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: job.DocumentID,
			Trigger:    eventbus.TypeDocumentPreprocessed,
			Actor:      domain.SystemActor(),
			Payload:    map[string]any{"quality_score": 0.91, "dedup_hash": "abc123"},
			Mutate: func(j *domain.DocumentJob) {
				j.DedupHash = "abc123"
			},
		})
		s.Require().NoError(err)
		s.Equal(domain.StatePreprocessing, updated.State)
		s.Equal("abc123", updated.DedupHash)
		s.Equal(eventbus.TypeDocumentPreprocessed, event.Type)
		s.Equal(job.JobID, event.CorrelationID)

		stored, err := s.store.Get(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Equal(domain.StatePreprocessing, stored.State)

		log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Len(log, 2)
	})

	s.Run("rejected transition mutates nothing and emits nothing", func() {
		job := s.submit()

		_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: job.DocumentID,
			Trigger:    eventbus.TypeDocumentApproved,
			Actor:      domain.SystemActor(),
			Payload:    map[string]any{"decision": "APPROVE"},
			Mutate: func(j *domain.DocumentJob) {
				j.Decision = domain.DecisionApprove
			},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

		stored, err := s.store.Get(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Equal(domain.StateReceived, stored.State)
		s.Empty(stored.Decision)

		log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Len(log, 1, "only the received event")
	})

	s.Run("causation id links the emitted event to its cause", func() {
		job := s.submit()
		received, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
		s.Require().NoError(err)

		_, event, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID:  job.DocumentID,
			Trigger:     eventbus.TypeDocumentPreprocessed,
			Actor:       domain.SystemActor(),
			Payload:     map[string]any{"quality_score": 0.8, "dedup_hash": "h"},
			CausationID: received[0].EventID,
		})
		s.Require().NoError(err)
		s.Equal(received[0].EventID, event.CausationID)
	})

	s.Run("unknown document is not found", func() {
		_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: id.NewDocumentID(),
			Trigger:    eventbus.TypeDocumentPreprocessed,
			Actor:      domain.SystemActor(),
			Payload:    map[string]any{"quality_score": 0.8, "dedup_hash": "h"},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ManagerSuite) TestApply_SerializesPerDocument() {
	job := s.submit()

	// Race the same transition from many goroutines. Exactly one must win;
	// the rest see an illegal transition from PREPROCESSING.
	const workers = 16
	var wg sync.WaitGroup
	accepted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
				DocumentID: job.DocumentID,
				Trigger:    eventbus.TypeDocumentPreprocessed,
				Actor:      domain.SystemActor(),
				Payload:    map[string]any{"quality_score": 0.9, "dedup_hash": "race"},
			})
			if err == nil {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	wins := 0
	for range accepted {
		wins++
	}
	s.Equal(1, wins)

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Len(log, 2, "received plus exactly one preprocessed")
}

func (s *ManagerSuite) TestExpiry() {
	job := s.submit()
	deadline := s.now.Add(24 * time.Hour)
	_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
		DocumentID: job.DocumentID,
		Trigger:    eventbus.TypeDocumentPreprocessed,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"quality_score": 0.9, "dedup_hash": "h"},
		Mutate: func(j *domain.DocumentJob) {
			j.ExpiresAt = &deadline
		},
	})
	s.Require().NoError(err)

	s.Run("before the deadline expiry is rejected", func() {
		_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: job.DocumentID,
			Trigger:    eventbus.TypeDocumentExpired,
			Actor:      domain.SystemActor(),
			Payload:    map[string]any{"expired_at": deadline},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("after the deadline the document expires", func() {
		s.now = deadline.Add(time.Minute)
		updated, _, err := s.manager.Apply(s.ctx, TransitionRequest{
			DocumentID: job.DocumentID,
			Trigger:    eventbus.TypeDocumentExpired,
			Actor:      domain.SystemActor(),
			Payload:    map[string]any{"expired_at": deadline},
		})
		s.Require().NoError(err)
		s.Equal(domain.StateExpired, updated.State)
	})
}

func (s *ManagerSuite) TestReprocess() {
	job := s.submit()
	_, _, err := s.manager.Apply(s.ctx, TransitionRequest{
		DocumentID: job.DocumentID,
		Trigger:    eventbus.TypeDocumentFailed,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"error": "ocr backend unavailable"},
	})
	s.Require().NoError(err)

	fresh, err := s.manager.Reprocess(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateReceived, fresh.State)
	s.Equal(job.DocumentID, fresh.DocumentID)
	s.NotEqual(job.JobID, fresh.JobID, "a new attempt gets a new correlation root")
	s.Empty(fresh.Decision)

	// The reset is audited: a re-ingestion event anchors the new attempt's
	// correlation chain.
	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Require().Len(log, 3, "received, failed, re-received")
	last := log[len(log)-1]
	s.Equal(eventbus.TypeDocumentReceived, last.Type)
	s.Equal("reprocess", last.Reason)
	s.Equal(fresh.JobID, last.CorrelationID)
	s.Equal(domain.ActorSystem, last.Actor.Type)
	s.Equal("passport.png", last.Payload["file_name"])
}

func (s *ManagerSuite) TestSetSyncStatus() {
	job := s.submit()

	s.Run("synced promotes a provisional decision to authoritative", func() {
		stored, err := s.store.Get(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		stored.Provisional = true
		stored.Decision = domain.DecisionApprove
		stored.LegalStanding = domain.StandingProvisional
		s.Require().NoError(s.store.Update(s.ctx, stored))

		s.Require().NoError(s.manager.SetSyncStatus(s.ctx, job.DocumentID, domain.SyncSynced))

		updated, err := s.store.Get(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Equal(domain.SyncSynced, updated.SyncStatus)
		s.False(updated.Provisional)
		s.Equal(domain.StandingAuthoritative, updated.LegalStanding)
		decision, reportable := updated.ReportableDecision()
		s.True(reportable)
		s.Equal(domain.DecisionApprove, decision)
	})

	s.Run("conflict demotes the decision back to provisional", func() {
		s.Require().NoError(s.manager.SetSyncStatus(s.ctx, job.DocumentID, domain.SyncConflict))

		updated, err := s.store.Get(s.ctx, job.DocumentID)
		s.Require().NoError(err)
		s.Equal(domain.SyncConflict, updated.SyncStatus)
		s.True(updated.Provisional)
		s.Equal(domain.StandingProvisional, updated.LegalStanding)
		_, reportable := updated.ReportableDecision()
		s.False(reportable, "conflicted result withheld from reporting")
	})
}
