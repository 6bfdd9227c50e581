package pipeline

import (
	"context"
	"errors"
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

const cleanDocument = "Passport Name: John Doe Number: A1234567 Issuer: Government Registry stamp and signature present"

const tamperedDocument = "tampered photoshop edited forged clone recompressed"

type ExecutorSuite struct {
	suite.Suite
	ctx      context.Context
	jobs     *lifecycle.MemoryJobStore
	bus      *eventbus.Bus
	manager  *lifecycle.Manager
	results  *MemoryResultStore
	executor *Executor
	tenantID id.TenantID
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func (s *ExecutorSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.jobs = lifecycle.NewMemoryJobStore()
	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger)
	s.manager = lifecycle.NewManager(s.jobs, s.bus, logger)
	s.results = NewMemoryResultStore()
	policies := tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
	s.executor = NewExecutor(s.manager, s.jobs, policies, s.results, s.bus, logger,
		WithStageTimeout(time.Second))
	s.tenantID = id.NewTenantID()
}

func (s *ExecutorSuite) submit(text string) domain.DocumentJob {
	job, err := s.executor.Submit(s.ctx, domain.Submission{
		TenantID:  s.tenantID,
		CitizenID: id.NewCitizenID(),
		FileName:  "doc.png",
		RawText:   text,
	})
	s.Require().NoError(err)
	return job
}

func (s *ExecutorSuite) eventTypes(documentID id.DocumentID) []eventbus.Type {
	log, err := s.bus.DocumentLog(s.ctx, documentID)
	s.Require().NoError(err)
	types := make([]eventbus.Type, len(log))
	for i, event := range log {
		types[i] = event.Type
	}
	return types
}

func (s *ExecutorSuite) TestProcess_ApprovePath() {
	job := s.submit(cleanDocument)

	record, err := s.executor.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal("APPROVE", record.Decision)
	s.GreaterOrEqual(record.Confidence, 0.72)
	s.LessOrEqual(record.RiskScore, 0.35)
	s.Equal("PASSPORT", record.DocumentType)
	s.Equal("MATCHED", record.RegistryStatus)
	s.NotEmpty(record.Fields["name"])
	s.NotEmpty(record.Fields["document_number"])

	updated, err := s.executor.Status(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, updated.State)
	s.Equal(domain.DecisionApprove, updated.Decision)
	s.Equal(domain.StandingAuthoritative, updated.LegalStanding)

	types := s.eventTypes(job.DocumentID)
	s.Equal(eventbus.TypeDocumentReceived, types[0])
	s.Equal(eventbus.TypeDocumentPreprocessed, types[1])
	s.Equal(eventbus.TypeOCRCompleted, types[2])
	s.Equal(eventbus.TypeBranchStarted, types[3])
	s.Equal(eventbus.TypeDocumentMerged, types[len(types)-2])
	s.Equal(eventbus.TypeDocumentApproved, types[len(types)-1])

	branchSeen := map[eventbus.Type]bool{}
	for _, t := range types[4 : len(types)-2] {
		branchSeen[t] = true
	}
	for _, module := range eventbus.BranchModules {
		s.True(branchSeen[eventbus.BranchCompleted(module)], "missing branch completion for %s", module)
	}
}

func (s *ExecutorSuite) TestProcess_CausalChain() {
	job := s.submit(cleanDocument)
	_, err := s.executor.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)

	log, err := s.bus.DocumentLog(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	for i, event := range log {
		s.Equal(job.JobID, event.CorrelationID, "event %d correlation", i)
		if i > 0 {
			s.False(event.CausationID.IsZero(), "event %d causation", i)
		}
	}
}

func (s *ExecutorSuite) TestProcess_ReviewPath() {
	job := s.submit("Certificate Name: Jane Roe with an official stamp but nothing else of use")

	record, err := s.executor.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal("REVIEW", record.Decision)
	s.Contains(record.MissingFields, "issuer")

	updated, err := s.executor.Status(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateWaitingForReview, updated.State)
	s.Empty(updated.Decision)

	types := s.eventTypes(job.DocumentID)
	s.Equal(eventbus.TypeFlaggedForReview, types[len(types)-1])

	// A flagged document has no reportable result yet.
	_, err = s.executor.Result(s.ctx, job.DocumentID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotReady))
}

func (s *ExecutorSuite) TestProcess_HardReject() {
	first := s.submit(tamperedDocument)
	_, err := s.executor.Process(s.ctx, first.DocumentID)
	s.Require().NoError(err)

	// A second identical submission carries duplicate evidence on top of the
	// tamper signals, pushing risk past the hard-reject line.
	second := s.submit(tamperedDocument)
	record, err := s.executor.Process(s.ctx, second.DocumentID)
	s.Require().NoError(err)
	s.Equal("REJECT", record.Decision)
	s.GreaterOrEqual(record.RiskScore, 0.78)
	s.Equal(1, record.DuplicateCount)

	updated, err := s.executor.Status(s.ctx, second.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateRejected, updated.State)
}

func (s *ExecutorSuite) TestProcess_OptionalBranchFailure() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policies := tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
	broken := NewExecutor(s.manager, failingCounter{}, policies, s.results, s.bus, logger,
		WithStageTimeout(time.Second))

	// A dedup index outage is advisory evidence going missing, not a fault:
	// the branch is recorded as skipped and the job still decides.
	job := s.submit(cleanDocument)
	record, err := broken.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal("APPROVE", record.Decision)
	s.Zero(record.DuplicateCount)

	updated, err := s.executor.Status(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, updated.State)

	branches, err := s.results.ListBranches(s.ctx, job.DocumentID, job.JobID)
	s.Require().NoError(err)
	var sawSkip bool
	for _, b := range branches {
		if b.Module == "dedup_behavioral" {
			s.Equal(BranchSkipped, b.Status)
			s.NotEmpty(b.Error)
			sawSkip = true
		}
	}
	s.True(sawSkip)
}

func (s *ExecutorSuite) TestRunBranch_RequiredFailurePropagates() {
	job := s.submit(cleanDocument)
	r := &run{job: job}
	branchErr := errors.New("classifier model unavailable")

	err := s.executor.runBranch(s.ctx, r, "authenticity", func(context.Context) (map[string]any, error) {
		return nil, branchErr
	})
	s.Require().Error(err)
	s.ErrorIs(err, branchErr)

	err = s.executor.runBranch(s.ctx, r, "dedup_behavioral", func(context.Context) (map[string]any, error) {
		return nil, branchErr
	})
	s.Require().NoError(err)

	branches, err := s.results.ListBranches(s.ctx, job.DocumentID, job.JobID)
	s.Require().NoError(err)
	statuses := map[string]BranchStatus{}
	for _, b := range branches {
		statuses[b.Module] = b.Status
	}
	s.Equal(BranchFailed, statuses["authenticity"])
	s.Equal(BranchSkipped, statuses["dedup_behavioral"])
}

func (s *ExecutorSuite) TestProcess_StageFaultDrivesFailed() {
	job := s.submit(cleanDocument)

	canceled, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.executor.Process(canceled, job.DocumentID)
	s.Require().Error(err)

	updated, err := s.executor.Status(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal(domain.StateFailed, updated.State)

	types := s.eventTypes(job.DocumentID)
	s.Equal(eventbus.TypeDocumentFailed, types[len(types)-1])
}

func (s *ExecutorSuite) TestProcess_RejectsNonReceivedState() {
	job := s.submit(cleanDocument)
	_, err := s.executor.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)

	_, err = s.executor.Process(s.ctx, job.DocumentID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ExecutorSuite) TestResult_ApprovedDocument() {
	job := s.submit(cleanDocument)
	_, err := s.executor.Process(s.ctx, job.DocumentID)
	s.Require().NoError(err)

	record, err := s.executor.Result(s.ctx, job.DocumentID)
	s.Require().NoError(err)
	s.Equal("APPROVE", record.Decision)
	s.Equal(job.JobID, record.JobID)
}

type failingCounter struct{}

func (failingCounter) CountByDedupHash(context.Context, id.TenantID, string, id.DocumentID) (int, error) {
	return 0, errors.New("dedup index unavailable")
}

func (failingCounter) CountByDedupHashGlobal(context.Context, string, id.DocumentID) (int, error) {
	return 0, errors.New("dedup index unavailable")
}
