package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// TransitionRequest drives one state transition. Mutate, when set, updates
// executor-owned fields (decision, scores, dedup hash) under the same
// per-document lock that guards the state change, after the transition has
// been accepted.
type TransitionRequest struct {
	DocumentID id.DocumentID
	Trigger    eventbus.Type
	Actor      domain.Actor
	Decision   domain.Decision

	Payload map[string]any
	Reason  string

	PolicyVersion int
	ModelVersions map[string]string

	CorrelationID id.JobID
	CausationID   id.EventID

	Mutate func(*domain.DocumentJob)
}

// Manager is the single writer for document jobs. Transitions for a given
// document are serialized by a per-document mutex; different documents
// proceed concurrently. Every accepted transition persists the job and
// publishes exactly one event; a rejected transition mutates nothing and
// publishes nothing.
type Manager struct {
	store  JobStore
	bus    *eventbus.Bus
	logger *slog.Logger
	clock  func() time.Time

	mu    sync.Mutex
	locks map[id.DocumentID]*sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock sets the timestamp source for testability.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewManager(store JobStore, bus *eventbus.Bus, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		bus:    bus,
		logger: logger,
		clock:  time.Now,
		locks:  make(map[id.DocumentID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lockFor(documentID id.DocumentID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[documentID] = lock
	}
	return lock
}

// Create registers a new submission in RECEIVED and publishes
// document.received. The returned event anchors the causal chain for the
// whole job execution.
func (m *Manager) Create(ctx context.Context, sub domain.Submission) (domain.DocumentJob, eventbus.Event, error) {
	if sub.TenantID.IsZero() {
		return domain.DocumentJob{}, eventbus.Event{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if sub.CitizenID.IsZero() {
		return domain.DocumentJob{}, eventbus.Event{}, dErrors.New(dErrors.CodeBadRequest, "citizen id is required")
	}
	if sub.FileName == "" {
		return domain.DocumentJob{}, eventbus.Event{}, dErrors.New(dErrors.CodeBadRequest, "file name is required")
	}

	now := m.clock()
	job := domain.DocumentJob{
		DocumentID:  id.NewDocumentID(),
		JobID:       id.NewJobID(),
		TenantID:    sub.TenantID,
		CitizenID:   sub.CitizenID,
		State:       domain.StateReceived,
		FileName:    sub.FileName,
		RawText:     sub.RawText,
		Provisional: sub.Provisional,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	payload := map[string]any{"file_name": sub.FileName}
	if sub.Channel != "" {
		payload["channel"] = sub.Channel
	}
	event, err := m.bus.Publish(ctx, eventbus.Event{
		DocumentID:    job.DocumentID,
		TenantID:      job.TenantID,
		Type:          eventbus.TypeDocumentReceived,
		Actor:         domain.CitizenActor(sub.CitizenID),
		Payload:       payload,
		CorrelationID: job.JobID,
	})
	if err != nil {
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	m.logger.InfoContext(ctx, "document received",
		"document_id", job.DocumentID.String(),
		"tenant_id", job.TenantID.String(),
		"job_id", job.JobID.String(),
	)
	return job, event, nil
}

// Apply executes one transition under the document's lock. On acceptance it
// runs the Mutate hook, persists the job, and publishes the trigger event.
// Illegal transitions leave the job untouched and return a coded error.
func (m *Manager) Apply(ctx context.Context, req TransitionRequest) (domain.DocumentJob, eventbus.Event, error) {
	lock := m.lockFor(req.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.Get(ctx, req.DocumentID)
	if err != nil {
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	guard := Guard{
		Actor:    req.Actor,
		Decision: req.Decision,
		Expired:  m.isExpired(job),
	}
	next, err := Next(job.State, req.Trigger, guard)
	if err != nil {
		m.logger.WarnContext(ctx, "transition rejected",
			"document_id", job.DocumentID.String(),
			"state", job.State,
			"trigger", req.Trigger,
			"error", err,
		)
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	previous := job.State
	if req.Mutate != nil {
		req.Mutate(&job)
	}
	// The hook cannot override the transition result.
	job.State = next
	job.UpdatedAt = m.clock()

	if err := m.store.Update(ctx, job); err != nil {
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	correlation := req.CorrelationID
	if correlation.IsZero() {
		correlation = job.JobID
	}
	event, err := m.bus.Publish(ctx, eventbus.Event{
		DocumentID:    job.DocumentID,
		TenantID:      job.TenantID,
		Type:          req.Trigger,
		Actor:         req.Actor,
		Payload:       req.Payload,
		Reason:        req.Reason,
		PolicyVersion: req.PolicyVersion,
		ModelVersions: req.ModelVersions,
		CorrelationID: correlation,
		CausationID:   req.CausationID,
	})
	if err != nil {
		return domain.DocumentJob{}, eventbus.Event{}, err
	}

	m.logger.InfoContext(ctx, "state transition",
		"document_id", job.DocumentID.String(),
		"from", previous,
		"to", job.State,
		"trigger", req.Trigger,
	)
	return job, event, nil
}

// Get returns the current job snapshot.
func (m *Manager) Get(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error) {
	return m.store.Get(ctx, documentID)
}

// ListByTenant returns all jobs for a tenant ordered by creation time.
func (m *Manager) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]domain.DocumentJob, error) {
	return m.store.ListByTenant(ctx, tenantID)
}

// Tenants returns every tenant with at least one job.
func (m *Manager) Tenants(ctx context.Context) ([]id.TenantID, error) {
	return m.store.Tenants(ctx)
}

// Reprocess allocates a fresh execution attempt for an existing document.
// The document id stays stable so its event log keeps accumulating; the new
// job id separates correlation chains between attempts. The reset is itself a
// state change, so a re-ingestion event is published under the same lock.
func (m *Manager) Reprocess(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error) {
	lock := m.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.Get(ctx, documentID)
	if err != nil {
		return domain.DocumentJob{}, err
	}
	if job.State.Terminal() {
		return domain.DocumentJob{}, dErrors.Newf(dErrors.CodeIllegalTransition,
			"document %s is archived and cannot be reprocessed", documentID)
	}
	job.JobID = id.NewJobID()
	job.State = domain.StateReceived
	job.Decision = ""
	job.Confidence = 0
	job.RiskScore = 0
	job.LegalStanding = ""
	job.UpdatedAt = m.clock()
	if err := m.store.Update(ctx, job); err != nil {
		return domain.DocumentJob{}, err
	}

	if _, err := m.bus.Publish(ctx, eventbus.Event{
		DocumentID:    job.DocumentID,
		TenantID:      job.TenantID,
		Type:          eventbus.TypeDocumentReceived,
		Actor:         domain.SystemActor(),
		Payload:       map[string]any{"file_name": job.FileName},
		Reason:        "reprocess",
		CorrelationID: job.JobID,
	}); err != nil {
		return domain.DocumentJob{}, err
	}

	m.logger.InfoContext(ctx, "document reprocess",
		"document_id", job.DocumentID.String(),
		"job_id", job.JobID.String(),
	)
	return job, nil
}

// SetSyncStatus stamps reconciliation progress on a job under its lock. Sync
// status is bookkeeping, not a lifecycle transition; no event is published.
// A SYNCED outcome promotes a provisional result to authoritative standing;
// CONFLICT keeps it withheld until an officer resolves the divergence.
func (m *Manager) SetSyncStatus(ctx context.Context, documentID id.DocumentID, status domain.SyncStatus) error {
	lock := m.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.Get(ctx, documentID)
	if err != nil {
		return err
	}
	job.SyncStatus = status
	switch status {
	case domain.SyncSynced:
		job.Provisional = false
		if job.Decision != "" {
			job.LegalStanding = domain.StandingAuthoritative
		}
	case domain.SyncConflict:
		job.Provisional = true
		job.LegalStanding = domain.StandingProvisional
	}
	job.UpdatedAt = m.clock()
	return m.store.Update(ctx, job)
}

func (m *Manager) isExpired(job domain.DocumentJob) bool {
	return job.ExpiresAt != nil && !job.ExpiresAt.After(m.clock())
}
