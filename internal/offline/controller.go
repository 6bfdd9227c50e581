package offline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	offlinemetrics "veridoc/internal/offline/metrics"
	"veridoc/internal/pipeline"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// Resubmitter replays an offline capture through the central pipeline.
type Resubmitter interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.DocumentJob, error)
	Process(ctx context.Context, documentID id.DocumentID) (pipeline.Record, error)
}

// PolicyResolver supplies the tenant policy for backlog and capacity limits.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
}

// Controller reconciles provisional field-unit captures against the central
// pipeline. The central re-computation always supersedes the provisional
// result; a diverging provisional result becomes a CONFLICT and is never
// reported as final.
type Controller struct {
	records  RecordStore
	executor Resubmitter
	manager  *lifecycle.Manager
	policies PolicyResolver
	bus      *eventbus.Bus
	logger   *slog.Logger

	metrics *offlinemetrics.Metrics
	clock   func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

func WithMetrics(m *offlinemetrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewController(
	records RecordStore,
	executor Resubmitter,
	manager *lifecycle.Manager,
	policies PolicyResolver,
	bus *eventbus.Bus,
	logger *slog.Logger,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		records:  records,
		executor: executor,
		manager:  manager,
		policies: policies,
		bus:      bus,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest accepts a provisional capture into the reconciliation queue. A
// backlog at the tenant's limit rejects the record outright; the field unit
// must retry after a sync window drains the queue.
func (c *Controller) Ingest(ctx context.Context, record domain.OfflineRecord) (domain.OfflineRecord, error) {
	if record.TenantID.IsZero() {
		return domain.OfflineRecord{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if record.CitizenID.IsZero() {
		return domain.OfflineRecord{}, dErrors.New(dErrors.CodeBadRequest, "citizen id is required")
	}
	if record.FileName == "" {
		return domain.OfflineRecord{}, dErrors.New(dErrors.CodeBadRequest, "file name is required")
	}

	policy, err := c.policies.Resolve(ctx, record.TenantID)
	if err != nil {
		return domain.OfflineRecord{}, err
	}
	backlog, err := c.records.CountBacklog(ctx, record.TenantID)
	if err != nil {
		return domain.OfflineRecord{}, err
	}
	if backlog >= policy.OfflineBacklogLimit {
		return domain.OfflineRecord{}, dErrors.Newf(dErrors.CodeCapacityExceeded,
			"offline backlog for tenant %s is at its limit of %d", record.TenantID, policy.OfflineBacklogLimit)
	}

	if record.RecordID == "" {
		record.RecordID = fmt.Sprintf("off_%s", id.NewEventID())
	}
	record.SyncStatus = domain.SyncPending
	if record.CapturedAt.IsZero() {
		record.CapturedAt = c.clock()
	}
	if err := c.records.Create(ctx, record); err != nil {
		return domain.OfflineRecord{}, err
	}
	c.metrics.IncrementIngested()
	c.metrics.SetBacklog(record.TenantID.String(), backlog+1)

	c.logger.InfoContext(ctx, "offline record ingested",
		"record_id", record.RecordID,
		"tenant_id", record.TenantID.String(),
	)
	return record, nil
}

// SyncBatch reconciles one window of a tenant's backlog. Capacity is enforced
// with a token bucket sized to capacityPerMinute; records beyond the window
// are marked QUEUE_OVERFLOW with an event each and stay queued for the next
// window.
func (c *Controller) SyncBatch(ctx context.Context, tenantID id.TenantID, officerID id.OfficerID, capacityPerMinute int) (domain.SyncOutcome, error) {
	policy, err := c.policies.Resolve(ctx, tenantID)
	if err != nil {
		return domain.SyncOutcome{}, err
	}
	if capacityPerMinute <= 0 {
		capacityPerMinute = policy.SyncCapacityPerMinute
	}
	if capacityPerMinute <= 0 {
		return domain.SyncOutcome{}, dErrors.New(dErrors.CodeBadRequest, "sync capacity must be positive")
	}

	backlog, err := c.records.ListBacklog(ctx, tenantID)
	if err != nil {
		return domain.SyncOutcome{}, err
	}

	limiter := rate.NewLimiter(rate.Limit(float64(capacityPerMinute)/60.0), capacityPerMinute)
	outcome := domain.SyncOutcome{Pending: len(backlog)}
	for _, record := range backlog {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		if !limiter.Allow() {
			if err := c.overflow(ctx, record, len(backlog), capacityPerMinute); err != nil {
				c.logger.WarnContext(ctx, "overflow marking failed",
					"record_id", record.RecordID, "error", err)
				outcome.Failed++
				continue
			}
			outcome.Overflowed++
			continue
		}
		switch status, err := c.syncOne(ctx, record, officerID); {
		case err != nil:
			c.logger.WarnContext(ctx, "offline sync failed",
				"record_id", record.RecordID, "error", err)
			outcome.Failed++
		case status == domain.SyncConflict:
			outcome.Conflicted++
		default:
			outcome.Synced++
		}
	}

	remaining, err := c.records.CountBacklog(ctx, tenantID)
	if err == nil {
		c.metrics.SetBacklog(tenantID.String(), remaining)
	}
	c.logger.InfoContext(ctx, "sync window complete",
		"tenant_id", tenantID.String(),
		"pending", outcome.Pending,
		"synced", outcome.Synced,
		"conflicted", outcome.Conflicted,
		"overflowed", outcome.Overflowed,
		"failed", outcome.Failed,
	)
	return outcome, nil
}

// syncOne replays a single capture through the central pipeline and compares
// outcomes. Material divergence is a conflict: the central decision stands,
// the provisional fields stay on the record for the audit trail.
func (c *Controller) syncOne(ctx context.Context, record domain.OfflineRecord, officerID id.OfficerID) (domain.SyncStatus, error) {
	if record.DocumentID.IsZero() {
		job, err := c.executor.Submit(ctx, domain.Submission{
			TenantID:    record.TenantID,
			CitizenID:   record.CitizenID,
			FileName:    record.FileName,
			RawText:     record.RawText,
			Channel:     "offline",
			Provisional: true,
		})
		if err != nil {
			return record.SyncStatus, err
		}
		record.DocumentID = job.DocumentID
		if err := c.records.Update(ctx, record); err != nil {
			return record.SyncStatus, err
		}
	} else {
		// A prior attempt left a job behind; start a fresh execution.
		job, err := c.manager.Get(ctx, record.DocumentID)
		if err != nil {
			return record.SyncStatus, err
		}
		if job.State != domain.StateReceived {
			if _, err := c.manager.Reprocess(ctx, record.DocumentID); err != nil {
				return record.SyncStatus, err
			}
		}
	}

	central, err := c.executor.Process(ctx, record.DocumentID)
	if err != nil {
		return record.SyncStatus, err
	}

	now := c.clock()
	if diverged := c.divergence(record, central); len(diverged) > 0 {
		record.SyncStatus = domain.SyncConflict
		if err := c.records.Update(ctx, record); err != nil {
			return record.SyncStatus, err
		}
		if err := c.manager.SetSyncStatus(ctx, record.DocumentID, domain.SyncConflict); err != nil {
			return record.SyncStatus, err
		}
		c.metrics.IncrementConflicts()

		actor := domain.SystemActor()
		if !officerID.IsZero() {
			actor = domain.OfficerActor(officerID)
		}
		if _, err := c.bus.Publish(ctx, eventbus.Event{
			DocumentID: record.DocumentID,
			TenantID:   record.TenantID,
			Type:       eventbus.TypeOfflineConflict,
			Actor:      actor,
			Payload: map[string]any{
				"record_id":         record.RecordID,
				"local_provisional": string(record.ProvisionalDecision),
				"central_decision":  central.Decision,
				"diverged":          diverged,
			},
		}); err != nil {
			c.logger.WarnContext(ctx, "conflict event publish failed",
				"record_id", record.RecordID, "error", err)
		}
		return domain.SyncConflict, nil
	}

	record.SyncStatus = domain.SyncSynced
	record.SyncedAt = &now
	if err := c.records.Update(ctx, record); err != nil {
		return record.SyncStatus, err
	}
	if err := c.manager.SetSyncStatus(ctx, record.DocumentID, domain.SyncSynced); err != nil {
		return record.SyncStatus, err
	}
	c.metrics.IncrementSynced()
	return domain.SyncSynced, nil
}

// divergence lists what materially differs between the provisional capture
// and the central record: the decision, or any extracted field both sides
// produced a value for.
func (c *Controller) divergence(record domain.OfflineRecord, central pipeline.Record) []string {
	var diverged []string
	if record.ProvisionalDecision != "" && string(record.ProvisionalDecision) != central.Decision {
		diverged = append(diverged, "decision")
	}
	for field, local := range record.ProvisionalFields {
		centralValue, ok := central.Fields[field]
		if ok && centralValue != "" && local != "" && centralValue != local {
			diverged = append(diverged, "field:"+field)
		}
	}
	return diverged
}

func (c *Controller) overflow(ctx context.Context, record domain.OfflineRecord, backlogSize, capacityPerMinute int) error {
	record.SyncStatus = domain.SyncQueueOverflow
	if err := c.records.Update(ctx, record); err != nil {
		return err
	}
	c.metrics.IncrementOverflows()

	_, err := c.bus.Publish(ctx, eventbus.Event{
		DocumentID: record.DocumentID,
		TenantID:   record.TenantID,
		Type:       eventbus.TypeOfflineOverflow,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"record_id":                record.RecordID,
			"backlog_size":             backlogSize,
			"sync_capacity_per_minute": capacityPerMinute,
		},
	})
	return err
}
