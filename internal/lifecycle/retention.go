package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
)

// RetentionPolicyResolver supplies the tenant policy for retention windows.
type RetentionPolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
}

// RetentionOutcome summarizes one retention sweep for a tenant.
type RetentionOutcome struct {
	Expired  int
	Archived int
}

// Retention expires documents past their validity deadline and archives
// decided documents past the tenant's retention window. Both moves are
// ordinary guarded transitions through the manager, so each emits its event
// and an archived document becomes immutable.
type Retention struct {
	manager  *Manager
	policies RetentionPolicyResolver
	logger   *slog.Logger
	clock    func() time.Time
}

// RetentionOption configures a Retention sweeper.
type RetentionOption func(*Retention)

func WithRetentionClock(clock func() time.Time) RetentionOption {
	return func(r *Retention) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRetention(manager *Manager, policies RetentionPolicyResolver, logger *slog.Logger, opts ...RetentionOption) *Retention {
	r := &Retention{
		manager:  manager,
		policies: policies,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// archivable states hold a final outcome and age out of the active store.
var archivable = map[domain.DocumentState]bool{
	domain.StateApproved: true,
	domain.StateRejected: true,
	domain.StateExpired:  true,
	domain.StateFailed:   true,
}

// SweepAll sweeps every tenant with jobs. A failing tenant is logged and
// skipped.
func (r *Retention) SweepAll(ctx context.Context) error {
	tenants, err := r.manager.Tenants(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		if _, err := r.Sweep(ctx, tenantID); err != nil {
			r.logger.WarnContext(ctx, "tenant retention sweep failed",
				"tenant_id", tenantID.String(), "error", err)
		}
	}
	return nil
}

// Sweep walks one tenant's jobs, expiring and archiving what the policy says
// is due. Individual rejections are logged and skipped so one contested
// document cannot stall the sweep.
func (r *Retention) Sweep(ctx context.Context, tenantID id.TenantID) (RetentionOutcome, error) {
	policy, err := r.policies.Resolve(ctx, tenantID)
	if err != nil {
		return RetentionOutcome{}, err
	}
	jobs, err := r.manager.ListByTenant(ctx, tenantID)
	if err != nil {
		return RetentionOutcome{}, err
	}

	now := r.clock()
	retainUntil := time.Duration(policy.DataRetentionDays) * 24 * time.Hour
	var outcome RetentionOutcome
	for _, job := range jobs {
		switch {
		case job.ExpiresAt != nil && !job.ExpiresAt.After(now) &&
			containsState(transitionSources[eventbus.TypeDocumentExpired], job.State):
			if _, _, err := r.manager.Apply(ctx, TransitionRequest{
				DocumentID: job.DocumentID,
				Trigger:    eventbus.TypeDocumentExpired,
				Actor:      domain.SystemActor(),
				Payload:    map[string]any{"expired_at": job.ExpiresAt.Format(time.RFC3339)},
			}); err != nil {
				r.logger.WarnContext(ctx, "expiry transition rejected",
					"document_id", job.DocumentID.String(), "error", err)
				continue
			}
			outcome.Expired++

		case archivable[job.State] && now.Sub(job.UpdatedAt) >= retainUntil:
			if _, _, err := r.manager.Apply(ctx, TransitionRequest{
				DocumentID: job.DocumentID,
				Trigger:    eventbus.TypeDocumentArchived,
				Actor:      domain.SystemActor(),
				Payload:    map[string]any{"archive_reason": "retention_window_elapsed"},
			}); err != nil {
				r.logger.WarnContext(ctx, "archive transition rejected",
					"document_id", job.DocumentID.String(), "error", err)
				continue
			}
			outcome.Archived++
		}
	}

	if outcome.Expired > 0 || outcome.Archived > 0 {
		r.logger.InfoContext(ctx, "retention sweep complete",
			"tenant_id", tenantID.String(),
			"expired", outcome.Expired,
			"archived", outcome.Archived,
		)
	}
	return outcome, nil
}
