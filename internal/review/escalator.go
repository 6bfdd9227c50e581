package review

import (
	"context"
	"log/slog"
	"time"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	reviewmetrics "veridoc/internal/review/metrics"
	id "veridoc/pkg/domain"
)

// Escalator enforces the review SLA: documents unclaimed or unresolved past
// the tenant's review_sla_days move to the senior queue at elevated priority;
// escalation_step_days controls how often an already escalated assignment is
// escalated again.
type Escalator struct {
	assignments AssignmentStore
	policies    PolicyResolver
	bus         *eventbus.Bus
	logger      *slog.Logger

	metrics  *reviewmetrics.Metrics
	interval time.Duration
	clock    func() time.Time
}

// EscalatorOption configures an Escalator.
type EscalatorOption func(*Escalator)

func WithEscalatorInterval(d time.Duration) EscalatorOption {
	return func(e *Escalator) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithEscalatorClock(clock func() time.Time) EscalatorOption {
	return func(e *Escalator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithEscalatorMetrics(m *reviewmetrics.Metrics) EscalatorOption {
	return func(e *Escalator) { e.metrics = m }
}

func NewEscalator(assignments AssignmentStore, policies PolicyResolver, bus *eventbus.Bus, logger *slog.Logger, opts ...EscalatorOption) *Escalator {
	e := &Escalator{
		assignments: assignments,
		policies:    policies,
		bus:         bus,
		logger:      logger,
		interval:    time.Hour,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run sweeps on the configured interval until the context is cancelled.
func (e *Escalator) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.logger.ErrorContext(ctx, "escalation sweep failed", "error", err)
			}
		}
	}
}

// Sweep escalates every overdue assignment once and returns how many were
// escalated.
func (e *Escalator) Sweep(ctx context.Context) (int, error) {
	now := e.clock()
	candidates, err := e.assignments.ListUnresolvedOlderThan(ctx, now)
	if err != nil {
		return 0, err
	}

	policies := make(map[id.TenantID]domain.TenantPolicy)
	escalated := 0
	for _, assignment := range candidates {
		policy, ok := policies[assignment.TenantID]
		if !ok {
			policy, err = e.policies.Resolve(ctx, assignment.TenantID)
			if err != nil {
				e.logger.WarnContext(ctx, "policy resolve failed during escalation",
					"tenant_id", assignment.TenantID.String(), "error", err)
				continue
			}
			policies[assignment.TenantID] = policy
		}
		if !e.overdue(assignment, policy, now) {
			continue
		}
		if err := e.escalate(ctx, assignment, policy); err != nil {
			e.logger.WarnContext(ctx, "escalation failed",
				"assignment_id", assignment.AssignmentID.String(), "error", err)
			continue
		}
		escalated++
	}
	return escalated, nil
}

// overdue applies the SLA cadence: the first escalation fires review_sla_days
// after creation, each subsequent one escalation_step_days later.
func (e *Escalator) overdue(assignment domain.ReviewAssignment, policy domain.TenantPolicy, now time.Time) bool {
	deadline := assignment.CreatedAt.
		Add(time.Duration(policy.ReviewSLADays) * 24 * time.Hour).
		Add(time.Duration(assignment.EscalationLevel) * time.Duration(policy.EscalationStepDays) * 24 * time.Hour)
	return now.After(deadline)
}

func (e *Escalator) escalate(ctx context.Context, assignment domain.ReviewAssignment, policy domain.TenantPolicy) error {
	assignment.EscalationLevel++
	assignment.QueueName = policy.SeniorQueue
	if assignment.Priority < 90 {
		assignment.Priority += 10
	}
	if assignment.Status == domain.AssignmentAssigned {
		// Back into the pool so a senior officer can pick it up.
		assignment.Status = domain.AssignmentWaiting
		assignment.AssignedOfficer = id.OfficerID{}
		assignment.ClaimedAt = nil
	}
	if err := e.assignments.Update(ctx, assignment); err != nil {
		return err
	}
	e.metrics.IncrementEscalated()

	_, err := e.bus.Publish(ctx, eventbus.Event{
		DocumentID: assignment.DocumentID,
		TenantID:   assignment.TenantID,
		Type:       eventbus.TypeReviewEscalated,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"escalation_level": assignment.EscalationLevel,
			"queue_name":       assignment.QueueName,
		},
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "assignment escalated",
		"assignment_id", assignment.AssignmentID.String(),
		"document_id", assignment.DocumentID.String(),
		"level", assignment.EscalationLevel,
		"queue", assignment.QueueName,
	)
	return nil
}
