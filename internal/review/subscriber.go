package review

import (
	"context"
	"log/slog"

	"veridoc/internal/eventbus"
)

// Subscriber feeds flagged documents into the review queue. Delivery from
// the bus is at-least-once, so enqueueing is deduplicated by event id and a
// duplicate flag for a document with an open assignment is a no-op.
type Subscriber struct {
	service *Service
	bus     *eventbus.Bus
	deduper *eventbus.Deduper
	logger  *slog.Logger
}

func NewSubscriber(service *Service, bus *eventbus.Bus, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		service: service,
		bus:     bus,
		deduper: eventbus.NewDeduper(),
		logger:  logger,
	}
}

// Run consumes flagged events until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.TypeFlaggedForReview)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.deduper.Apply(event, func(e eventbus.Event) {
				s.handle(ctx, e)
			})
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, event eventbus.Event) {
	priority := 50
	if risk, ok := event.Payload["risk_score"].(float64); ok {
		priority = PriorityFromRisk(risk)
	}

	if _, err := s.service.Enqueue(ctx, event.DocumentID, event.TenantID, DefaultQueue, priority); err != nil {
		// Redelivery of an already-queued document is expected.
		s.logger.DebugContext(ctx, "enqueue skipped",
			"document_id", event.DocumentID.String(), "error", err)
		return
	}

	if _, _, err := s.service.Assign(ctx, event.TenantID, DefaultQueue); err != nil {
		s.logger.WarnContext(ctx, "auto assign failed",
			"document_id", event.DocumentID.String(), "error", err)
	}
}
