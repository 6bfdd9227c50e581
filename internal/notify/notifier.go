package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
)

// defaultChannels are the citizen-facing channels announced on a terminal
// decision. Actual delivery is an external concern.
var defaultChannels = []string{"email", "sms"}

// Notifier consumes terminal decision events and turns each into a citizen
// notification announcement plus a queued webhook for external integrators.
type Notifier struct {
	outbox  OutboxStore
	bus     *eventbus.Bus
	deduper *eventbus.Deduper
	logger  *slog.Logger
	clock   func() time.Time
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

func WithClock(clock func() time.Time) NotifierOption {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

func NewNotifier(outbox OutboxStore, bus *eventbus.Bus, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		outbox:  outbox,
		bus:     bus,
		deduper: eventbus.NewDeduper(),
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run consumes decision events until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	sub := n.bus.Subscribe(eventbus.TypeDocumentApproved, eventbus.TypeDocumentRejected)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.C:
			if !ok {
				return nil
			}
			n.deduper.Apply(event, func(e eventbus.Event) {
				n.Handle(ctx, e)
			})
		}
	}
}

// Handle fans one decision event out to the notification and webhook events.
// It is exported so replay tooling can feed events straight from the log.
func (n *Notifier) Handle(ctx context.Context, event eventbus.Event) {
	entry := OutboxEntry{
		OutboxID:   fmt.Sprintf("whk_%s", id.NewEventID()),
		DocumentID: event.DocumentID,
		TenantID:   event.TenantID,
		EventType:  string(event.Type),
		Payload:    event.Payload,
		Status:     OutboxPending,
		CreatedAt:  n.clock(),
	}
	if err := n.outbox.Enqueue(ctx, entry); err != nil {
		n.logger.ErrorContext(ctx, "webhook enqueue failed",
			"document_id", event.DocumentID.String(), "error", err)
		return
	}

	if _, err := n.bus.Publish(ctx, eventbus.Event{
		DocumentID:    event.DocumentID,
		TenantID:      event.TenantID,
		Type:          eventbus.TypeWebhookQueued,
		Actor:         domain.SystemActor(),
		CorrelationID: event.CorrelationID,
		CausationID:   event.EventID,
		Payload: map[string]any{
			"event_type": string(event.Type),
			"outbox_id":  entry.OutboxID,
		},
	}); err != nil {
		n.logger.WarnContext(ctx, "webhook event publish failed",
			"outbox_id", entry.OutboxID, "error", err)
	}

	if _, err := n.bus.Publish(ctx, eventbus.Event{
		DocumentID:    event.DocumentID,
		TenantID:      event.TenantID,
		Type:          eventbus.TypeNotificationSent,
		Actor:         domain.SystemActor(),
		CorrelationID: event.CorrelationID,
		CausationID:   event.EventID,
		Payload: map[string]any{
			"channels": defaultChannels,
			"message":  decisionMessage(event.Type),
		},
	}); err != nil {
		n.logger.WarnContext(ctx, "notification event publish failed",
			"document_id", event.DocumentID.String(), "error", err)
	}
}

func decisionMessage(t eventbus.Type) string {
	switch t {
	case eventbus.TypeDocumentApproved:
		return "Your document has been verified and approved."
	case eventbus.TypeDocumentRejected:
		return "Your document could not be verified. You may file a dispute."
	default:
		return "Your document verification status has changed."
	}
}
