package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	busmetrics "veridoc/internal/eventbus/metrics"
	id "veridoc/pkg/domain"
)

// Bus is the typed publish/subscribe fan-out over a durable append-only log.
// Publish validates against the event contract, appends to the store, then
// forwards to the live transport. A transport hiccup after a successful
// append is transient: the event is durable and consumers recover by
// replaying the document log.
type Bus struct {
	store     Store
	transport Transport
	logger    *slog.Logger
	metrics   *busmetrics.Metrics
	clock     func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock sets the timestamp source for testability.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithMetrics attaches bus metrics.
func WithMetrics(m *busmetrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

func New(store Store, transport Transport, logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		store:     store,
		transport: transport,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish validates, stamps, appends, and forwards one event. The returned
// event carries the assigned event id and timestamp so callers can chain
// causation ids.
func (b *Bus) Publish(ctx context.Context, event Event) (Event, error) {
	if err := Validate(event); err != nil {
		b.metrics.IncrementRejected()
		return Event{}, err
	}
	if event.EventID.IsZero() {
		event.EventID = id.NewEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock()
	}
	event.SchemaVersion = contractVersion(event.Type)

	if err := b.store.Append(ctx, event); err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	b.metrics.IncrementPublished(string(event.Type))

	if err := b.transport.Forward(ctx, event); err != nil {
		// Durable but not yet delivered; subscribers catch up from the log.
		b.logger.WarnContext(ctx, "event forward failed",
			"event_id", event.EventID.String(),
			"type", event.Type,
			"error", err,
		)
		return event, nil
	}
	b.metrics.IncrementForwarded()
	return event, nil
}

// Subscribe returns a live feed of events matching the filter.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	return b.transport.Subscribe(Filter{Types: types})
}

// DocumentLog returns the ordered event sequence for one document. This is
// the sole source of truth for audit reconstruction and crash recovery.
func (b *Bus) DocumentLog(ctx context.Context, documentID id.DocumentID) ([]Event, error) {
	return b.store.ListByDocument(ctx, documentID)
}

// TenantLog returns the tenant-wide ordered view.
func (b *Bus) TenantLog(ctx context.Context, tenantID id.TenantID) ([]Event, error) {
	return b.store.ListByTenant(ctx, tenantID)
}
