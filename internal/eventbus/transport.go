package eventbus

import "context"

// Transport moves published events to live subscribers. The durable log is
// owned by the Store; a transport only carries the live feed, so swapping the
// in-process channel for Kafka or Redis Streams changes no contract. Delivery
// is at-least-once on every backend; ordering is preserved within a document
// and not guaranteed across documents.
type Transport interface {
	Forward(ctx context.Context, event Event) error
	Subscribe(filter Filter) *Subscription
	Close() error
}

// Subscription is a live, cancelable event feed. Consumers must be
// idempotent keyed by event id; a restart replays from the durable log via
// Bus.DocumentLog, not from the transport.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}
