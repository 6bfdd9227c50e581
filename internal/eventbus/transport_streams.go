package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamsConfig configures the Redis Streams transport. Group is a prefix;
// every subscription reads through its own consumer group so each one sees
// the full feed, matching the in-process fan-out.
type StreamsConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// StreamsTransport carries the live feed over a Redis Stream. XADD preserves
// arrival order, which is stronger than the per-document guarantee the bus
// promises; consumer groups give at-least-once delivery with explicit acks.
type StreamsTransport struct {
	client *redis.Client
	cfg    StreamsConfig
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	stops  []context.CancelFunc
}

func NewStreamsTransport(client *redis.Client, cfg StreamsConfig, logger *slog.Logger) *StreamsTransport {
	if cfg.Stream == "" {
		cfg.Stream = "veridoc:events"
	}
	if cfg.Group == "" {
		cfg.Group = "veridoc-bus"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "bus-1"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &StreamsTransport{client: client, cfg: cfg, logger: logger}
}

func (t *StreamsTransport) Forward(ctx context.Context, event Event) error {
	value, err := json.Marshal(wireEvent(event))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.cfg.Stream,
		Values: map[string]any{"event": value},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd event: %w", err)
	}
	return nil
}

func (t *StreamsTransport) Subscribe(filter Filter) *Subscription {
	out := make(chan Event, subscriberBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.stops = append(t.stops, cancel)
	t.mu.Unlock()

	// Subscriptions must not share a group: grouped consumers split the
	// stream between them, and a filtered subscriber would ack events
	// another subscriber is waiting for.
	group := t.cfg.Group + "-" + uuid.NewString()
	if err := t.ensureGroup(ctx, group); err != nil {
		t.logger.Warn("streams group create", "err", err)
	}

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: t.cfg.Consumer,
				Streams:  []string{t.cfg.Stream, ">"},
				Count:    64,
				Block:    t.cfg.Block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				t.logger.Warn("streams read", "err", err)
				continue
			}
			for _, stream := range streams {
				for _, message := range stream.Messages {
					t.deliver(ctx, group, message, filter, out)
				}
			}
		}
	}()

	return &Subscription{C: out, cancel: cancel}
}

func (t *StreamsTransport) deliver(ctx context.Context, group string, message redis.XMessage, filter Filter, out chan<- Event) {
	raw, ok := message.Values["event"].(string)
	if !ok {
		t.logger.Warn("streams message missing event field", "id", message.ID)
		return
	}
	event, err := decodeWireEvent([]byte(raw))
	if err != nil {
		t.logger.Warn("streams decode", "id", message.ID, "err", err)
		return
	}
	if filter.matches(event.Type) {
		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
	// Ack after handing off; a crash before this point re-delivers, which the
	// event-id-keyed consumers absorb.
	if err := t.client.XAck(ctx, t.cfg.Stream, group, message.ID).Err(); err != nil && ctx.Err() == nil {
		t.logger.Warn("streams ack", "id", message.ID, "err", err)
	}
}

func (t *StreamsTransport) ensureGroup(ctx context.Context, group string) error {
	err := t.client.XGroupCreateMkStream(ctx, t.cfg.Stream, group, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (t *StreamsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, stop := range t.stops {
		stop()
	}
	return nil
}
