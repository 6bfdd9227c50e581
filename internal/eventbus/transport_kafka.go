package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig configures the Kafka-backed transport. ConsumerGroup is a
// prefix; every subscription joins its own group so each one sees the full
// feed, matching the in-process fan-out.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Partitions    int32
}

// KafkaTransport carries the live feed over a Kafka topic. Records are keyed
// by document id so one document always lands on one partition, preserving
// per-document order; ordering across documents is not guaranteed, matching
// the bus contract.
type KafkaTransport struct {
	cfg    KafkaConfig
	client *kgo.Client
	logger *slog.Logger

	mu        sync.Mutex
	consumers []*kgo.Client
	closed    bool
}

func NewKafkaTransport(ctx context.Context, cfg KafkaConfig, logger *slog.Logger) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka transport requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = "veridoc.document.events"
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "veridoc-bus"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 6
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	t := &KafkaTransport{cfg: cfg, client: client, logger: logger}
	if err := t.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return t, nil
}

// ensureTopic creates the event topic if the cluster does not have it yet.
func (t *KafkaTransport) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(t.client)
	resp, err := adm.CreateTopics(ctx, t.cfg.Partitions, 1, nil, t.cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", t.cfg.Topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && res.Err.Error() != "TOPIC_ALREADY_EXISTS" {
			t.logger.Warn("kafka topic create", "topic", res.Topic, "err", res.Err)
		}
	}
	return nil
}

func (t *KafkaTransport) Forward(ctx context.Context, event Event) error {
	value, err := json.Marshal(wireEvent(event))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.DocumentID.String()),
		Value: value,
	}
	if err := t.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

func (t *KafkaTransport) Subscribe(filter Filter) *Subscription {
	out := make(chan Event, subscriberBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	// Subscriptions must not share a group: grouped consumers split the
	// partition set between them, and a filtered subscriber would swallow
	// events another subscriber is waiting for.
	group := t.cfg.ConsumerGroup + "-" + uuid.NewString()
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(t.cfg.Brokers...),
		kgo.ConsumeTopics(t.cfg.Topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		t.logger.Error("kafka subscribe", "err", err)
		cancel()
		close(out)
		return &Subscription{C: out, cancel: func() {}}
	}

	t.mu.Lock()
	t.consumers = append(t.consumers, consumer)
	t.mu.Unlock()

	go func() {
		defer close(out)
		for {
			fetches := consumer.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				t.logger.Warn("kafka fetch", "topic", topic, "partition", partition, "err", err)
			})
			fetches.EachRecord(func(record *kgo.Record) {
				event, err := decodeWireEvent(record.Value)
				if err != nil {
					t.logger.Warn("kafka decode", "err", err)
					return
				}
				if !filter.matches(event.Type) {
					return
				}
				select {
				case out <- event:
				case <-ctx.Done():
				}
			})
		}
	}()

	return &Subscription{
		C: out,
		cancel: func() {
			cancel()
			consumer.Close()
		},
	}
}

func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for _, consumer := range t.consumers {
		consumer.Close()
	}
	t.client.Close()
	return nil
}
