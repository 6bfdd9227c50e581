//go:build integration

package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
	"veridoc/pkg/testutil/containers"
)

// Two live subscriptions with different filters must each see the full feed.
// The review queue and the notifier subscribe to the same stream; if they
// shared a consumer group one would claim and ack events the other needs.
func TestStreamsTransport_IndependentSubscriptions(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := eventbus.NewStreamsTransport(rc.Client, eventbus.StreamsConfig{Block: time.Second}, logger)
	defer transport.Close()

	reviewFeed := transport.Subscribe(eventbus.Filter{Types: []eventbus.Type{eventbus.TypeFlaggedForReview}})
	defer reviewFeed.Cancel()
	decisionFeed := transport.Subscribe(eventbus.Filter{Types: []eventbus.Type{eventbus.TypeDocumentApproved}})
	defer decisionFeed.Cancel()

	tenantID := id.NewTenantID()
	flagged := eventbus.Event{
		EventID:    id.NewEventID(),
		DocumentID: id.NewDocumentID(),
		TenantID:   tenantID,
		Type:       eventbus.TypeFlaggedForReview,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"risk_score": 0.6},
		OccurredAt: time.Now().UTC(),
	}
	approved := eventbus.Event{
		EventID:    id.NewEventID(),
		DocumentID: id.NewDocumentID(),
		TenantID:   tenantID,
		Type:       eventbus.TypeDocumentApproved,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"decision": "APPROVE"},
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, transport.Forward(ctx, flagged))
	require.NoError(t, transport.Forward(ctx, approved))

	receive := func(sub *eventbus.Subscription) eventbus.Event {
		t.Helper()
		select {
		case event := <-sub.C:
			return event
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for event")
			return eventbus.Event{}
		}
	}

	got := receive(reviewFeed)
	require.Equal(t, eventbus.TypeFlaggedForReview, got.Type)
	require.Equal(t, flagged.DocumentID, got.DocumentID)

	got = receive(decisionFeed)
	require.Equal(t, eventbus.TypeDocumentApproved, got.Type)
	require.Equal(t, approved.DocumentID, got.DocumentID)
}
