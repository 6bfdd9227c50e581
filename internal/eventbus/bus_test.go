package eventbus_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type BusSuite struct {
	suite.Suite

	ctx context.Context
	bus *eventbus.Bus

	tenantID   id.TenantID
	documentID id.DocumentID
	jobID      id.JobID
}

func (s *BusSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger)

	s.tenantID = id.NewTenantID()
	s.documentID = id.NewDocumentID()
	s.jobID = id.NewJobID()
}

func (s *BusSuite) received(fileName string) eventbus.Event {
	return eventbus.Event{
		DocumentID:    s.documentID,
		TenantID:      s.tenantID,
		Type:          eventbus.TypeDocumentReceived,
		Actor:         domain.SystemActor(),
		Payload:       map[string]any{"file_name": fileName},
		CorrelationID: s.jobID,
	}
}

func (s *BusSuite) TestPublish_AssignsIdentityAndSchemaVersion() {
	stored, err := s.bus.Publish(s.ctx, s.received("passport.png"))
	s.Require().NoError(err)
	s.False(stored.EventID.IsZero())
	s.False(stored.OccurredAt.IsZero())
	s.Equal(1, stored.SchemaVersion)
}

func (s *BusSuite) TestPublish_RejectsUnknownType() {
	event := s.received("passport.png")
	event.Type = "document.teleported"

	_, err := s.bus.Publish(s.ctx, event)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	log, err := s.bus.DocumentLog(s.ctx, s.documentID)
	s.Require().NoError(err)
	s.Empty(log, "rejected events must never be stored")
}

func (s *BusSuite) TestPublish_RejectsMissingRequiredKeys() {
	event := s.received("passport.png")
	event.Payload = map[string]any{}

	_, err := s.bus.Publish(s.ctx, event)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *BusSuite) TestDocumentLog_PreservesPublishOrder() {
	var previous id.EventID
	for i := 0; i < 5; i++ {
		event := s.received(fmt.Sprintf("page-%d.png", i))
		event.CausationID = previous
		stored, err := s.bus.Publish(s.ctx, event)
		s.Require().NoError(err)
		previous = stored.EventID
	}

	log, err := s.bus.DocumentLog(s.ctx, s.documentID)
	s.Require().NoError(err)
	s.Require().Len(log, 5)
	for i, event := range log {
		s.Equal(fmt.Sprintf("page-%d.png", i), event.Payload["file_name"])
		if i > 0 {
			s.Equal(log[i-1].EventID, event.CausationID, "causal chain must follow log order")
		}
	}
}

func (s *BusSuite) TestSubscribe_FiltersByType() {
	approvals := s.bus.Subscribe(eventbus.TypeDocumentApproved)

	_, err := s.bus.Publish(s.ctx, s.received("passport.png"))
	s.Require().NoError(err)

	approved := s.received("ignored")
	approved.Type = eventbus.TypeDocumentApproved
	approved.Payload = map[string]any{"decision": "APPROVE"}
	stored, err := s.bus.Publish(s.ctx, approved)
	s.Require().NoError(err)

	select {
	case got := <-approvals.C:
		s.Equal(stored.EventID, got.EventID)
		s.Equal(eventbus.TypeDocumentApproved, got.Type)
	case <-time.After(time.Second):
		s.FailNow("expected an approval event on the subscription")
	}
	select {
	case got := <-approvals.C:
		s.FailNowf("unexpected event", "type %s", got.Type)
	default:
	}
}

func (s *BusSuite) TestTenantLog_SpansDocuments() {
	_, err := s.bus.Publish(s.ctx, s.received("a.png"))
	s.Require().NoError(err)

	other := s.received("b.png")
	other.DocumentID = id.NewDocumentID()
	_, err = s.bus.Publish(s.ctx, other)
	s.Require().NoError(err)

	log, err := s.bus.TenantLog(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Len(log, 2)
}

func (s *BusSuite) TestDeduper_MakesRedeliveryIdempotent() {
	stored, err := s.bus.Publish(s.ctx, s.received("passport.png"))
	s.Require().NoError(err)

	deduper := eventbus.NewDeduper()
	applied := 0
	handle := func(eventbus.Event) { applied++ }

	s.True(deduper.Apply(stored, handle))
	s.False(deduper.Apply(stored, handle), "redelivery must be a no-op")
	s.Equal(1, applied)
}

func (s *BusSuite) TestBranchCompleted_ContractCovered() {
	for _, module := range eventbus.BranchModules {
		event := s.received("passport.png")
		event.Type = eventbus.BranchCompleted(module)
		event.Payload = map[string]any{"module": module, "status": "DONE"}
		_, err := s.bus.Publish(s.ctx, event)
		s.Require().NoError(err)
	}

	event := s.received("passport.png")
	event.Type = eventbus.BranchCompleted("palm_reading")
	event.Payload = map[string]any{"module": "palm_reading", "status": "DONE"}
	_, err := s.bus.Publish(s.ctx, event)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}
