package httptransport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	"veridoc/internal/offline"
	"veridoc/internal/pipeline"
	"veridoc/internal/platform/middleware"
	"veridoc/internal/review"
	"veridoc/internal/tenant"
	httptransport "veridoc/internal/transport/http"
	id "veridoc/pkg/domain"
	"veridoc/pkg/testutil"
)

const cleanDocument = "Passport Name: John Doe Number: A1234567 Issuer: Government Registry stamp and signature present"

type HandlersSuite struct {
	suite.Suite

	ctx    context.Context
	router http.Handler
	tokens *middleware.TokenService

	bus      *eventbus.Bus
	reviews  *review.Service
	officers *review.MemoryOfficerStore

	tenantID  id.TenantID
	citizenID id.CitizenID
	officerID id.OfficerID
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.bus = eventbus.New(eventbus.NewMemoryStore(), eventbus.NewChannelTransport(), logger)
	jobs := lifecycle.NewMemoryJobStore()
	manager := lifecycle.NewManager(jobs, s.bus, logger)
	tenants := tenant.NewService(tenant.NewMemoryPolicyStore(), logger)
	executor := pipeline.NewExecutor(manager, jobs, tenants, pipeline.NewMemoryResultStore(), s.bus, logger,
		pipeline.WithStageTimeout(time.Second))

	s.officers = review.NewMemoryOfficerStore()
	s.reviews = review.NewService(
		review.NewMemoryAssignmentStore(), s.officers, review.NewMemoryDisputeStore(),
		manager, tenants, s.bus, logger,
	)
	offlineCtl := offline.NewController(offline.NewMemoryRecordStore(), executor, manager, tenants, s.bus, logger)

	s.tokens = middleware.NewTokenService("test-signing-key", "veridoc")
	handler := httptransport.NewHandler(executor, s.reviews, offlineCtl, tenants, s.bus, logger)
	s.router = httptransport.NewRouter(handler, s.tokens, logger)

	s.tenantID = id.NewTenantID()
	s.citizenID = id.NewCitizenID()
	s.officerID = id.NewOfficerID()
}

func (s *HandlersSuite) officerToken() string {
	token, err := s.tokens.Generate(s.officerID, s.tenantID, "reviewer", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlersSuite) submitDocument() string {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents", map[string]string{
		"tenant_id":  s.tenantID.String(),
		"citizen_id": s.citizenID.String(),
		"file_name":  "passport.png",
		"raw_text":   cleanDocument,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	documentID, _ := (*body)["document_id"].(string)
	s.Require().NotEmpty(documentID)
	return documentID
}

func (s *HandlersSuite) TestSubmitAndProcess() {
	documentID := s.submitDocument()

	req := testutil.NewRequest(s.T(), http.MethodPost, "/documents/"+documentID+"/process")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "decision", "APPROVE")

	req = testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+documentID+"/status")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "state", "APPROVED")
	testutil.AssertJSONContains(s.T(), rr, "decision", "APPROVE")
}

func (s *HandlersSuite) TestEventsEndpoint() {
	documentID := s.submitDocument()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+documentID+"/events")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	body := testutil.UnmarshalResponse[struct {
		Events []map[string]any `json:"events"`
	}](s.T(), rr)
	s.Require().Len(body.Events, 1)
	s.Equal("document.received", body.Events[0]["event_type"])
	s.Equal("CITIZEN", body.Events[0]["actor_type"])
	s.NotEmpty(body.Events[0]["correlation_id"])
}

func (s *HandlersSuite) TestSubmit_RejectsInvalidIDs() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents", map[string]string{
		"tenant_id":  "not-a-uuid",
		"citizen_id": s.citizenID.String(),
		"file_name":  "passport.png",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlersSuite) TestResult_NotReadyBeforeProcessing() {
	documentID := s.submitDocument()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+documentID+"/result")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
}

func (s *HandlersSuite) TestOfficerRoutes_RequireToken() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/review/queues/standard-review/claim")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlersSuite) TestClaim_EmptyQueue() {
	s.Require().NoError(s.officers.Upsert(s.ctx, domain.Officer{
		OfficerID: s.officerID,
		TenantID:  s.tenantID,
		Queues:    []string{review.DefaultQueue},
		Active:    true,
	}))

	req := testutil.NewRequest(s.T(), http.MethodPost, "/review/queues/"+review.DefaultQueue+"/claim")
	req.Header.Set("Authorization", "Bearer "+s.officerToken())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlersSuite) TestPolicyRoundTrip() {
	token := s.officerToken()

	req := testutil.NewRequest(s.T(), http.MethodGet, "/tenants/"+s.tenantID.String()+"/policy")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "review_sla_days", float64(3))

	req = testutil.NewJSONRequest(s.T(), http.MethodPut, "/tenants/"+s.tenantID.String()+"/policy", map[string]any{
		"review_sla_days": 5,
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "review_sla_days", float64(5))
	testutil.AssertJSONContains(s.T(), rr, "version", float64(1))
}

func (s *HandlersSuite) TestOfflineIngestAndSync() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/tenants/"+s.tenantID.String()+"/offline/records", map[string]any{
		"citizen_id":           s.citizenID.String(),
		"file_name":            "passport.png",
		"raw_text":             cleanDocument,
		"provisional_decision": "APPROVE",
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "sync_status", "PENDING")

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/tenants/"+s.tenantID.String()+"/offline/sync", map[string]any{
		"capacity_per_minute": 10,
	})
	req.Header.Set("Authorization", "Bearer "+s.officerToken())
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "pending", float64(1))
	testutil.AssertJSONContains(s.T(), rr, "synced", float64(1))
}
