package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veridoc/internal/offline"
	"veridoc/internal/pipeline"
	platformmetrics "veridoc/internal/platform/metrics"
	"veridoc/internal/platform/middleware"
	"veridoc/internal/review"
	"veridoc/internal/tenant"
)

// Handler is the thin HTTP layer. It delegates to domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	executor *pipeline.Executor
	reviews  *review.Service
	offline  *offline.Controller
	tenants  *tenant.Service
	events   EventLog
	logger   *slog.Logger
	metrics  *platformmetrics.Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetrics attaches transport metrics.
func WithMetrics(m *platformmetrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

func NewHandler(
	executor *pipeline.Executor,
	reviews *review.Service,
	offlineCtl *offline.Controller,
	tenants *tenant.Service,
	events EventLog,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		executor: executor,
		reviews:  reviews,
		offline:  offlineCtl,
		tenants:  tenants,
		events:   events,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints. Citizen-facing routes are tenant
// rate limited; review routes additionally require an officer token.
func NewRouter(h *Handler, officerAuth *middleware.TokenService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestLog(logger, h.metrics))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.TenantRateLimit(h.tenants, requestTenant))

		r.Post("/documents", h.handleSubmit)
		r.Post("/documents/{documentID}/process", h.handleProcess)
		r.Get("/documents/{documentID}/status", h.handleStatus)
		r.Get("/documents/{documentID}/result", h.handleResult)
		r.Get("/documents/{documentID}/events", h.handleEvents)
		r.Post("/documents/{documentID}/dispute", h.handleDispute)

		r.Post("/tenants/{tenantID}/offline/records", h.handleOfflineIngest)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOfficer(officerAuth, logger))

		r.Post("/documents/{documentID}/review/start", h.handleReviewStart)
		r.Post("/documents/{documentID}/review/decision", h.handleReviewDecision)
		r.Post("/documents/{documentID}/review/correction", h.handleReviewCorrection)
		r.Post("/review/queues/{queueName}/claim", h.handleReviewClaim)

		r.Post("/tenants/{tenantID}/offline/sync", h.handleOfflineSync)
		r.Get("/tenants/{tenantID}/policy", h.handlePolicyGet)
		r.Put("/tenants/{tenantID}/policy", h.handlePolicyUpdate)
	})

	return r
}
