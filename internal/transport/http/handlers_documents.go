package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/pipeline"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
)

// EventLog reads the per-document audit trail.
type EventLog interface {
	DocumentLog(ctx context.Context, documentID id.DocumentID) ([]eventbus.Event, error)
}

// requestTenant resolves the tenant a request acts on, from the route or the
// X-Tenant-ID header.
func requestTenant(r *http.Request) (id.TenantID, bool) {
	raw := chi.URLParam(r, "tenantID")
	if raw == "" {
		raw = r.Header.Get("X-Tenant-ID")
	}
	if raw == "" {
		return id.TenantID{}, false
	}
	tenantID, err := id.ParseTenantID(raw)
	if err != nil {
		return id.TenantID{}, false
	}
	return tenantID, true
}

func documentParam(r *http.Request) (id.DocumentID, error) {
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		return id.DocumentID{}, dErrors.New(dErrors.CodeBadRequest, "invalid document id")
	}
	return documentID, nil
}

type submitRequest struct {
	TenantID  string `json:"tenant_id"`
	CitizenID string `json:"citizen_id"`
	FileName  string `json:"file_name"`
	RawText   string `json:"raw_text"`
	Channel   string `json:"channel,omitempty"`
}

type jobResponse struct {
	DocumentID    string `json:"document_id"`
	JobID         string `json:"job_id"`
	State         string `json:"state"`
	Decision      string `json:"decision,omitempty"`
	SyncStatus    string `json:"sync_status,omitempty"`
	LegalStanding string `json:"legal_standing,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

func toJobResponse(job domain.DocumentJob) jobResponse {
	resp := jobResponse{
		DocumentID:    job.DocumentID.String(),
		JobID:         job.JobID.String(),
		State:         string(job.State),
		SyncStatus:    string(job.SyncStatus),
		LegalStanding: string(job.LegalStanding),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}
	// Provisional outcomes stay hidden until reconciliation.
	if decision, ok := job.ReportableDecision(); ok {
		resp.Decision = string(decision)
	}
	return resp
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return
	}
	citizenID, err := id.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid citizen id"))
		return
	}

	job, err := h.executor.Submit(r.Context(), domain.Submission{
		TenantID:  tenantID,
		CitizenID: citizenID,
		FileName:  req.FileName,
		RawText:   req.RawText,
		Channel:   req.Channel,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementSubmissions()
	httputil.WriteJSON(w, http.StatusCreated, toJobResponse(job))
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.executor.Process(r.Context(), documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	job, err := h.executor.Status(r.Context(), documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

type recordResponse struct {
	DocumentID     string            `json:"document_id"`
	JobID          string            `json:"job_id"`
	Decision       string            `json:"decision"`
	Confidence     float64           `json:"confidence"`
	RiskScore      float64           `json:"risk_score"`
	RiskLevel      string            `json:"risk_level"`
	ReasonCodes    []string          `json:"reason_codes"`
	Fields         map[string]string `json:"fields"`
	MissingFields  []string          `json:"missing_fields,omitempty"`
	RegistryStatus string            `json:"registry_status"`
	DocumentType   string            `json:"document_type"`
	Script         string            `json:"script"`
	QualityScore   float64           `json:"quality_score"`
	TamperRisk     float64           `json:"tamper_risk"`
	DuplicateCount int               `json:"duplicate_count"`
	PolicyVersion  int               `json:"policy_version"`
	ModelVersions  map[string]string `json:"model_versions"`
}

func toRecordResponse(record pipeline.Record) recordResponse {
	return recordResponse{
		DocumentID:     record.DocumentID.String(),
		JobID:          record.JobID.String(),
		Decision:       record.Decision,
		Confidence:     record.Confidence,
		RiskScore:      record.RiskScore,
		RiskLevel:      record.RiskLevel,
		ReasonCodes:    record.ReasonCodes,
		Fields:         record.Fields,
		MissingFields:  record.MissingFields,
		RegistryStatus: record.RegistryStatus,
		DocumentType:   record.DocumentType,
		Script:         record.Script,
		QualityScore:   record.QualityScore,
		TamperRisk:     record.TamperRisk,
		DuplicateCount: record.DuplicateCount,
		PolicyVersion:  record.PolicyVersion,
		ModelVersions:  record.ModelVersions,
	}
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.executor.Result(r.Context(), documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

type eventResponse struct {
	EventID       string            `json:"event_id"`
	Type          string            `json:"event_type"`
	ActorType     string            `json:"actor_type"`
	ActorID       string            `json:"actor_id,omitempty"`
	Payload       map[string]any    `json:"payload"`
	Reason        string            `json:"reason,omitempty"`
	PolicyVersion int               `json:"policy_version,omitempty"`
	ModelVersions map[string]string `json:"model_versions,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	SchemaVersion int               `json:"schema_version"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	log, err := h.events.DocumentLog(r.Context(), documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(log))
	for _, event := range log {
		resp := eventResponse{
			EventID:       event.EventID.String(),
			Type:          string(event.Type),
			ActorType:     string(event.Actor.Type),
			ActorID:       event.Actor.ID,
			Payload:       event.Payload,
			Reason:        event.Reason,
			PolicyVersion: event.PolicyVersion,
			ModelVersions: event.ModelVersions,
			SchemaVersion: event.SchemaVersion,
			OccurredAt:    event.OccurredAt,
		}
		if !event.CorrelationID.IsZero() {
			resp.CorrelationID = event.CorrelationID.String()
		}
		if !event.CausationID.IsZero() {
			resp.CausationID = event.CausationID.String()
		}
		out = append(out, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

type disputeRequest struct {
	CitizenID string `json:"citizen_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	citizenID, err := id.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid citizen id"))
		return
	}

	job, err := h.reviews.Dispute(r.Context(), documentID, citizenID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJobResponse(job))
}
