package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/domain"
	"veridoc/internal/platform/middleware"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
)

func tenantParam(r *http.Request) (id.TenantID, error) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		return id.TenantID{}, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id")
	}
	return tenantID, nil
}

type offlineIngestRequest struct {
	CitizenID           string            `json:"citizen_id"`
	DocumentID          string            `json:"document_id,omitempty"`
	FileName            string            `json:"file_name"`
	RawText             string            `json:"raw_text"`
	ProvisionalDecision string            `json:"provisional_decision,omitempty"`
	ProvisionalFields   map[string]string `json:"provisional_fields,omitempty"`
	LocalModelVersions  map[string]string `json:"local_model_versions,omitempty"`
}

func (h *Handler) handleOfflineIngest(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req offlineIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	citizenID, err := id.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid citizen id"))
		return
	}

	record := domain.OfflineRecord{
		TenantID:            tenantID,
		CitizenID:           citizenID,
		FileName:            req.FileName,
		RawText:             req.RawText,
		ProvisionalDecision: domain.Decision(req.ProvisionalDecision),
		ProvisionalFields:   req.ProvisionalFields,
		LocalModelVersions:  req.LocalModelVersions,
	}
	if req.DocumentID != "" {
		documentID, err := id.ParseDocumentID(req.DocumentID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document id"))
			return
		}
		record.DocumentID = documentID
	}

	stored, err := h.offline.Ingest(r.Context(), record)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"record_id":   stored.RecordID,
		"sync_status": string(stored.SyncStatus),
	})
}

type offlineSyncRequest struct {
	CapacityPerMinute int `json:"capacity_per_minute,omitempty"`
}

func (h *Handler) handleOfflineSync(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, ok := middleware.OfficerFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "officer context missing"))
		return
	}
	var req offlineSyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
			return
		}
	}

	outcome, err := h.offline.SyncBatch(r.Context(), tenantID, officerID, req.CapacityPerMinute)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"pending":    outcome.Pending,
		"synced":     outcome.Synced,
		"conflicted": outcome.Conflicted,
		"overflowed": outcome.Overflowed,
		"failed":     outcome.Failed,
	})
}

type policyResponse struct {
	TenantID              string  `json:"tenant_id"`
	Version               int     `json:"version"`
	HardRejectRisk        float64 `json:"hard_reject_risk"`
	MinApprovalConfidence float64 `json:"min_approval_confidence"`
	MaxApprovalRisk       float64 `json:"max_approval_risk"`
	MinExtractConfidence  float64 `json:"min_extract_confidence"`
	ReviewSLADays         int     `json:"review_sla_days"`
	EscalationStepDays    int     `json:"escalation_step_days"`
	SeniorQueue           string  `json:"senior_queue"`
	SyncCapacityPerMinute int     `json:"sync_capacity_per_minute"`
	OfflineBacklogLimit   int     `json:"offline_backlog_limit"`
	APIRateLimitPerMinute int     `json:"api_rate_limit_per_minute"`
	MaxDocumentsPerDay    int     `json:"max_documents_per_day"`
	DataRetentionDays     int     `json:"data_retention_days"`
	CrossTenantDedup      bool    `json:"cross_tenant_dedup"`
}

func toPolicyResponse(p domain.TenantPolicy) policyResponse {
	return policyResponse{
		TenantID:              p.TenantID.String(),
		Version:               p.Version,
		HardRejectRisk:        p.HardRejectRisk,
		MinApprovalConfidence: p.MinApprovalConfidence,
		MaxApprovalRisk:       p.MaxApprovalRisk,
		MinExtractConfidence:  p.MinExtractConfidence,
		ReviewSLADays:         p.ReviewSLADays,
		EscalationStepDays:    p.EscalationStepDays,
		SeniorQueue:           p.SeniorQueue,
		SyncCapacityPerMinute: p.SyncCapacityPerMinute,
		OfflineBacklogLimit:   p.OfflineBacklogLimit,
		APIRateLimitPerMinute: p.APIRateLimitPerMinute,
		MaxDocumentsPerDay:    p.MaxDocumentsPerDay,
		DataRetentionDays:     p.DataRetentionDays,
		CrossTenantDedup:      p.CrossTenantDedup,
	}
}

func (h *Handler) handlePolicyGet(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policy, err := h.tenants.Resolve(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(policy))
}

type policyUpdateRequest struct {
	HardRejectRisk        *float64 `json:"hard_reject_risk,omitempty"`
	MinApprovalConfidence *float64 `json:"min_approval_confidence,omitempty"`
	MaxApprovalRisk       *float64 `json:"max_approval_risk,omitempty"`
	MinExtractConfidence  *float64 `json:"min_extract_confidence,omitempty"`
	ReviewSLADays         *int     `json:"review_sla_days,omitempty"`
	EscalationStepDays    *int     `json:"escalation_step_days,omitempty"`
	SeniorQueue           *string  `json:"senior_queue,omitempty"`
	SyncCapacityPerMinute *int     `json:"sync_capacity_per_minute,omitempty"`
	OfflineBacklogLimit   *int     `json:"offline_backlog_limit,omitempty"`
	APIRateLimitPerMinute *int     `json:"api_rate_limit_per_minute,omitempty"`
	MaxDocumentsPerDay    *int     `json:"max_documents_per_day,omitempty"`
	DataRetentionDays     *int     `json:"data_retention_days,omitempty"`
	CrossTenantDedup      *bool    `json:"cross_tenant_dedup,omitempty"`
}

func (h *Handler) handlePolicyUpdate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req policyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	// Partial update over the currently effective policy. Service.Update
	// allocates the next version.
	policy, err := h.tenants.Resolve(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.HardRejectRisk != nil {
		policy.HardRejectRisk = *req.HardRejectRisk
	}
	if req.MinApprovalConfidence != nil {
		policy.MinApprovalConfidence = *req.MinApprovalConfidence
	}
	if req.MaxApprovalRisk != nil {
		policy.MaxApprovalRisk = *req.MaxApprovalRisk
	}
	if req.MinExtractConfidence != nil {
		policy.MinExtractConfidence = *req.MinExtractConfidence
	}
	if req.ReviewSLADays != nil {
		policy.ReviewSLADays = *req.ReviewSLADays
	}
	if req.EscalationStepDays != nil {
		policy.EscalationStepDays = *req.EscalationStepDays
	}
	if req.SeniorQueue != nil {
		policy.SeniorQueue = *req.SeniorQueue
	}
	if req.SyncCapacityPerMinute != nil {
		policy.SyncCapacityPerMinute = *req.SyncCapacityPerMinute
	}
	if req.OfflineBacklogLimit != nil {
		policy.OfflineBacklogLimit = *req.OfflineBacklogLimit
	}
	if req.APIRateLimitPerMinute != nil {
		policy.APIRateLimitPerMinute = *req.APIRateLimitPerMinute
	}
	if req.MaxDocumentsPerDay != nil {
		policy.MaxDocumentsPerDay = *req.MaxDocumentsPerDay
	}
	if req.DataRetentionDays != nil {
		policy.DataRetentionDays = *req.DataRetentionDays
	}
	if req.CrossTenantDedup != nil {
		policy.CrossTenantDedup = *req.CrossTenantDedup
	}

	updated, err := h.tenants.Update(r.Context(), policy)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(updated))
}
