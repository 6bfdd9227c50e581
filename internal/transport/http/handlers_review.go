package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/domain"
	"veridoc/internal/platform/middleware"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
)

type assignmentResponse struct {
	AssignmentID    string `json:"assignment_id"`
	DocumentID      string `json:"document_id"`
	TenantID        string `json:"tenant_id"`
	QueueName       string `json:"queue_name"`
	Priority        int    `json:"priority"`
	Status          string `json:"status"`
	AssignedOfficer string `json:"assigned_officer,omitempty"`
	EscalationLevel int    `json:"escalation_level"`
	CreatedAt       string `json:"created_at"`
}

func toAssignmentResponse(a domain.ReviewAssignment) assignmentResponse {
	resp := assignmentResponse{
		AssignmentID:    a.AssignmentID.String(),
		DocumentID:      a.DocumentID.String(),
		TenantID:        a.TenantID.String(),
		QueueName:       a.QueueName,
		Priority:        a.Priority,
		Status:          string(a.Status),
		EscalationLevel: a.EscalationLevel,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
	if !a.AssignedOfficer.IsZero() {
		resp.AssignedOfficer = a.AssignedOfficer.String()
	}
	return resp
}

func (h *Handler) handleReviewStart(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, ok := middleware.OfficerFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "officer context missing"))
		return
	}

	job, err := h.reviews.Start(r.Context(), documentID, officerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, ok := middleware.OfficerFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "officer context missing"))
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	decision := domain.Decision(req.Decision)
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "decision must be APPROVE or REJECT"))
		return
	}

	job, err := h.reviews.Decide(r.Context(), documentID, officerID, decision, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

type correctionRequest struct {
	FieldName string `json:"field_name"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
}

func (h *Handler) handleReviewCorrection(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, ok := middleware.OfficerFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "officer context missing"))
		return
	}
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	if err := h.reviews.LogCorrection(r.Context(), documentID, officerID, req.FieldName, req.OldValue, req.NewValue); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *Handler) handleReviewClaim(w http.ResponseWriter, r *http.Request) {
	officerID, ok := middleware.OfficerFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "officer context missing"))
		return
	}
	queueName := chi.URLParam(r, "queueName")

	assignment, found, err := h.reviews.Claim(r.Context(), officerID, queueName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !found {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "queue %q has no waiting assignments", queueName))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssignmentResponse(assignment))
}
