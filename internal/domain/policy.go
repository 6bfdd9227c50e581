package domain

import (
	id "veridoc/pkg/domain"
)

// TenantPolicy is the versioned per-tenant rule set. It is resolved once per
// job and passed down immutably; stages never look thresholds up mid-flight.
type TenantPolicy struct {
	TenantID id.TenantID
	Version  int

	// Decision thresholds. The decision stage selects the MERGED outgoing
	// edge from these; they are tenant data, not constants.
	HardRejectRisk        float64
	MinApprovalConfidence float64
	MaxApprovalRisk       float64
	MinExtractConfidence  float64

	// Review SLA.
	ReviewSLADays      int
	EscalationStepDays int
	SeniorQueue        string

	// Offline reconciliation.
	SyncCapacityPerMinute int
	OfflineBacklogLimit   int

	// Ingestion limits and retention.
	APIRateLimitPerMinute int
	MaxDocumentsPerDay    int
	DataRetentionDays     int

	CrossTenantDedup bool
}

// DefaultPolicy mirrors the platform defaults applied when a tenant has no
// explicit configuration.
func DefaultPolicy(tenantID id.TenantID) TenantPolicy {
	return TenantPolicy{
		TenantID:              tenantID,
		Version:               1,
		HardRejectRisk:        0.78,
		MinApprovalConfidence: 0.72,
		MaxApprovalRisk:       0.35,
		MinExtractConfidence:  0.60,
		ReviewSLADays:         3,
		EscalationStepDays:    1,
		SeniorQueue:           "senior-review",
		SyncCapacityPerMinute: 50,
		OfflineBacklogLimit:   5000,
		APIRateLimitPerMinute: 120,
		MaxDocumentsPerDay:    25000,
		DataRetentionDays:     365,
	}
}
