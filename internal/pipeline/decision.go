package pipeline

import (
	"fmt"
	"math"

	"veridoc/internal/domain"
	"veridoc/internal/pipeline/stages"
)

// MergeOutput is the combined assessment produced once every branch has
// reported and the post-merge analysis stages have run.
type MergeOutput struct {
	Confidence float64
	RiskScore  float64
	RiskLevel  string

	Validation stages.Validation
	Fraud      stages.FraudResult
	Registry   stages.RegistryResult
	Markers    stages.MarkerResult
	Forensics  stages.ForensicsResult
}

// merge combines the stage outputs into the document-level confidence and
// risk. Confidence weighs extraction, visual authenticity, and the registry;
// risk weighs the fraud aggregate against tamper evidence.
func merge(validation stages.Validation, fraud stages.FraudResult, registry stages.RegistryResult, markers stages.MarkerResult, forensics stages.ForensicsResult) MergeOutput {
	confidence := validation.ExtractConfidence*0.4 +
		markers.AuthenticityScore*0.3 +
		registry.Confidence*0.3
	risk := fraud.Score*0.7 + forensics.TamperRisk*0.3
	if risk > 1 {
		risk = 1
	}
	return MergeOutput{
		Confidence: round3(confidence),
		RiskScore:  round3(risk),
		RiskLevel:  fraud.RiskLevel,
		Validation: validation,
		Fraud:      fraud,
		Registry:   registry,
		Markers:    markers,
		Forensics:  forensics,
	}
}

// DecisionOutput selects the outgoing edge from MERGED.
type DecisionOutput struct {
	Decision    domain.Decision
	Confidence  float64
	RiskScore   float64
	ReasonCodes []string
}

// decide applies the tenant's thresholds: risk at or above the hard-reject
// line rejects outright; a valid document clearing the approval bar is
// approved; everything else goes to human review.
func decide(m MergeOutput, policy domain.TenantPolicy) DecisionOutput {
	var decision domain.Decision
	switch {
	case m.RiskScore >= policy.HardRejectRisk:
		decision = domain.DecisionReject
	case m.Validation.Valid &&
		m.Confidence >= policy.MinApprovalConfidence &&
		m.RiskScore <= policy.MaxApprovalRisk:
		decision = domain.DecisionApprove
	default:
		decision = domain.DecisionReview
	}

	return DecisionOutput{
		Decision:   decision,
		Confidence: m.Confidence,
		RiskScore:  m.RiskScore,
		ReasonCodes: []string{
			fmt.Sprintf("VALID=%t", m.Validation.Valid),
			fmt.Sprintf("REGISTRY=%s", m.Registry.Status),
			fmt.Sprintf("FRAUD=%.3f", m.Fraud.Score),
			fmt.Sprintf("TAMPER=%.3f", m.Forensics.TamperRisk),
			fmt.Sprintf("RISK_LEVEL=%s", m.RiskLevel),
		},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
