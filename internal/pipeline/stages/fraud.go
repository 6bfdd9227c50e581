package stages

import (
	"fmt"

	platstrings "veridoc/pkg/platform/strings"
)

// FraudResult is the aggregate risk assessment combining image forensics,
// behavioral evidence, and issuer mismatch.
type FraudResult struct {
	Score           float64
	RiskLevel       string
	ImageScore      float64
	BehavioralScore float64
	IssuerScore     float64
	Signals         []string
}

// Calibration weights for the aggregate score.
const (
	fraudWeightImage      = 0.35
	fraudWeightBehavioral = 0.35
	fraudWeightIssuer     = 0.30
)

// ScoreFraud combines the three fraud components into a calibrated aggregate.
func ScoreFraud(dedup DedupResult, forensics ForensicsResult, imageQuality float64, registry RegistryResult) FraudResult {
	behavioral := 0.2 + clamp(float64(dedup.DuplicateCount)*0.2, 0, 0.4)
	lowQuality := imageQuality < 0.35
	if lowQuality {
		behavioral += 0.2
	}
	behavioral = round3(clamp(behavioral, 0, 1))

	image := round3(clamp(forensics.TamperRisk, 0, 1))

	var (
		issuer  float64
		signals []string
	)
	switch registry.Status {
	case RegistryMatched:
		issuer = 0.05
	case RegistryUnverified, RegistryNotAvailable:
		issuer = 0.45
		signals = append(signals, "REGISTRY_"+registry.Status)
	default:
		issuer = 0.9
		signals = append(signals, "REGISTRY_"+registry.Status)
	}

	signals = append(signals, fmt.Sprintf("DUPLICATE_COUNT_%d", dedup.DuplicateCount))
	if lowQuality {
		signals = append(signals, "LOW_IMAGE_QUALITY")
	}
	signals = append(signals, forensics.TamperIndicators...)

	aggregate := round3(clamp(
		image*fraudWeightImage+behavioral*fraudWeightBehavioral+issuer*fraudWeightIssuer,
		0, 1,
	))

	return FraudResult{
		Score:           aggregate,
		RiskLevel:       RiskLevel(aggregate),
		ImageScore:      image,
		BehavioralScore: behavioral,
		IssuerScore:     issuer,
		Signals:         platstrings.DedupeAndTrim(signals),
	}
}

// RiskLevel buckets an aggregate score into operator-facing severity.
func RiskLevel(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL"
	case score >= 0.75:
		return "HIGH"
	case score >= 0.45:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
