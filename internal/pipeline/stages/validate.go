package stages

import "veridoc/internal/domain"

// Validation is the rule-check outcome for the extracted fields.
type Validation struct {
	Valid             bool
	OverallStatus     string
	MissingFields     []string
	ExtractConfidence float64
	RegistryStatus    string
	RegistryRequired  bool
}

// Validate applies the tenant's extraction rules: every required field must
// be present, the extraction confidence must clear the policy floor, and the
// issuer registry must confirm when the policy requires it.
func Validate(extraction Extraction, registry RegistryResult, policy domain.TenantPolicy) Validation {
	registryRequired := registry.Status != RegistryNotAvailable
	registryOK := registry.Status == RegistryMatched || !registryRequired

	valid := len(extraction.RequiredMissing) == 0 &&
		extraction.Confidence >= policy.MinExtractConfidence &&
		registryOK

	status := "PASS"
	switch {
	case valid:
	case len(extraction.RequiredMissing) > 0 || !registryOK:
		status = "FAIL"
	default:
		status = "WARN"
	}

	return Validation{
		Valid:             valid,
		OverallStatus:     status,
		MissingFields:     extraction.RequiredMissing,
		ExtractConfidence: round3(extraction.Confidence),
		RegistryStatus:    registry.Status,
		RegistryRequired:  registryRequired,
	}
}
