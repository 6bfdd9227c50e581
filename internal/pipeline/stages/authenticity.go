package stages

import "strings"

// MarkerResult reports visual authenticity markers inferred from the scan.
type MarkerResult struct {
	StampPresent      bool
	SignaturePresent  bool
	AuthenticityScore float64
}

// ForensicsResult reports tamper signals and the derived risk.
type ForensicsResult struct {
	TamperIndicators []string
	TamperRisk       float64
	GlobalImageScore float64
}

var stampTokens = []string{"stamp", "seal", "emblem"}
var signatureTokens = []string{"signature", "signed", "sign"}
var tamperTokens = []string{"tampered", "photoshop", "edited", "forged", "clone", "recompressed"}

// DetectMarkers checks for official stamps and signatures.
func DetectMarkers(text string) MarkerResult {
	t := strings.ToLower(text)
	stamp := containsAny(t, stampTokens)
	signature := containsAny(t, signatureTokens)

	base := 0.35
	if stamp || signature {
		base = 0.6
	}
	score := 0.35 + base*0.2
	if stamp {
		score += 0.25
	}
	if signature {
		score += 0.2
	}

	return MarkerResult{
		StampPresent:      stamp,
		SignaturePresent:  signature,
		AuthenticityScore: round3(clamp(score, 0, 1)),
	}
}

// InspectForensics scans for tamper indicators and converts hit count into a
// risk estimate.
func InspectForensics(text string) ForensicsResult {
	t := strings.ToLower(text)
	var hits []string
	for _, token := range tamperTokens {
		if strings.Contains(t, token) {
			hits = append(hits, token)
		}
	}
	risk := clamp(0.15+0.17*float64(len(hits)), 0, 1)
	return ForensicsResult{
		TamperIndicators: hits,
		TamperRisk:       round3(risk),
		GlobalImageScore: round3(clamp(1-risk, 0, 1)),
	}
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
