package stages

import "strings"

// Classification labels the document type ahead of template-guided
// extraction.
type Classification struct {
	DocumentType  string
	Subtype       string
	RegionCode    string
	Confidence    float64
	LowConfidence bool
	Reasons       []string
}

var typeKeywords = []struct {
	keywords   []string
	docType    string
	confidence float64
}{
	{[]string{"passport"}, "PASSPORT", 0.85},
	{[]string{"license", "licence"}, "LICENSE", 0.82},
	{[]string{"marks", "transcript"}, "MARKSHEET", 0.79},
	{[]string{"birth certificate"}, "BIRTH_CERTIFICATE", 0.8},
	{[]string{"income certificate"}, "INCOME_CERTIFICATE", 0.8},
}

// Classify assigns a document type from the recognized text. A caller-supplied
// hint overrides the detected type; handwriting-heavy documents short-circuit
// to UNSTRUCTURED so they reach manual transcription.
func Classify(ocr OCRResult, pre PreprocessResult, typeHint string) Classification {
	if ocr.Unstructured {
		return Classification{
			DocumentType: "UNSTRUCTURED",
			Subtype:      "HANDWRITTEN_HEAVY",
			RegionCode:   "DEFAULT",
			Confidence:   0.99,
			Reasons:      []string{"HANDWRITING_ROUTED_TO_MANUAL"},
		}
	}

	text := strings.ToLower(ocr.Text)
	docType := "UNKNOWN"
	confidence := 0.56
	reasons := []string{"NO_STRONG_KEYWORD"}
	for _, candidate := range typeKeywords {
		for _, keyword := range candidate.keywords {
			if strings.Contains(text, keyword) {
				docType = candidate.docType
				confidence = candidate.confidence
				reasons = []string{"KEYWORD_MATCH:" + strings.ToUpper(strings.ReplaceAll(keyword, " ", "_"))}
				break
			}
		}
		if docType != "UNKNOWN" {
			break
		}
	}

	hint := strings.ToUpper(strings.TrimSpace(typeHint))
	if hint != "" && hint != "AUTO-DETECT" && hint != "AUTO_DETECT" {
		docType = hint
		if confidence < 0.9 {
			confidence = 0.9
		}
		reasons = append(reasons, "DOC_TYPE_HINT_APPLIED")
	}
	if pre.QualityScore < 0.45 {
		reasons = append(reasons, "LOW_IMAGE_QUALITY")
	}

	return Classification{
		DocumentType:  docType,
		Subtype:       "FRONT_SIDE",
		RegionCode:    "DEFAULT",
		Confidence:    round3(confidence),
		LowConfidence: confidence < 0.72,
		Reasons:       reasons,
	}
}
