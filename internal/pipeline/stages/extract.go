package stages

import (
	"regexp"
	"strings"
)

// Extraction is the structured field output of a document.
type Extraction struct {
	Fields          map[string]string
	RequiredMissing []string
	Confidence      float64
	Route           string
	Warnings        []string
}

var (
	namePattern   = regexp.MustCompile(`(?i)name\s*[:\-]\s*([A-Za-z .]{3,})`)
	numberPattern = regexp.MustCompile(`(?i)(id|no\.?|number|reg no)\s*[:\-]?\s*([A-Z0-9\-]{5,})`)
	issuerPattern = regexp.MustCompile(`(?i)issuer\s*[:\-]\s*([A-Za-z .]{3,})`)
)

// ExtractFields pulls the required fields out of the recognized text.
// Unstructured documents skip extraction and route to manual transcription.
func ExtractFields(text, docType string) Extraction {
	if docType == "UNSTRUCTURED" {
		return Extraction{
			Fields:          map[string]string{},
			RequiredMissing: []string{"MANUAL_TRANSCRIPTION_REQUIRED"},
			Route:           "HUMAN_REVIEW_MANUAL_TRANSCRIPTION",
			Warnings:        []string{"UNSTRUCTURED_HANDWRITTEN"},
		}
	}

	fields := map[string]string{"document_type": docType}
	var missing []string

	if m := namePattern.FindStringSubmatch(text); m != nil {
		fields["name"] = strings.TrimSpace(m[1])
	} else {
		missing = append(missing, "name")
	}
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		fields["document_number"] = strings.TrimSpace(m[2])
	} else {
		missing = append(missing, "document_number")
	}
	if m := issuerPattern.FindStringSubmatch(text); m != nil {
		fields["issuer"] = strings.TrimSpace(m[1])
	} else {
		missing = append(missing, "issuer")
	}

	confidence := 0.7
	var warnings []string
	if len(missing) > 0 {
		confidence = 0.5
		warnings = append(warnings, "LOW_EXTRACTION_CONFIDENCE")
	}

	return Extraction{
		Fields:          fields,
		RequiredMissing: missing,
		Confidence:      confidence,
		Route:           "STRUCTURED",
		Warnings:        warnings,
	}
}
