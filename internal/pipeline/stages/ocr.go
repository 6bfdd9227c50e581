package stages

import "unicode"

// OCRResult is the recognized text plus script and confidence metadata.
type OCRResult struct {
	Text         string
	Confidence   float64
	Script       string
	Unstructured bool
}

var scriptRanges = []struct {
	name     string
	lo, hi   rune
}{
	{"DEVANAGARI", 0x0900, 0x097F},
	{"TAMIL", 0x0B80, 0x0BFF},
	{"TELUGU", 0x0C00, 0x0C7F},
	{"KANNADA", 0x0C80, 0x0CFF},
}

// RecognizeText runs script detection and confidence estimation over the
// preprocessed text. Empty input yields an UNKNOWN script at zero confidence.
func RecognizeText(pre PreprocessResult) OCRResult {
	text := pre.NormalizedText
	if text == "" {
		return OCRResult{Script: "UNKNOWN"}
	}

	script := "LATIN"
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for _, sr := range scriptRanges {
			if r >= sr.lo && r <= sr.hi {
				script = sr.name
			}
		}
	}

	confidence := pre.QualityScore
	if pre.HandwritingHeavy {
		confidence -= 0.2
	}
	confidence = clamp(confidence, 0.45, 1.0)

	return OCRResult{
		Text:         text,
		Confidence:   round3(confidence),
		Script:       script,
		Unstructured: pre.HandwritingHeavy,
	}
}
