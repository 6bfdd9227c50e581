package stages

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// PreprocessResult carries the normalized text, the dedup fingerprint, and
// the quality signals downstream stages key off.
type PreprocessResult struct {
	NormalizedText         string
	DedupHash              string
	QualityScore           float64
	HandwritingProbability float64
	HandwritingHeavy       bool
	StepsApplied           []string
}

// Preprocess normalizes whitespace, fingerprints the content for dedup, and
// estimates scan quality. Handwriting-heavy scans get routed to unstructured
// review instead of template extraction.
func Preprocess(rawText string) PreprocessResult {
	normalized := strings.Join(strings.Fields(rawText), " ")

	sum := sha256.Sum256([]byte(strings.ToLower(normalized)))
	hash := hex.EncodeToString(sum[:])

	quality := clamp(float64(len(normalized))/4500, 0.2, 1.0)

	total := len([]rune(normalized))
	if total == 0 {
		total = 1
	}
	digits, punctuation := 0, 0
	for _, r := range normalized {
		switch {
		case unicode.IsDigit(r):
			digits++
		case !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r):
			punctuation++
		}
	}
	digitRatio := float64(digits) / float64(total)
	punctuationRatio := float64(punctuation) / float64(total)

	// Handwriting-heavy scans are usually short and noisy.
	handwriting := 0.25 + punctuationRatio*0.8
	if quality < 0.45 {
		handwriting += 0.35
	}
	handwriting = clamp(handwriting, 0, 1)

	return PreprocessResult{
		NormalizedText:         normalized,
		DedupHash:              hash,
		QualityScore:           round3(quality),
		HandwritingProbability: round3(handwriting),
		HandwritingHeavy:       handwriting >= 0.7 && digitRatio < 0.7,
		StepsApplied:           []string{"DESKEW", "DENOISE", "CONTRAST_ENHANCEMENT"},
	}
}
