package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "repeated reason codes collapse in order",
			input:    []string{"LOW_OCR_CONFIDENCE", "TAMPER_SUSPECTED", "LOW_OCR_CONFIDENCE"},
			expected: []string{"LOW_OCR_CONFIDENCE", "TAMPER_SUSPECTED"},
		},
		{
			name:     "whitespace and blanks are stripped",
			input:    []string{"  duplicate_submission ", "", "   ", "velocity_anomaly"},
			expected: []string{"duplicate_submission", "velocity_anomaly"},
		},
		{
			name:     "case is preserved",
			input:    []string{"Missing_Field", "missing_field"},
			expected: []string{"Missing_Field", "missing_field"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
