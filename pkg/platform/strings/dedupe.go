// Package strings normalizes the small string lists the pipeline passes
// around, such as reason codes and fraud signals.
package strings

import "strings"

// DedupeAndTrim trims every element, drops blanks, and removes duplicates
// while keeping first-occurrence order. Stages accumulate reason codes from
// several rules and the same code must appear once in the stored record.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := values[:0:0]
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
