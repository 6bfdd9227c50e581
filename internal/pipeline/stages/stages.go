// Package stages holds the pure per-stage analysis functions of the
// verification pipeline. Each stage maps typed inputs to a typed result and
// never touches storage; the executor owns orchestration, timeouts, and
// persistence.
package stages

import "math"

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
