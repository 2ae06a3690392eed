// Package signals implements the six pure match signal calculators. Every
// calculator is deterministic and side-effect free: it consumes a student and
// listing snapshot (plus optional reference data) and returns a 0-100 score
// with a detail breakdown for explainability. Malformed input degrades to a
// neutral sub-score instead of failing the signal.
package signals

import "math"

// Neutral sub-score used when an input cannot be interpreted.
const neutralScore = 50.0

// clamp bounds a score to the [0, 100] range.
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// finish clamps and rounds a raw score to a whole number.
func finish(score float64) float64 {
	return math.Round(clamp(score))
}
