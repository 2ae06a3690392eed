package scoring

import (
	"math"
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// AlgorithmVersion tags every composite score with the scoring algorithm
// revision that produced it. Bump when signal math or weights semantics
// change so stale cached scores can be told apart from current ones.
const AlgorithmVersion = "1.2.0"

// missingSignalScore substitutes for a signal that was not computed, so a
// skipped signal pulls the composite toward the middle instead of zeroing it
// out.
const missingSignalScore = 50.0

// Compose aggregates signal results into one weighted composite score with
// the full per-signal breakdown retained for explainability. For each of the
// six fixed signal names the corresponding result is looked up (defaulting to
// a neutral 50 when the signal was not computed) along with its weight
// (defaulting to 0 when the weight set omits it).
func Compose(results []match.SignalResult, weights SignalWeights) match.CompositeScore {
	byName := make(map[string]match.SignalResult, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}

	breakdown := make(map[string]match.SignalBreakdown, len(match.SignalNames))
	var total float64
	for _, name := range match.SignalNames {
		score := missingSignalScore
		var details map[string]any
		if result, ok := byName[name]; ok {
			score = result.Score
			details = result.Details
		}
		weight := weights.ForSignal(name)
		total += score * weight
		breakdown[name] = match.SignalBreakdown{
			Score:   score,
			Weight:  weight,
			Details: details,
		}
	}

	rounded := int(math.Round(total))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}

	return match.CompositeScore{
		Score:            rounded,
		Breakdown:        breakdown,
		ComputedAt:       time.Now().UTC(),
		AlgorithmVersion: AlgorithmVersion,
	}
}

// QuickScore returns only the numeric weighted total, skipping breakdown
// construction. Used when ranking many candidates and only the sort key
// matters.
func QuickScore(results []match.SignalResult, weights SignalWeights) float64 {
	byName := make(map[string]float64, len(results))
	for _, result := range results {
		byName[result.Name] = result.Score
	}

	var total float64
	for _, name := range match.SignalNames {
		score, ok := byName[name]
		if !ok {
			score = missingSignalScore
		}
		total += score * weights.ForSignal(name)
	}
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}
