package signals

import (
	"github.com/talentlink/matchengine/internal/match"
)

// Sub-weights for the sustainability signal.
const (
	sustainWorkloadWeight   = 0.50
	sustainConcurrentWeight = 0.30
	sustainIntensityWeight  = 0.20
)

// Concurrent-commitment policy: one active listing is the ideal, three is the
// hard ceiling.
const (
	IdealConcurrentListings = 1
	MaxConcurrentListings   = 3
)

// EstimatedHoursPerListing approximates the weekly load of an existing
// accepted listing when the actual commitment is not tracked.
const EstimatedHoursPerListing = 10.0

// Sustainability scores whether taking this listing keeps the student's total
// commitment at a healthy level: total weekly workload banded at 30/40/50
// hours with a linear penalty beyond 50, concurrent accepted listings scored
// against the ideal of one, and peak sport-season intensity.
func Sustainability(student *match.StudentData, listing *match.ListingData) match.SignalResult {
	sportHours := athleticWeeklyHours(student, 0)
	existingHours := float64(student.ActiveListings) * EstimatedHoursPerListing
	blockHours := customWeeklyHours(student)
	totalHours := sportHours + existingHours + blockHours + listing.HoursPerWeek

	workloadScore := workloadBalanceScore(totalHours)
	concurrentScore := concurrentListingsScore(student.ActiveListings)

	peak := peakSeasonIntensity(student)
	intensityScore := 100.0
	if peak > 0 {
		intensityScore = clamp(100 - float64(peak-1)*20)
	}

	score := workloadScore*sustainWorkloadWeight +
		concurrentScore*sustainConcurrentWeight +
		intensityScore*sustainIntensityWeight

	return match.SignalResult{
		Name:  match.SignalSustainability,
		Score: finish(score),
		Details: map[string]any{
			"totalWeeklyHours": totalHours,
			"sportHours":       sportHours,
			"existingHours":    existingHours,
			"workloadScore":    workloadScore,
			"concurrentScore":  concurrentScore,
			"intensityScore":   intensityScore,
			"activeListings":   student.ActiveListings,
			"peakIntensity":    peak,
		},
	}
}

// workloadBalanceScore bands the total committed weekly hours at 30/40/50
// with a linear penalty beyond 50.
func workloadBalanceScore(totalHours float64) float64 {
	switch {
	case totalHours <= 30:
		return 100
	case totalHours <= 40:
		return 75
	case totalHours <= 50:
		return 50
	default:
		return clamp(50 - (totalHours-50)*2)
	}
}

// concurrentListingsScore rewards the ideal of one active commitment and
// collapses to the penalty floor above the hard ceiling.
func concurrentListingsScore(active int) float64 {
	switch {
	case active <= 0:
		return 90
	case active == IdealConcurrentListings:
		return 100
	case active == 2:
		return 70
	case active == MaxConcurrentListings:
		return 40
	default:
		return 10
	}
}
