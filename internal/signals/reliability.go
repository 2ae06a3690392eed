package signals

import (
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// Sub-weights for the trust/reliability signal.
const (
	trustCompletionWeight = 0.35
	trustOnTimeWeight     = 0.25
	trustRatingWeight     = 0.25
	trustTenureWeight     = 0.15
)

// NewStudentTrustScore is the neutral-positive default for students with no
// application history. New students start with a clean slate, not a penalty.
const NewStudentTrustScore = 55.0

// smallSampleThreshold is the application/rating count below which rates get
// the benefit of the doubt and ratings shrink toward the mean.
const smallSampleThreshold = 3

// tenureCapDays caps the platform-tenure contribution at one year.
const tenureCapDays = 365.0

// TrustReliability scores a student's track record: completion rate, on-time
// delivery rate, partner ratings, and platform tenure. Students with no
// application history receive the neutral-positive default instead of being
// scored on empty data.
func TrustReliability(student *match.StudentData, listing *match.ListingData) match.SignalResult {
	if len(student.Applications) == 0 {
		return match.SignalResult{
			Name:  match.SignalTrustReliability,
			Score: NewStudentTrustScore,
			Details: map[string]any{
				"isNewUser": true,
			},
		}
	}

	appCount := len(student.Applications)
	completionScore := rateBandScore(student.CompletionRate)
	onTimeScore := rateBandScore(student.OnTimeRate)

	// Small samples get the benefit of the doubt: a shaky rate over one or
	// two applications is not yet a pattern.
	if appCount < smallSampleThreshold {
		if completionScore < 70 {
			completionScore = 70
		}
		if onTimeScore < 70 {
			onTimeScore = 70
		}
	}

	ratingScore := ratingBandScore(student.AvgRating, student.RatingCount)
	tenureScore := tenureScore(student.JoinedAt, time.Now())

	score := completionScore*trustCompletionWeight +
		onTimeScore*trustOnTimeWeight +
		ratingScore*trustRatingWeight +
		tenureScore*trustTenureWeight

	return match.SignalResult{
		Name:  match.SignalTrustReliability,
		Score: finish(score),
		Details: map[string]any{
			"isNewUser":        false,
			"applicationCount": appCount,
			"completionScore":  completionScore,
			"onTimeScore":      onTimeScore,
			"ratingScore":      ratingScore,
			"tenureScore":      tenureScore,
		},
	}
}

// rateBandScore bands a 0-1 rate at 0.5/0.75/0.9.
func rateBandScore(rate float64) float64 {
	switch {
	case rate < 0.5:
		return 30
	case rate < 0.75:
		return 55
	case rate < 0.9:
		return 80
	default:
		return 100
	}
}

// ratingBandScore bands the average partner rating at 3.0/3.5/4.0/4.5. With
// fewer than three ratings the score shrinks toward the platform mean so a
// single extreme review cannot dominate.
func ratingBandScore(avgRating float64, count int) float64 {
	const platformMean = 60.0
	if count <= 0 {
		return platformMean
	}

	var score float64
	switch {
	case avgRating < 3.0:
		score = 30
	case avgRating < 3.5:
		score = 55
	case avgRating < 4.0:
		score = 70
	case avgRating < 4.5:
		score = 85
	default:
		score = 100
	}

	if count < smallSampleThreshold {
		// Shrinkage toward the mean proportional to the missing sample.
		weight := float64(count) / float64(smallSampleThreshold)
		score = score*weight + platformMean*(1-weight)
	}
	return score
}

// tenureScore linearly scales platform tenure up to a 365-day cap into a
// 30-70 point range.
func tenureScore(joinedAt, now time.Time) float64 {
	if joinedAt.IsZero() || joinedAt.After(now) {
		return 30
	}
	days := now.Sub(joinedAt).Hours() / 24
	if days > tenureCapDays {
		days = tenureCapDays
	}
	return 30 + days/tenureCapDays*40
}
