package signals

import (
	"testing"
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

func TestTrustReliabilityNewStudent(t *testing.T) {
	student := &match.StudentData{JoinedAt: time.Now().AddDate(0, 0, -1)}

	result := TrustReliability(student, &match.ListingData{})
	if result.Score != NewStudentTrustScore {
		t.Errorf("Score = %v, want %v for a student with no history", result.Score, NewStudentTrustScore)
	}
	if result.Details["isNewUser"] != true {
		t.Error("expected isNewUser detail to be true")
	}
}

func TestRateBandScore(t *testing.T) {
	tests := []struct {
		rate float64
		want float64
	}{
		{0.0, 30},
		{0.49, 30},
		{0.5, 55},
		{0.74, 55},
		{0.75, 80},
		{0.89, 80},
		{0.9, 100},
		{1.0, 100},
	}

	for _, tt := range tests {
		got := rateBandScore(tt.rate)
		if got != tt.want {
			t.Errorf("rateBandScore(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestRatingBandScore(t *testing.T) {
	tests := []struct {
		name   string
		rating float64
		count  int
		want   float64
	}{
		{"no ratings uses platform mean", 0, 0, 60},
		{"low rating full sample", 2.5, 5, 30},
		{"mid rating full sample", 3.7, 5, 70},
		{"high rating full sample", 4.8, 5, 100},
		// One 5.0 review shrinks two thirds toward the mean of 60.
		{"single review shrinks", 5.0, 1, 100.0/3 + 60*2.0/3},
		{"two reviews shrink less", 5.0, 2, 100*2.0/3 + 60/3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ratingBandScore(tt.rating, tt.count)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("ratingBandScore(%v, %d) = %v, want %v", tt.rating, tt.count, got, tt.want)
			}
		})
	}
}

func TestTenureScore(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		joinedAt time.Time
		want     float64
	}{
		{"zero join date", time.Time{}, 30},
		{"joined in the future", now.AddDate(0, 0, 1), 30},
		{"one year tenure hits the cap", now.AddDate(-1, 0, 0), 70},
		{"five years still capped", now.AddDate(-5, 0, 0), 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tenureScore(tt.joinedAt, now)
			if got != tt.want {
				t.Errorf("tenureScore() = %v, want %v", got, tt.want)
			}
		})
	}

	// Half a year lands mid-range.
	got := tenureScore(now.AddDate(0, 0, -183), now)
	if got < 49 || got > 51 {
		t.Errorf("half-year tenure = %v, want ~50", got)
	}
}

func TestTrustReliabilitySmallSampleBenefit(t *testing.T) {
	// Two applications with a shaky completion rate should be floored at 70,
	// not scored as an established pattern.
	student := &match.StudentData{
		Applications: []match.ApplicationRecord{
			{Status: match.ApplicationCompleted},
			{Status: match.ApplicationWithdrawn},
		},
		CompletionRate: 0.5,
		OnTimeRate:     1.0,
		JoinedAt:       time.Now().AddDate(-2, 0, 0),
	}

	result := TrustReliability(student, &match.ListingData{})
	if got := result.Details["completionScore"]; got != 70.0 {
		t.Errorf("completionScore = %v, want 70 with the small-sample floor", got)
	}
	if got := result.Details["onTimeScore"]; got != 100.0 {
		t.Errorf("onTimeScore = %v, want 100", got)
	}
}

func TestTrustReliabilityEstablishedStudent(t *testing.T) {
	apps := make([]match.ApplicationRecord, 5)
	for i := range apps {
		apps[i] = match.ApplicationRecord{Status: match.ApplicationCompleted}
	}
	student := &match.StudentData{
		Applications:   apps,
		CompletionRate: 0.95,
		OnTimeRate:     0.95,
		AvgRating:      4.6,
		RatingCount:    5,
		JoinedAt:       time.Now().AddDate(-2, 0, 0),
	}

	result := TrustReliability(student, &match.ListingData{})
	// 100*0.35 + 100*0.25 + 100*0.25 + 70*0.15 = 95.5 -> 96
	if result.Score != 96 {
		t.Errorf("Score = %v, want 96", result.Score)
	}
	if result.Details["isNewUser"] != false {
		t.Error("expected isNewUser to be false")
	}
}
