package scoring

import (
	"testing"

	"github.com/talentlink/matchengine/internal/match"
)

func allSignals(score float64) []match.SignalResult {
	results := make([]match.SignalResult, 0, len(match.SignalNames))
	for _, name := range match.SignalNames {
		results = append(results, match.SignalResult{Name: name, Score: score})
	}
	return results
}

func TestCompose(t *testing.T) {
	weights := DefaultWeights()

	tests := []struct {
		name    string
		results []match.SignalResult
		want    int
	}{
		{"all perfect", allSignals(100), 100},
		{"all zero", allSignals(0), 0},
		{"all neutral", allSignals(50), 50},
		{"no signals default to neutral", nil, 50},
		{
			"mixed weighted total",
			[]match.SignalResult{
				{Name: match.SignalTemporalFit, Score: 80},
				{Name: match.SignalSkillsAlignment, Score: 90},
				{Name: match.SignalSustainability, Score: 70},
				{Name: match.SignalGrowthTrajectory, Score: 60},
				{Name: match.SignalTrustReliability, Score: 55},
				{Name: match.SignalNetworkAffinity, Score: 98},
			},
			// 80*.25 + 90*.30 + 70*.15 + 60*.10 + 55*.10 + 98*.10 = 78.8 -> 79
			79,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composite := Compose(tt.results, weights)
			if composite.Score != tt.want {
				t.Errorf("Score = %d, want %d", composite.Score, tt.want)
			}
			if composite.AlgorithmVersion != AlgorithmVersion {
				t.Errorf("AlgorithmVersion = %q, want %q", composite.AlgorithmVersion, AlgorithmVersion)
			}
			if composite.ComputedAt.IsZero() {
				t.Error("ComputedAt must be set")
			}
		})
	}
}

func TestComposeBreakdownCoversEverySignal(t *testing.T) {
	composite := Compose([]match.SignalResult{
		{Name: match.SignalSkillsAlignment, Score: 90, Details: map[string]any{"matchedCount": 3}},
	}, DefaultWeights())

	if len(composite.Breakdown) != len(match.SignalNames) {
		t.Fatalf("breakdown has %d entries, want %d", len(composite.Breakdown), len(match.SignalNames))
	}
	for _, name := range match.SignalNames {
		entry, ok := composite.Breakdown[name]
		if !ok {
			t.Fatalf("breakdown missing %q", name)
		}
		if name == match.SignalSkillsAlignment {
			if entry.Score != 90 {
				t.Errorf("skills score = %v, want 90", entry.Score)
			}
			if entry.Details["matchedCount"] != 3 {
				t.Error("expected signal details to be carried into the breakdown")
			}
			continue
		}
		if entry.Score != missingSignalScore {
			t.Errorf("%s score = %v, want neutral %v", name, entry.Score, missingSignalScore)
		}
	}
}

func TestComposeUnknownSignalIgnored(t *testing.T) {
	results := append(allSignals(100), match.SignalResult{Name: "made_up", Score: 0})
	composite := Compose(results, DefaultWeights())
	if composite.Score != 100 {
		t.Errorf("Score = %d, want 100 with unknown signal ignored", composite.Score)
	}
	if _, ok := composite.Breakdown["made_up"]; ok {
		t.Error("breakdown must only hold the known signals")
	}
}

func TestQuickScoreMatchesCompose(t *testing.T) {
	weights := DefaultWeights()
	results := []match.SignalResult{
		{Name: match.SignalTemporalFit, Score: 83},
		{Name: match.SignalSkillsAlignment, Score: 61},
		{Name: match.SignalTrustReliability, Score: 96},
	}

	composite := Compose(results, weights)
	quick := QuickScore(results, weights)
	if int(quick+0.5) != composite.Score {
		t.Errorf("QuickScore = %v rounds to %d, Compose = %d", quick, int(quick+0.5), composite.Score)
	}
}
