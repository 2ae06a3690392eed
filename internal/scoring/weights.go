// Package scoring combines the six signal results into a single weighted
// match score, and resolves the weight configuration through the
// default -> subscription-tier -> tenant override layers.
package scoring

import (
	"math"

	"github.com/talentlink/matchengine/internal/match"
)

// WeightSumTolerance is how far the six weights may drift from 1.0 before a
// weight set is considered invalid.
const WeightSumTolerance = 0.01

// SignalWeights holds the weight for each of the six match signals. A valid
// set sums to 1.0 within WeightSumTolerance.
type SignalWeights struct {
	TemporalFit      float64 `json:"temporal_fit" koanf:"temporal_fit"`
	SkillsAlignment  float64 `json:"skills_alignment" koanf:"skills_alignment"`
	Sustainability   float64 `json:"sustainability" koanf:"sustainability"`
	GrowthTrajectory float64 `json:"growth_trajectory" koanf:"growth_trajectory"`
	TrustReliability float64 `json:"trust_reliability" koanf:"trust_reliability"`
	NetworkAffinity  float64 `json:"network_affinity" koanf:"network_affinity"`
}

// DefaultWeights returns the platform default signal weights.
//
// Composite formula: score = temporal*0.25 + skills*0.30 + sustainability*0.15
// + growth*0.10 + trust*0.10 + network*0.10. Skills alignment carries the
// largest share because it is the strongest predictor of a successful
// engagement; temporal fit follows because an infeasible schedule sinks even
// a perfect skills match.
func DefaultWeights() SignalWeights {
	return SignalWeights{
		TemporalFit:      0.25,
		SkillsAlignment:  0.30,
		Sustainability:   0.15,
		GrowthTrajectory: 0.10,
		TrustReliability: 0.10,
		NetworkAffinity:  0.10,
	}
}

// ForSignal returns the weight for a signal name, or 0 for an unknown name.
func (w SignalWeights) ForSignal(name string) float64 {
	switch name {
	case match.SignalTemporalFit:
		return w.TemporalFit
	case match.SignalSkillsAlignment:
		return w.SkillsAlignment
	case match.SignalSustainability:
		return w.Sustainability
	case match.SignalGrowthTrajectory:
		return w.GrowthTrajectory
	case match.SignalTrustReliability:
		return w.TrustReliability
	case match.SignalNetworkAffinity:
		return w.NetworkAffinity
	default:
		return 0
	}
}

// Sum returns the total of the six weights.
func (w SignalWeights) Sum() float64 {
	return w.TemporalFit + w.SkillsAlignment + w.Sustainability +
		w.GrowthTrajectory + w.TrustReliability + w.NetworkAffinity
}

// ValidateWeights reports whether the six weights sum to within
// WeightSumTolerance of 1.0. The check is advisory: callers decide whether to
// reject the configuration or substitute defaults. The engine never silently
// renormalizes an unbalanced set.
func ValidateWeights(w SignalWeights) bool {
	return math.Abs(w.Sum()-1.0) <= WeightSumTolerance
}

// MergeWeights overlays non-zero override weights onto a base set, key by
// key. An absent (zero) override field transparently keeps the base value,
// which lets each configuration layer override only the weights it cares
// about.
func MergeWeights(base SignalWeights, override SignalWeights) SignalWeights {
	merged := base
	if override.TemporalFit != 0 {
		merged.TemporalFit = override.TemporalFit
	}
	if override.SkillsAlignment != 0 {
		merged.SkillsAlignment = override.SkillsAlignment
	}
	if override.Sustainability != 0 {
		merged.Sustainability = override.Sustainability
	}
	if override.GrowthTrajectory != 0 {
		merged.GrowthTrajectory = override.GrowthTrajectory
	}
	if override.TrustReliability != 0 {
		merged.TrustReliability = override.TrustReliability
	}
	if override.NetworkAffinity != 0 {
		merged.NetworkAffinity = override.NetworkAffinity
	}
	return merged
}
