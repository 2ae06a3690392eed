package signals

import (
	"github.com/talentlink/matchengine/internal/match"
)

// Sub-weights for the growth trajectory signal.
const (
	growthGapWeight         = 0.50
	growthProgressionWeight = 0.30
	growthGPAWeight         = 0.20
)

// Skill-gap sweet spot: gaps inside this band earn the full growth score.
const (
	growthGapSweetLow  = 0.15
	growthGapSweetHigh = 0.45
)

// GrowthTrajectory scores how much a listing would stretch the student.
// A skill gap of 15-45% is the sweet spot: small gaps mean little left to
// learn, large gaps mean the student is under-qualified, and both taper
// piecewise-linearly. Category progression rewards one or two prior
// completions in the listing's category over zero or many, and GPA serves as
// an academic-capacity proxy banded at 2.5/3.0/3.5.
func GrowthTrajectory(student *match.StudentData, listing *match.ListingData) match.SignalResult {
	gapScore, gapFraction := skillGapScore(student, listing)
	progressionScore, completions := categoryProgressionScore(student, listing.Category)
	gpaScore := gpaCapacityScore(student.GPA)

	score := gapScore*growthGapWeight +
		progressionScore*growthProgressionWeight +
		gpaScore*growthGPAWeight

	return match.SignalResult{
		Name:  match.SignalGrowthTrajectory,
		Score: finish(score),
		Details: map[string]any{
			"skillGapFraction":    gapFraction,
			"gapScore":            gapScore,
			"categoryCompletions": completions,
			"progressionScore":    progressionScore,
			"gpaScore":            gpaScore,
		},
	}
}

// skillGapScore applies the sweet-spot reward to the fraction of required
// skills the student is missing. Returns the score and the gap fraction.
func skillGapScore(student *match.StudentData, listing *match.ListingData) (float64, float64) {
	if len(listing.RequiredSkills) == 0 {
		return neutralScore, 0
	}

	owned := make(map[string]bool, len(student.Skills))
	for _, skill := range student.Skills {
		owned[normalizeSkill(skill.Name)] = true
	}

	var required, missing int
	seen := make(map[string]bool, len(listing.RequiredSkills))
	for _, name := range listing.RequiredSkills {
		normalized := normalizeSkill(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		required++
		if !owned[normalized] {
			missing++
		}
	}
	if required == 0 {
		return neutralScore, 0
	}

	gap := float64(missing) / float64(required)
	switch {
	case gap < growthGapSweetLow:
		// Student already knows nearly everything: diminishing growth value.
		return 40 + gap/growthGapSweetLow*60, gap
	case gap <= growthGapSweetHigh:
		return 100, gap
	default:
		// Under-qualified: taper from 100 down to 30 at a full gap.
		return 100 - (gap-growthGapSweetHigh)/(1-growthGapSweetHigh)*70, gap
	}
}

// categoryProgressionScore rewards depth-building: one or two prior completed
// engagements in the same category beat both zero (no foundation) and many
// (saturation). Returns the score and the completion count.
func categoryProgressionScore(student *match.StudentData, category string) (float64, int) {
	if category == "" {
		return neutralScore, 0
	}
	normalized := normalizeSkill(category)
	var completions int
	for _, app := range student.Applications {
		if app.Status == match.ApplicationCompleted && normalizeSkill(app.Category) == normalized {
			completions++
		}
	}
	switch completions {
	case 0:
		return 55, completions
	case 1:
		return 100, completions
	case 2:
		return 85, completions
	case 3:
		return 65, completions
	default:
		return 45, completions
	}
}

// gpaCapacityScore bands GPA at 2.5/3.0/3.5 as a proxy for academic capacity.
// An unparseable GPA degrades to a neutral default rather than failing the
// signal.
func gpaCapacityScore(raw string) float64 {
	gpa, ok := parseGPA(raw)
	if !ok {
		return 70
	}
	switch {
	case gpa < 2.5:
		return 40
	case gpa < 3.0:
		return 60
	case gpa < 3.5:
		return 80
	default:
		return 100
	}
}
