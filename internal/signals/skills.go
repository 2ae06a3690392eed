package signals

import (
	"sort"

	"github.com/talentlink/matchengine/internal/match"
)

// Sub-weights for the skills alignment signal.
const (
	skillsDirectWeight      = 0.55
	skillsProficiencyWeight = 0.20
	skillsTransferWeight    = 0.15
	skillsCategoryWeight    = 0.10
)

// Baseline proficiency level meaning "meets expectations".
const proficiencyBaseline = 3.0

// SkillsAlignment scores how well a student's skills cover a listing's
// requirements. Skill names are matched case-insensitively. Transfers credit
// sport/position experience toward skills the student is missing directly,
// weighted by transfer strength and capped at a pro-rata share of the missing
// skills. A listing with no required skills degrades to a fixed moderate
// score: 50 when the student has any skills, 30 otherwise.
func SkillsAlignment(student *match.StudentData, listing *match.ListingData, transfers []match.AthleticTransferSkill) match.SignalResult {
	if len(listing.RequiredSkills) == 0 {
		score := 30.0
		if len(student.Skills) > 0 {
			score = 50.0
		}
		return match.SignalResult{
			Name:  match.SignalSkillsAlignment,
			Score: finish(score),
			Details: map[string]any{
				"noRequiredSkills": true,
				"studentSkills":    len(student.Skills),
			},
		}
	}

	bySkill := make(map[string]match.SkillInfo, len(student.Skills))
	categories := make(map[string]bool)
	for _, skill := range student.Skills {
		bySkill[normalizeSkill(skill.Name)] = skill
		if skill.Category != "" {
			categories[normalizeSkill(skill.Category)] = true
		}
	}

	required := make([]string, 0, len(listing.RequiredSkills))
	seen := make(map[string]bool, len(listing.RequiredSkills))
	for _, name := range listing.RequiredSkills {
		normalized := normalizeSkill(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		required = append(required, normalized)
	}

	var matched, missing []string
	var proficiencySum float64
	for _, name := range required {
		if skill, ok := bySkill[name]; ok {
			matched = append(matched, name)
			proficiencySum += float64(skill.Proficiency)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)

	directRatio := float64(len(matched)) / float64(len(required))
	directScore := directRatio * 100

	// Mean proficiency of matched skills normalized against the baseline:
	// level 3 maps to 60, each level shifts the score by 20.
	var proficiencyScore float64
	if len(matched) > 0 {
		mean := proficiencySum / float64(len(matched))
		proficiencyScore = clamp(60 + (mean-proficiencyBaseline)*20)
	}

	transferScore, transferable := athleticTransferScore(student, missing, len(required), transfers)

	categoryScore := 40.0
	if listing.Category != "" && categories[normalizeSkill(listing.Category)] {
		categoryScore = 100.0
	}

	score := directScore*skillsDirectWeight +
		proficiencyScore*skillsProficiencyWeight +
		transferScore*skillsTransferWeight +
		categoryScore*skillsCategoryWeight

	return match.SignalResult{
		Name:  match.SignalSkillsAlignment,
		Score: finish(score),
		Details: map[string]any{
			"directMatchRatio":   directRatio,
			"matchedSkills":      matched,
			"missingSkills":      missing,
			"transferableSkills": transferable,
			"proficiencyScore":   proficiencyScore,
			"transferScore":      transferScore,
			"categoryScore":      categoryScore,
		},
	}
}

// athleticTransferScore credits missing skills that are reachable through the
// student's sport/position experience. Each missing skill earns at most the
// strongest applicable transfer strength, so the total can never compensate
// more than the missing skills' pro-rata share of the requirement.
func athleticTransferScore(student *match.StudentData, missing []string, requiredCount int, transfers []match.AthleticTransferSkill) (float64, []string) {
	if len(missing) == 0 || len(transfers) == 0 || requiredCount == 0 {
		return 0, nil
	}

	type sportPosition struct {
		sport    string
		position string
	}
	var played []sportPosition
	for _, season := range activeSportSeasons(student) {
		played = append(played, sportPosition{
			sport:    normalizeSkill(season.Sport),
			position: normalizeSkill(season.Position),
		})
	}
	if len(played) == 0 {
		return 0, nil
	}

	var credit float64
	var transferable []string
	for _, name := range missing {
		var best float64
		for _, transfer := range transfers {
			if transfer.TransferStrength <= 0 || transfer.TransferStrength > 1 {
				continue
			}
			if normalizeSkill(transfer.SkillName) != name {
				continue
			}
			for _, sp := range played {
				if normalizeSkill(transfer.Sport) != sp.sport {
					continue
				}
				if transfer.Position != "" && normalizeSkill(transfer.Position) != sp.position {
					continue
				}
				if transfer.TransferStrength > best {
					best = transfer.TransferStrength
				}
			}
		}
		if best > 0 {
			credit += best
			transferable = append(transferable, name)
		}
	}

	// credit <= len(missing), so the score is naturally capped at the
	// missing skills' share of the requirement.
	return clamp(credit / float64(requiredCount) * 100), transferable
}
