package signals

import (
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// Sub-weights for the network affinity signal.
const (
	networkTenantWeight      = 0.40
	networkFamiliarityWeight = 0.20
	networkExclusivityWeight = 0.20
	networkFreshnessWeight   = 0.20
)

// NetworkAffinity scores the relationship between the student's network and
// the listing's source: a same-tenant bonus, prior successful engagement in
// the listing's category as a familiarity proxy, source exclusivity, and
// listing freshness banded at 7/14/30/60 days since publication.
func NetworkAffinity(student *match.StudentData, listing *match.ListingData) match.SignalResult {
	sameTenant := student.TenantID != "" && student.TenantID == listing.TenantID

	tenantScore := 40.0
	if sameTenant {
		tenantScore = 100.0
	}

	familiarityScore := 50.0
	if hasCompletedInCategory(student, listing.Category) {
		familiarityScore = 100.0
	}

	exclusivityScore := exclusivityScore(sameTenant, listing.Remote)
	freshnessScore := freshnessScore(listing.PublishedAt, time.Now())

	score := tenantScore*networkTenantWeight +
		familiarityScore*networkFamiliarityWeight +
		exclusivityScore*networkExclusivityWeight +
		freshnessScore*networkFreshnessWeight

	return match.SignalResult{
		Name:  match.SignalNetworkAffinity,
		Score: finish(score),
		Details: map[string]any{
			"sameTenant":       sameTenant,
			"tenantScore":      tenantScore,
			"familiarityScore": familiarityScore,
			"exclusivityScore": exclusivityScore,
			"freshnessScore":   freshnessScore,
		},
	}
}

// hasCompletedInCategory reports whether the student has a completed
// engagement in the given category.
func hasCompletedInCategory(student *match.StudentData, category string) bool {
	if category == "" {
		return false
	}
	normalized := normalizeSkill(category)
	for _, app := range student.Applications {
		if app.Status == match.ApplicationCompleted && normalizeSkill(app.Category) == normalized {
			return true
		}
	}
	return false
}

// exclusivityScore ranks listing sources: same-tenant/private listings beat
// local open listings, which beat the fully open remote network.
func exclusivityScore(sameTenant, remote bool) float64 {
	switch {
	case sameTenant:
		return 90
	case !remote:
		return 70
	default:
		return 55
	}
}

// freshnessScore bands days since publication at 7/14/30/60.
func freshnessScore(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() || publishedAt.After(now) {
		return 65
	}
	days := now.Sub(publishedAt).Hours() / 24
	switch {
	case days <= 7:
		return 100
	case days <= 14:
		return 85
	case days <= 30:
		return 65
	case days <= 60:
		return 45
	default:
		return 25
	}
}
