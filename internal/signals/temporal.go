package signals

import (
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// TemporalFit scores how well a listing's time demands fit the student's
// calendar. It averages whichever sub-factors apply to this student:
//
//   - hours: availability vs required hours, shortfall penalized more than
//     surplus, banded at 5/10/15/20 hour gaps
//   - season: sport-season conflict scaled by intensity x weekly athletic load
//     when the listing starts inside an active season (wrap-aware)
//   - travel_days: monthly travel load banded at 2/4/6/8 days
//   - travel_overlap: explicit travel-conflict overlap with the listing window,
//     penalty proportional to the overlapped fraction of the listing
//   - academic: calendar alignment, breaks score high and heavy coursework
//     periods score low
//
// Sport-related sub-factors are skipped entirely for students without an
// active sport schedule, so they neither help nor hurt.
func TemporalFit(student *match.StudentData, listing *match.ListingData) match.SignalResult {
	details := map[string]any{}

	var sum float64
	var count int
	apply := func(key string, score float64) {
		score = clamp(score)
		details[key] = score
		sum += score
		count++
	}

	hours := availableHours(student)
	apply("hoursScore", hoursFitScore(hours, listing.HoursPerWeek))
	details["availableHours"] = hours
	details["requiredHours"] = listing.HoursPerWeek

	startMonth := 0
	if listing.StartDate != nil {
		startMonth = int(listing.StartDate.Month())
	}

	seasons := activeSportSeasons(student)
	if len(seasons) > 0 {
		apply("seasonScore", seasonConflictScore(seasons, startMonth))
		apply("travelDaysScore", travelDaysScore(maxTravelDaysPerMonth(student)))
	}

	if windows := travelWindows(student); len(windows) > 0 {
		if window, ok := listingWindow(listing); ok {
			apply("travelOverlapScore", travelOverlapScore(window, windows))
		}
	}

	apply("academicScore", academicAlignmentScore(startMonth))

	score := neutralScore
	if count > 0 {
		score = sum / float64(count)
	}

	return match.SignalResult{
		Name:    match.SignalTemporalFit,
		Score:   finish(score),
		Details: details,
	}
}

// hoursFitScore bands the gap between available and required weekly hours.
// Surplus capacity decays slowly (an over-available student is still a fine
// fit); shortfall decays steeply.
func hoursFitScore(available, required float64) float64 {
	if required <= 0 {
		return 100
	}
	gap := available - required
	if gap >= 0 {
		switch {
		case gap <= 5:
			return 100
		case gap <= 10:
			return 95
		case gap <= 15:
			return 90
		case gap <= 20:
			return 85
		default:
			return 80
		}
	}
	shortfall := -gap
	switch {
	case shortfall <= 5:
		return 70
	case shortfall <= 10:
		return 50
	case shortfall <= 15:
		return 30
	case shortfall <= 20:
		return 15
	default:
		return 5
	}
}

// seasonConflictScore penalizes listings that start inside an active sport
// season. The penalty scales with season intensity times the weekly athletic
// load, capped so even a brutal season leaves a floor of 10.
func seasonConflictScore(seasons []*match.SportSeason, startMonth int) float64 {
	if startMonth == 0 {
		// No start date: assume the listing begins now.
		startMonth = int(time.Now().Month())
	}
	var worst float64
	for _, season := range seasons {
		if !season.InSeason(startMonth) {
			continue
		}
		penalty := float64(season.Intensity) * season.WeeklyHours()
		if penalty > 90 {
			penalty = 90
		}
		if penalty > worst {
			worst = penalty
		}
	}
	return 100 - worst
}

// travelDaysScore bands the monthly travel-day load at 2/4/6/8 days.
func travelDaysScore(daysPerMonth int) float64 {
	switch {
	case daysPerMonth <= 2:
		return 100
	case daysPerMonth <= 4:
		return 85
	case daysPerMonth <= 6:
		return 65
	case daysPerMonth <= 8:
		return 45
	default:
		return 25
	}
}

// travelOverlapScore penalizes in proportion to the fraction of the listing's
// duration that falls inside a declared travel-conflict window.
func travelOverlapScore(window match.DateRange, conflicts []match.DateRange) float64 {
	duration := window.Duration()
	if duration <= 0 {
		return 100
	}
	var overlapped time.Duration
	for _, conflict := range conflicts {
		overlapped += window.Overlap(conflict)
	}
	if overlapped > duration {
		overlapped = duration
	}
	fraction := float64(overlapped) / float64(duration)
	return 100 - fraction*100
}

// academicAlignmentScore maps the listing's start month onto the academic
// calendar: breaks score high, heavy coursework periods score low.
func academicAlignmentScore(startMonth int) float64 {
	switch startMonth {
	case 6, 7, 8:
		// Summer break.
		return 95
	case 12, 1:
		// Winter break overlap.
		return 85
	case 5:
		// Finals season.
		return 50
	case 3, 4, 10, 11:
		// Midterm-heavy coursework.
		return 55
	case 0:
		// Unknown start date.
		return 70
	default:
		return 70
	}
}
