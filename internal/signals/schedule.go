package signals

import (
	"strconv"
	"strings"
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// DefaultAvailableHours is the weekly availability assumed when a student's
// profile does not declare one.
const DefaultAvailableHours = 20.0

// activeSportSeasons collects the seasons attached to active sport schedule
// entries. Non-sport entries never carry a season.
func activeSportSeasons(student *match.StudentData) []*match.SportSeason {
	var seasons []*match.SportSeason
	for _, entry := range student.ActiveSchedules() {
		if entry.Type == match.ScheduleTypeSport && entry.Season != nil {
			seasons = append(seasons, entry.Season)
		}
	}
	return seasons
}

// athleticWeeklyHours returns the combined weekly athletic load across all
// active sport seasons that are in season for the given month. A zero month
// counts every active season.
func athleticWeeklyHours(student *match.StudentData, month int) float64 {
	var hours float64
	for _, season := range activeSportSeasons(student) {
		if month == 0 || season.InSeason(month) {
			hours += season.WeeklyHours()
		}
	}
	return hours
}

// customWeeklyHours sums the recurring time-block hours on active custom and
// academic schedule entries.
func customWeeklyHours(student *match.StudentData) float64 {
	var hours float64
	for _, entry := range student.ActiveSchedules() {
		for _, block := range entry.TimeBlocks {
			hours += block.HoursPerWeek
		}
	}
	return hours
}

// travelWindows collects the explicit travel-conflict date ranges on active
// schedule entries.
func travelWindows(student *match.StudentData) []match.DateRange {
	var windows []match.DateRange
	for _, entry := range student.ActiveSchedules() {
		windows = append(windows, entry.TravelConflicts...)
	}
	return windows
}

// maxTravelDaysPerMonth returns the heaviest monthly travel load among active
// sport seasons.
func maxTravelDaysPerMonth(student *match.StudentData) int {
	var max int
	for _, season := range activeSportSeasons(student) {
		if season.TravelDaysPerMonth > max {
			max = season.TravelDaysPerMonth
		}
	}
	return max
}

// peakSeasonIntensity returns the highest intensity among active sport
// seasons, or 0 when the student has none.
func peakSeasonIntensity(student *match.StudentData) int {
	var peak int
	for _, season := range activeSportSeasons(student) {
		if season.Intensity > peak {
			peak = season.Intensity
		}
	}
	return peak
}

// availableHours returns the student's declared weekly availability, falling
// back to the platform default when unset or nonsensical.
func availableHours(student *match.StudentData) float64 {
	if student.AvailableHoursPerWeek > 0 {
		return student.AvailableHoursPerWeek
	}
	return DefaultAvailableHours
}

// listingWindow derives the date range a listing occupies. When the end date
// is missing it is estimated from the duration; a listing with no start date
// has no window.
func listingWindow(listing *match.ListingData) (match.DateRange, bool) {
	if listing.StartDate == nil {
		return match.DateRange{}, false
	}
	start := *listing.StartDate
	var end time.Time
	switch {
	case listing.EndDate != nil:
		end = *listing.EndDate
	case listing.DurationWeeks > 0:
		end = start.AddDate(0, 0, listing.DurationWeeks*7)
	default:
		// Assume a quarter when nothing else is known.
		end = start.AddDate(0, 3, 0)
	}
	if !end.After(start) {
		return match.DateRange{}, false
	}
	return match.DateRange{Start: start, End: end}, true
}

// parseGPA interprets the free-form GPA profile field. Returns false when the
// value cannot be read as a number in the 0-5 range.
func parseGPA(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	gpa, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || gpa < 0 || gpa > 5 {
		return 0, false
	}
	return gpa, true
}

// normalizeSkill lowercases and trims a skill name for matching.
func normalizeSkill(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
