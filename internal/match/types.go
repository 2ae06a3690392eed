// Package match defines the shared domain types for the match scoring engine:
// student and listing snapshots consumed from external storage, the athletic
// transfer reference data, and the signal/composite score shapes produced by
// the calculators.
package match

import (
	"errors"
	"time"
)

// Signal names for the six independent match signals.
const (
	SignalTemporalFit      = "temporal_fit"
	SignalSkillsAlignment  = "skills_alignment"
	SignalSustainability   = "sustainability"
	SignalGrowthTrajectory = "growth_trajectory"
	SignalTrustReliability = "trust_reliability"
	SignalNetworkAffinity  = "network_affinity"
)

// SignalNames lists the six signal names in their canonical order.
var SignalNames = []string{
	SignalTemporalFit,
	SignalSkillsAlignment,
	SignalSustainability,
	SignalGrowthTrajectory,
	SignalTrustReliability,
	SignalNetworkAffinity,
}

// Schedule entry types.
const (
	ScheduleTypeSport    = "sport"
	ScheduleTypeAcademic = "academic"
	ScheduleTypeCustom   = "custom"
)

// Application statuses tracked in a student's history.
const (
	ApplicationCompleted = "completed"
	ApplicationAccepted  = "accepted"
	ApplicationWithdrawn = "withdrawn"
	ApplicationRejected  = "rejected"
	ApplicationPending   = "pending"
)

// Validation errors for domain invariants.
var (
	ErrInvalidProficiency = errors.New("invalid proficiency: must be between 1 and 5")
	ErrInvalidRate        = errors.New("invalid rate: must be between 0.0 and 1.0")
	ErrInvalidStrength    = errors.New("invalid transfer strength: must be between 0.0 and 1.0")
)

// SkillInfo is a single student skill with its taxonomy category and a
// per-student proficiency level (1-5, where 3 means "meets expectations").
type SkillInfo struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Proficiency int    `json:"proficiency"`
}

// Validate checks the proficiency invariant.
func (s *SkillInfo) Validate() error {
	if s.Proficiency < 1 || s.Proficiency > 5 {
		return ErrInvalidProficiency
	}
	return nil
}

// DateRange is a closed calendar interval. End is inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlap returns the overlapping duration between two ranges, or zero when
// they do not intersect.
func (r DateRange) Overlap(other DateRange) time.Duration {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// Duration returns the span of the range.
func (r DateRange) Duration() time.Duration {
	if !r.End.After(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

// SportSeason describes the athletic commitment attached to a sport schedule
// entry. Season months may wrap across year-end (e.g. November through March).
type SportSeason struct {
	Sport                   string  `json:"sport"`
	Position                string  `json:"position,omitempty"`
	SeasonStartMonth        int     `json:"season_start_month"` // 1-12
	SeasonEndMonth          int     `json:"season_end_month"`   // 1-12, may be < start (wraps)
	PracticeHoursPerWeek    float64 `json:"practice_hours_per_week"`
	CompetitionHoursPerWeek float64 `json:"competition_hours_per_week"`
	TravelDaysPerMonth      int     `json:"travel_days_per_month"`
	Intensity               int     `json:"intensity"` // 1-5
}

// WeeklyHours returns the combined weekly athletic load for the season.
func (s *SportSeason) WeeklyHours() float64 {
	return s.PracticeHoursPerWeek + s.CompetitionHoursPerWeek
}

// InSeason reports whether the given month (1-12) falls inside the season,
// honoring calendars that wrap across year-end.
func (s *SportSeason) InSeason(month int) bool {
	if s.SeasonStartMonth < 1 || s.SeasonEndMonth < 1 {
		return false
	}
	if s.SeasonStartMonth <= s.SeasonEndMonth {
		return month >= s.SeasonStartMonth && month <= s.SeasonEndMonth
	}
	// Wrapped season, e.g. start=11 end=3 covers Nov-Mar.
	return month >= s.SeasonStartMonth || month <= s.SeasonEndMonth
}

// TimeBlock is a recurring custom time commitment on a schedule entry.
type TimeBlock struct {
	Label        string  `json:"label,omitempty"`
	HoursPerWeek float64 `json:"hours_per_week"`
}

// ScheduleEntry is one active commitment on a student's calendar. Only entries
// with IsActive set participate in scoring.
type ScheduleEntry struct {
	ID              string       `json:"id"`
	Type            string       `json:"type"` // sport, academic, custom
	IsActive        bool         `json:"is_active"`
	Season          *SportSeason `json:"season,omitempty"` // nil for non-sport entries
	TimeBlocks      []TimeBlock  `json:"time_blocks,omitempty"`
	TravelConflicts []DateRange  `json:"travel_conflicts,omitempty"`
	EffectiveFrom   *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo     *time.Time   `json:"effective_to,omitempty"`
}

// ApplicationRecord is one entry in a student's application history, carrying
// a snapshot of the listing attributes at application time.
type ApplicationRecord struct {
	ListingID      string    `json:"listing_id"`
	Status         string    `json:"status"`
	Category       string    `json:"category"`
	RequiredSkills []string  `json:"required_skills,omitempty"`
	AppliedAt      time.Time `json:"applied_at"`

	// CompletedOnTime records whether a completed engagement met its
	// deadline. Nil when the row predates delivery tracking.
	CompletedOnTime *bool `json:"completed_on_time,omitempty"`
}

// StudentData is the full student snapshot the calculators consume. It is
// assembled by a data loader; the engine never reads student storage directly.
type StudentData struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id"`
	Skills       []SkillInfo         `json:"skills,omitempty"`
	Schedules    []ScheduleEntry     `json:"schedules,omitempty"`
	Applications []ApplicationRecord `json:"applications,omitempty"`

	CompletionRate float64 `json:"completion_rate"` // 0.0-1.0
	OnTimeRate     float64 `json:"on_time_rate"`    // 0.0-1.0
	AvgRating      float64 `json:"avg_rating"`      // 0.0-5.0
	RatingCount    int     `json:"rating_count"`

	// ActiveListings counts concurrently accepted listings.
	ActiveListings int `json:"active_listings"`

	JoinedAt time.Time `json:"joined_at"`

	// GPA is free-form profile text; calculators parse it defensively and
	// degrade to a neutral sub-score when it is not a number.
	GPA string `json:"gpa,omitempty"`

	// AvailableHoursPerWeek comes from profile metadata; loaders substitute a
	// default when the profile does not declare it.
	AvailableHoursPerWeek float64 `json:"available_hours_per_week"`
}

// ActiveSchedules returns only the schedule entries that participate in
// scoring.
func (s *StudentData) ActiveSchedules() []ScheduleEntry {
	var active []ScheduleEntry
	for _, entry := range s.Schedules {
		if entry.IsActive {
			active = append(active, entry)
		}
	}
	return active
}

// ListingData is the listing snapshot the calculators consume. Description is
// truncated by the loader; it is opaque context and never scored on full text.
type ListingData struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category"`
	RequiredSkills []string   `json:"required_skills,omitempty"`
	HoursPerWeek   float64    `json:"hours_per_week"`
	DurationWeeks  int        `json:"duration_weeks"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Remote         bool       `json:"remote"`
	Paid           bool       `json:"paid"`
	TenantID       string     `json:"tenant_id"`
	AuthorID       string     `json:"author_id"`
	AuthorCompany  string     `json:"author_company,omitempty"`
	PublishedAt    time.Time  `json:"published_at"`
	MaxStudents    int        `json:"max_students"`
	AcceptedCount  int        `json:"accepted_count"`
}

// AthleticTransferSkill maps a sport/position to a professional skill with a
// transfer-strength weight, crediting athletic experience as a partial
// substitute for a missing skill.
type AthleticTransferSkill struct {
	Sport            string  `json:"sport"`
	Position         string  `json:"position,omitempty"` // empty matches any position
	SkillName        string  `json:"skill_name"`
	SkillCategory    string  `json:"skill_category"`
	TransferStrength float64 `json:"transfer_strength"` // 0.0-1.0
}

// Validate checks the transfer strength invariant.
func (t *AthleticTransferSkill) Validate() error {
	if t.TransferStrength < 0.0 || t.TransferStrength > 1.0 {
		return ErrInvalidStrength
	}
	return nil
}

// SignalResult is the output of a single signal calculator: a 0-100 score and
// a free-form detail map kept for explainability. Details are never used for
// control flow.
type SignalResult struct {
	Name    string         `json:"name"`
	Score   float64        `json:"score"` // 0-100, rounded to a whole number
	Details map[string]any `json:"details,omitempty"`
}

// SignalBreakdown is one signal's contribution inside a composite score.
type SignalBreakdown struct {
	Score   float64        `json:"score"`
	Weight  float64        `json:"weight"`
	Details map[string]any `json:"details,omitempty"`
}

// CompositeScore is the aggregate 0-100 match score with the per-signal
// breakdown retained for explainability.
type CompositeScore struct {
	Score            int                        `json:"score"` // rounded, clamped to [0,100]
	Breakdown        map[string]SignalBreakdown `json:"breakdown"`
	ComputedAt       time.Time                  `json:"computed_at"`
	AlgorithmVersion string                     `json:"algorithm_version"`
}
