package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/talentlink/matchengine/internal/match"
)

// DefaultProficiency is assumed when a student skill row has no explicit
// proficiency override.
const DefaultProficiency = 3

// PostgresLoader implements the loader interfaces over the surrounding
// application's PostgreSQL schema. All reads are read-only from the engine's
// perspective.
type PostgresLoader struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresLoader creates a new Postgres-backed loader.
func NewPostgresLoader(db *sql.DB, logger *slog.Logger) *PostgresLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLoader{db: db, logger: logger}
}

// LoadStudent assembles the full student snapshot from the student record,
// joined skills, active schedules with season data, application history, and
// rating aggregates. Completion and on-time rates are derived from the
// application history.
func (l *PostgresLoader) LoadStudent(ctx context.Context, studentID string) (*match.StudentData, error) {
	student := &match.StudentData{ID: studentID}

	var gpa sql.NullString
	var weeklyHours sql.NullFloat64
	query := `SELECT tenant_id, gpa, weekly_hours, created_at FROM students WHERE id = $1`
	err := l.db.QueryRowContext(ctx, query, studentID).Scan(&student.TenantID, &gpa, &weeklyHours, &student.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	student.GPA = gpa.String
	if weeklyHours.Valid && weeklyHours.Float64 > 0 {
		student.AvailableHoursPerWeek = weeklyHours.Float64
	}

	if student.Skills, err = l.loadSkills(ctx, studentID); err != nil {
		return nil, err
	}
	if student.Schedules, err = l.loadSchedules(ctx, studentID); err != nil {
		return nil, err
	}
	if student.Applications, err = l.loadApplications(ctx, studentID); err != nil {
		return nil, err
	}
	deriveApplicationStats(student)

	ratingQuery := `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM student_ratings WHERE student_id = $1`
	if err := l.db.QueryRowContext(ctx, ratingQuery, studentID).Scan(&student.AvgRating, &student.RatingCount); err != nil {
		return nil, fmt.Errorf("failed to load rating stats: %w", err)
	}

	return student, nil
}

// loadSkills joins student skill rows with the skill taxonomy, substituting
// the default proficiency when no override is set.
func (l *PostgresLoader) loadSkills(ctx context.Context, studentID string) ([]match.SkillInfo, error) {
	query := `
		SELECT s.name, s.category, COALESCE(ss.proficiency, $2)
		FROM student_skills ss
		JOIN skills s ON s.id = ss.skill_id
		WHERE ss.student_id = $1
	`
	rows, err := l.db.QueryContext(ctx, query, studentID, DefaultProficiency)
	if err != nil {
		return nil, fmt.Errorf("failed to load student skills: %w", err)
	}
	defer l.closeRows(rows, "skill")

	var skills []match.SkillInfo
	for rows.Next() {
		var skill match.SkillInfo
		if err := rows.Scan(&skill.Name, &skill.Category, &skill.Proficiency); err != nil {
			return nil, fmt.Errorf("failed to scan skill row: %w", err)
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

// loadSchedules reads active schedule entries with their season reference
// data joined in. Season columns are null for non-sport schedule types.
func (l *PostgresLoader) loadSchedules(ctx context.Context, studentID string) ([]match.ScheduleEntry, error) {
	query := `
		SELECT sch.id, sch.type, sch.weekly_hours, sch.travel_starts, sch.travel_ends,
			sea.sport, sea.position, sea.season_start_month, sea.season_end_month,
			sea.practice_hours_per_week, sea.competition_hours_per_week,
			sea.travel_days_per_month, sea.intensity
		FROM student_schedules sch
		LEFT JOIN sport_seasons sea ON sea.id = sch.season_id
		WHERE sch.student_id = $1 AND sch.is_active = TRUE
	`
	rows, err := l.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	defer l.closeRows(rows, "schedule")

	var schedules []match.ScheduleEntry
	for rows.Next() {
		entry := match.ScheduleEntry{IsActive: true}
		var weeklyHours sql.NullFloat64
		var travelStarts, travelEnds []time.Time
		var sport, position sql.NullString
		var startMonth, endMonth, travelDays, intensity sql.NullInt64
		var practice, competition sql.NullFloat64

		if err := rows.Scan(&entry.ID, &entry.Type, &weeklyHours,
			pq.Array(&travelStarts), pq.Array(&travelEnds),
			&sport, &position, &startMonth, &endMonth,
			&practice, &competition, &travelDays, &intensity); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}

		if weeklyHours.Valid && weeklyHours.Float64 > 0 {
			entry.TimeBlocks = []match.TimeBlock{{HoursPerWeek: weeklyHours.Float64}}
		}
		for i := range travelStarts {
			if i < len(travelEnds) {
				entry.TravelConflicts = append(entry.TravelConflicts, match.DateRange{
					Start: travelStarts[i],
					End:   travelEnds[i],
				})
			}
		}
		if sport.Valid {
			entry.Season = &match.SportSeason{
				Sport:                   sport.String,
				Position:                position.String,
				SeasonStartMonth:        int(startMonth.Int64),
				SeasonEndMonth:          int(endMonth.Int64),
				PracticeHoursPerWeek:    practice.Float64,
				CompetitionHoursPerWeek: competition.Float64,
				TravelDaysPerMonth:      int(travelDays.Int64),
				Intensity:               int(intensity.Int64),
			}
		}
		schedules = append(schedules, entry)
	}
	return schedules, rows.Err()
}

// loadApplications reads the student's application history with the listing
// attribute snapshots taken at application time.
func (l *PostgresLoader) loadApplications(ctx context.Context, studentID string) ([]match.ApplicationRecord, error) {
	query := `
		SELECT listing_id, status, category, required_skills, applied_at, completed_on_time
		FROM applications
		WHERE student_id = $1
		ORDER BY applied_at DESC
	`
	rows, err := l.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	defer l.closeRows(rows, "application")

	var applications []match.ApplicationRecord
	for rows.Next() {
		var app match.ApplicationRecord
		var onTime sql.NullBool
		if err := rows.Scan(&app.ListingID, &app.Status, &app.Category,
			pq.Array(&app.RequiredSkills), &app.AppliedAt, &onTime); err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		if onTime.Valid {
			value := onTime.Bool
			app.CompletedOnTime = &value
		}
		applications = append(applications, app)
	}
	return applications, rows.Err()
}

// ListCandidateStudents returns a bounded candidate set, optionally
// tenant-scoped, newest students first.
func (l *PostgresLoader) ListCandidateStudents(ctx context.Context, tenantID string, limit int) ([]string, error) {
	query := `SELECT id FROM students`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)
	return l.queryIDs(ctx, query, args...)
}

// LoadListing returns the listing snapshot with the author's company name
// denormalized in and the description truncated.
func (l *PostgresLoader) LoadListing(ctx context.Context, listingID string) (*match.ListingData, error) {
	listing := &match.ListingData{ID: listingID}
	query := `
		SELECT l.title, l.description, l.category, l.required_skills, l.hours_per_week,
			l.duration_weeks, l.start_date, l.end_date, l.remote, l.paid,
			l.tenant_id, l.author_id, COALESCE(u.company_name, ''), l.published_at,
			l.max_students, l.accepted_count
		FROM listings l
		LEFT JOIN users u ON u.id = l.author_id
		WHERE l.id = $1
	`
	err := scanListing(listing, l.db.QueryRowContext(ctx, query, listingID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

// listingRow abstracts *sql.Row for scanListing.
type listingRow interface {
	Scan(dest ...any) error
}

// scanListing maps one listing row onto the snapshot. Description, dates,
// author and publish time are nullable: drafts have no published_at and a
// listing can outlive its author.
func scanListing(listing *match.ListingData, row listingRow) error {
	var description, authorID sql.NullString
	var startDate, endDate, publishedAt sql.NullTime
	if err := row.Scan(
		&listing.Title, &description, &listing.Category, pq.Array(&listing.RequiredSkills),
		&listing.HoursPerWeek, &listing.DurationWeeks, &startDate, &endDate,
		&listing.Remote, &listing.Paid, &listing.TenantID, &authorID,
		&listing.AuthorCompany, &publishedAt, &listing.MaxStudents, &listing.AcceptedCount); err != nil {
		return err
	}
	listing.Description = TruncateDescription(description.String)
	listing.AuthorID = authorID.String
	if publishedAt.Valid {
		listing.PublishedAt = publishedAt.Time
	}
	if startDate.Valid {
		start := startDate.Time
		listing.StartDate = &start
	}
	if endDate.Valid {
		end := endDate.Time
		listing.EndDate = &end
	}
	return nil
}

// ListPublishedListings returns published listing IDs newest first,
// optionally tenant-scoped.
func (l *PostgresLoader) ListPublishedListings(ctx context.Context, tenantID string, limit int) ([]string, error) {
	query := `SELECT id FROM listings WHERE published_at IS NOT NULL`
	args := []any{}
	if tenantID != "" {
		query += ` AND tenant_id = $1`
		args = append(args, tenantID)
	}
	query += fmt.Sprintf(` ORDER BY published_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)
	return l.queryIDs(ctx, query, args...)
}

// LoadTransfers reads the static athletic-skill-transfer reference table.
func (l *PostgresLoader) LoadTransfers(ctx context.Context) ([]match.AthleticTransferSkill, error) {
	query := `
		SELECT sport, COALESCE(position, ''), skill_name, skill_category, transfer_strength
		FROM athletic_skill_transfers
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load athletic transfers: %w", err)
	}
	defer l.closeRows(rows, "transfer")

	var transfers []match.AthleticTransferSkill
	for rows.Next() {
		var transfer match.AthleticTransferSkill
		if err := rows.Scan(&transfer.Sport, &transfer.Position, &transfer.SkillName,
			&transfer.SkillCategory, &transfer.TransferStrength); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

func (l *PostgresLoader) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer l.closeRows(rows, "id")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (l *PostgresLoader) closeRows(rows *sql.Rows, entity string) {
	if err := rows.Close(); err != nil {
		l.logger.Warn("failed to close rows", "entity", entity, "error", err)
	}
}

// deriveApplicationStats fills the rate and concurrency aggregates the
// calculators consume from the raw application history. Completion rate is
// completed over terminal applications; on-time rate counts completed
// applications with a recorded delivery outcome.
func deriveApplicationStats(student *match.StudentData) {
	var terminal, completed, active int
	var onTimeKnown, onTime int
	for _, app := range student.Applications {
		switch app.Status {
		case match.ApplicationCompleted:
			terminal++
			completed++
			if app.CompletedOnTime != nil {
				onTimeKnown++
				if *app.CompletedOnTime {
					onTime++
				}
			}
		case match.ApplicationWithdrawn, match.ApplicationRejected:
			terminal++
		case match.ApplicationAccepted:
			active++
		}
	}
	student.ActiveListings = active
	if terminal > 0 {
		student.CompletionRate = float64(completed) / float64(terminal)
	}
	switch {
	case onTimeKnown > 0:
		student.OnTimeRate = float64(onTime) / float64(onTimeKnown)
	case terminal > 0:
		// History predates delivery tracking; assume parity with the
		// completion record rather than the worst band.
		student.OnTimeRate = student.CompletionRate
	}
}
