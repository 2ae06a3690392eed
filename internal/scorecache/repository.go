package scorecache

import (
	"context"

	"github.com/talentlink/matchengine/internal/match"
)

// StudentScoreOptions filters a student's cached score listing.
type StudentScoreOptions struct {
	// IncludeStale keeps stale records in the result.
	IncludeStale bool
	// Limit caps the result count; zero means no cap.
	Limit int
}

// ListingScoreOptions filters a listing's cached score listing.
type ListingScoreOptions struct {
	Limit int
}

// UpsertOutcome reports what an upsert did.
type UpsertOutcome struct {
	ID       string // record UUID
	Inserted bool   // true when a new record was created
	// HistoryRecorded is true when the write appended a history row: always
	// on insert, and on update only when the score moved by more than
	// HistoryThreshold.
	HistoryRecorded bool
}

// ScoreRepository is the persistence contract for cached match scores and
// the recomputation queue. Concurrent writers for the same pair resolve via
// last-write-wins on the (student_id, listing_id) uniqueness constraint;
// races are structural, never surfaced as errors.
type ScoreRepository interface {
	// GetCachedScore returns the cached score for a pair, or
	// ErrScoreNotFound when none exists.
	GetCachedScore(ctx context.Context, studentID, listingID string) (*CachedMatchScore, error)

	// GetStudentScores returns a student's cached scores ordered by score
	// descending. Stale records are excluded unless opts.IncludeStale.
	GetStudentScores(ctx context.Context, studentID string, opts StudentScoreOptions) ([]*CachedMatchScore, error)

	// GetListingScores returns a listing's cached scores ordered by score
	// descending.
	GetListingScores(ctx context.Context, listingID string, opts ListingScoreOptions) ([]*CachedMatchScore, error)

	// UpsertScore writes a freshly computed composite for a pair. An
	// existing record is updated in place and its staleness cleared; a
	// history row is appended only when the score moved by more than
	// HistoryThreshold. A new record appends an initial history row.
	UpsertScore(ctx context.Context, studentID, listingID, tenantID string, composite match.CompositeScore, computeDurationMs int64) (*UpsertOutcome, error)

	// InvalidateStudentScores marks all of the student's non-stale scores
	// stale and enqueues a single recomputation entry for the student.
	// Returns the number of scores marked.
	InvalidateStudentScores(ctx context.Context, studentID, reason string) (int, error)

	// InvalidateListingScores marks all cached scores for the listing stale
	// and enqueues one entry per affected student, tagged with the listing
	// and at lower priority than student-driven invalidation. Returns the
	// number of scores marked.
	InvalidateListingScores(ctx context.Context, listingID, reason string) (int, error)

	// GetStaleScores returns pending queue entries ordered by priority
	// descending, then queued time ascending.
	GetStaleScores(ctx context.Context, limit int) ([]*QueueEntry, error)

	// MarkProcessed stamps matching unprocessed queue entries as processed.
	// A nil listingID stamps every unprocessed entry for the student.
	MarkProcessed(ctx context.Context, studentID string, listingID *string) error

	// ScoreHistory returns the recorded history for a pair, newest first.
	ScoreHistory(ctx context.Context, studentID, listingID string, limit int) ([]*ScoreHistoryEntry, error)
}
