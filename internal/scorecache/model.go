// Package scorecache owns the persisted match-score records: the cached
// score per (student, listing) pair, the history of significant score
// changes, and the durable recomputation queue. No other package writes
// these records.
package scorecache

import (
	"errors"
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

// HistoryThreshold is the minimum score movement (in points) that records a
// history entry on recomputation. Smaller movements update the record in
// place without history noise.
const HistoryThreshold = 0.5

// History reasons.
const (
	HistoryReasonInitial       = "initial"
	HistoryReasonRecomputation = "recomputation"
)

// Queue priorities. Student-driven invalidation outranks listing-driven
// invalidation because a student profile change affects every pair the
// student appears in.
const (
	PriorityStudentChange = 10
	PriorityListingChange = 5
)

// Common errors for score cache operations.
var (
	// ErrScoreNotFound is returned when no cached score exists for a pair.
	ErrScoreNotFound = errors.New("cached score not found")
)

// CachedMatchScore is the persisted form of a composite score, keyed
// uniquely by (StudentID, ListingID).
type CachedMatchScore struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	ListingID string `json:"listing_id"`
	TenantID  string `json:"tenant_id"`

	Score            float64                          `json:"score"`
	Breakdown        map[string]match.SignalBreakdown `json:"breakdown,omitempty"`
	AlgorithmVersion string                           `json:"algorithm_version"`

	// IsStale marks that a contributing input changed after ComputedAt. A
	// stale score is still readable but is a recomputation candidate.
	IsStale bool `json:"is_stale"`

	ComputedAt        time.Time `json:"computed_at"`
	ComputeDurationMs int64     `json:"compute_duration_ms"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Composite reconstructs the CompositeScore view of a cached record.
func (c *CachedMatchScore) Composite() match.CompositeScore {
	return match.CompositeScore{
		Score:            int(c.Score + 0.5),
		Breakdown:        c.Breakdown,
		ComputedAt:       c.ComputedAt,
		AlgorithmVersion: c.AlgorithmVersion,
	}
}

// ScoreHistoryEntry records a significant score change for a pair.
type ScoreHistoryEntry struct {
	ID        string `json:"id"`
	ScoreID   string `json:"score_id"`
	StudentID string `json:"student_id"`
	ListingID string `json:"listing_id"`

	OldScore  *float64                         `json:"old_score,omitempty"` // nil for the initial entry
	NewScore  float64                          `json:"new_score"`
	Breakdown map[string]match.SignalBreakdown `json:"breakdown,omitempty"`
	Reason    string                           `json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}

// QueueEntry is one pending recomputation item. A nil ListingID means every
// pair for the student is pending. Duplicate enqueues for the same pending
// pair are no-ops.
type QueueEntry struct {
	ID        string  `json:"id"`
	StudentID string  `json:"student_id"`
	ListingID *string `json:"listing_id,omitempty"`
	Reason    string  `json:"reason"`
	Priority  int     `json:"priority"`

	QueuedAt    time.Time  `json:"queued_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
