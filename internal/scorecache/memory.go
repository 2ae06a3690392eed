package scorecache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentlink/matchengine/internal/match"
)

// InMemoryScoreRepository is an in-memory implementation of ScoreRepository.
// Thread-safe via RWMutex. Canonical for unit tests and single-process
// deployments.
type InMemoryScoreRepository struct {
	mu      sync.RWMutex
	scores  map[string]*CachedMatchScore // "studentID\x00listingID" -> record
	history []*ScoreHistoryEntry
	queue   []*QueueEntry
}

// NewInMemoryScoreRepository creates a new in-memory score repository.
func NewInMemoryScoreRepository() *InMemoryScoreRepository {
	return &InMemoryScoreRepository{
		scores: make(map[string]*CachedMatchScore),
	}
}

// pairKey builds the composite map key. IDs are UUIDs, but a NUL separator
// keeps the key unambiguous regardless.
func pairKey(studentID, listingID string) string {
	return studentID + "\x00" + listingID
}

// GetCachedScore returns the cached score for a pair.
func (r *InMemoryScoreRepository) GetCachedScore(ctx context.Context, studentID, listingID string) (*CachedMatchScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.scores[pairKey(studentID, listingID)]
	if !ok {
		return nil, ErrScoreNotFound
	}
	return copyScore(record), nil
}

// GetStudentScores returns a student's cached scores ordered by score descending.
func (r *InMemoryScoreRepository) GetStudentScores(ctx context.Context, studentID string, opts StudentScoreOptions) ([]*CachedMatchScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*CachedMatchScore
	for _, record := range r.scores {
		if record.StudentID != studentID {
			continue
		}
		if record.IsStale && !opts.IncludeStale {
			continue
		}
		records = append(records, copyScore(record))
	}
	sortByScoreDesc(records)
	return truncate(records, opts.Limit), nil
}

// GetListingScores returns a listing's cached scores ordered by score descending.
func (r *InMemoryScoreRepository) GetListingScores(ctx context.Context, listingID string, opts ListingScoreOptions) ([]*CachedMatchScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*CachedMatchScore
	for _, record := range r.scores {
		if record.ListingID != listingID {
			continue
		}
		records = append(records, copyScore(record))
	}
	sortByScoreDesc(records)
	return truncate(records, opts.Limit), nil
}

// UpsertScore writes a freshly computed composite for a pair.
func (r *InMemoryScoreRepository) UpsertScore(ctx context.Context, studentID, listingID, tenantID string, composite match.CompositeScore, computeDurationMs int64) (*UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := pairKey(studentID, listingID)
	newScore := float64(composite.Score)

	if existing, ok := r.scores[key]; ok {
		oldScore := existing.Score
		existing.TenantID = tenantID
		existing.Score = newScore
		existing.Breakdown = copyBreakdown(composite.Breakdown)
		existing.AlgorithmVersion = composite.AlgorithmVersion
		existing.IsStale = false
		existing.ComputedAt = composite.ComputedAt
		existing.ComputeDurationMs = computeDurationMs
		existing.UpdatedAt = now

		recorded := math.Abs(newScore-oldScore) > HistoryThreshold
		if recorded {
			prev := oldScore
			r.history = append(r.history, &ScoreHistoryEntry{
				ID:        uuid.New().String(),
				ScoreID:   existing.ID,
				StudentID: studentID,
				ListingID: listingID,
				OldScore:  &prev,
				NewScore:  newScore,
				Breakdown: copyBreakdown(composite.Breakdown),
				Reason:    HistoryReasonRecomputation,
				CreatedAt: now,
			})
		}
		return &UpsertOutcome{ID: existing.ID, Inserted: false, HistoryRecorded: recorded}, nil
	}

	record := &CachedMatchScore{
		ID:                uuid.New().String(),
		StudentID:         studentID,
		ListingID:         listingID,
		TenantID:          tenantID,
		Score:             newScore,
		Breakdown:         copyBreakdown(composite.Breakdown),
		AlgorithmVersion:  composite.AlgorithmVersion,
		ComputedAt:        composite.ComputedAt,
		ComputeDurationMs: computeDurationMs,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.scores[key] = record
	r.history = append(r.history, &ScoreHistoryEntry{
		ID:        uuid.New().String(),
		ScoreID:   record.ID,
		StudentID: studentID,
		ListingID: listingID,
		NewScore:  newScore,
		Breakdown: copyBreakdown(composite.Breakdown),
		Reason:    HistoryReasonInitial,
		CreatedAt: now,
	})
	return &UpsertOutcome{ID: record.ID, Inserted: true, HistoryRecorded: true}, nil
}

// InvalidateStudentScores marks all of the student's non-stale scores stale
// and enqueues a single recomputation entry.
func (r *InMemoryScoreRepository) InvalidateStudentScores(ctx context.Context, studentID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var marked int
	for _, record := range r.scores {
		if record.StudentID == studentID && !record.IsStale {
			record.IsStale = true
			record.UpdatedAt = time.Now().UTC()
			marked++
		}
	}
	r.enqueueLocked(studentID, nil, reason, PriorityStudentChange)
	return marked, nil
}

// InvalidateListingScores marks all cached scores for the listing stale and
// enqueues one lower-priority entry per affected student.
func (r *InMemoryScoreRepository) InvalidateListingScores(ctx context.Context, listingID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var marked int
	students := make(map[string]bool)
	for _, record := range r.scores {
		if record.ListingID != listingID {
			continue
		}
		if !record.IsStale {
			record.IsStale = true
			record.UpdatedAt = time.Now().UTC()
			marked++
		}
		students[record.StudentID] = true
	}
	for studentID := range students {
		listing := listingID
		r.enqueueLocked(studentID, &listing, reason, PriorityListingChange)
	}
	return marked, nil
}

// enqueueLocked appends a queue entry unless an identical pending entry
// already exists. Callers must hold the write lock.
func (r *InMemoryScoreRepository) enqueueLocked(studentID string, listingID *string, reason string, priority int) {
	for _, entry := range r.queue {
		if entry.ProcessedAt != nil || entry.StudentID != studentID {
			continue
		}
		if (entry.ListingID == nil) != (listingID == nil) {
			continue
		}
		if entry.ListingID != nil && *entry.ListingID != *listingID {
			continue
		}
		// Duplicate enqueue for a pending pair is a no-op.
		return
	}
	r.queue = append(r.queue, &QueueEntry{
		ID:        uuid.New().String(),
		StudentID: studentID,
		ListingID: listingID,
		Reason:    reason,
		Priority:  priority,
		QueuedAt:  time.Now().UTC(),
	})
}

// GetStaleScores returns pending queue entries ordered by priority
// descending, then queued time ascending.
func (r *InMemoryScoreRepository) GetStaleScores(ctx context.Context, limit int) ([]*QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*QueueEntry
	for _, entry := range r.queue {
		if entry.ProcessedAt == nil {
			pending = append(pending, copyQueueEntry(entry))
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].QueuedAt.Before(pending[j].QueuedAt)
	})
	return truncate(pending, limit), nil
}

// MarkProcessed stamps matching unprocessed entries as processed.
func (r *InMemoryScoreRepository) MarkProcessed(ctx context.Context, studentID string, listingID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, entry := range r.queue {
		if entry.ProcessedAt != nil || entry.StudentID != studentID {
			continue
		}
		if listingID != nil {
			if entry.ListingID == nil || *entry.ListingID != *listingID {
				continue
			}
		}
		stamp := now
		entry.ProcessedAt = &stamp
	}
	return nil
}

// ScoreHistory returns recorded history for a pair, newest first.
func (r *InMemoryScoreRepository) ScoreHistory(ctx context.Context, studentID, listingID string, limit int) ([]*ScoreHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*ScoreHistoryEntry
	for _, entry := range r.history {
		if entry.StudentID == studentID && entry.ListingID == listingID {
			entryCopy := *entry
			entries = append(entries, &entryCopy)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return truncate(entries, limit), nil
}

// copyScore returns a deep copy to avoid external modification.
func copyScore(record *CachedMatchScore) *CachedMatchScore {
	recordCopy := *record
	recordCopy.Breakdown = copyBreakdown(record.Breakdown)
	return &recordCopy
}

// copyBreakdown shallow-copies the per-signal breakdown map.
func copyBreakdown(breakdown map[string]match.SignalBreakdown) map[string]match.SignalBreakdown {
	if breakdown == nil {
		return nil
	}
	result := make(map[string]match.SignalBreakdown, len(breakdown))
	for name, entry := range breakdown {
		result[name] = entry
	}
	return result
}

// copyQueueEntry returns a copy of a queue entry.
func copyQueueEntry(entry *QueueEntry) *QueueEntry {
	entryCopy := *entry
	if entry.ListingID != nil {
		listing := *entry.ListingID
		entryCopy.ListingID = &listing
	}
	if entry.ProcessedAt != nil {
		processed := *entry.ProcessedAt
		entryCopy.ProcessedAt = &processed
	}
	return &entryCopy
}

// sortByScoreDesc orders records by score descending.
func sortByScoreDesc(records []*CachedMatchScore) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
}

// truncate caps a slice at limit when limit is positive.
func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
