package scorecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/talentlink/matchengine/internal/match"
)

// PostgresScoreRepository implements ScoreRepository on PostgreSQL. The
// (student_id, listing_id) uniqueness constraint resolves concurrent writers
// for the same pair as last-write-wins; the upsert and its history append run
// in one transaction so a history row can never orphan.
type PostgresScoreRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresScoreRepository creates a new Postgres-backed score repository.
func NewPostgresScoreRepository(db *sql.DB, logger *slog.Logger) *PostgresScoreRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresScoreRepository{db: db, logger: logger}
}

const scoreColumns = `id, student_id, listing_id, tenant_id, score, breakdown,
	algorithm_version, is_stale, computed_at, compute_duration_ms, created_at, updated_at`

// GetCachedScore returns the cached score for a pair.
func (r *PostgresScoreRepository) GetCachedScore(ctx context.Context, studentID, listingID string) (*CachedMatchScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM match_scores WHERE student_id = $1 AND listing_id = $2`
	record, err := scanScore(r.db.QueryRowContext(ctx, query, studentID, listingID))
	if err == sql.ErrNoRows {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached score: %w", err)
	}
	return record, nil
}

// GetStudentScores returns a student's cached scores ordered by score descending.
func (r *PostgresScoreRepository) GetStudentScores(ctx context.Context, studentID string, opts StudentScoreOptions) ([]*CachedMatchScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM match_scores WHERE student_id = $1`
	if !opts.IncludeStale {
		query += ` AND is_stale = FALSE`
	}
	query += ` ORDER BY score DESC`
	args := []any{studentID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}
	return r.queryScores(ctx, query, args...)
}

// GetListingScores returns a listing's cached scores ordered by score descending.
func (r *PostgresScoreRepository) GetListingScores(ctx context.Context, listingID string, opts ListingScoreOptions) ([]*CachedMatchScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM match_scores WHERE listing_id = $1 ORDER BY score DESC`
	args := []any{listingID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}
	return r.queryScores(ctx, query, args...)
}

func (r *PostgresScoreRepository) queryScores(ctx context.Context, query string, args ...any) ([]*CachedMatchScore, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close score rows", "error", err)
		}
	}()

	var records []*CachedMatchScore
	for rows.Next() {
		record, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score rows: %w", err)
	}
	return records, nil
}

// UpsertScore writes a freshly computed composite for a pair inside one
// transaction covering the score write and the history append.
func (r *PostgresScoreRepository) UpsertScore(ctx context.Context, studentID, listingID, tenantID string, composite match.CompositeScore, computeDurationMs int64) (*UpsertOutcome, error) {
	breakdownJSON, err := json.Marshal(composite.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	newScore := float64(composite.Score)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback upsert transaction", "error", err)
		}
	}()

	// Read the prior score first; the ON CONFLICT below makes the race
	// last-write-wins, so a concurrently written "old score" may be observed
	// here. That is an accepted cost of skipping row locks.
	var oldScore sql.NullFloat64
	var existingID sql.NullString
	checkQuery := `SELECT id, score FROM match_scores WHERE student_id = $1 AND listing_id = $2`
	err = tx.QueryRowContext(ctx, checkQuery, studentID, listingID).Scan(&existingID, &oldScore)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing score: %w", err)
	}

	recordID := uuid.New().String()
	upsertQuery := `
		INSERT INTO match_scores (id, student_id, listing_id, tenant_id, score, breakdown,
			algorithm_version, is_stale, computed_at, compute_duration_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9, NOW(), NOW())
		ON CONFLICT (student_id, listing_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			score = EXCLUDED.score,
			breakdown = EXCLUDED.breakdown,
			algorithm_version = EXCLUDED.algorithm_version,
			is_stale = FALSE,
			computed_at = EXCLUDED.computed_at,
			compute_duration_ms = EXCLUDED.compute_duration_ms,
			updated_at = NOW()
		RETURNING id
	`
	var upsertedID string
	err = tx.QueryRowContext(ctx, upsertQuery, recordID, studentID, listingID, tenantID,
		newScore, breakdownJSON, composite.AlgorithmVersion, composite.ComputedAt, computeDurationMs).Scan(&upsertedID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert score: %w", err)
	}

	inserted := !existingID.Valid
	historyRecorded := inserted || math.Abs(newScore-oldScore.Float64) > HistoryThreshold
	if historyRecorded {
		reason := HistoryReasonRecomputation
		var old any
		if inserted {
			reason = HistoryReasonInitial
		} else {
			old = oldScore.Float64
		}
		historyQuery := `
			INSERT INTO match_score_history (id, score_id, student_id, listing_id, old_score, new_score, breakdown, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`
		_, err = tx.ExecContext(ctx, historyQuery, uuid.New().String(), upsertedID,
			studentID, listingID, old, newScore, breakdownJSON, reason)
		if err != nil {
			return nil, fmt.Errorf("failed to append score history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}

	r.logger.Debug("score upserted",
		"student_id", studentID,
		"listing_id", listingID,
		"score", newScore,
		"inserted", inserted,
		"history_recorded", historyRecorded)

	return &UpsertOutcome{ID: upsertedID, Inserted: inserted, HistoryRecorded: historyRecorded}, nil
}

// InvalidateStudentScores marks the student's non-stale scores stale and
// enqueues a single recomputation entry for the student.
func (r *PostgresScoreRepository) InvalidateStudentScores(ctx context.Context, studentID, reason string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE match_scores SET is_stale = TRUE, updated_at = NOW() WHERE student_id = $1 AND is_stale = FALSE`,
		studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate student scores: %w", err)
	}
	marked, _ := result.RowsAffected()

	if err := r.enqueue(ctx, studentID, nil, reason, PriorityStudentChange); err != nil {
		return int(marked), err
	}
	return int(marked), nil
}

// InvalidateListingScores marks all cached scores for the listing stale and
// enqueues one lower-priority entry per affected student.
func (r *PostgresScoreRepository) InvalidateListingScores(ctx context.Context, listingID, reason string) (int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT student_id FROM match_scores WHERE listing_id = $1`, listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to list affected students: %w", err)
	}
	var students []string
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan student id: %w", err)
		}
		students = append(students, studentID)
	}
	if err := rows.Close(); err != nil {
		r.logger.Warn("failed to close student rows", "error", err)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate affected students: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE match_scores SET is_stale = TRUE, updated_at = NOW() WHERE listing_id = $1 AND is_stale = FALSE`,
		listingID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate listing scores: %w", err)
	}
	marked, _ := result.RowsAffected()

	for _, studentID := range students {
		if err := r.enqueue(ctx, studentID, &listingID, reason, PriorityListingChange); err != nil {
			return int(marked), err
		}
	}
	return int(marked), nil
}

// enqueue inserts a recomputation entry. The partial unique index on pending
// entries makes a duplicate enqueue for the same pending pair a no-op.
func (r *PostgresScoreRepository) enqueue(ctx context.Context, studentID string, listingID *string, reason string, priority int) error {
	query := `
		INSERT INTO recompute_queue (id, student_id, listing_id, reason, priority, queued_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), studentID, listingID, reason, priority)
	if err != nil {
		return fmt.Errorf("failed to enqueue recomputation: %w", err)
	}
	return nil
}

// GetStaleScores returns pending queue entries ordered by priority
// descending, then queued time ascending.
func (r *PostgresScoreRepository) GetStaleScores(ctx context.Context, limit int) ([]*QueueEntry, error) {
	query := `
		SELECT id, student_id, listing_id, reason, priority, queued_at, processed_at
		FROM recompute_queue
		WHERE processed_at IS NULL
		ORDER BY priority DESC, queued_at ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recompute queue: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close queue rows", "error", err)
		}
	}()

	var entries []*QueueEntry
	for rows.Next() {
		entry := &QueueEntry{}
		var listingID sql.NullString
		var processedAt pq.NullTime
		if err := rows.Scan(&entry.ID, &entry.StudentID, &listingID, &entry.Reason,
			&entry.Priority, &entry.QueuedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		if listingID.Valid {
			listing := listingID.String
			entry.ListingID = &listing
		}
		if processedAt.Valid {
			processed := processedAt.Time
			entry.ProcessedAt = &processed
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return entries, nil
}

// MarkProcessed stamps matching unprocessed entries as processed. A nil
// listingID stamps every unprocessed entry for the student.
func (r *PostgresScoreRepository) MarkProcessed(ctx context.Context, studentID string, listingID *string) error {
	var err error
	if listingID == nil {
		_, err = r.db.ExecContext(ctx,
			`UPDATE recompute_queue SET processed_at = NOW() WHERE student_id = $1 AND processed_at IS NULL`,
			studentID)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE recompute_queue SET processed_at = NOW() WHERE student_id = $1 AND listing_id = $2 AND processed_at IS NULL`,
			studentID, *listingID)
	}
	if err != nil {
		return fmt.Errorf("failed to mark queue entries processed: %w", err)
	}
	return nil
}

// ScoreHistory returns recorded history for a pair, newest first.
func (r *PostgresScoreRepository) ScoreHistory(ctx context.Context, studentID, listingID string, limit int) ([]*ScoreHistoryEntry, error) {
	query := `
		SELECT id, score_id, student_id, listing_id, old_score, new_score, breakdown, reason, created_at
		FROM match_score_history
		WHERE student_id = $1 AND listing_id = $2
		ORDER BY created_at DESC
	`
	args := []any{studentID, listingID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close history rows", "error", err)
		}
	}()

	var entries []*ScoreHistoryEntry
	for rows.Next() {
		entry := &ScoreHistoryEntry{}
		var oldScore sql.NullFloat64
		var breakdownJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ScoreID, &entry.StudentID, &entry.ListingID,
			&oldScore, &entry.NewScore, &breakdownJSON, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if oldScore.Valid {
			old := oldScore.Float64
			entry.OldScore = &old
		}
		if len(breakdownJSON) > 0 {
			if err := json.Unmarshal(breakdownJSON, &entry.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to unmarshal history breakdown: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return entries, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanScore.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanScore reads one match_scores row.
func scanScore(row rowScanner) (*CachedMatchScore, error) {
	record := &CachedMatchScore{}
	var breakdownJSON []byte
	var computedAt time.Time
	err := row.Scan(&record.ID, &record.StudentID, &record.ListingID, &record.TenantID,
		&record.Score, &breakdownJSON, &record.AlgorithmVersion, &record.IsStale,
		&computedAt, &record.ComputeDurationMs, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.ComputedAt = computedAt
	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &record.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	return record, nil
}
