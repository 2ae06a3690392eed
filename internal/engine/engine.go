// Package engine orchestrates match scoring: it wires the data loaders, the
// signal calculators, the composite scorer, and the score cache into the
// public compute and batch-query operations.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/talentlink/matchengine/internal/loader"
	"github.com/talentlink/matchengine/internal/match"
	"github.com/talentlink/matchengine/internal/scorecache"
	"github.com/talentlink/matchengine/internal/scoring"
	"github.com/talentlink/matchengine/internal/signals"
)

// MaxComputePerCall caps how many missing or stale pairs a single batch call
// recomputes synchronously. Remaining pairs are left for a later call or the
// background sweep.
const MaxComputePerCall = 20

// DefaultCandidateLimit bounds the candidate set a batch call fetches before
// comparing against cached scores.
const DefaultCandidateLimit = 200

// Batch queries fail fast on a missing subject. Only the single-pair compute
// treats a missing party as a zero score.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrListingNotFound = errors.New("listing not found")
)

// Config wires an Engine's collaborators. Students, Listings, Transfers and
// Repo are required; the rest default sensibly.
type Config struct {
	Students  loader.StudentLoader
	Listings  loader.ListingLoader
	Transfers loader.TransferLoader
	Repo      scorecache.ScoreRepository

	// Defaults is the engine config applied when a call passes none.
	Defaults scoring.EngineConfig

	Logger       *slog.Logger
	Metrics      *Metrics
	CacheMetrics *scorecache.Metrics
}

// Engine is the public entry point for match scoring.
type Engine struct {
	students  loader.StudentLoader
	listings  loader.ListingLoader
	transfers loader.TransferLoader
	repo      scorecache.ScoreRepository

	defaults     scoring.EngineConfig
	logger       *slog.Logger
	metrics      *Metrics
	cacheMetrics *scorecache.Metrics
}

// New creates an Engine from its collaborators.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Defaults.Weights.Sum() == 0 {
		cfg.Defaults = scoring.DefaultConfig()
	}
	return &Engine{
		students:     cfg.Students,
		listings:     cfg.Listings,
		transfers:    cfg.Transfers,
		repo:         cfg.Repo,
		defaults:     cfg.Defaults,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		cacheMetrics: cfg.CacheMetrics,
	}
}

// ComputeOptions controls a single-pair computation.
type ComputeOptions struct {
	// ForceRecompute skips the cache read and always recomputes.
	ForceRecompute bool
	// TenantID is stamped onto the persisted score record.
	TenantID string
	// Config overrides the engine defaults for this call.
	Config *scoring.EngineConfig
}

// MatchQuery controls a batch match listing.
type MatchQuery struct {
	// Limit caps the returned matches; zero falls back to the resolved
	// config's MaxResults.
	Limit int
	// MinScore filters out matches scoring below it.
	MinScore float64
	// TenantID scopes the candidate set and is stamped onto computed records.
	TenantID string
	// Config overrides the engine defaults for this call.
	Config *scoring.EngineConfig
}

// StudentMatch is one ranked listing for a student, with denormalized
// listing detail and the skill breakdown for explainability.
type StudentMatch struct {
	ListingID  string    `json:"listing_id"`
	Score      int       `json:"score"`
	IsStale    bool      `json:"is_stale"`
	ComputedAt time.Time `json:"computed_at"`

	Listing *ListingSummary `json:"listing,omitempty"`

	MatchedSkills      []string `json:"matched_skills"`
	MissingSkills      []string `json:"missing_skills"`
	TransferableSkills []string `json:"transferable_skills"`

	Breakdown map[string]match.SignalBreakdown `json:"breakdown,omitempty"`
}

// ListingSummary is the denormalized listing detail attached to a match.
type ListingSummary struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	AuthorCompany string    `json:"author_company,omitempty"`
	HoursPerWeek  float64   `json:"hours_per_week"`
	Remote        bool      `json:"remote"`
	Paid          bool      `json:"paid"`
	PublishedAt   time.Time `json:"published_at"`
}

// ListingMatch is one ranked student for a listing owner's view.
type ListingMatch struct {
	StudentID  string    `json:"student_id"`
	Score      int       `json:"score"`
	IsStale    bool      `json:"is_stale"`
	ComputedAt time.Time `json:"computed_at"`

	MatchedSkills      []string `json:"matched_skills"`
	MissingSkills      []string `json:"missing_skills"`
	TransferableSkills []string `json:"transferable_skills"`

	Breakdown map[string]match.SignalBreakdown `json:"breakdown,omitempty"`
}

// ComputeMatch returns the composite score for a pair. Unless forced, a
// fresh cached score is returned directly; otherwise the pair is recomputed
// and persisted. A missing student or listing yields a zero composite, not
// an error.
func (e *Engine) ComputeMatch(ctx context.Context, studentID, listingID string, opts ComputeOptions) (match.CompositeScore, error) {
	if !opts.ForceRecompute {
		record, err := e.repo.GetCachedScore(ctx, studentID, listingID)
		switch {
		case err == nil && !record.IsStale:
			if e.cacheMetrics != nil {
				e.cacheMetrics.IncCacheHit()
			}
			return record.Composite(), nil
		case err == nil:
			if e.cacheMetrics != nil {
				e.cacheMetrics.IncStaleRead()
			}
		case errors.Is(err, scorecache.ErrScoreNotFound):
			if e.cacheMetrics != nil {
				e.cacheMetrics.IncCacheMiss()
			}
		default:
			return match.CompositeScore{}, err
		}
	}

	cfg := e.resolveConfig(opts.Config)
	start := time.Now()

	student, err := e.students.LoadStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			return e.zeroComposite(), nil
		}
		if e.metrics != nil {
			e.metrics.IncComputeError("load")
		}
		return match.CompositeScore{}, err
	}
	listing, err := e.listings.LoadListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			return e.zeroComposite(), nil
		}
		if e.metrics != nil {
			e.metrics.IncComputeError("load")
		}
		return match.CompositeScore{}, err
	}

	composite := e.score(ctx, student, listing, cfg)

	durationMs := time.Since(start).Milliseconds()
	tenantID := opts.TenantID
	if tenantID == "" {
		tenantID = listing.TenantID
	}
	outcome, err := e.repo.UpsertScore(ctx, studentID, listingID, tenantID, composite, durationMs)
	if err != nil {
		// The freshly computed score is still valid for the caller; the
		// next miss or the sweep retries the write.
		e.logger.Warn("failed to persist computed score",
			"student_id", studentID,
			"listing_id", listingID,
			"error", err)
		if e.metrics != nil {
			e.metrics.IncComputeError("persist")
		}
	} else if e.cacheMetrics != nil {
		if outcome.Inserted {
			e.cacheMetrics.IncUpsert("insert")
		} else {
			e.cacheMetrics.IncUpsert("update")
		}
	}

	if e.metrics != nil {
		e.metrics.IncCompute()
		e.metrics.ObserveComputeDuration(time.Since(start).Seconds())
	}
	return composite, nil
}

// score runs the applicable calculators and composes the result. Disabled
// signals are omitted and fall back to the neutral default inside Compose.
func (e *Engine) score(ctx context.Context, student *match.StudentData, listing *match.ListingData, cfg scoring.EngineConfig) match.CompositeScore {
	var transfers []match.AthleticTransferSkill
	if cfg.EnableAthleticTransfer && e.transfers != nil {
		loaded, err := e.transfers.LoadTransfers(ctx)
		if err != nil {
			e.logger.Warn("failed to load athletic transfers, scoring without", "error", err)
		} else {
			transfers = loaded
		}
	}

	results := []match.SignalResult{
		signals.SkillsAlignment(student, listing, transfers),
		signals.Sustainability(student, listing),
		signals.GrowthTrajectory(student, listing),
		signals.TrustReliability(student, listing),
		signals.NetworkAffinity(student, listing),
	}
	if cfg.EnableScheduleSignals {
		results = append(results, signals.TemporalFit(student, listing))
	}
	return scoring.Compose(results, cfg.Weights)
}

// zeroComposite is returned when either party of a pair does not exist.
func (e *Engine) zeroComposite() match.CompositeScore {
	return match.CompositeScore{
		Score:            0,
		ComputedAt:       time.Now().UTC(),
		AlgorithmVersion: scoring.AlgorithmVersion,
	}
}

// GetStudentMatches returns the ranked listings for a student. Missing or
// stale pairs against the published candidate set are recomputed up to
// MaxComputePerCall; the rest are served as-is and left for the sweep.
func (e *Engine) GetStudentMatches(ctx context.Context, studentID string, query MatchQuery) ([]*StudentMatch, error) {
	cfg := e.resolveConfig(query.Config)

	if _, err := e.students.LoadStudent(ctx, studentID); err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	candidates, err := e.listings.ListPublishedListings(ctx, query.TenantID, DefaultCandidateLimit)
	if err != nil {
		return nil, err
	}

	cached, err := e.repo.GetStudentScores(ctx, studentID, scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		return nil, err
	}
	fresh := make(map[string]bool, len(cached))
	for _, record := range cached {
		if !record.IsStale {
			fresh[record.ListingID] = true
		}
	}

	computed := 0
	for _, listingID := range candidates {
		if fresh[listingID] {
			continue
		}
		if computed >= MaxComputePerCall {
			break
		}
		computed++
		opts := ComputeOptions{TenantID: query.TenantID, Config: query.Config}
		if _, err := e.ComputeMatch(ctx, studentID, listingID, opts); err != nil {
			// One bad pair must not abort the batch.
			e.logger.Warn("skipping failed pair in student batch",
				"student_id", studentID,
				"listing_id", listingID,
				"error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveBatchComputed(float64(computed))
	}

	// Stale records beyond the compute budget are still the best known
	// score for their pair, so the read-back keeps them.
	records, err := e.repo.GetStudentScores(ctx, studentID, scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		return nil, err
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		candidateSet[id] = true
	}

	var matches []*StudentMatch
	for _, record := range records {
		if !candidateSet[record.ListingID] {
			continue
		}
		if record.Score < query.MinScore {
			continue
		}
		entry := &StudentMatch{
			ListingID:          record.ListingID,
			Score:              record.Composite().Score,
			IsStale:            record.IsStale,
			ComputedAt:         record.ComputedAt,
			MatchedSkills:      breakdownSkills(record.Breakdown, "matchedSkills"),
			MissingSkills:      breakdownSkills(record.Breakdown, "missingSkills"),
			TransferableSkills: breakdownSkills(record.Breakdown, "transferableSkills"),
			Breakdown:          record.Breakdown,
		}
		if listing, err := e.listings.LoadListing(ctx, record.ListingID); err == nil {
			entry.Listing = &ListingSummary{
				Title:         listing.Title,
				Description:   listing.Description,
				Category:      listing.Category,
				AuthorCompany: listing.AuthorCompany,
				HoursPerWeek:  listing.HoursPerWeek,
				Remote:        listing.Remote,
				Paid:          listing.Paid,
				PublishedAt:   listing.PublishedAt,
			}
		}
		matches = append(matches, entry)
	}

	sortStudentMatches(matches)
	return truncateMatches(matches, e.resultCap(query.Limit, cfg)), nil
}

// GetListingMatches returns the ranked students for a listing. Same bounded
// compute-then-read-back pattern as GetStudentMatches.
func (e *Engine) GetListingMatches(ctx context.Context, listingID string, query MatchQuery) ([]*ListingMatch, error) {
	cfg := e.resolveConfig(query.Config)

	if _, err := e.listings.LoadListing(ctx, listingID); err != nil {
		if errors.Is(err, loader.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}

	candidates, err := e.students.ListCandidateStudents(ctx, query.TenantID, DefaultCandidateLimit)
	if err != nil {
		return nil, err
	}

	cached, err := e.repo.GetListingScores(ctx, listingID, scorecache.ListingScoreOptions{})
	if err != nil {
		return nil, err
	}
	fresh := make(map[string]bool, len(cached))
	for _, record := range cached {
		if !record.IsStale {
			fresh[record.StudentID] = true
		}
	}

	computed := 0
	for _, studentID := range candidates {
		if fresh[studentID] {
			continue
		}
		if computed >= MaxComputePerCall {
			break
		}
		computed++
		opts := ComputeOptions{TenantID: query.TenantID, Config: query.Config}
		if _, err := e.ComputeMatch(ctx, studentID, listingID, opts); err != nil {
			e.logger.Warn("skipping failed pair in listing batch",
				"student_id", studentID,
				"listing_id", listingID,
				"error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveBatchComputed(float64(computed))
	}

	records, err := e.repo.GetListingScores(ctx, listingID, scorecache.ListingScoreOptions{})
	if err != nil {
		return nil, err
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		candidateSet[id] = true
	}

	var matches []*ListingMatch
	for _, record := range records {
		if !candidateSet[record.StudentID] {
			continue
		}
		if record.Score < query.MinScore {
			continue
		}
		matches = append(matches, &ListingMatch{
			StudentID:          record.StudentID,
			Score:              record.Composite().Score,
			IsStale:            record.IsStale,
			ComputedAt:         record.ComputedAt,
			MatchedSkills:      breakdownSkills(record.Breakdown, "matchedSkills"),
			MissingSkills:      breakdownSkills(record.Breakdown, "missingSkills"),
			TransferableSkills: breakdownSkills(record.Breakdown, "transferableSkills"),
			Breakdown:          record.Breakdown,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].StudentID < matches[j].StudentID
	})
	return truncateMatches(matches, e.resultCap(query.Limit, cfg)), nil
}

// InvalidateStudent marks the student's cached scores stale and queues a
// recomputation entry.
func (e *Engine) InvalidateStudent(ctx context.Context, studentID, reason string) (int, error) {
	marked, err := e.repo.InvalidateStudentScores(ctx, studentID, reason)
	if err == nil && e.cacheMetrics != nil {
		e.cacheMetrics.IncInvalidation("student")
	}
	return marked, err
}

// InvalidateListing marks the listing's cached scores stale and queues
// per-student recomputation entries.
func (e *Engine) InvalidateListing(ctx context.Context, listingID, reason string) (int, error) {
	marked, err := e.repo.InvalidateListingScores(ctx, listingID, reason)
	if err == nil && e.cacheMetrics != nil {
		e.cacheMetrics.IncInvalidation("listing")
	}
	return marked, err
}

// ScoreHistory returns the recorded history for a pair, newest first.
func (e *Engine) ScoreHistory(ctx context.Context, studentID, listingID string, limit int) ([]*scorecache.ScoreHistoryEntry, error) {
	return e.repo.ScoreHistory(ctx, studentID, listingID, limit)
}

func (e *Engine) resolveConfig(override *scoring.EngineConfig) scoring.EngineConfig {
	if override != nil {
		return *override
	}
	return e.defaults
}

// resultCap resolves the effective result ceiling from the call limit and
// the config's MaxResults; the smaller positive value wins.
func (e *Engine) resultCap(limit int, cfg scoring.EngineConfig) int {
	capValue := cfg.MaxResults
	if limit > 0 && (capValue == 0 || limit < capValue) {
		capValue = limit
	}
	return capValue
}

func sortStudentMatches(matches []*StudentMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ListingID < matches[j].ListingID
	})
}

func truncateMatches[T any](matches []T, limit int) []T {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}

// breakdownSkills pulls a skill list out of the persisted skills-signal
// details. Details survive a JSON round trip, so both []string and []any
// shapes are accepted.
func breakdownSkills(breakdown map[string]match.SignalBreakdown, key string) []string {
	signal, ok := breakdown[match.SignalSkillsAlignment]
	if !ok {
		return nil
	}
	switch value := signal.Details[key].(type) {
	case []string:
		return value
	case []any:
		skills := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				skills = append(skills, s)
			}
		}
		return skills
	default:
		return nil
	}
}
