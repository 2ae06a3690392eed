package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/talentlink/matchengine/internal/loader"
	"github.com/talentlink/matchengine/internal/match"
	"github.com/talentlink/matchengine/internal/scorecache"
	"github.com/talentlink/matchengine/internal/scoring"
)

var errListingStore = errors.New("listing store unavailable")

// flakyListings fails LoadListing for one listing ID and delegates the rest.
type flakyListings struct {
	*loader.InMemoryLoader
	failID string
}

func (f *flakyListings) LoadListing(ctx context.Context, listingID string) (*match.ListingData, error) {
	if listingID == f.failID {
		return nil, errListingStore
	}
	return f.InMemoryLoader.LoadListing(ctx, listingID)
}

func newTestEngine(store *loader.InMemoryLoader, repo scorecache.ScoreRepository) *Engine {
	return New(Config{
		Students:  store,
		Listings:  store,
		Transfers: store,
		Repo:      repo,
	})
}

func seedPair(t *testing.T, store *loader.InMemoryLoader, studentID, listingID string) {
	t.Helper()
	store.PutStudent(&match.StudentData{
		ID:       studentID,
		TenantID: "tenant-1",
		GPA:      "3.5",
		JoinedAt: time.Now().AddDate(-1, 0, 0),
		Skills:   []match.SkillInfo{{Name: "editing", Proficiency: 4}},
	})
	store.PutListing(&match.ListingData{
		ID:             listingID,
		TenantID:       "tenant-1",
		Title:          "Video editor",
		Category:       "media",
		RequiredSkills: []string{"editing"},
		HoursPerWeek:   8,
		PublishedAt:    time.Now().AddDate(0, 0, -2),
	})
}

func cachedComposite(score int) match.CompositeScore {
	return match.CompositeScore{
		Score:            score,
		ComputedAt:       time.Now().UTC(),
		AlgorithmVersion: scoring.AlgorithmVersion,
	}
}

func TestComputeMatchPersistsAndServesFromCache(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	first, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{})
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if first.Score <= 0 || first.Score > 100 {
		t.Fatalf("Score = %d, want a score in (0, 100]", first.Score)
	}
	if first.AlgorithmVersion != scoring.AlgorithmVersion {
		t.Errorf("AlgorithmVersion = %q, want %q", first.AlgorithmVersion, scoring.AlgorithmVersion)
	}

	// Removing the student proves the second call never touches the loaders.
	store.RemoveStudent("student-1")
	second, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{})
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if second.Score != first.Score {
		t.Errorf("cached Score = %d, want %d", second.Score, first.Score)
	}

	record, err := repo.GetCachedScore(ctx, "student-1", "listing-1")
	if err != nil {
		t.Fatalf("GetCachedScore: %v", err)
	}
	if record.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want the listing tenant", record.TenantID)
	}
}

func TestComputeMatchForceRecompute(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	if _, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}

	// A forced recompute ignores the cache and hits the loaders again.
	store.RemoveStudent("student-1")
	forced, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{ForceRecompute: true})
	if err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if forced.Score != 0 {
		t.Errorf("Score = %d, want 0 for a vanished student", forced.Score)
	}
}

func TestComputeMatchMissingParty(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	tests := []struct {
		name      string
		studentID string
		listingID string
	}{
		{"missing student", "ghost", "listing-1"},
		{"missing listing", "student-1", "ghost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composite, err := engine.ComputeMatch(ctx, tt.studentID, tt.listingID, ComputeOptions{})
			if err != nil {
				t.Fatalf("ComputeMatch: %v", err)
			}
			if composite.Score != 0 {
				t.Errorf("Score = %d, want 0", composite.Score)
			}
			// Zero composites for missing parties are not persisted.
			if _, err := repo.GetCachedScore(ctx, tt.studentID, tt.listingID); !errors.Is(err, scorecache.ErrScoreNotFound) {
				t.Errorf("GetCachedScore err = %v, want ErrScoreNotFound", err)
			}
		})
	}
}

func TestComputeMatchStaleTriggersRecompute(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	if _, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	if _, err := engine.InvalidateStudent(ctx, "student-1", "profile_update"); err != nil {
		t.Fatalf("InvalidateStudent: %v", err)
	}

	if _, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}
	record, err := repo.GetCachedScore(ctx, "student-1", "listing-1")
	if err != nil {
		t.Fatalf("GetCachedScore: %v", err)
	}
	if record.IsStale {
		t.Error("a read of a stale pair must recompute and clear staleness")
	}
}

func TestGetStudentMatchesMinScoreFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	seedPair(t, store, "student-1", "listing-a")
	seedPair(t, store, "student-1", "listing-b")
	seedPair(t, store, "student-1", "listing-c")

	// Seed the cache directly so the batch call serves without recomputing.
	seeds := map[string]int{"listing-a": 92, "listing-b": 81, "listing-c": 45}
	for listingID, score := range seeds {
		if _, err := repo.UpsertScore(ctx, "student-1", listingID, "tenant-1", cachedComposite(score), 5); err != nil {
			t.Fatalf("UpsertScore: %v", err)
		}
	}

	matches, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{MinScore: 80})
	if err != nil {
		t.Fatalf("GetStudentMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 at or above 80", len(matches))
	}
	if matches[0].ListingID != "listing-a" || matches[0].Score != 92 {
		t.Errorf("matches[0] = %s/%d, want listing-a/92", matches[0].ListingID, matches[0].Score)
	}
	if matches[1].ListingID != "listing-b" || matches[1].Score != 81 {
		t.Errorf("matches[1] = %s/%d, want listing-b/81", matches[1].ListingID, matches[1].Score)
	}
	if matches[0].Listing == nil || matches[0].Listing.Title != "Video editor" {
		t.Error("expected the listing summary to be attached")
	}
}

func TestGetStudentMatchesComputeBudget(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	total := MaxComputePerCall + 5
	for i := 0; i < total; i++ {
		seedPair(t, store, "student-1", fmt.Sprintf("listing-%02d", i))
	}

	matches, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{})
	if err != nil {
		t.Fatalf("GetStudentMatches: %v", err)
	}
	if len(matches) != MaxComputePerCall {
		t.Errorf("got %d matches, want the %d computed this call", len(matches), MaxComputePerCall)
	}

	records, err := repo.GetStudentScores(ctx, "student-1", scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		t.Fatalf("GetStudentScores: %v", err)
	}
	if len(records) != MaxComputePerCall {
		t.Errorf("persisted %d records, want exactly %d per call", len(records), MaxComputePerCall)
	}

	// A second call picks up the remainder.
	if _, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{}); err != nil {
		t.Fatalf("GetStudentMatches: %v", err)
	}
	records, err = repo.GetStudentScores(ctx, "student-1", scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		t.Fatalf("GetStudentScores: %v", err)
	}
	if len(records) != total {
		t.Errorf("persisted %d records after two calls, want %d", len(records), total)
	}
}

func TestGetStudentMatchesResultCaps(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	for i := 0; i < 15; i++ {
		seedPair(t, store, "student-1", fmt.Sprintf("listing-%02d", i))
	}

	t.Run("starter tier caps at ten", func(t *testing.T) {
		starter := scoring.ResolveConfig(scoring.TierStarter, nil)
		matches, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{Config: &starter})
		if err != nil {
			t.Fatalf("GetStudentMatches: %v", err)
		}
		if len(matches) != starter.MaxResults {
			t.Errorf("got %d matches, want the tier cap of %d", len(matches), starter.MaxResults)
		}
	})

	t.Run("explicit limit wins when smaller", func(t *testing.T) {
		matches, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{Limit: 3})
		if err != nil {
			t.Fatalf("GetStudentMatches: %v", err)
		}
		if len(matches) != 3 {
			t.Errorf("got %d matches, want 3", len(matches))
		}
	})
}

func TestGetStudentMatchesSkipsFailedPair(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()

	seedPair(t, store, "student-1", "listing-good")
	seedPair(t, store, "student-1", "listing-bad")

	flaky := &flakyListings{InMemoryLoader: store, failID: "listing-bad"}
	engine := New(Config{
		Students:  store,
		Listings:  flaky,
		Transfers: store,
		Repo:      repo,
	})

	matches, err := engine.GetStudentMatches(ctx, "student-1", MatchQuery{})
	if err != nil {
		t.Fatalf("GetStudentMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ListingID != "listing-good" {
		t.Errorf("matches = %d, want only the healthy pair", len(matches))
	}
}

func TestGetListingMatches(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	seedPair(t, store, "student-1", "listing-1")
	store.PutStudent(&match.StudentData{
		ID:       "student-2",
		TenantID: "tenant-1",
		JoinedAt: time.Now().AddDate(0, 0, -1),
	})

	matches, err := engine.GetListingMatches(ctx, "listing-1", MatchQuery{})
	if err != nil {
		t.Fatalf("GetListingMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatal("listing matches must be ordered by score descending")
		}
	}
}

func TestInvalidateListingQueuesPerStudent(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	seedPair(t, store, "student-1", "listing-1")
	seedPair(t, store, "student-2", "listing-1")
	for _, studentID := range []string{"student-1", "student-2"} {
		if _, err := engine.ComputeMatch(ctx, studentID, "listing-1", ComputeOptions{}); err != nil {
			t.Fatalf("ComputeMatch: %v", err)
		}
	}

	marked, err := engine.InvalidateListing(ctx, "listing-1", "listing_update")
	if err != nil {
		t.Fatalf("InvalidateListing: %v", err)
	}
	if marked != 2 {
		t.Errorf("marked = %d, want 2", marked)
	}

	entries, err := repo.GetStaleScores(ctx, 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("queue has %d entries, want one per student", len(entries))
	}
}

func TestScoreHistoryPassthrough(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)
	seedPair(t, store, "student-1", "listing-1")

	if _, err := engine.ComputeMatch(ctx, "student-1", "listing-1", ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}

	history, err := engine.ScoreHistory(ctx, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("ScoreHistory: %v", err)
	}
	if len(history) != 1 || history[0].Reason != scorecache.HistoryReasonInitial {
		t.Errorf("history = %d entries, want the initial entry", len(history))
	}
}

func TestGetStudentMatchesUnknownStudent(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	if _, err := engine.GetStudentMatches(ctx, "ghost", MatchQuery{}); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("err = %v, want ErrStudentNotFound", err)
	}
}

func TestGetListingMatchesUnknownListing(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	seedPair(t, store, "student-1", "listing-1")
	engine := newTestEngine(store, repo)

	if _, err := engine.GetListingMatches(ctx, "ghost", MatchQuery{}); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("err = %v, want ErrListingNotFound", err)
	}
}
