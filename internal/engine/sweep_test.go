package engine

import (
	"context"
	"testing"
	"time"

	"github.com/talentlink/matchengine/internal/loader"
	"github.com/talentlink/matchengine/internal/scorecache"
)

func newTestSweep(engine *Engine, repo scorecache.ScoreRepository) *SweepJob {
	return NewSweepJob(SweepConfig{
		Interval: time.Hour, // tests drive cycles via RecomputeNow
		Timeout:  5 * time.Second,
	}, engine, repo)
}

func TestSweepDrainsStudentEntry(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)

	seedPair(t, store, "student-1", "listing-1")
	seedPair(t, store, "student-1", "listing-2")
	for _, listingID := range []string{"listing-1", "listing-2"} {
		if _, err := engine.ComputeMatch(ctx, "student-1", listingID, ComputeOptions{}); err != nil {
			t.Fatalf("ComputeMatch: %v", err)
		}
	}
	if _, err := engine.InvalidateStudent(ctx, "student-1", "profile_update"); err != nil {
		t.Fatalf("InvalidateStudent: %v", err)
	}

	sweep := newTestSweep(engine, repo)
	sweep.RecomputeNow()

	records, err := repo.GetStudentScores(ctx, "student-1", scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		t.Fatalf("GetStudentScores: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, record := range records {
		if record.IsStale {
			t.Errorf("record %s/%s still stale after sweep", record.StudentID, record.ListingID)
		}
	}

	entries, err := repo.GetStaleScores(ctx, 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("queue has %d pending entries after sweep, want 0", len(entries))
	}
}

func TestSweepDrainsListingEntries(t *testing.T) {
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
	if _, err := engine.InvalidateListing(ctx, "listing-1", "listing_update"); err != nil {
		t.Fatalf("InvalidateListing: %v", err)
	}

	sweep := newTestSweep(engine, repo)
	sweep.RecomputeNow()

	records, err := repo.GetListingScores(ctx, "listing-1", scorecache.ListingScoreOptions{})
	if err != nil {
		t.Fatalf("GetListingScores: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, record := range records {
		if record.IsStale {
			t.Errorf("record %s/%s still stale after sweep", record.StudentID, record.ListingID)
		}
	}

	entries, err := repo.GetStaleScores(ctx, 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("queue has %d pending entries after sweep, want 0", len(entries))
	}
}

func TestSweepLeavesFailedEntryPending(t *testing.T) {
	ctx := context.Background()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()

	seedPair(t, store, "student-1", "listing-bad")
	flaky := &flakyListings{InMemoryLoader: store, failID: "listing-bad"}
	engine := New(Config{
		Students:  store,
		Listings:  flaky,
		Transfers: store,
		Repo:      repo,
	})

	if _, err := repo.UpsertScore(ctx, "student-1", "listing-bad", "tenant-1", cachedComposite(80), 5); err != nil {
		t.Fatalf("UpsertScore: %v", err)
	}
	if _, err := repo.InvalidateListingScores(ctx, "listing-bad", "listing_update"); err != nil {
		t.Fatalf("InvalidateListingScores: %v", err)
	}

	sweep := newTestSweep(engine, repo)
	sweep.RecomputeNow()

	// The entry could not be recomputed, so it stays for the next cycle.
	entries, err := repo.GetStaleScores(ctx, 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("queue has %d pending entries, want the failed entry retained", len(entries))
	}
}

func TestSweepJobLifecycle(t *testing.T) {
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	engine := newTestEngine(store, repo)
	sweep := newTestSweep(engine, repo)

	if sweep.IsRunning() {
		t.Fatal("job must not be running before Start")
	}
	if err := sweep.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sweep.IsRunning() {
		t.Fatal("job must be running after Start")
	}
	// A second Start is a no-op.
	if err := sweep.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	sweep.Stop()
	if sweep.IsRunning() {
		t.Fatal("job must not be running after Stop")
	}
	// Stop is idempotent.
	sweep.Stop()
}
