package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talentlink/matchengine/internal/engine"
	"github.com/talentlink/matchengine/internal/loader"
	"github.com/talentlink/matchengine/internal/scorecache"
)

func newInvalidateFixture(t *testing.T) (*InvalidateHandlers, *loader.InMemoryLoader, *scorecache.InMemoryScoreRepository, *engine.Engine) {
	t.Helper()
	store := loader.NewInMemoryLoader()
	repo := scorecache.NewInMemoryScoreRepository()
	eng := engine.New(engine.Config{
		Students:  store,
		Listings:  store,
		Transfers: store,
		Repo:      repo,
	})
	return NewInvalidateHandlers(eng), store, repo, eng
}

func TestInvalidateStudentHandler(t *testing.T) {
	handlers, store, repo, eng := newInvalidateFixture(t)
	seedTestPair(store, "student-1", "listing-1")
	if _, err := eng.ComputeMatch(context.Background(), "student-1", "listing-1", engine.ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}

	body := `{"reason":"profile_update"}`
	req := httptest.NewRequest(http.MethodPost, "/students/student-1/invalidate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handlers.InvalidateStudent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp InvalidateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Invalidated != 1 {
		t.Errorf("invalidated = %d, want 1", resp.Invalidated)
	}

	entries, err := repo.GetStaleScores(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "profile_update" {
		t.Errorf("queue = %d entries, want one tagged profile_update", len(entries))
	}
}

func TestInvalidateListingHandlerDefaultsReason(t *testing.T) {
	handlers, store, repo, eng := newInvalidateFixture(t)
	seedTestPair(store, "student-1", "listing-1")
	if _, err := eng.ComputeMatch(context.Background(), "student-1", "listing-1", engine.ComputeOptions{}); err != nil {
		t.Fatalf("ComputeMatch: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/listings/listing-1/invalidate", nil)
	rec := httptest.NewRecorder()
	handlers.InvalidateListing(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	entries, err := repo.GetStaleScores(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetStaleScores: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "manual" {
		t.Errorf("queue = %v, want one entry with the default reason", entries)
	}
}

func TestInvalidateHandlerRejectsGet(t *testing.T) {
	handlers, _, _, _ := newInvalidateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/students/student-1/invalidate", nil)
	rec := httptest.NewRecorder()
	handlers.InvalidateStudent(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
