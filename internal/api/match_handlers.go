// Package api provides HTTP handlers for the match scoring API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talentlink/matchengine/internal/engine"
	"github.com/talentlink/matchengine/internal/middleware"
	"github.com/talentlink/matchengine/internal/scoring"
)

// MatchHandlers holds dependencies for match scoring HTTP handlers.
type MatchHandlers struct {
	engine *engine.Engine
}

// NewMatchHandlers creates a new MatchHandlers instance.
func NewMatchHandlers(eng *engine.Engine) *MatchHandlers {
	return &MatchHandlers{engine: eng}
}

// ComputeMatchRequest is the body for POST /matches/compute.
type ComputeMatchRequest struct {
	StudentID      string `json:"student_id"`
	ListingID      string `json:"listing_id"`
	TenantID       string `json:"tenant_id,omitempty"`
	Tier           string `json:"tier,omitempty"`
	ForceRecompute bool   `json:"force_recompute,omitempty"`

	// Weights overrides individual signal weights on top of the tier
	// configuration. The merged set must still sum to 1.0.
	Weights *scoring.SignalWeights `json:"weights,omitempty"`
}

// ComputeMatch handles POST /matches/compute - computes or serves the cached
// composite score for one pair.
func (h *MatchHandlers) ComputeMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req ComputeMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.StudentID == "" || req.ListingID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "student_id and listing_id are required")
		return
	}

	opts := engine.ComputeOptions{
		ForceRecompute: req.ForceRecompute,
		TenantID:       req.TenantID,
	}
	if req.Tier != "" || req.Weights != nil {
		cfg := scoring.ResolveConfig(req.Tier, nil)
		if req.Weights != nil {
			cfg.Weights = scoring.MergeWeights(cfg.Weights, *req.Weights)
			if !scoring.ValidateWeights(cfg.Weights) {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidWeights)
				WriteError(w, ctx, StatusCodeMapping(ErrCodeInvalidWeights), ErrCodeInvalidWeights,
					"Merged signal weights must sum to 1.0")
				return
			}
		}
		opts.Config = &cfg
	}

	composite, err := h.engine.ComputeMatch(r.Context(), req.StudentID, req.ListingID, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute match",
			"student_id", req.StudentID,
			"listing_id", req.ListingID,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute match")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, composite)
}

// GetStudentMatches handles GET /students/{studentId}/matches - the ranked
// listings for a student.
func (h *MatchHandlers) GetStudentMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	studentID := pathSegment(r.URL.Path, "/students/")
	if studentID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Student ID is required")
		return
	}

	query, ok := parseMatchQuery(w, r)
	if !ok {
		return
	}

	matches, err := h.engine.GetStudentMatches(r.Context(), studentID, query)
	if errors.Is(err, engine.ErrStudentNotFound) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStudentNotFound)
		WriteError(w, ctx, StatusCodeMapping(ErrCodeStudentNotFound), ErrCodeStudentNotFound, "Student not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list student matches",
			"student_id", studentID,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list matches")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"student_id": studentID,
		"matches":    matches,
		"count":      len(matches),
	})
}

// GetListingMatches handles GET /listings/{listingId}/matches - the ranked
// students for a listing owner's view.
func (h *MatchHandlers) GetListingMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	listingID := pathSegment(r.URL.Path, "/listings/")
	if listingID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Listing ID is required")
		return
	}

	query, ok := parseMatchQuery(w, r)
	if !ok {
		return
	}

	matches, err := h.engine.GetListingMatches(r.Context(), listingID, query)
	if errors.Is(err, engine.ErrListingNotFound) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeListingNotFound)
		WriteError(w, ctx, StatusCodeMapping(ErrCodeListingNotFound), ErrCodeListingNotFound, "Listing not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list listing matches",
			"listing_id", listingID,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list matches")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"listing_id": listingID,
		"matches":    matches,
		"count":      len(matches),
	})
}

// GetScoreHistory handles GET /matches/{studentId}/{listingId}/history - the
// recorded score changes for a pair, newest first.
func (h *MatchHandlers) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/matches/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Student ID and listing ID are required")
		return
	}
	studentID, listingID := parts[0], parts[1]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := h.engine.ScoreHistory(r.Context(), studentID, listingID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read score history",
			"student_id", studentID,
			"listing_id", listingID,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read score history")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"student_id": studentID,
		"listing_id": listingID,
		"history":    history,
	})
}

// pathSegment extracts the first path segment after a prefix, e.g. the ID in
// /students/{id}/matches.
func pathSegment(path, prefix string) string {
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// parseMatchQuery reads the shared batch query parameters. Writes an error
// response and returns ok=false on invalid input.
func parseMatchQuery(w http.ResponseWriter, r *http.Request) (engine.MatchQuery, bool) {
	query := engine.MatchQuery{
		TenantID: r.URL.Query().Get("tenant_id"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return query, false
		}
		query.Limit = parsed
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "min_score must be between 0 and 100")
			return query, false
		}
		query.MinScore = parsed
	}
	if tier := r.URL.Query().Get("tier"); tier != "" {
		cfg := scoring.ResolveConfig(tier, nil)
		query.Config = &cfg
	}

	return query, true
}
