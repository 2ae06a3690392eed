package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/talentlink/matchengine/internal/engine"
	"github.com/talentlink/matchengine/internal/middleware"
)

// InvalidateHandlers holds dependencies for cache invalidation handlers.
// These endpoints are called by the surrounding application when a student
// profile or a listing changes.
type InvalidateHandlers struct {
	engine *engine.Engine
}

// NewInvalidateHandlers creates a new InvalidateHandlers instance.
func NewInvalidateHandlers(eng *engine.Engine) *InvalidateHandlers {
	return &InvalidateHandlers{engine: eng}
}

// InvalidateRequest is the body for invalidation endpoints.
type InvalidateRequest struct {
	Reason string `json:"reason"`
}

// InvalidateResponse reports how many cached scores were marked stale.
type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// InvalidateStudent handles POST /students/{studentId}/invalidate - marks
// the student's cached scores stale and queues a recomputation entry.
func (h *InvalidateHandlers) InvalidateStudent(w http.ResponseWriter, r *http.Request) {
	h.invalidate(w, r, "/students/", h.engine.InvalidateStudent)
}

// InvalidateListing handles POST /listings/{listingId}/invalidate - marks
// the listing's cached scores stale and queues per-student entries.
func (h *InvalidateHandlers) InvalidateListing(w http.ResponseWriter, r *http.Request) {
	h.invalidate(w, r, "/listings/", h.engine.InvalidateListing)
}

func (h *InvalidateHandlers) invalidate(
	w http.ResponseWriter,
	r *http.Request,
	prefix string,
	invalidate func(ctx context.Context, id, reason string) (int, error),
) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	id := pathSegment(r.URL.Path, prefix)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "ID is required")
		return
	}

	var req InvalidateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	marked, err := invalidate(r.Context(), id, req.Reason)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to invalidate scores",
			"id", id,
			"reason", req.Reason,
			"error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to invalidate scores")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, InvalidateResponse{Invalidated: marked})
}
