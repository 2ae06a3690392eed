package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/talentlink/matchengine/internal/engine"
	"github.com/talentlink/matchengine/internal/middleware"
	"github.com/talentlink/matchengine/internal/scorecache"
)

// QueueHandlers exposes the recomputation queue for operators.
type QueueHandlers struct {
	repo  scorecache.ScoreRepository
	sweep *engine.SweepJob
}

// NewQueueHandlers creates a new QueueHandlers instance. The sweep job is
// optional; the sweep trigger endpoint returns an error when it is absent.
func NewQueueHandlers(repo scorecache.ScoreRepository, sweep *engine.SweepJob) *QueueHandlers {
	return &QueueHandlers{repo: repo, sweep: sweep}
}

// GetPending handles GET /queue - lists pending recomputation entries in
// drain order.
func (h *QueueHandlers) GetPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.repo.GetStaleScores(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read recompute queue", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read queue")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// TriggerSweep handles POST /queue/sweep - runs one sweep cycle immediately.
func (h *QueueHandlers) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}
	if h.sweep == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusConflict, ErrCodeBadRequest, "Sweep job is not configured")
		return
	}

	h.sweep.RecomputeNow()
	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "completed"})
}
