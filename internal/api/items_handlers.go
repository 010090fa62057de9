package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// ItemHandlers serves read access to the action item stores and the
// failed-request cache.
type ItemHandlers struct {
	store       store.Store
	failedCache *connectors.FailedRequestCache
	logger      *slog.Logger
}

// NewItemHandlers creates the item API handlers.
func NewItemHandlers(s store.Store, failedCache *connectors.FailedRequestCache, logger *slog.Logger) *ItemHandlers {
	return &ItemHandlers{store: s, failedCache: failedCache, logger: logger}
}

// itemStates are the stores holding action items rather than approval
// requests.
var itemStates = map[string]store.State{
	"needs-action": store.StateNeedsAction,
	"plans":        store.StatePlans,
	"done":         store.StateDone,
	"rejected":     store.StateRejected,
}

// List handles GET /api/items?state=needs-action.
func (h *ItemHandlers) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("state")
	if raw == "" {
		raw = "needs-action"
	}
	state, ok := itemStates[raw]
	if !ok {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	records, err := h.store.List(r.Context(), state)
	if err != nil {
		h.logger.Error("failed to list item store", "state", state, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	items := make([]models.ActionItem, 0, len(records))
	for _, rec := range records {
		var item models.ActionItem
		if err := json.Unmarshal(rec.Data, &item); err != nil {
			// Done and rejected also hold approval requests; skip those.
			continue
		}
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}

	writeJSON(w, h.logger, map[string]any{
		"state": raw,
		"count": len(items),
		"items": items,
	})
}

// FailedRequests handles GET /api/failed-requests.
func (h *ItemHandlers) FailedRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := h.failedCache.Pending(r.Context())
	if err != nil {
		h.logger.Error("failed to list failed-request cache", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, map[string]any{
		"count":    len(pending),
		"requests": pending,
	})
}

// ReplayFailedRequests handles POST /api/failed-requests/replay.
func (h *ItemHandlers) ReplayFailedRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	replayed, err := h.failedCache.Replay(r.Context())
	if err != nil {
		h.logger.Error("failed-request replay failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("failed requests replayed via api", "count", replayed)
	writeJSON(w, h.logger, map[string]any{"replayed": replayed})
}
