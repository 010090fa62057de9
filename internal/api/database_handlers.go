package api

import (
	"context"
	"net/http"

	"log/slog"
)

// DatabaseStatus is the status surface of the audit mirror database.
type DatabaseStatus interface {
	HealthCheck(ctx context.Context) error
	Stats() map[string]any
}

// DatabaseHandlers serves the audit mirror's health and pool statistics.
// Only registered when the mirror is enabled.
type DatabaseHandlers struct {
	db     DatabaseStatus
	logger *slog.Logger
}

// NewDatabaseHandlers creates the mirror status handlers.
func NewDatabaseHandlers(db DatabaseStatus, logger *slog.Logger) *DatabaseHandlers {
	return &DatabaseHandlers{db: db, logger: logger}
}

// Health handles GET /api/database/health.
func (h *DatabaseHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.logger.Error("audit mirror health check failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, h.logger, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, h.logger, map[string]any{
		"status": "ok",
		"stats":  h.db.Stats(),
	})
}
