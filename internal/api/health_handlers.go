package api

import (
	"net/http"
	"sort"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/health"
)

// HealthHandlers serves the connector health snapshot and the liveness probe.
type HealthHandlers struct {
	health *health.Registry
	logger *slog.Logger
}

// NewHealthHandlers creates the health API handlers.
func NewHealthHandlers(healthReg *health.Registry, logger *slog.Logger) *HealthHandlers {
	return &HealthHandlers{health: healthReg, logger: logger}
}

// Connectors handles GET /api/health/connectors.
func (h *HealthHandlers) Connectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.health.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Connector < snapshot[j].Connector
	})

	writeJSON(w, h.logger, map[string]any{
		"count":      len(snapshot),
		"connectors": snapshot,
	})
}

// Healthz handles GET /healthz. It reports process liveness only; connector
// state is a separate concern.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]any{"status": "ok"})
}
