package api

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/audit"
)

// AuditHandlers serves read access to the audit log partitions.
type AuditHandlers struct {
	audit  *audit.Logger
	logger *slog.Logger
}

// NewAuditHandlers creates the audit API handlers.
func NewAuditHandlers(auditLog *audit.Logger, logger *slog.Logger) *AuditHandlers {
	return &AuditHandlers{audit: auditLog, logger: logger}
}

// Entries handles GET /api/audit?date=YYYY-MM-DD&limit=N. Date defaults to
// today (UTC).
func (h *AuditHandlers) Entries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid date: expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.audit.Entries(date, limit)
	if err != nil {
		h.logger.Error("failed to read audit partition", "date", date.Format("2006-01-02"), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, map[string]any{
		"date":    date.Format("2006-01-02"),
		"count":   len(entries),
		"entries": entries,
	})
}

// Dates handles GET /api/audit/dates, listing the available partitions.
func (h *AuditHandlers) Dates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dates, err := h.audit.Dates()
	if err != nil {
		h.logger.Error("failed to list audit partitions", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format("2006-01-02"))
	}
	writeJSON(w, h.logger, map[string]any{"dates": formatted})
}
