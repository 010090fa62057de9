package api

import (
	"net/http"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/auth"
	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/health"
	"github.com/adjutant-ai/adjutant/internal/metrics"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// Deps bundles everything the API routes need.
type Deps struct {
	Store       store.Store
	Audit       *audit.Logger
	Health      *health.Registry
	FailedCache *connectors.FailedRequestCache
	Metrics     *metrics.HTTPCollector
	AuthConfig  auth.Config
	Logger      *slog.Logger
	// Database is the optional audit mirror; nil leaves its routes
	// unregistered.
	Database DatabaseStatus
}

// SetupRoutes configures all API routes.
func SetupRoutes(mux *http.ServeMux, deps Deps) {
	approvalHandler := NewApprovalHandlers(deps.Store, deps.Audit, deps.Logger)
	auditHandler := NewAuditHandlers(deps.Audit, deps.Logger)
	healthHandler := NewHealthHandlers(deps.Health, deps.Logger)
	itemHandler := NewItemHandlers(deps.Store, deps.FailedCache, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthConfig, deps.Logger)

	authMiddleware := auth.AuthMiddleware(deps.AuthConfig)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	// Public routes.
	mux.HandleFunc("/healthz", healthHandler.Healthz)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.Handle("/api/auth/validate", protected(authHandler.ValidateToken))
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	// Approval queues and decisions.
	mux.Handle("/api/approvals/pending", protected(approvalHandler.ListPending))
	mux.Handle("/api/approvals/approved", protected(approvalHandler.ListApproved))
	mux.Handle("/api/approvals/rejected", protected(approvalHandler.ListRejected))
	mux.Handle("/api/approvals/done", protected(approvalHandler.ListDone))
	mux.Handle("/api/approvals/", protected(approvalHandler.Decide))

	// Audit log.
	mux.Handle("/api/audit", protected(auditHandler.Entries))
	mux.Handle("/api/audit/dates", protected(auditHandler.Dates))

	// Connector health.
	mux.Handle("/api/health/connectors", protected(healthHandler.Connectors))

	// Audit mirror status, when the mirror is enabled.
	if deps.Database != nil {
		dbHandler := NewDatabaseHandlers(deps.Database, deps.Logger)
		mux.Handle("/api/database/health", protected(dbHandler.Health))
	}

	// Action items and failed-request cache.
	mux.Handle("/api/items", protected(itemHandler.List))
	mux.Handle("/api/failed-requests", protected(itemHandler.FailedRequests))
	mux.Handle("/api/failed-requests/replay", protected(itemHandler.ReplayFailedRequests))
}
