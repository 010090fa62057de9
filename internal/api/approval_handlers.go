package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// ApprovalHandlers serves read and decision endpoints over the approval
// stores. Decisions made here are the same store moves a human could make by
// hand; the orchestrator picks them up on its next poll.
type ApprovalHandlers struct {
	store  store.Store
	audit  *audit.Logger
	logger *slog.Logger
}

// NewApprovalHandlers creates the approval API handlers.
func NewApprovalHandlers(s store.Store, auditLog *audit.Logger, logger *slog.Logger) *ApprovalHandlers {
	return &ApprovalHandlers{store: s, audit: auditLog, logger: logger}
}

// ListPending handles GET /api/approvals/pending
func (h *ApprovalHandlers) ListPending(w http.ResponseWriter, r *http.Request) {
	h.listState(w, r, store.StatePendingApproval)
}

// ListApproved handles GET /api/approvals/approved
func (h *ApprovalHandlers) ListApproved(w http.ResponseWriter, r *http.Request) {
	h.listState(w, r, store.StateApproved)
}

// ListRejected handles GET /api/approvals/rejected
func (h *ApprovalHandlers) ListRejected(w http.ResponseWriter, r *http.Request) {
	h.listState(w, r, store.StateRejected)
}

// ListDone handles GET /api/approvals/done
func (h *ApprovalHandlers) ListDone(w http.ResponseWriter, r *http.Request) {
	h.listState(w, r, store.StateDone)
}

func (h *ApprovalHandlers) listState(w http.ResponseWriter, r *http.Request, state store.State) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.store.List(r.Context(), state)
	if err != nil {
		h.logger.Error("failed to list approval store", "state", state, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	requests := make([]models.ApprovalRequest, 0, len(records))
	for _, rec := range records {
		var req models.ApprovalRequest
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			h.logger.Warn("skipping unparseable record", "state", state, "id", rec.ID)
			continue
		}
		requests = append(requests, req)
	}

	writeJSON(w, h.logger, map[string]any{
		"state":    string(state),
		"count":    len(requests),
		"requests": requests,
	})
}

// DecisionRequest carries the optional fields of an approve/reject call.
type DecisionRequest struct {
	Approver string `json:"approver,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Decide handles POST /api/approvals/{id}/approve and
// POST /api/approvals/{id}/reject.
func (h *ApprovalHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/approvals/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id, verb := parts[0], parts[1]

	var body DecisionRequest
	if r.Body != nil {
		// An empty body is fine; the approver defaults to the API identity.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	approver := body.Approver
	if approver == "" {
		approver = "admin"
	}

	switch verb {
	case "approve":
		h.approve(w, r, id, approver)
	case "reject":
		h.reject(w, r, id, approver, body.Reason)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *ApprovalHandlers) approve(w http.ResponseWriter, r *http.Request, id, approver string) {
	var approved models.ApprovalRequest
	err := h.store.Move(r.Context(), id, store.StatePendingApproval, store.StateApproved, func(data []byte) ([]byte, error) {
		var req models.ApprovalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		if !req.CanTransition(models.ApprovalApproved) {
			return nil, errors.New("request is not pending")
		}
		now := time.Now().UTC()
		req.Status = models.ApprovalApproved
		req.Approver = approver
		req.ApprovedAt = &now
		req.DecidedVia = "api"
		approved = req
		return json.Marshal(req)
	})
	if err != nil {
		h.decisionError(w, id, "approve", err)
		return
	}

	h.auditDecision(r, &approved, models.AuditApproved, "")
	h.logger.Info("request approved via api", "request_id", id, "approver", approver)
	writeJSON(w, h.logger, approved)
}

func (h *ApprovalHandlers) reject(w http.ResponseWriter, r *http.Request, id, approver, reason string) {
	if reason == "" {
		reason = "rejected by " + approver
	}

	var rejected models.ApprovalRequest
	mutate := func(data []byte) ([]byte, error) {
		var req models.ApprovalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		if !req.CanTransition(models.ApprovalRejected) {
			return nil, errors.New("request is already terminal")
		}
		req.Status = models.ApprovalRejected
		req.Approver = approver
		req.DecidedVia = "api"
		if req.Notes != "" {
			req.Notes += "\n"
		}
		req.Notes += "rejected: " + reason
		rejected = req
		return json.Marshal(req)
	}

	// Rejection is legal from either non-terminal store.
	err := h.store.Move(r.Context(), id, store.StatePendingApproval, store.StateRejected, mutate)
	if errors.Is(err, store.ErrNotFound) {
		err = h.store.Move(r.Context(), id, store.StateApproved, store.StateRejected, mutate)
	}
	if err != nil {
		h.decisionError(w, id, "reject", err)
		return
	}

	h.auditDecision(r, &rejected, models.AuditRejected, reason)
	h.logger.Info("request rejected via api", "request_id", id, "approver", approver)
	writeJSON(w, h.logger, rejected)
}

func (h *ApprovalHandlers) decisionError(w http.ResponseWriter, id, verb string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	h.logger.Error("decision failed", "request_id", id, "verb", verb, "error", err)
	http.Error(w, "Conflict: "+err.Error(), http.StatusConflict)
}

func (h *ApprovalHandlers) auditDecision(r *http.Request, req *models.ApprovalRequest, status models.AuditApprovalStatus, reason string) {
	entry := models.AuditLogEntry{
		ActionType:     req.ActionType,
		Actor:          models.ActorUser,
		Target:         req.Target,
		ApprovalStatus: status,
		Approver:       req.Approver,
		Connector:      req.Connector,
		Result:         models.AuditSuccess,
		ApprovalID:     req.ID,
		Metadata:       map[string]any{"event": "decision", "via": "api"},
	}
	if reason != "" {
		entry.Metadata["reason"] = reason
	}
	if _, err := h.audit.LogExecution(r.Context(), entry); err != nil {
		h.logger.Error("failed to audit api decision", "request_id", req.ID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
