// Package approval creates and drives approval requests through their state
// machine: pending -> {approved, rejected}, approved -> {executed, rejected}.
// Every externally visible action passes through here before execution.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/metrics"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/router"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// ApproverSystem marks auto-approved requests.
const ApproverSystem = "system"

// ManagerConfig holds approval policy settings.
type ManagerConfig struct {
	// AutoApproveEnabled is the global gate; without it nothing is
	// auto-approved regardless of risk.
	AutoApproveEnabled bool
	// KnownContacts is the allowlist for auto-approving low-risk messages.
	KnownContacts []string
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.PipelineCollector
}

// CreateInput describes a proposed external action.
type CreateInput struct {
	ActionType models.ActionType
	Target     string
	Content    string
	Parameters map[string]any
	Rationale  string
	// SourceItemID links back to the action item that produced the request.
	SourceItemID string
	Domain       models.Domain
	// Operation is the connector capability the action needs (send, post...).
	Operation string
	// SuggestedConnector is an optional caller hint; routing may override it.
	SuggestedConnector string
}

// Manager creates approval requests, assesses risk and applies the
// auto-approval policy.
type Manager struct {
	store  store.Store
	audit  *audit.Logger
	router *router.Router
	config ManagerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates an approval request manager.
func NewManager(s store.Store, auditLog *audit.Logger, r *router.Router, config ManagerConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		audit:  auditLog,
		router: r,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// CreateRequest assesses the action, routes it to a connector, and stages the
// request: auto-approved requests land in the approved store with
// approver=system, everything else waits in pending-approval. The second
// return reports whether the request was auto-approved.
func (m *Manager) CreateRequest(ctx context.Context, input CreateInput) (*models.ApprovalRequest, bool, error) {
	if !models.ValidActionType(input.ActionType) {
		return nil, false, fmt.Errorf("invalid action type %q", input.ActionType)
	}
	if input.Target == "" {
		return nil, false, fmt.Errorf("approval request requires a target")
	}
	if input.Operation == "" {
		return nil, false, fmt.Errorf("approval request requires an operation")
	}

	connector, err := m.router.Route(input.Domain, input.Operation, input.SuggestedConnector)
	if err != nil {
		return nil, false, fmt.Errorf("route action: %w", err)
	}

	assessment := AssessRisk(input.ActionType, input.Target, input.Content, input.Parameters, m.knownContact(input.Target))

	req := &models.ApprovalRequest{
		DocType:      models.DocTypeApprovalRequest,
		ID:           uuid.NewString(),
		ActionType:   input.ActionType,
		Target:       input.Target,
		RiskLevel:    assessment.Level,
		Rationale:    input.Rationale,
		RiskFactors:  assessment.Factors,
		CreatedAt:    m.now().UTC(),
		Status:       models.ApprovalPending,
		SourceItemID: input.SourceItemID,
		Domain:       input.Domain,
		Connector:    connector,
		Operation:    input.Operation,
		Parameters:   input.Parameters,
	}

	autoApproved := m.shouldAutoApprove(req)

	target := store.StatePendingApproval
	if autoApproved {
		now := m.now().UTC()
		req.Status = models.ApprovalApproved
		req.Approver = ApproverSystem
		req.ApprovedAt = &now
		target = store.StateApproved
	}

	if err := store.PutJSON(ctx, m.store, target, req.ID, req); err != nil {
		return nil, false, fmt.Errorf("stage approval request: %w", err)
	}

	m.auditCreation(ctx, req)
	if autoApproved {
		m.auditDecision(ctx, req, models.AuditAutoApproved, "")
	}
	if m.config.Metrics != nil {
		m.config.Metrics.RequestCreated(string(req.RiskLevel), autoApproved)
	}

	m.logger.Info("approval request staged",
		"request_id", req.ID,
		"action_type", req.ActionType,
		"risk_level", req.RiskLevel,
		"auto_approved", autoApproved,
		"connector", req.Connector,
	)

	return req, autoApproved, nil
}

// shouldAutoApprove applies the policy: global flag, low risk, and a
// policy-specific allow rule per action type.
func (m *Manager) shouldAutoApprove(req *models.ApprovalRequest) bool {
	if !m.config.AutoApproveEnabled || req.RiskLevel != models.RiskLow {
		return false
	}

	switch req.ActionType {
	case models.ActionSendMessage:
		return m.knownContact(req.Target)
	case models.ActionSocialPost:
		return true
	default:
		return false
	}
}

func (m *Manager) knownContact(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	for _, c := range m.config.KnownContacts {
		if strings.ToLower(strings.TrimSpace(c)) == t {
			return true
		}
	}
	return false
}

// auditCreation records that a request was staged. The staging itself needs
// no approval, so the entry carries approval_status not_required.
func (m *Manager) auditCreation(ctx context.Context, req *models.ApprovalRequest) {
	entry := models.AuditLogEntry{
		ActionType:     req.ActionType,
		Actor:          models.ActorAutomation,
		Target:         req.Target,
		Parameters:     req.Parameters,
		ApprovalStatus: models.AuditNotRequired,
		Connector:      req.Connector,
		Result:         models.AuditSuccess,
		ApprovalID:     req.ID,
		Metadata: map[string]any{
			"event":      "request_created",
			"risk_level": string(req.RiskLevel),
		},
	}
	if _, err := m.audit.LogExecution(ctx, entry); err != nil {
		m.logger.Error("failed to audit request creation", "request_id", req.ID, "error", err)
	}
}

// auditDecision records an approval or rejection state change.
func (m *Manager) auditDecision(ctx context.Context, req *models.ApprovalRequest, status models.AuditApprovalStatus, reason string) {
	entry := models.AuditLogEntry{
		ActionType:     req.ActionType,
		Actor:          models.ActorSystem,
		Target:         req.Target,
		ApprovalStatus: status,
		Approver:       req.Approver,
		Connector:      req.Connector,
		Result:         models.AuditSuccess,
		ApprovalID:     req.ID,
		Metadata: map[string]any{
			"event": "decision",
		},
	}
	if reason != "" {
		entry.Metadata["reason"] = reason
	}
	if _, err := m.audit.LogExecution(ctx, entry); err != nil {
		m.logger.Error("failed to audit decision", "request_id", req.ID, "error", err)
	}
}
