package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adjutant-ai/adjutant/internal/audit"
	"github.com/adjutant-ai/adjutant/internal/connectors"
	"github.com/adjutant-ai/adjutant/internal/health"
	"github.com/adjutant-ai/adjutant/internal/metrics"
	"github.com/adjutant-ai/adjutant/internal/models"
	"github.com/adjutant-ai/adjutant/internal/retry"
	"github.com/adjutant-ai/adjutant/internal/store"
)

// OrchestratorConfig holds the decision loop's tunables.
type OrchestratorConfig struct {
	PollInterval     time.Duration
	ExpirationWindow time.Duration
	CallTimeout      time.Duration
	RetryPolicy      retry.Policy
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.PipelineCollector
}

// DefaultOrchestratorConfig returns the standard loop settings: poll every
// minute, expire pending requests after 24 hours.
func DefaultOrchestratorConfig() OrchestratorConfig {
	policy := retry.DefaultPolicy()
	policy.RetryIf = connectors.IsRetryable
	return OrchestratorConfig{
		PollInterval:     time.Minute,
		ExpirationWindow: 24 * time.Hour,
		CallTimeout:      60 * time.Second,
		RetryPolicy:      policy,
	}
}

// Orchestrator polls the shared stores for human decisions, enforces
// expiration, and drives approved requests through execution. It is the only
// worker that moves approval records out of the approved store.
type Orchestrator struct {
	store       store.Store
	audit       *audit.Logger
	connectors  *connectors.Registry
	health      *health.Registry
	failedCache *connectors.FailedRequestCache
	config      OrchestratorConfig
	logger      *slog.Logger
	now         func() time.Time

	// seenRejected tracks rejected-store entries already audited, so a
	// record a human dropped there directly is logged exactly once across
	// polls.
	seenRejected map[string]bool
}

// NewOrchestrator creates the approval decision loop.
func NewOrchestrator(
	s store.Store,
	auditLog *audit.Logger,
	conns *connectors.Registry,
	healthReg *health.Registry,
	failedCache *connectors.FailedRequestCache,
	config OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.ExpirationWindow <= 0 {
		config.ExpirationWindow = 24 * time.Hour
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 60 * time.Second
	}
	return &Orchestrator{
		store:        s,
		audit:        auditLog,
		connectors:   conns,
		health:       healthReg,
		failedCache:  failedCache,
		config:       config,
		logger:       logger,
		now:          time.Now,
		seenRejected: make(map[string]bool),
	}
}

// Start runs the orchestrator loop until the context is cancelled; the
// current iteration always completes before exit.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info("starting approval orchestrator",
		"poll_interval", o.config.PollInterval,
		"expiration_window", o.config.ExpirationWindow,
	)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	o.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("approval orchestrator stopping")
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll: approved-store scan, pending expiration, and
// human-rejection detection.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	o.processApproved(ctx)
	o.expirePending(ctx)
	o.logHumanRejections(ctx)
}

// processApproved validates and executes every record in the approved store.
// A failure in one record's execution never affects siblings: each execution
// is domain-isolated behind executeOne.
func (o *Orchestrator) processApproved(ctx context.Context) {
	records, err := o.store.List(ctx, store.StateApproved)
	if err != nil {
		o.logger.Error("failed to scan approved store", "error", err)
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}

		var req models.ApprovalRequest
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			o.rejectRaw(ctx, rec.ID, fmt.Sprintf("unparseable approval record: %v", err))
			continue
		}

		// A record moved here by a human without editing still carries
		// status pending; the move itself is the approval.
		if req.Status == models.ApprovalPending {
			now := o.now().UTC()
			req.Status = models.ApprovalApproved
			if req.Approver == "" {
				req.Approver = "user"
			}
			if req.ApprovedAt == nil {
				req.ApprovedAt = &now
			}
			o.auditDecision(ctx, &req, models.AuditApproved, "")
			o.observeDecision("approved")
		}

		if err := req.Validate(); err != nil {
			o.reject(ctx, &req, store.StateApproved, fmt.Sprintf("validation failed: %v", err))
			continue
		}

		if req.Status != models.ApprovalApproved {
			// Terminal or unexpected status parked in the approved store.
			o.reject(ctx, &req, store.StateApproved, fmt.Sprintf("unexpected status %q in approved store", req.Status))
			continue
		}

		o.executeOne(ctx, &req)
	}
}

// executeOne runs a single approved request with domain isolation: panics
// and errors are converted into the rejected transition and never escape to
// the polling loop.
func (o *Orchestrator) executeOne(ctx context.Context, req *models.ApprovalRequest) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("execution panicked",
				"request_id", req.ID,
				"panic", r,
			)
			o.reject(ctx, req, store.StateApproved, fmt.Sprintf("execution panicked: %v", r))
		}
	}()

	conn, ok := o.connectors.Get(req.Connector)
	if !ok {
		o.recordFailure(ctx, req, connectors.NewError(req.Connector, connectors.CodeNotFound,
			fmt.Errorf("connector %q not registered", req.Connector)), 0)
		o.reject(ctx, req, store.StateApproved, fmt.Sprintf("connector %q not registered", req.Connector))
		return
	}

	start := o.now()
	policy := o.config.RetryPolicy

	result, err := retry.DoValue(ctx, policy, func() (map[string]any, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
		defer cancel()
		return conn.Invoke(callCtx, req.Operation, req.Parameters)
	})
	durationMs := float64(o.now().Sub(start).Milliseconds())

	if err != nil {
		o.health.RecordOutcome(req.Connector, false, durationMs, err)
		o.observeExecution(req.Connector, "failure", durationMs)
		o.recordFailure(ctx, req, err, durationMs)

		if connectors.NeedsCredentialRefresh(err) {
			o.notifyCredentialFailure(ctx, req, err)
		}
		if connectors.CodeOf(err) == connectors.CodeNetwork {
			o.cacheFailedRequest(ctx, req, err)
		}

		o.reject(ctx, req, store.StateApproved, fmt.Sprintf("execution failed: %v", err))
		return
	}

	o.health.RecordOutcome(req.Connector, true, durationMs, nil)
	o.observeExecution(req.Connector, "success", durationMs)

	now := o.now().UTC()
	req.Status = models.ApprovalExecuted
	if req.ExecutedAt == nil {
		req.ExecutedAt = &now
	}

	moveErr := o.store.Move(ctx, req.ID, store.StateApproved, store.StateDone, func([]byte) ([]byte, error) {
		return json.Marshal(req)
	})
	if moveErr != nil {
		o.logger.Error("failed to move executed request to done",
			"request_id", req.ID,
			"error", moveErr,
		)
	}

	o.auditExecution(ctx, req, models.AuditSuccess, durationMs, "", "", result)
	o.finishSourceItem(ctx, req, store.StateDone)

	o.logger.Info("approved request executed",
		"request_id", req.ID,
		"connector", req.Connector,
		"operation", req.Operation,
		"duration_ms", durationMs,
	)
}

// expirePending rejects pending requests older than the expiration window.
func (o *Orchestrator) expirePending(ctx context.Context) {
	records, err := o.store.List(ctx, store.StatePendingApproval)
	if err != nil {
		o.logger.Error("failed to scan pending store", "error", err)
		return
	}

	now := o.now()
	for _, rec := range records {
		var req models.ApprovalRequest
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			o.logger.Warn("unparseable pending record", "id", rec.ID, "error", err)
			continue
		}

		if !req.Expired(now, o.config.ExpirationWindow) {
			continue
		}

		reason := fmt.Sprintf("expired: no decision within %s of creation", o.config.ExpirationWindow)
		o.reject(ctx, &req, store.StatePendingApproval, reason)
		o.observeDecision("expired")

		o.logger.Info("pending approval expired",
			"request_id", req.ID,
			"created_at", req.CreatedAt,
		)
	}
}

// logHumanRejections audits records a human moved into the rejected store
// directly, once per record.
func (o *Orchestrator) logHumanRejections(ctx context.Context) {
	records, err := o.store.List(ctx, store.StateRejected)
	if err != nil {
		o.logger.Error("failed to scan rejected store", "error", err)
		return
	}

	for _, rec := range records {
		if o.seenRejected[rec.ID] {
			continue
		}
		o.seenRejected[rec.ID] = true

		var req models.ApprovalRequest
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			o.logger.Warn("unparseable rejected record", "id", rec.ID, "error", err)
			continue
		}

		// Records rejected through the API were already audited by the
		// handler; only hand-moved files need an entry here.
		if req.DecidedVia != "" {
			continue
		}

		approver := req.Approver
		if approver == "" {
			approver = "user"
		}
		entry := models.AuditLogEntry{
			ActionType:     auditActionType(&req),
			Actor:          models.ActorUser,
			Target:         auditTarget(&req),
			ApprovalStatus: models.AuditRejected,
			Approver:       approver,
			Connector:      req.Connector,
			Result:         models.AuditSuccess,
			ApprovalID:     req.ID,
			Metadata:       map[string]any{"event": "human_rejection"},
		}
		if _, err := o.audit.LogExecution(ctx, entry); err != nil {
			o.logger.Error("failed to audit human rejection", "request_id", req.ID, "error", err)
		}
	}
}

// auditActionType normalizes a possibly-invalid action type for audit
// entries; structurally broken requests still get audited.
func auditActionType(req *models.ApprovalRequest) models.ActionType {
	if models.ValidActionType(req.ActionType) {
		return req.ActionType
	}
	return models.ActionCustom
}

// auditTarget normalizes a possibly-missing target for audit entries.
func auditTarget(req *models.ApprovalRequest) string {
	if req.Target != "" {
		return req.Target
	}
	return req.ID
}

// reject moves a request to the rejected store with a human-readable reason
// appended to its notes, and records the transition.
func (o *Orchestrator) reject(ctx context.Context, req *models.ApprovalRequest, from store.State, reason string) {
	req.Status = models.ApprovalRejected
	if req.Notes != "" {
		req.Notes += "\n"
	}
	req.Notes += "rejected: " + reason

	err := o.store.Move(ctx, req.ID, from, store.StateRejected, func([]byte) ([]byte, error) {
		return json.Marshal(req)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.logger.Error("failed to move request to rejected",
			"request_id", req.ID,
			"error", err,
		)
	}

	// This loop rejected the record itself; don't double-log it as a human
	// rejection on the next poll.
	o.seenRejected[req.ID] = true

	o.auditDecision(ctx, req, models.AuditRejected, reason)
	o.observeDecision("rejected")
	o.finishSourceItem(ctx, req, store.StateRejected)
}

func (o *Orchestrator) observeDecision(outcome string) {
	if o.config.Metrics != nil {
		o.config.Metrics.Decision(outcome)
	}
}

func (o *Orchestrator) observeExecution(connector, result string, durationMs float64) {
	if o.config.Metrics != nil {
		o.config.Metrics.Execution(connector, result, durationMs/1000)
	}
}

// rejectRaw handles records too damaged to parse: moved as-is, audited under
// their store id.
func (o *Orchestrator) rejectRaw(ctx context.Context, id, reason string) {
	err := o.store.Move(ctx, id, store.StateApproved, store.StateRejected, nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.logger.Error("failed to move unparseable record", "id", id, "error", err)
	}
	o.seenRejected[id] = true

	entry := models.AuditLogEntry{
		ActionType:     models.ActionCustom,
		Actor:          models.ActorSystem,
		Target:         id,
		ApprovalStatus: models.AuditRejected,
		Result:         models.AuditFailure,
		ErrorMessage:   reason,
		Metadata:       map[string]any{"event": "structural_rejection"},
	}
	if _, err := o.audit.LogExecution(ctx, entry); err != nil {
		o.logger.Error("failed to audit structural rejection", "id", id, "error", err)
	}
}

// finishSourceItem moves the originating action item to its terminal store.
func (o *Orchestrator) finishSourceItem(ctx context.Context, req *models.ApprovalRequest, terminal store.State) {
	if req.SourceItemID == "" {
		return
	}
	status := models.ItemStatusDone
	if terminal == store.StateRejected {
		status = models.ItemStatusRejected
	}
	err := o.store.Move(ctx, req.SourceItemID, store.StatePlans, terminal, func(data []byte) ([]byte, error) {
		var item models.ActionItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		item.Status = status
		return json.Marshal(item)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("failed to finish source item",
			"item_id", req.SourceItemID,
			"error", err,
		)
	}
}

// notifyCredentialFailure surfaces an auth/permission failure as an urgent
// action item so a human refreshes the credentials.
func (o *Orchestrator) notifyCredentialFailure(ctx context.Context, req *models.ApprovalRequest, cause error) {
	item := models.ActionItem{
		ID:        uuid.NewString(),
		Source:    models.ItemSourceSystem,
		Title:     fmt.Sprintf("Credential refresh needed for connector %q", req.Connector),
		Summary:   fmt.Sprintf("Execution of request %s failed with a credential error: %v", req.ID, cause),
		Priority:  models.PriorityUrgent,
		Status:    models.ItemStatusDetected,
		CreatedAt: o.now().UTC(),
	}
	if err := store.PutJSON(ctx, o.store, store.StateNeedsAction, item.DedupKey(), item); err != nil {
		o.logger.Error("failed to create credential notification item",
			"connector", req.Connector,
			"error", err,
		)
		return
	}
	o.logger.Warn("credential failure notification created",
		"connector", req.Connector,
		"request_id", req.ID,
	)
}

// cacheFailedRequest stores an unreachable-connector invocation for replay.
func (o *Orchestrator) cacheFailedRequest(ctx context.Context, req *models.ApprovalRequest, cause error) {
	if o.failedCache == nil {
		return
	}
	err := o.failedCache.Add(ctx, connectors.FailedRequest{
		Connector:  req.Connector,
		Operation:  req.Operation,
		Parameters: req.Parameters,
		Reason:     cause.Error(),
		ApprovalID: req.ID,
	})
	if err != nil {
		o.logger.Error("failed to cache unreachable request", "request_id", req.ID, "error", err)
	}
}

// recordFailure writes the audit entry for a failed execution.
func (o *Orchestrator) recordFailure(ctx context.Context, req *models.ApprovalRequest, cause error, durationMs float64) {
	o.auditExecution(ctx, req, models.AuditFailure, durationMs, cause.Error(), string(connectors.CodeOf(cause)), nil)
}

// auditExecution writes the audit entry for an execution attempt.
func (o *Orchestrator) auditExecution(ctx context.Context, req *models.ApprovalRequest, result models.AuditResult, durationMs float64, errMsg, errCode string, output map[string]any) {
	approvalStatus := models.AuditApproved
	if req.Approver == ApproverSystem {
		approvalStatus = models.AuditAutoApproved
	}

	entry := models.AuditLogEntry{
		ActionType:     auditActionType(req),
		Actor:          models.ActorAutomation,
		Target:         auditTarget(req),
		Parameters:     req.Parameters,
		ApprovalStatus: approvalStatus,
		Approver:       req.Approver,
		Connector:      req.Connector,
		Result:         result,
		ErrorMessage:   errMsg,
		ErrorCode:      errCode,
		DurationMs:     durationMs,
		ApprovalID:     req.ID,
	}
	if output != nil {
		entry.Metadata = map[string]any{"output": output}
	}
	if _, err := o.audit.LogExecution(ctx, entry); err != nil {
		o.logger.Error("failed to audit execution", "request_id", req.ID, "error", err)
	}
}

// auditDecision records an approval/rejection transition observed or made by
// the orchestrator.
func (o *Orchestrator) auditDecision(ctx context.Context, req *models.ApprovalRequest, status models.AuditApprovalStatus, reason string) {
	actor := models.ActorSystem
	if status == models.AuditApproved && req.Approver != ApproverSystem {
		actor = models.ActorUser
	}

	entry := models.AuditLogEntry{
		ActionType:     auditActionType(req),
		Actor:          actor,
		Target:         auditTarget(req),
		ApprovalStatus: status,
		Approver:       req.Approver,
		Connector:      req.Connector,
		Result:         models.AuditSuccess,
		ApprovalID:     req.ID,
		Metadata:       map[string]any{"event": "decision"},
	}
	if reason != "" {
		entry.Metadata["reason"] = reason
	}
	if _, err := o.audit.LogExecution(ctx, entry); err != nil {
		o.logger.Error("failed to audit decision", "request_id", req.ID, "error", err)
	}
}
