package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actor identifies who initiated an audited action.
type Actor string

const (
	ActorSystem     Actor = "system"
	ActorUser       Actor = "user"
	ActorAutomation Actor = "automation"
)

// AuditApprovalStatus records how the action's approval was obtained.
type AuditApprovalStatus string

const (
	AuditApproved     AuditApprovalStatus = "approved"
	AuditAutoApproved AuditApprovalStatus = "auto_approved"
	AuditRejected     AuditApprovalStatus = "rejected"
	AuditNotRequired  AuditApprovalStatus = "not_required"
)

// AuditResult records the outcome of an audited action attempt.
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailure AuditResult = "failure"
	AuditPartial AuditResult = "partial"
)

// AuditLogEntry is an immutable record of one external-action attempt.
// Parameter and metadata maps must never contain a raw credential value
// after sanitization; the audit logger checks this rather than assuming it.
type AuditLogEntry struct {
	EntryID        string              `json:"entry_id"`
	Timestamp      time.Time           `json:"timestamp"`
	ActionType     ActionType          `json:"action_type"`
	Actor          Actor               `json:"actor"`
	Target         string              `json:"target"`
	Parameters     map[string]any      `json:"parameters,omitempty"`
	ApprovalStatus AuditApprovalStatus `json:"approval_status"`
	Approver       string              `json:"approver,omitempty"`
	Connector      string              `json:"connector,omitempty"`
	Result         AuditResult         `json:"result"`
	ErrorMessage   string              `json:"error,omitempty"`
	ErrorCode      string              `json:"error_code,omitempty"`
	DurationMs     float64             `json:"duration_ms,omitempty"`
	ApprovalID     string              `json:"approval_request_id,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
}

// Validate enforces the audit entry schema. Invalid entries are refused,
// never silently written.
func (e AuditLogEntry) Validate() error {
	id, err := uuid.Parse(e.EntryID)
	if err != nil {
		return fmt.Errorf("audit entry: invalid entry_id: %w", err)
	}
	if id.Version() != 4 {
		return fmt.Errorf("audit entry %s: entry_id must be a v4 UUID", e.EntryID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("audit entry %s: missing timestamp", e.EntryID)
	}
	if !ValidActionType(e.ActionType) {
		return fmt.Errorf("audit entry %s: invalid action_type %q", e.EntryID, e.ActionType)
	}
	switch e.Actor {
	case ActorSystem, ActorUser, ActorAutomation:
	default:
		return fmt.Errorf("audit entry %s: invalid actor %q", e.EntryID, e.Actor)
	}
	if e.Target == "" {
		return fmt.Errorf("audit entry %s: missing target", e.EntryID)
	}
	switch e.ApprovalStatus {
	case AuditApproved, AuditAutoApproved, AuditRejected, AuditNotRequired:
	default:
		return fmt.Errorf("audit entry %s: invalid approval_status %q", e.EntryID, e.ApprovalStatus)
	}
	switch e.Result {
	case AuditSuccess, AuditFailure, AuditPartial:
	default:
		return fmt.Errorf("audit entry %s: invalid result %q", e.EntryID, e.Result)
	}
	return nil
}
