package models

import (
	"fmt"
	"time"
)

// DocTypeApprovalRequest is the document type marker carried by every stored
// approval request record.
const DocTypeApprovalRequest = "approval_request"

// ActionType classifies the external action an approval request proposes.
type ActionType string

const (
	ActionSendMessage   ActionType = "send-message"
	ActionSocialPost    ActionType = "social-post"
	ActionBrowserAction ActionType = "browser-action"
	ActionCustom        ActionType = "custom"
)

// ValidActionType reports whether t is a member of the action type enum.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionSendMessage, ActionSocialPost, ActionBrowserAction, ActionCustom:
		return true
	}
	return false
}

// RiskLevel grades how dangerous an action is if executed wrongly.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ApprovalStatus represents the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExecuted ApprovalStatus = "executed"
)

// Terminal reports whether a status admits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalExecuted || s == ApprovalRejected
}

// ApprovalRequest is a proposed external action awaiting a human (or policy)
// decision. Once status reaches a terminal state no further transition is
// allowed; the execution timestamp is set at most once.
type ApprovalRequest struct {
	DocType      string         `json:"type"`
	ID           string         `json:"id"`
	ActionType   ActionType     `json:"action_type"`
	Target       string         `json:"target"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	Rationale    string         `json:"rationale,omitempty"`
	RiskFactors  []string       `json:"risk_factors,omitempty"`
	CreatedAt    time.Time      `json:"created_timestamp"`
	Status       ApprovalStatus `json:"status"`
	Approver     string         `json:"approver,omitempty"`
	DecidedVia   string         `json:"decided_via,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_timestamp,omitempty"`
	ExecutedAt   *time.Time     `json:"executed_timestamp,omitempty"`
	SourceItemID string         `json:"source_item_id,omitempty"`
	Domain       Domain         `json:"domain,omitempty"`
	Connector    string         `json:"connector"`
	Operation    string         `json:"operation"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// Validate enforces the required header fields of a stored approval record.
// Records failing validation are rejected, never forwarded to execution.
func (r ApprovalRequest) Validate() error {
	if r.DocType != DocTypeApprovalRequest {
		return fmt.Errorf("missing or wrong document type marker: %q", r.DocType)
	}
	if r.ID == "" {
		return fmt.Errorf("approval request missing id")
	}
	if !ValidActionType(r.ActionType) {
		return fmt.Errorf("approval request %s: invalid action_type %q", r.ID, r.ActionType)
	}
	if r.Target == "" {
		return fmt.Errorf("approval request %s: missing target", r.ID)
	}
	switch r.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return fmt.Errorf("approval request %s: invalid risk_level %q", r.ID, r.RiskLevel)
	}
	switch r.Status {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalExecuted:
	default:
		return fmt.Errorf("approval request %s: invalid status %q", r.ID, r.Status)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("approval request %s: missing created_timestamp", r.ID)
	}
	if r.Connector == "" {
		return fmt.Errorf("approval request %s: missing connector", r.ID)
	}
	if r.Operation == "" {
		return fmt.Errorf("approval request %s: missing operation", r.ID)
	}
	return nil
}

// CanTransition reports whether moving from the current status to next is a
// legal state machine edge: pending -> {approved, rejected},
// approved -> {executed, rejected}.
func (r ApprovalRequest) CanTransition(next ApprovalStatus) bool {
	switch r.Status {
	case ApprovalPending:
		return next == ApprovalApproved || next == ApprovalRejected
	case ApprovalApproved:
		return next == ApprovalExecuted || next == ApprovalRejected
	default:
		return false
	}
}

// Expired reports whether a pending request is older than the window.
func (r ApprovalRequest) Expired(now time.Time, window time.Duration) bool {
	return r.Status == ApprovalPending && now.Sub(r.CreatedAt) > window
}
