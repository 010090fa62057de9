package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// ActionPlanner proposes a concrete external action for a classified item.
// Plan generation is an external collaborator; the core only consumes this
// interface.
type ActionPlanner interface {
	ProposeAction(ctx context.Context, item models.ActionItem, domain models.Domain) (CreateInput, error)
}

// OwnerNotifyPlanner is the built-in fallback planner: without an external
// plan-generation service, every item becomes a message to the assistant's
// owner summarizing what was detected.
type OwnerNotifyPlanner struct {
	Owner string
}

// ProposeAction proposes notifying the owner about the item.
func (p OwnerNotifyPlanner) ProposeAction(ctx context.Context, item models.ActionItem, domain models.Domain) (CreateInput, error) {
	content := item.Summary
	if content == "" {
		content = item.Title
	}
	return CreateInput{
		ActionType: models.ActionSendMessage,
		Target:     p.Owner,
		Content:    fmt.Sprintf("Action needed (%s): %s", item.Priority, content),
		Rationale:  "no external planner configured; notifying owner",
		Operation:  "send",
	}, nil
}

// Stager bridges the intake processor to the approval manager: it asks the
// planner for a proposed action and stages an approval request for it.
type Stager struct {
	planner ActionPlanner
	manager *Manager
	logger  *slog.Logger
}

// NewStager creates the intake-to-approval bridge.
func NewStager(planner ActionPlanner, manager *Manager, logger *slog.Logger) *Stager {
	return &Stager{planner: planner, manager: manager, logger: logger}
}

// HandleItem implements the intake handler contract.
func (s *Stager) HandleItem(ctx context.Context, item models.ActionItem, domain models.Domain) error {
	input, err := s.planner.ProposeAction(ctx, item, domain)
	if err != nil {
		return fmt.Errorf("plan item %s: %w", item.ID, err)
	}

	input.SourceItemID = item.DedupKey()
	input.Domain = domain

	req, autoApproved, err := s.manager.CreateRequest(ctx, input)
	if err != nil {
		return fmt.Errorf("stage approval for item %s: %w", item.ID, err)
	}

	s.logger.Debug("item staged for approval",
		"item_id", item.ID,
		"request_id", req.ID,
		"auto_approved", autoApproved,
	)
	return nil
}
