package models

import (
	"fmt"
	"time"
)

// ItemSource identifies where an action item was detected.
type ItemSource string

const (
	ItemSourceEmail      ItemSource = "email"
	ItemSourceChat       ItemSource = "chat"
	ItemSourceFilesystem ItemSource = "filesystem"
	ItemSourceSocial     ItemSource = "social"
	ItemSourceSystem     ItemSource = "system"
)

// Priority orders action items in the intake queue. Lower rank dequeues first.
type Priority string

const (
	PriorityUrgent  Priority = "urgent"
	PriorityHigh    Priority = "high"
	PriorityNormal  Priority = "normal"
	PriorityLow     Priority = "low"
	PriorityUnknown Priority = "unknown"
)

// Rank returns the queue ordering key for a priority (urgent=0 ... unknown=4).
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ItemStatus represents the lifecycle state of an action item.
type ItemStatus string

const (
	ItemStatusDetected ItemStatus = "detected"
	ItemStatusPlanned  ItemStatus = "planned"
	ItemStatusStaged   ItemStatus = "staged"
	ItemStatusDone     ItemStatus = "done"
	ItemStatusRejected ItemStatus = "rejected"
)

// Domain is the business classification used to route actions to connectors.
type Domain string

const (
	DomainPersonal   Domain = "personal"
	DomainBusiness   Domain = "business"
	DomainAccounting Domain = "accounting"
	DomainSocial     Domain = "social"
	DomainUnknown    Domain = "unknown"
)

// ActionItem is a unit of detected work. Items are immutable once created
// except for status transitions driven by the pipeline, never by watchers.
type ActionItem struct {
	ID          string     `json:"id"`
	Source      ItemSource `json:"source"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Content     string     `json:"content,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      ItemStatus `json:"status"`
	WatcherType string     `json:"watcher_type,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DedupKey returns the (source, id) identity used for duplicate suppression.
func (a ActionItem) DedupKey() string {
	return fmt.Sprintf("%s/%s", a.Source, a.ID)
}

// Validate checks the minimal structural requirements for an item.
func (a ActionItem) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("action item missing id")
	}
	if a.Source == "" {
		return fmt.Errorf("action item %s missing source", a.ID)
	}
	if a.Title == "" {
		return fmt.Errorf("action item %s missing title", a.ID)
	}
	return nil
}
