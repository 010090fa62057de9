// Package classifier assigns a business domain to detected action items so
// the router can pick the right connector. A deterministic rule-based
// classifier is the default; an OpenAI-backed one can be layered on top and
// falls back to the rules on any failure.
package classifier

import (
	"context"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// Classifier assigns a domain to an action item.
type Classifier interface {
	Classify(ctx context.Context, item models.ActionItem) (models.Domain, error)
}
