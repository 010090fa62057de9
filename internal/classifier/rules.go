package classifier

import (
	"context"
	"strings"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// domainKeywords maps lowercase keywords to a domain. First match wins in
// the order below; ties are broken by the stronger (earlier) domain.
var domainKeywords = []struct {
	domain   models.Domain
	keywords []string
}{
	{models.DomainAccounting, []string{"invoice", "receipt", "expense", "payment", "tax", "reimburs", "payroll"}},
	{models.DomainBusiness, []string{"client", "contract", "proposal", "meeting", "deadline", "project", "vendor"}},
	{models.DomainSocial, []string{"post", "tweet", "share", "publish", "follower", "announcement"}},
	{models.DomainPersonal, []string{"appointment", "birthday", "family", "doctor", "personal", "reminder"}},
}

// RuleBased is a deterministic keyword classifier.
type RuleBased struct{}

// NewRuleBased creates the rule-based classifier.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Classify scores the item text against the keyword tables and returns the
// best-matching domain, or unknown when nothing matches.
func (c *RuleBased) Classify(ctx context.Context, item models.ActionItem) (models.Domain, error) {
	text := strings.ToLower(item.Title + " " + item.Summary + " " + item.Content)

	best := models.DomainUnknown
	bestScore := 0

	for _, entry := range domainKeywords {
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = entry.domain
		}
	}

	return best, nil
}
