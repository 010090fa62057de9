package approval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adjutant-ai/adjutant/internal/models"
)

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// Assessment is the outcome of risk-grading a proposed action. The
// assessment is a pure function of its inputs so policy decisions are
// reproducible in tests and in the audit trail.
type Assessment struct {
	Level   models.RiskLevel
	Factors []string
}

// AssessRisk grades a proposed action.
func AssessRisk(actionType models.ActionType, target, content string, params map[string]any, knownContact bool) Assessment {
	switch actionType {
	case models.ActionBrowserAction:
		return Assessment{
			Level:   models.RiskHigh,
			Factors: []string{"browser automation acts directly on a UI"},
		}
	case models.ActionSendMessage:
		return assessMessage(target, content, params, knownContact)
	case models.ActionSocialPost:
		return assessSocialPost(content)
	case models.ActionCustom:
		return Assessment{
			Level:   models.RiskMedium,
			Factors: []string{"custom action type, defaulting to medium risk"},
		}
	default:
		return Assessment{
			Level:   models.RiskMedium,
			Factors: []string{fmt.Sprintf("unrecognized action type %q, defaulting to medium risk", actionType)},
		}
	}
}

func assessMessage(target, content string, params map[string]any, knownContact bool) Assessment {
	var factors []string
	level := models.RiskLow

	words := wordCount(content)
	long := words > 100

	if !knownContact {
		factors = append(factors, fmt.Sprintf("recipient %q is not a known contact", target))
	}
	if long {
		factors = append(factors, fmt.Sprintf("long message body (%d words)", words))
		level = models.RiskMedium
	}
	if !knownContact && long {
		level = models.RiskHigh
	}
	if hasAttachments(params) {
		factors = append(factors, "message carries attachments")
		level = models.RiskHigh
	}

	return Assessment{Level: level, Factors: factors}
}

func assessSocialPost(content string) Assessment {
	var factors []string
	level := models.RiskLow

	if urlRe.MatchString(content) {
		factors = append(factors, "post contains a URL")
	}
	switch {
	case len(content) > 500:
		factors = append(factors, fmt.Sprintf("very long post (%d chars)", len(content)))
		level = models.RiskHigh
	case len(content) > 200:
		factors = append(factors, fmt.Sprintf("long post (%d chars)", len(content)))
		level = models.RiskMedium
	}

	return Assessment{Level: level, Factors: factors}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func hasAttachments(params map[string]any) bool {
	v, ok := params["attachments"]
	if !ok {
		return false
	}
	switch a := v.(type) {
	case []any:
		return len(a) > 0
	case []string:
		return len(a) > 0
	case string:
		return a != ""
	default:
		return v != nil
	}
}
