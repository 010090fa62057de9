package approval

import (
	"strings"
	"testing"

	"github.com/adjutant-ai/adjutant/internal/models"
)

func TestAssessRisk_BrowserAlwaysHigh(t *testing.T) {
	got := AssessRisk(models.ActionBrowserAction, "bank.example.com", "", nil, true)
	if got.Level != models.RiskHigh {
		t.Errorf("browser actions must be high risk, got %s", got.Level)
	}
}

func TestAssessRisk_Messages(t *testing.T) {
	longBody := strings.Repeat("word ", 101)
	shortBody := "see you tomorrow"

	cases := []struct {
		name       string
		content    string
		params     map[string]any
		known      bool
		wantLevel  models.RiskLevel
		wantFactor string
	}{
		{"known short", shortBody, nil, true, models.RiskLow, ""},
		{"unknown recipient noted", shortBody, nil, false, models.RiskLow, "not a known contact"},
		{"long body medium", longBody, nil, true, models.RiskMedium, "long message body"},
		{"unknown plus long high", longBody, nil, false, models.RiskHigh, ""},
		{"attachment high", shortBody, map[string]any{"attachments": []any{"report.pdf"}}, true, models.RiskHigh, "attachments"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AssessRisk(models.ActionSendMessage, "alice@example.com", tc.content, tc.params, tc.known)
			if got.Level != tc.wantLevel {
				t.Errorf("level: got %s, want %s", got.Level, tc.wantLevel)
			}
			if tc.wantFactor != "" && !factorsContain(got.Factors, tc.wantFactor) {
				t.Errorf("missing factor %q in %v", tc.wantFactor, got.Factors)
			}
		})
	}
}

func TestAssessRisk_SocialPosts(t *testing.T) {
	cases := []struct {
		name       string
		content    string
		wantLevel  models.RiskLevel
		wantFactor string
	}{
		{"short low", "shipped a new release", models.RiskLow, ""},
		{"url noted", "details at https://example.com/post", models.RiskLow, "URL"},
		{"over 200 medium", strings.Repeat("a", 201), models.RiskMedium, "long post"},
		{"over 500 high", strings.Repeat("a", 501), models.RiskHigh, "very long post"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AssessRisk(models.ActionSocialPost, "@company", tc.content, nil, false)
			if got.Level != tc.wantLevel {
				t.Errorf("level: got %s, want %s", got.Level, tc.wantLevel)
			}
			if tc.wantFactor != "" && !factorsContain(got.Factors, tc.wantFactor) {
				t.Errorf("missing factor %q in %v", tc.wantFactor, got.Factors)
			}
		})
	}
}

func TestAssessRisk_UnrecognizedDefaultsMedium(t *testing.T) {
	got := AssessRisk(models.ActionType("teleport"), "somewhere", "", nil, false)
	if got.Level != models.RiskMedium {
		t.Errorf("got %s, want medium", got.Level)
	}
	if len(got.Factors) == 0 {
		t.Error("fallback should be noted as a risk factor")
	}
}

func TestAssessRisk_Deterministic(t *testing.T) {
	first := AssessRisk(models.ActionSendMessage, "bob@example.com", strings.Repeat("w ", 150), nil, false)
	for i := 0; i < 5; i++ {
		again := AssessRisk(models.ActionSendMessage, "bob@example.com", strings.Repeat("w ", 150), nil, false)
		if again.Level != first.Level || len(again.Factors) != len(first.Factors) {
			t.Fatal("risk assessment is not deterministic")
		}
	}
}

func factorsContain(factors []string, substr string) bool {
	for _, f := range factors {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}
