package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/adjutant-ai/adjutant/internal/models"
)

// OpenAIConfig holds configuration for LLM-backed classification.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// DefaultOpenAIConfig returns sensible defaults for classification.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.0,
		Timeout:     30 * time.Second,
	}
}

// OpenAIClassifier asks an LLM for the domain and falls back to the
// rule-based classifier on any failure, so classification never blocks the
// intake loop on an API outage.
type OpenAIClassifier struct {
	client   *openai.Client
	config   OpenAIConfig
	fallback Classifier
	logger   *slog.Logger
}

// NewOpenAIClassifier creates the LLM classifier.
func NewOpenAIClassifier(config OpenAIConfig, fallback Classifier, logger *slog.Logger) (*OpenAIClassifier, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai classifier requires an API key")
	}
	if fallback == nil {
		fallback = NewRuleBased()
	}
	return &OpenAIClassifier{
		client:   openai.NewClient(config.APIKey),
		config:   config,
		fallback: fallback,
		logger:   logger,
	}, nil
}

const classifyPrompt = `Classify the following action item into exactly one domain.
Answer with a single word from: personal, business, accounting, social, unknown.

Title: %s
Summary: %s`

// Classify asks the model for a single-word domain answer.
func (c *OpenAIClassifier) Classify(ctx context.Context, item models.ActionItem) (models.Domain, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   5,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(classifyPrompt, item.Title, item.Summary),
			},
		},
	})
	if err != nil {
		c.logger.Warn("llm classification failed, falling back to rules",
			"id", item.ID,
			"error", err,
		)
		return c.fallback.Classify(ctx, item)
	}

	if len(resp.Choices) == 0 {
		return c.fallback.Classify(ctx, item)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch models.Domain(answer) {
	case models.DomainPersonal, models.DomainBusiness, models.DomainAccounting, models.DomainSocial, models.DomainUnknown:
		return models.Domain(answer), nil
	default:
		c.logger.Warn("llm returned unexpected domain, falling back to rules",
			"id", item.ID,
			"answer", answer,
		)
		return c.fallback.Classify(ctx, item)
	}
}
