package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/querypilot/querypilot/internal/observability"
)

const (
	DefaultModel = "gpt-4o-mini"

	// Token caps per operation. Generation needs room for a full SELECT,
	// explanations are capped at a couple of sentences.
	GenerateMaxTokens = 300
	ExplainMaxTokens  = 200

	// Deterministic output keeps generated SQL stable across retries by the user
	Temperature = 0.0
)

// OpenAIClient implements the Client interface using the OpenAI chat API
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI-backed client
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// GenerateSQL sends the schema-aware prompt and returns the raw model output
func (c *OpenAIClient) GenerateSQL(ctx context.Context, systemMsg, userMsg string) (string, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   GenerateMaxTokens,
		Temperature: Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
	})

	duration := time.Since(start)
	if err != nil {
		observability.RecordLLMMetrics("generate_sql", duration, 0, err)
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	observability.RecordLLMMetrics("generate_sql", duration, resp.Usage.TotalTokens, nil)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// ExplainSQL asks the model for a short plain-English description of the SQL
func (c *OpenAIClient) ExplainSQL(ctx context.Context, sql string) (string, error) {
	start := time.Now()

	prompt := fmt.Sprintf("Explain this SQL query in simple plain English in 2-3 sentences. SQL:\n\n%s", sql)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   ExplainMaxTokens,
		Temperature: Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})

	duration := time.Since(start)
	if err != nil {
		observability.RecordLLMMetrics("explain_sql", duration, 0, err)
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	observability.RecordLLMMetrics("explain_sql", duration, resp.Usage.TotalTokens, nil)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Ping verifies the API is reachable with the configured credentials
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}
