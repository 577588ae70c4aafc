package llm

import (
	"context"
	"time"
)

// Client interface for AI service integration
type Client interface {
	// GenerateSQL produces a single SQLite SELECT statement for the prompt
	GenerateSQL(ctx context.Context, systemMsg, userMsg string) (string, error)
	// ExplainSQL describes a SQL statement in plain English
	ExplainSQL(ctx context.Context, sql string) (string, error)
	// Ping verifies the service is reachable
	Ping(ctx context.Context) error
}

// Config holds configuration for LLM clients
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}
