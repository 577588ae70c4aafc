package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// OpenAI LLM configuration
	OpenAI OpenAIConfig

	// Server configuration
	Server ServerConfig

	// Query configuration
	Query QueryConfig

	// Session configuration
	Session SessionConfig
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    string
	GinMode string
}

// QueryConfig holds query processing configuration
type QueryConfig struct {
	Timeout            time.Duration
	MaxResultRows      int
	MaxQuestionLength  int
	MaxHistoryEntries  int
	EnableSafetyChecks bool
}

// SessionConfig holds UI session state configuration
type SessionConfig struct {
	TTL time.Duration
}

// Loader handles loading configuration from various sources
type Loader struct {
	provider SecretProvider
}

// NewLoader creates a new configuration loader with the given secret provider
func NewLoader(provider SecretProvider) *Loader {
	return &Loader{
		provider: provider,
	}
}

// NewDefaultLoader creates a loader with the default provider chain:
// 1. Kubernetes secrets (if available)
// 2. File-based secrets (if available)
// 3. Environment variables (fallback)
func NewDefaultLoader() *Loader {
	providers := []SecretProvider{
		NewK8sProvider("", ""),                 // Auto-detect K8s environment
		NewFileProvider(defaultK8sSecretsPath), // Mounted secrets outside K8s
		NewEnvProvider(),                       // Always available fallback
	}

	return &Loader{
		provider: NewChainProvider(providers...),
	}
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	// Load Database config
	cfg.Database = DatabaseConfig{
		Path:         l.getString(ctx, "DB_PATH", "demo_sales.db"),
		MaxOpenConns: l.getInt(ctx, "DB_MAX_OPEN_CONNS", 4),
		BusyTimeout:  l.getDuration(ctx, "DB_BUSY_TIMEOUT", 5*time.Second),
	}

	// Load Redis config
	cfg.Redis = RedisConfig{
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	// Load OpenAI config
	cfg.OpenAI = OpenAIConfig{
		APIKey:  l.getString(ctx, "OPENAI_API_KEY", ""),
		Model:   l.getString(ctx, "OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL: l.getString(ctx, "OPENAI_BASE_URL", ""),
		Timeout: l.getDuration(ctx, "OPENAI_TIMEOUT", 60*time.Second),
	}

	// Load Server config
	cfg.Server = ServerConfig{
		Port:    l.getString(ctx, "PORT", "8080"),
		GinMode: l.getString(ctx, "GIN_MODE", "debug"),
	}

	// Load Query config
	cfg.Query = QueryConfig{
		Timeout:            l.getDuration(ctx, "QUERY_TIMEOUT", 30*time.Second),
		MaxResultRows:      l.getInt(ctx, "MAX_RESULT_ROWS", 1000),
		MaxQuestionLength:  l.getInt(ctx, "MAX_QUESTION_LENGTH", 500),
		MaxHistoryEntries:  l.getInt(ctx, "MAX_HISTORY_ENTRIES", 100),
		EnableSafetyChecks: l.getBool(ctx, "ENABLE_SAFETY_CHECKS", true),
	}

	// Load Session config
	cfg.Session = SessionConfig{
		TTL: l.getDuration(ctx, "SESSION_TTL", 24*time.Hour),
	}

	return cfg, nil
}

// Helper methods for retrieving and parsing configuration values

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (l *Loader) getBool(ctx context.Context, key string, defaultValue bool) bool {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func (l *Loader) getSlice(ctx context.Context, key string, defaultValue []string) []string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// MustLoad loads configuration and panics on error
// Useful for application startup
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
