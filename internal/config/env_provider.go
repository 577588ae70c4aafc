package config

import (
	"context"
	"os"
)

// EnvProvider reads secrets straight from environment variables.
// It sits last in the default chain as the always-available fallback
// for local development, where OPENAI_API_KEY is usually exported
// directly in the shell.
type EnvProvider struct{}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// GetSecret returns the value of the environment variable named key.
// An unset variable yields an empty string, which the chain treats as a miss.
func (e *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return os.Getenv(key), nil
}

// Name returns the provider name
func (e *EnvProvider) Name() string {
	return "env"
}

// IsAvailable always returns true, the process environment is always readable
func (e *EnvProvider) IsAvailable(ctx context.Context) bool {
	return true
}
