package config

import (
	"context"
	"fmt"
)

// SecretProvider resolves a single secret such as OPENAI_API_KEY or
// REDIS_PASSWORD from some backing source
type SecretProvider interface {
	// GetSecret retrieves a secret value by key
	GetSecret(ctx context.Context, key string) (string, error)

	// Name returns the provider name for logging/debugging
	Name() string

	// IsAvailable checks if this provider is available/configured
	IsAvailable(ctx context.Context) bool
}

// ChainProvider tries a sequence of providers in order, so the service
// can prefer mounted Kubernetes secrets over plain environment variables
type ChainProvider struct {
	providers []SecretProvider
}

// NewChainProvider creates a chain over the given providers.
// Earlier providers win; later ones are fallbacks.
func NewChainProvider(providers ...SecretProvider) *ChainProvider {
	return &ChainProvider{
		providers: providers,
	}
}

// GetSecret returns the first non-empty value any available provider yields
func (c *ChainProvider) GetSecret(ctx context.Context, key string) (string, error) {
	var lastErr error

	for _, provider := range c.providers {
		if !provider.IsAvailable(ctx) {
			continue
		}

		value, err := provider.GetSecret(ctx, key)
		if err == nil && value != "" {
			return value, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("every secret provider failed for %s, last error: %w", key, lastErr)
	}
	return "", fmt.Errorf("no secret provider could resolve key: %s", key)
}

// Name returns the chain provider name
func (c *ChainProvider) Name() string {
	return "chain"
}

// IsAvailable reports whether at least one provider in the chain is usable
func (c *ChainProvider) IsAvailable(ctx context.Context) bool {
	for _, provider := range c.providers {
		if provider.IsAvailable(ctx) {
			return true
		}
	}
	return false
}
