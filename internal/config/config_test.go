package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()

	// Set test environment variable
	os.Setenv("TEST_SECRET", "test-value")
	defer os.Unsetenv("TEST_SECRET")

	provider := NewEnvProvider()

	t.Run("retrieves existing env var", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "TEST_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "test-value" {
			t.Errorf("expected 'test-value', got '%s'", value)
		}
	})

	t.Run("returns empty for non-existent env var", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "NON_EXISTENT")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("is always available", func(t *testing.T) {
		if !provider.IsAvailable(ctx) {
			t.Error("env provider should always be available")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if provider.Name() != "env" {
			t.Errorf("expected name 'env', got '%s'", provider.Name())
		}
	})
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()

	// Create temporary directory for test secrets
	tmpDir := t.TempDir()

	// Write test secret file
	secretFile := tmpDir + "/openai-api-key"
	err := os.WriteFile(secretFile, []byte("sk-test-key\n"), 0600)
	if err != nil {
		t.Fatalf("failed to create test secret file: %v", err)
	}

	provider := NewFileProvider(tmpDir)

	t.Run("retrieves secret from file", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "OPENAI_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "sk-test-key" {
			t.Errorf("expected 'sk-test-key', got '%s'", value)
		}
	})

	t.Run("returns empty for non-existent file", func(t *testing.T) {
		value, err := provider.GetSecret(ctx, "NON_EXISTENT_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("is available when directory exists", func(t *testing.T) {
		if !provider.IsAvailable(ctx) {
			t.Error("file provider should be available when directory exists")
		}
	})

	t.Run("is not available when directory doesn't exist", func(t *testing.T) {
		provider := NewFileProvider("/non/existent/path")
		if provider.IsAvailable(ctx) {
			t.Error("file provider should not be available for non-existent directory")
		}
	})

	t.Run("is not available when path is empty", func(t *testing.T) {
		provider := NewFileProvider("")
		if provider.IsAvailable(ctx) {
			t.Error("file provider should not be available with empty path")
		}
	})

	t.Run("is not available when path is a file not directory", func(t *testing.T) {
		// Create a file instead of directory
		tmpFile := tmpDir + "/not-a-directory"
		err := os.WriteFile(tmpFile, []byte("content"), 0600)
		if err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		provider := NewFileProvider(tmpFile)
		if provider.IsAvailable(ctx) {
			t.Error("file provider should not be available when path is a file")
		}
	})

	t.Run("returns error when secrets path not configured", func(t *testing.T) {
		provider := NewFileProvider("")
		_, err := provider.GetSecret(ctx, "ANY_KEY")
		if err == nil {
			t.Error("expected error when secrets path is empty")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if provider.Name() != "file" {
			t.Errorf("expected name 'file', got '%s'", provider.Name())
		}
	})
}

func TestChainProvider(t *testing.T) {
	ctx := context.Background()

	// Set up test environment
	os.Setenv("ENV_SECRET", "from-env")
	defer os.Unsetenv("ENV_SECRET")

	tmpDir := t.TempDir()
	err := os.WriteFile(tmpDir+"/file-secret", []byte("from-file"), 0600)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	envProvider := NewEnvProvider()
	fileProvider := NewFileProvider(tmpDir)
	chain := NewChainProvider(fileProvider, envProvider)

	t.Run("uses first available provider", func(t *testing.T) {
		value, err := chain.GetSecret(ctx, "FILE_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "from-file" {
			t.Errorf("expected 'from-file', got '%s'", value)
		}
	})

	t.Run("falls back to next provider", func(t *testing.T) {
		value, err := chain.GetSecret(ctx, "ENV_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "from-env" {
			t.Errorf("expected 'from-env', got '%s'", value)
		}
	})

	t.Run("returns error when all providers fail", func(t *testing.T) {
		emptyChain := NewChainProvider(NewFileProvider("/non/existent"))
		_, err := emptyChain.GetSecret(ctx, "ANY_KEY")
		if err == nil {
			t.Error("expected error when all providers fail")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		if chain.Name() != "chain" {
			t.Errorf("expected name 'chain', got '%s'", chain.Name())
		}
	})

	t.Run("is available when at least one provider is available", func(t *testing.T) {
		if !chain.IsAvailable(ctx) {
			t.Error("chain should be available when at least one provider is available")
		}
	})

	t.Run("is not available when no providers are available", func(t *testing.T) {
		emptyChain := NewChainProvider(NewFileProvider("/non/existent"))
		if emptyChain.IsAvailable(ctx) {
			t.Error("chain should not be available when no providers are available")
		}
	})

	t.Run("handles empty secret value from provider", func(t *testing.T) {
		// When a provider returns an empty value the chain continues
		// to the next provider
		os.Setenv("FOUND_SECRET", "found-in-env")
		defer os.Unsetenv("FOUND_SECRET")

		value, err := chain.GetSecret(ctx, "FOUND_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "found-in-env" {
			t.Errorf("expected 'found-in-env', got '%s'", value)
		}
	})
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	// Set up test environment variables
	testEnv := map[string]string{
		"DB_PATH":             "test_sales.db",
		"DB_MAX_OPEN_CONNS":   "8",
		"REDIS_ADDR":          "test-redis:6379",
		"REDIS_PASSWORD":      "redis-pass",
		"OPENAI_API_KEY":      "sk-test",
		"OPENAI_MODEL":        "gpt-4o-mini",
		"PORT":                "8080",
		"GIN_MODE":            "debug",
		"MAX_RESULT_ROWS":     "500",
		"MAX_HISTORY_ENTRIES": "25",
	}

	for k, v := range testEnv {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range testEnv {
			os.Unsetenv(k)
		}
	}()

	loader := NewLoader(NewEnvProvider())

	t.Run("loads all configuration sections", func(t *testing.T) {
		cfg, err := loader.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading config: %v", err)
		}

		// Verify database config
		if cfg.Database.Path != "test_sales.db" {
			t.Errorf("expected DB path 'test_sales.db', got '%s'", cfg.Database.Path)
		}
		if cfg.Database.MaxOpenConns != 8 {
			t.Errorf("expected 8 max open conns, got %d", cfg.Database.MaxOpenConns)
		}

		// Verify Redis config
		if cfg.Redis.Addr != "test-redis:6379" {
			t.Errorf("expected Redis addr 'test-redis:6379', got '%s'", cfg.Redis.Addr)
		}

		// Verify OpenAI config
		if cfg.OpenAI.APIKey != "sk-test" {
			t.Errorf("expected OpenAI API key 'sk-test', got '%s'", cfg.OpenAI.APIKey)
		}
		if cfg.OpenAI.Model != "gpt-4o-mini" {
			t.Errorf("expected model 'gpt-4o-mini', got '%s'", cfg.OpenAI.Model)
		}

		// Verify Query config
		if cfg.Query.MaxResultRows != 500 {
			t.Errorf("expected max result rows 500, got %d", cfg.Query.MaxResultRows)
		}
		if cfg.Query.MaxHistoryEntries != 25 {
			t.Errorf("expected max history entries 25, got %d", cfg.Query.MaxHistoryEntries)
		}

		// Verify Server config
		if cfg.Server.Port != "8080" {
			t.Errorf("expected port '8080', got '%s'", cfg.Server.Port)
		}
	})

	t.Run("uses default values when env vars not set", func(t *testing.T) {
		// Clear all env vars
		for k := range testEnv {
			os.Unsetenv(k)
		}

		cfg, err := loader.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Should use defaults
		if cfg.Database.Path != "demo_sales.db" {
			t.Errorf("expected default path 'demo_sales.db', got '%s'", cfg.Database.Path)
		}
		if cfg.Server.Port != "8080" {
			t.Errorf("expected default port '8080', got '%s'", cfg.Server.Port)
		}
		if cfg.Query.MaxResultRows != 1000 {
			t.Errorf("expected default max result rows 1000, got %d", cfg.Query.MaxResultRows)
		}
		if cfg.OpenAI.Model != "gpt-4o-mini" {
			t.Errorf("expected default model 'gpt-4o-mini', got '%s'", cfg.OpenAI.Model)
		}

		// Restore env vars for other tests
		for k, v := range testEnv {
			os.Setenv(k, v)
		}
	})

	t.Run("parses durations correctly", func(t *testing.T) {
		os.Setenv("SESSION_TTL", "12h")
		os.Setenv("QUERY_TIMEOUT", "45s")
		defer os.Unsetenv("SESSION_TTL")
		defer os.Unsetenv("QUERY_TIMEOUT")

		cfg, err := loader.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Session.TTL != 12*time.Hour {
			t.Errorf("expected session TTL 12h, got %v", cfg.Session.TTL)
		}
		if cfg.Query.Timeout != 45*time.Second {
			t.Errorf("expected query timeout 45s, got %v", cfg.Query.Timeout)
		}
	})
}

func TestK8sProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("reads secrets from mounted kubernetes secret files", func(t *testing.T) {
		// Create temporary directory to simulate K8s secret mount
		tmpDir := t.TempDir()

		// Create test secret files
		apiKeyFile := filepath.Join(tmpDir, "openai-api-key")
		err := os.WriteFile(apiKeyFile, []byte("sk-k8s-test-key"), 0600)
		if err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		redisPassFile := filepath.Join(tmpDir, "redis-password")
		err = os.WriteFile(redisPassFile, []byte("k8s-redis-password"), 0600)
		if err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		// Create K8s provider with custom secrets path
		provider := NewK8sProvider(tmpDir, "test-namespace")

		// Test retrieving secrets
		apiKey, err := provider.GetSecret(ctx, "OPENAI_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if apiKey != "sk-k8s-test-key" {
			t.Errorf("expected 'sk-k8s-test-key', got '%s'", apiKey)
		}

		redisPass, err := provider.GetSecret(ctx, "REDIS_PASSWORD")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if redisPass != "k8s-redis-password" {
			t.Errorf("expected 'k8s-redis-password', got '%s'", redisPass)
		}
	})

	t.Run("returns empty for non-existent secrets", func(t *testing.T) {
		tmpDir := t.TempDir()
		provider := NewK8sProvider(tmpDir, "test-namespace")

		value, err := provider.GetSecret(ctx, "NON_EXISTENT_SECRET")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("is not available when secrets directory doesn't exist", func(t *testing.T) {
		provider := NewK8sProvider("/non/existent/path", "test-namespace")

		if provider.IsAvailable(ctx) {
			t.Error("provider should not be available when secrets directory doesn't exist")
		}
	})

	t.Run("has correct name", func(t *testing.T) {
		provider := NewK8sProvider("", "")

		if provider.Name() != "kubernetes" {
			t.Errorf("expected name 'kubernetes', got '%s'", provider.Name())
		}
	})

	t.Run("returns namespace", func(t *testing.T) {
		provider := NewK8sProvider("", "production")

		if provider.GetNamespace() != "production" {
			t.Errorf("expected namespace 'production', got '%s'", provider.GetNamespace())
		}
	})

	t.Run("uses default secrets path when not specified", func(t *testing.T) {
		provider := NewK8sProvider("", "test-namespace")

		if provider.fileProvider == nil {
			t.Fatal("file provider should be initialized")
		}
		if provider.fileProvider.secretsPath != defaultK8sSecretsPath {
			t.Errorf("expected default path '%s', got '%s'",
				defaultK8sSecretsPath, provider.fileProvider.secretsPath)
		}
	})

	t.Run("handles secrets with whitespace and newlines", func(t *testing.T) {
		tmpDir := t.TempDir()

		// Create secret file with trailing newline (common in K8s secrets)
		secretFile := filepath.Join(tmpDir, "redis-password")
		err := os.WriteFile(secretFile, []byte("my-password\n"), 0600)
		if err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		provider := NewK8sProvider(tmpDir, "test-namespace")

		value, err := provider.GetSecret(ctx, "REDIS_PASSWORD")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Should trim the newline
		if value != "my-password" {
			t.Errorf("expected 'my-password' (trimmed), got '%s'", value)
		}
	})

	t.Run("converts environment variable names to kubernetes secret key format", func(t *testing.T) {
		tmpDir := t.TempDir()

		// Kubernetes secrets typically use kebab-case
		// OPENAI_API_KEY should map to openai-api-key
		secretFile := filepath.Join(tmpDir, "openai-api-key")
		err := os.WriteFile(secretFile, []byte("test-value"), 0600)
		if err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		provider := NewK8sProvider(tmpDir, "test-namespace")

		// Request with env var name format
		value, err := provider.GetSecret(ctx, "OPENAI_API_KEY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if value != "test-value" {
			t.Errorf("expected 'test-value', got '%s'", value)
		}
	})
}

func TestK8sProviderNamespaceDetection(t *testing.T) {
	t.Run("uses provided namespace when specified", func(t *testing.T) {
		provider := NewK8sProvider("", "custom-namespace")

		if provider.GetNamespace() != "custom-namespace" {
			t.Errorf("expected 'custom-namespace', got '%s'", provider.GetNamespace())
		}
	})

	t.Run("uses default namespace when not specified and file not found", func(t *testing.T) {
		// When running outside K8s, should default to "default"
		provider := NewK8sProvider("", "")

		expectedNs := "default"
		if provider.GetNamespace() != expectedNs {
			t.Errorf("expected '%s', got '%s'", expectedNs, provider.GetNamespace())
		}
	})
}
