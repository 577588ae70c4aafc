package config

import (
	"context"
	"os"
)

// Default mount path for the query-service secret. The deployment mounts
// a Secret holding keys like openai-api-key and redis-password here.
const defaultK8sSecretsPath = "/var/secrets/querypilot"

// K8sProvider resolves secrets mounted into the pod by Kubernetes.
// Secrets arrive as files under the mount path, so resolution delegates
// to a FileProvider rather than going through the API server.
type K8sProvider struct {
	fileProvider *FileProvider
	namespace    string
}

// NewK8sProvider creates a provider reading from the given secret mount path.
// An empty path falls back to the query-service default mount, and an empty
// namespace is detected from the pod's service account when present.
func NewK8sProvider(secretsPath, namespace string) *K8sProvider {
	if secretsPath == "" {
		secretsPath = defaultK8sSecretsPath
	}
	if namespace == "" {
		if ns, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
			namespace = string(ns)
		} else {
			namespace = "default"
		}
	}

	return &K8sProvider{
		fileProvider: NewFileProvider(secretsPath),
		namespace:    namespace,
	}
}

// GetSecret reads the mounted secret file for key, mapping env-style
// names like OPENAI_API_KEY to their kebab-case file names
func (k *K8sProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return k.fileProvider.GetSecret(ctx, key)
}

// Name returns the provider name
func (k *K8sProvider) Name() string {
	return "kubernetes"
}

// IsAvailable reports whether the process runs inside a pod with the
// secret mount in place
func (k *K8sProvider) IsAvailable(ctx context.Context) bool {
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount/token"); err == nil {
		return k.fileProvider.IsAvailable(ctx)
	}
	return false
}

// GetNamespace returns the namespace the provider resolved at construction
func (k *K8sProvider) GetNamespace() string {
	return k.namespace
}
