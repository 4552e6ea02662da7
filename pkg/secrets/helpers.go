package secrets

import (
	"context"
	"fmt"
)

// Secret keys resolved at startup
const (
	KeyWebhookAPIKey   = "INTEGRATION_APP_WEBHOOK_API_KEY"
	KeyWorkspaceKey    = "INTEGRATION_APP_WORKSPACE_KEY"
	KeyWorkspaceSecret = "INTEGRATION_APP_WORKSPACE_SECRET"
	KeyJWTSecret       = "JWT_SECRET"
)

// LoadString loads a secret as a string with optional fallback
func LoadString(ctx context.Context, m Manager, key, fallback string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// LoadStringRequired loads a required secret (fails if not found)
func LoadStringRequired(ctx context.Context, m Manager, key string) (string, error) {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return "", fmt.Errorf("required secret %s not found: %w", key, err)
	}
	if value == "" {
		return "", fmt.Errorf("required secret %s is empty", key)
	}
	return value, nil
}

// SyncSecrets holds the credentials the sync service needs
type SyncSecrets struct {
	WebhookAPIKey   string
	WorkspaceKey    string
	WorkspaceSecret string
	JWTSecret       string
}

// LoadSyncSecrets resolves the sync credentials, using fallback for any
// secret the manager cannot resolve. The webhook key and the workspace
// credentials must end up non-empty.
func LoadSyncSecrets(ctx context.Context, m Manager, fallback SyncSecrets) (*SyncSecrets, error) {
	s := &SyncSecrets{
		WebhookAPIKey:   LoadString(ctx, m, KeyWebhookAPIKey, fallback.WebhookAPIKey),
		WorkspaceKey:    LoadString(ctx, m, KeyWorkspaceKey, fallback.WorkspaceKey),
		WorkspaceSecret: LoadString(ctx, m, KeyWorkspaceSecret, fallback.WorkspaceSecret),
		JWTSecret:       LoadString(ctx, m, KeyJWTSecret, fallback.JWTSecret),
	}

	required := []struct {
		key   string
		value string
	}{
		{KeyWebhookAPIKey, s.WebhookAPIKey},
		{KeyWorkspaceKey, s.WorkspaceKey},
		{KeyWorkspaceSecret, s.WorkspaceSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("required secret %s is empty", r.key)
		}
	}

	return s, nil
}
