package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// ResolveSecrets loads PASSWORD_KEY from Secret Manager when
// PASSWORD_KEY_SECRET names a secret. Bare secret paths get "/versions/latest"
// appended.
func ResolveSecrets(ctx context.Context, cfg *Config) error {
	name := cfg.Encryption.PasswordKeySecret
	if name == "" {
		return nil
	}
	if !strings.Contains(name, "/versions/") {
		name += "/versions/latest"
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return fmt.Errorf("failed to access secret version: %w", err)
	}

	key := strings.TrimSpace(string(result.Payload.Data))
	if err := ValidatePasswordKey(key); err != nil {
		return fmt.Errorf("secret %s: %w", name, err)
	}
	cfg.Encryption.PasswordKey = key
	return nil
}
