package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/retry"
)

const (
	// vaultClientTimeout is the timeout for Vault HTTP client operations.
	vaultClientTimeout = 30 * time.Second

	vaultFieldUserID       = "user_id"
	vaultFieldResourcePath = "resource_path"
)

// VaultConfig configures a VaultTokenResolver.
type VaultConfig struct {
	Address string
	Token   string
	// Mount is the KV v2 secrets engine mount, e.g. "secret".
	Mount string
	// Prefix is the path under the mount holding one secret per token hash.
	Prefix string
	Retry  retry.Config
}

// VaultTokenResolver resolves API tokens stored in a Vault KV v2 engine.
//
// Each token is stored at <mount>/data/<prefix>/<sha256(token)> with a user_id field and an
// optional resource_path field. Token owners are looked up in a Store.
type VaultTokenResolver struct {
	client *vault.Client
	users  Store
	mount  string
	prefix string
	retry  retry.Config
	logger *zap.Logger
}

// NewVaultTokenResolver creates a resolver backed by Vault.
func NewVaultTokenResolver(cfg VaultConfig, users Store, logger *zap.Logger) (*VaultTokenResolver, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	if cfg.Mount == "" {
		return nil, fmt.Errorf("vault KV mount is required")
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	vaultCfg.Timeout = vaultClientTimeout
	// Retries are driven by retry.Do so that not-found answers are never retried.
	vaultCfg.MaxRetries = 0

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = retry.DefaultConfig()
	}

	return &VaultTokenResolver{
		client: client,
		users:  users,
		mount:  strings.Trim(cfg.Mount, "/"),
		prefix: strings.Trim(cfg.Prefix, "/"),
		retry:  retryCfg,
		logger: logger.Named("vault_tokens"),
	}, nil
}

// ResolveToken implements TokenResolver.
func (r *VaultTokenResolver) ResolveToken(ctx context.Context, token string) (*Grant, error) {
	path := r.secretPath(token)

	var secret *vault.Secret
	err := retry.Do(ctx, r.retry, r.logger, "vault token lookup", func() error {
		var readErr error
		secret, readErr = r.client.Logical().ReadWithContext(ctx, path)
		if readErr != nil {
			var respErr *vault.ResponseError
			if errors.As(readErr, &respErr) && respErr.StatusCode < 500 {
				return retry.Permanent(readErr)
			}
			return readErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading token from vault: %w", err)
	}

	data, ok := secretData(secret)
	if !ok {
		return nil, ErrTokenNotFound
	}

	userID, _ := data[vaultFieldUserID].(string)
	if userID == "" {
		r.logger.Warn("vault token secret has no owner", zap.String("path", path))
		return nil, ErrTokenNotFound
	}
	resourcePath, _ := data[vaultFieldResourcePath].(string)

	user, err := r.users.UserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token owner: %w", err)
	}

	return &Grant{User: user, ResourcePath: resourcePath}, nil
}

// secretPath maps a token to its KV v2 data path. Tokens are hashed so they never appear
// in Vault paths or audit logs.
func (r *VaultTokenResolver) secretPath(token string) string {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if r.prefix == "" {
		return fmt.Sprintf("%s/data/%s", r.mount, key)
	}
	return fmt.Sprintf("%s/data/%s/%s", r.mount, r.prefix, key)
}

// secretData extracts the KV v2 payload of a secret.
func secretData(secret *vault.Secret) (map[string]any, bool) {
	if secret == nil || secret.Data == nil {
		return nil, false
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Healthy reports whether Vault is reachable, initialized and unsealed.
func (r *VaultTokenResolver) Healthy(ctx context.Context) error {
	health, err := r.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("checking vault health: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%t sealed=%t", health.Initialized, health.Sealed)
	}
	return nil
}
