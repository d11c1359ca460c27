// Package vault stores and retrieves per-environment secret bundles through a
// pluggable provider (process environment, encrypted file, OS keyring, AWS Secrets Manager).
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// ErrNoProvider is returned when the client was constructed without a provider.
var ErrNoProvider = errors.New("no vault provider configured")

// Provider is a storage backend for serialized secret bundles.
// Fetch returns found=false (and no error) for unknown keys.
type Provider interface {
	Name() string
	Init(ctx context.Context) error
	Put(ctx context.Context, key string, payload []byte) error
	Fetch(ctx context.Context, key string) (payload []byte, found bool, err error)
	Remove(ctx context.Context, key string) (bool, error)
}

// SecretStore is the credential vault as seen by services.
type SecretStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, key string, bundle models.SecretBundle) (bool, error)
	Get(ctx context.Context, key string) (models.SecretBundle, error)
	Delete(ctx context.Context, key string) (bool, error)
	HasProvider() bool
}

// Client serializes bundles and delegates storage to one provider. Init runs the
// provider's initialization exactly once; every other method triggers it lazily.
type Client struct {
	provider Provider
	logger   *zap.Logger

	initOnce sync.Once
	initErr  error
}

var _ SecretStore = (*Client)(nil)

// NewClient creates a vault client. A nil provider yields a client whose
// HasProvider is false and whose operations fail with a vault error.
func NewClient(provider Provider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, logger: logger.Named("vault")}
}

// HasProvider reports whether a storage backend is configured.
func (c *Client) HasProvider() bool {
	return c.provider != nil
}

// Init initializes the provider. Concurrent and repeated calls are safe; the
// provider's Init runs once and its outcome is returned to every caller.
func (c *Client) Init(ctx context.Context) error {
	if c.provider == nil {
		return apperrors.NewVaultError(ErrNoProvider, "vault is not configured")
	}
	c.initOnce.Do(func() {
		if err := c.provider.Init(ctx); err != nil {
			c.initErr = apperrors.NewVaultError(err, "failed to initialize %s vault provider", c.provider.Name())
			c.logger.Error("Vault provider initialization failed",
				zap.String("provider", c.provider.Name()),
				zap.Error(err))
			return
		}
		c.logger.Info("Vault provider initialized", zap.String("provider", c.provider.Name()))
	})
	return c.initErr
}

// Store writes bundle under key, overwriting any previous value.
func (c *Client) Store(ctx context.Context, key string, bundle models.SecretBundle) (bool, error) {
	if err := c.ready(ctx, key); err != nil {
		return false, err
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return false, apperrors.NewVaultError(err, "failed to serialize secret bundle")
	}
	if err := c.provider.Put(ctx, key, payload); err != nil {
		return false, apperrors.NewVaultError(err, "failed to store secret %q", key)
	}

	c.logger.Debug("Stored secret bundle", zap.String("key", key), zap.Int("fields", len(bundle)))
	return true, nil
}

// Get returns the bundle stored under key, or nil when the key is unknown.
func (c *Client) Get(ctx context.Context, key string) (models.SecretBundle, error) {
	if err := c.ready(ctx, key); err != nil {
		return nil, err
	}

	payload, found, err := c.provider.Fetch(ctx, key)
	if err != nil {
		return nil, apperrors.NewVaultError(err, "failed to read secret %q", key)
	}
	if !found {
		return nil, nil
	}

	var bundle models.SecretBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		// Do not wrap the decode error: it may quote the payload.
		return nil, apperrors.NewVaultError(nil, "secret %q is not a valid bundle", key)
	}
	return bundle, nil
}

// Delete removes key. It reports whether anything was removed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.ready(ctx, key); err != nil {
		return false, err
	}

	removed, err := c.provider.Remove(ctx, key)
	if err != nil {
		return false, apperrors.NewVaultError(err, "failed to delete secret %q", key)
	}
	return removed, nil
}

func (c *Client) ready(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.NewConfigurationError("vault key must not be empty")
	}
	return c.Init(ctx)
}

// envName maps a vault key to an upper snake case identifier ("prod/orders-db" -> "PROD_ORDERS_DB").
func envName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
