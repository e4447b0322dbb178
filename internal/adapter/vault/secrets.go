// Package vault implements the secret store port against HashiCorp Vault
// KV version 2.
package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/matehq/mate/internal/config"
	"github.com/matehq/mate/internal/domain"
)

// Store implements secretstore.Store on a Vault KV v2 mount. Secret
// handles are the KV paths under the mount.
type Store struct {
	client *api.Client
	mount  string
}

// New creates a Vault-backed secret store from config. The client timeout
// is deliberately short; secret reads sit on the request path of every
// tenant database connection.
func New(cfg config.Vault) (*Store, error) {
	apiCfg := api.DefaultConfig()
	if apiCfg.Error != nil {
		return nil, fmt.Errorf("vault default config: %w", apiCfg.Error)
	}
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &Store{client: client, mount: cfg.Mount}, nil
}

// Put writes a structured secret under name and returns name as the handle.
func (s *Store) Put(ctx context.Context, name string, secret map[string]string) (string, error) {
	data := make(map[string]any, len(secret))
	for k, v := range secret {
		data[k] = v
	}

	path := fmt.Sprintf("%s/data/%s", s.mount, name)
	_, err := s.client.Logical().WriteWithContext(ctx, path, map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("vault write %s: %v: %w", name, err, domain.ErrUpstream)
	}
	return name, nil
}

// Get reads a structured secret by handle.
func (s *Store) Get(ctx context.Context, handle string) (map[string]string, error) {
	path := fmt.Sprintf("%s/data/%s", s.mount, handle)
	sec, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vault read %s: %v: %w", handle, err, domain.ErrUpstream)
	}
	if sec == nil {
		return nil, fmt.Errorf("vault read %s: no secret: %w", handle, domain.ErrNotFound)
	}

	data, ok := sec.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("vault read %s: secret data is not a map: %w", handle, domain.ErrUpstream)
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		val, ok := v.(string)
		if !ok {
			continue
		}
		out[k] = val
	}
	return out, nil
}
