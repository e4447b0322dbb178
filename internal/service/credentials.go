package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/cache"
	"github.com/matehq/mate/internal/port/secretstore"
	"github.com/matehq/mate/internal/resilience"
)

// DBCredentials is a tenant's database connection material, read from the
// secret store. Never persisted in the control-plane database.
type DBCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	TLSMode  string `json:"tls_mode"`
}

// DSN builds a postgres connection string for the tenant database.
func (c DBCredentials) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.TLSMode)
}

// CacheCredentials is a tenant's cache connection material.
type CacheCredentials struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"auth_token"`
	TLS       bool   `json:"tls"`
}

// CredentialResolver resolves per-tenant connection credentials from the
// secret store, with an in-process cache in front. Cached entries never
// expire; rotation goes through Invalidate.
type CredentialResolver struct {
	secrets secretstore.Store
	cache   cache.Cache
	breaker *resilience.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewCredentialResolver creates a resolver. timeout bounds each secret
// store call; the breaker trips after repeated store failures.
func NewCredentialResolver(secrets secretstore.Store, c cache.Cache, breaker *resilience.Breaker, timeout time.Duration, logger *slog.Logger) *CredentialResolver {
	return &CredentialResolver{
		secrets: secrets,
		cache:   c,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve returns the tenant's database credentials. A tenant without a
// database secret reference is misconfigured, not missing.
func (r *CredentialResolver) Resolve(ctx context.Context, t *tenant.Tenant) (DBCredentials, error) {
	var creds DBCredentials
	if t.DBSecretRef == "" {
		return creds, fmt.Errorf("tenant %s has no database secret reference: %w",
			t.Subdomain, domain.ErrConfiguration)
	}

	key := "db:" + t.Subdomain
	if raw, ok := r.cached(ctx, key); ok {
		if err := json.Unmarshal(raw, &creds); err == nil {
			return creds, nil
		}
		// Unreadable cache entry: drop it and fall through to the store.
		_ = r.cache.Delete(ctx, key)
	}

	secret, err := r.fetch(ctx, t.DBSecretRef)
	if err != nil {
		return creds, fmt.Errorf("resolve db credentials for %s: %w", t.Subdomain, err)
	}

	port, err := strconv.Atoi(secret["port"])
	if err != nil {
		return creds, fmt.Errorf("resolve db credentials for %s: bad port %q: %w",
			t.Subdomain, secret["port"], domain.ErrUpstream)
	}
	creds = DBCredentials{
		Username: secret["username"],
		Password: secret["password"],
		Host:     secret["host"],
		Port:     port,
		Database: secret["database"],
		TLSMode:  secret["tls_mode"],
	}
	if creds.TLSMode == "" {
		creds.TLSMode = "require"
	}
	if creds.Username == "" || creds.Host == "" {
		return DBCredentials{}, fmt.Errorf("resolve db credentials for %s: incomplete secret: %w",
			t.Subdomain, domain.ErrUpstream)
	}

	r.store(ctx, key, creds)
	return creds, nil
}

// ResolveCache returns the tenant's cache credentials.
func (r *CredentialResolver) ResolveCache(ctx context.Context, t *tenant.Tenant) (CacheCredentials, error) {
	var creds CacheCredentials
	if t.CacheSecretRef == "" {
		return creds, fmt.Errorf("tenant %s has no cache secret reference: %w",
			t.Subdomain, domain.ErrConfiguration)
	}

	key := "cache:" + t.Subdomain
	if raw, ok := r.cached(ctx, key); ok {
		if err := json.Unmarshal(raw, &creds); err == nil {
			return creds, nil
		}
		_ = r.cache.Delete(ctx, key)
	}

	secret, err := r.fetch(ctx, t.CacheSecretRef)
	if err != nil {
		return creds, fmt.Errorf("resolve cache credentials for %s: %w", t.Subdomain, err)
	}

	port, err := strconv.Atoi(secret["port"])
	if err != nil {
		return creds, fmt.Errorf("resolve cache credentials for %s: bad port %q: %w",
			t.Subdomain, secret["port"], domain.ErrUpstream)
	}
	creds = CacheCredentials{
		Host:      secret["host"],
		Port:      port,
		AuthToken: secret["auth_token"],
		TLS:       secret["tls"] != "false",
	}
	if creds.Host == "" {
		return CacheCredentials{}, fmt.Errorf("resolve cache credentials for %s: incomplete secret: %w",
			t.Subdomain, domain.ErrUpstream)
	}

	r.store(ctx, key, creds)
	return creds, nil
}

// Invalidate drops any cached credentials for the subdomain. Call after
// rotating the tenant's secrets.
func (r *CredentialResolver) Invalidate(ctx context.Context, subdomain string) {
	_ = r.cache.Delete(ctx, "db:"+subdomain)
	_ = r.cache.Delete(ctx, "cache:"+subdomain)
}

// InvalidateAll drops every cached credential.
func (r *CredentialResolver) InvalidateAll(ctx context.Context) {
	if err := r.cache.Clear(ctx); err != nil {
		r.logger.Warn("credential cache clear failed", "error", err)
	}
}

func (r *CredentialResolver) cached(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("credential cache read failed", "key", key, "error", err)
		return nil, false
	}
	return raw, ok
}

func (r *CredentialResolver) store(ctx context.Context, key string, creds any) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, 0); err != nil {
		r.logger.Warn("credential cache write failed", "key", key, "error", err)
	}
}

// fetch reads one secret through the breaker with the per-call timeout.
func (r *CredentialResolver) fetch(ctx context.Context, handle string) (map[string]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var secret map[string]string
	err := r.breaker.Execute(callCtx, func(ctx context.Context) error {
		var err error
		secret, err = r.secrets.Get(ctx, handle)
		return err
	})
	if err != nil {
		return nil, err
	}
	return secret, nil
}
