package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "mate.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "MATE_PORT")
	setString(&cfg.Server.CORSOrigin, "MATE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MATE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MATE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MATE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MATE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MATE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Vault.Address, "VAULT_ADDR")
	setString(&cfg.Vault.Token, "VAULT_TOKEN")
	setString(&cfg.Vault.Mount, "MATE_VAULT_MOUNT")
	setDuration(&cfg.Vault.Timeout, "MATE_VAULT_TIMEOUT")
	setString(&cfg.Cloud.BaseURL, "MATE_CLOUD_URL")
	setString(&cfg.Cloud.APIToken, "MATE_CLOUD_TOKEN")
	setString(&cfg.Cloud.Region, "MATE_CLOUD_REGION")
	setDuration(&cfg.Cloud.Timeout, "MATE_CLOUD_TIMEOUT")
	setInt(&cfg.Provisioner.MaxAttempts, "MATE_PROVISION_MAX_ATTEMPTS")
	setDuration(&cfg.Provisioner.BackoffUnit, "MATE_PROVISION_BACKOFF_UNIT")
	setDuration(&cfg.Provisioner.PollInterval, "MATE_PROVISION_POLL_INTERVAL")
	setInt(&cfg.Provisioner.DatabaseMaxChecks, "MATE_PROVISION_DB_MAX_CHECKS")
	setInt(&cfg.Provisioner.CacheMaxChecks, "MATE_PROVISION_CACHE_MAX_CHECKS")
	setBool(&cfg.Queue.TenantIsolation, "MATE_USE_TENANT_QUEUE_ISOLATION")
	setString(&cfg.Tenancy.PinnedSubdomain, "TENANT_SUBDOMAIN")
	setString(&cfg.Logging.Level, "MATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MATE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "MATE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MATE_BREAKER_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Provisioner.MaxAttempts < 1 {
		return errors.New("provisioner.max_attempts must be >= 1")
	}
	if cfg.Provisioner.DatabaseMaxChecks < 1 || cfg.Provisioner.CacheMaxChecks < 1 {
		return errors.New("provisioner max_checks must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
