package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matehq/mate/internal/adapter/cloudhttp"
	matehttp "github.com/matehq/mate/internal/adapter/http"
	matenats "github.com/matehq/mate/internal/adapter/nats"
	mateotel "github.com/matehq/mate/internal/adapter/otel"
	"github.com/matehq/mate/internal/adapter/postgres"
	"github.com/matehq/mate/internal/adapter/ristretto"
	"github.com/matehq/mate/internal/adapter/vault"
	"github.com/matehq/mate/internal/config"
	"github.com/matehq/mate/internal/logger"
	"github.com/matehq/mate/internal/middleware"
	"github.com/matehq/mate/internal/resilience"
	"github.com/matehq/mate/internal/service"
)

const credentialCacheBytes = 32 << 20

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"tenant_isolation", cfg.Queue.TenantIsolation,
		"pinned_subdomain", cfg.Tenancy.PinnedSubdomain,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// PostgreSQL (control plane)
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := matenats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Vault
	secrets, err := vault.New(cfg.Vault)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	// Credential cache
	cache, err := ristretto.New(credentialCacheBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// Cloud provider API
	provider := cloudhttp.New(cfg.Cloud)

	// Telemetry
	shutdownOtel, err := mateotel.Setup(ctx, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := mateotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	store := postgres.NewStore(pool)
	tenantSvc := service.NewTenantService(store, log)

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	creds := service.NewCredentialResolver(secrets, cache, breaker, cfg.Vault.Timeout, log)

	poller := service.NewReadinessPoller(log)
	provisioner := service.NewProvisioner(store, provider, secrets, poller,
		postgres.RunTenantMigrations, cfg.Provisioner, log)
	provisioner.SetMetrics(metrics)

	dispatcher := service.NewDispatcher(queue, store, cfg.Queue.TenantIsolation, log)
	dispatcher.SetMetrics(metrics)

	retry := resilience.NewRetry(cfg.Provisioner.MaxAttempts, cfg.Provisioner.BackoffUnit)
	jobs := service.NewJobs(provisioner, creds, retry, dispatcher, store, queue, log)
	jobs.Register()

	stopDispatcher, err := dispatcher.Start(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	defer stopDispatcher()

	// --- HTTP ---

	handlers := matehttp.NewHandlers(tenantSvc, provisioner, dispatcher, queue)
	resolver := middleware.NewTenantResolver(store, cfg.Tenancy.PinnedSubdomain, log)

	r := chi.NewRouter()
	r.Use(matehttp.CORS(cfg.Server.CORSOrigin))
	r.Use(matehttp.Logger)
	r.Use(matehttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(mateotel.HTTPMiddleware(cfg.Logging.Service))

	matehttp.MountRoutes(r, handlers, resolver)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Let in-flight jobs finish before the deferred Close cuts the connection.
	if err := queue.Drain(); err != nil {
		slog.Error("queue drain failed", "error", err)
	}

	return srv.Shutdown(shutdownCtx)
}
