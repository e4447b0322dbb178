package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/port/messagequeue"
	"github.com/matehq/mate/internal/resilience"
	"github.com/matehq/mate/internal/tenantctx"
)

// Built-in job names.
const (
	JobProvisionInfrastructure = "provision_infrastructure"
	JobTenantReadyNotification = "tenant_ready_notification"
	JobSystemHealthCheck       = "system_health_check"
)

// Jobs wires the built-in background jobs into a dispatcher.
type Jobs struct {
	provisioner *Provisioner
	creds       *CredentialResolver
	retry       *resilience.Retry
	dispatcher  *Dispatcher
	store       database.Store
	queue       messagequeue.Queue
	logger      *slog.Logger
}

// NewJobs creates the built-in job set.
func NewJobs(provisioner *Provisioner, creds *CredentialResolver, retry *resilience.Retry, dispatcher *Dispatcher, store database.Store, queue messagequeue.Queue, logger *slog.Logger) *Jobs {
	return &Jobs{
		provisioner: provisioner,
		creds:       creds,
		retry:       retry,
		dispatcher:  dispatcher,
		store:       store,
		queue:       queue,
		logger:      logger,
	}
}

// Register binds all built-in jobs on the dispatcher.
func (j *Jobs) Register() {
	j.dispatcher.Register(JobProvisionInfrastructure, j.provisionInfrastructure)
	j.dispatcher.Register(JobTenantReadyNotification, j.tenantReadyNotification)
	j.dispatcher.Register(JobSystemHealthCheck, j.systemHealthCheck)
}

// provisionInfrastructure drives a full provisioning run for the job's
// tenant, with the bounded outer retry. On success it queues the readiness
// notification.
func (j *Jobs) provisionInfrastructure(ctx context.Context, _ json.RawMessage) error {
	t, err := tenantctx.MustFrom(ctx)
	if err != nil {
		return fmt.Errorf("provision job: %w", err)
	}

	err = j.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			j.logger.Warn("provisioning attempt",
				"tenant", t.Subdomain, "attempt", attempt, "max", j.retry.MaxAttempts())
		}
		return j.provisioner.Provision(ctx, t.ID)
	})
	if err != nil {
		return err
	}

	return j.dispatcher.Enqueue(ctx, JobTenantReadyNotification, messagequeue.QueueNotifications, nil)
}

// tenantReadyNotification tells the tenant's admins their environment is
// live. Delivery is a log line here; mail/SMS transports hang off it.
func (j *Jobs) tenantReadyNotification(ctx context.Context, _ json.RawMessage) error {
	t, err := tenantctx.MustFrom(ctx)
	if err != nil {
		return fmt.Errorf("ready notification: %w", err)
	}
	j.logger.Info("tenant environment ready",
		"tenant", t.Subdomain, "name", t.Name, "plan", t.Plan)
	return nil
}

// systemHealthCheck is tenant-agnostic: it surveys all active tenants and
// the queue connection. Runs on a schedule from the default queue.
func (j *Jobs) systemHealthCheck(ctx context.Context, _ json.RawMessage) error {
	tenants, err := j.store.ListActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	missing := 0
	for _, t := range tenants {
		if t.DBSecretRef == "" || t.DatabaseEndpoint == "" {
			missing++
			j.logger.Warn("active tenant missing infrastructure",
				"tenant", t.Subdomain)
			continue
		}
		if j.creds != nil {
			if _, err := j.creds.Resolve(ctx, &t); err != nil {
				missing++
				j.logger.Warn("active tenant credentials unresolvable",
					"tenant", t.Subdomain, "error", err)
			}
		}
	}
	j.logger.Info("system health check",
		"active_tenants", len(tenants),
		"degraded", missing,
		"queue_connected", j.queue.IsConnected())
	return nil
}
