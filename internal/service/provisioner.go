package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	mateotel "github.com/matehq/mate/internal/adapter/otel"
	"github.com/matehq/mate/internal/config"
	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/cloud"
	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/port/secretstore"
)

// TenantMigrator applies the baseline application schema to a freshly
// provisioned tenant database.
type TenantMigrator func(ctx context.Context, dsn string) error

// Provisioner drives a tenant's infrastructure from pending to active:
// encryption key first, then database, cache, and bucket, then the
// configuring phase that waits for readiness, stores credentials, and
// migrates the tenant schema. Any failure leaves the tenant in failed;
// partial resources are logged and left for manual review, never
// auto-rolled back.
type Provisioner struct {
	store    database.Store
	provider cloud.Provider
	secrets  secretstore.Store
	poller   *ReadinessPoller
	migrate  TenantMigrator
	cfg      config.Provisioner
	logger   *slog.Logger
	metrics  *mateotel.Metrics // optional
}

// SetMetrics attaches metric instruments. Safe to leave unset.
func (p *Provisioner) SetMetrics(m *mateotel.Metrics) { p.metrics = m }

// NewProvisioner creates a Provisioner with all dependencies.
func NewProvisioner(
	store database.Store,
	provider cloud.Provider,
	secrets secretstore.Store,
	poller *ReadinessPoller,
	migrate TenantMigrator,
	cfg config.Provisioner,
	logger *slog.Logger,
) *Provisioner {
	return &Provisioner{
		store:    store,
		provider: provider,
		secrets:  secrets,
		poller:   poller,
		migrate:  migrate,
		cfg:      cfg,
		logger:   logger,
	}
}

// provisionRun carries the working state of one provisioning attempt.
type provisionRun struct {
	t          *tenant.Tenant
	dbPassword string
	cacheToken string
}

// Provision runs one full provisioning attempt for the tenant. Allowed
// from pending and from failed (a fresh attempt).
func (p *Provisioner) Provision(ctx context.Context, tenantID string) error {
	t, err := p.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	ctx, span := mateotel.StartProvisionSpan(ctx, t.ID, t.Subdomain)
	defer span.End()
	if err := t.Transition(tenant.StatusProvisioning); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.ProvisioningStartedAt = &now
	if err := p.store.UpdateTenant(ctx, t); err != nil {
		return err
	}
	p.appendEvent(ctx, tenant.NewEvent(t.ID, tenant.EventProvisioningStarted, map[string]any{
		"subdomain": t.Subdomain,
	}))
	p.logger.Info("provisioning started", "tenant", t.Subdomain, "plan", t.Plan)
	if p.metrics != nil {
		p.metrics.ProvisionStarted.Add(ctx, 1)
	}

	run := &provisionRun{t: t}
	if err := p.createResources(ctx, run); err != nil {
		return p.fail(ctx, t, "create", err)
	}

	if err := t.Transition(tenant.StatusConfiguring); err != nil {
		return p.fail(ctx, t, "configure", err)
	}
	if err := p.store.UpdateTenant(ctx, t); err != nil {
		return p.fail(ctx, t, "configure", err)
	}

	if err := p.configure(ctx, run); err != nil {
		return p.fail(ctx, t, "configure", err)
	}

	if err := t.Transition(tenant.StatusActive); err != nil {
		return p.fail(ctx, t, "activate", err)
	}
	done := time.Now().UTC()
	t.Active = true
	t.ProvisioningCompletedAt = &done
	t.ActivatedAt = &done
	t.EstimatedMonthlyCost = t.EstimateMonthlyCost()
	if err := p.store.UpdateTenant(ctx, t); err != nil {
		return p.fail(ctx, t, "activate", err)
	}

	minutes := math.Round(done.Sub(*t.ProvisioningStartedAt).Minutes()*10) / 10
	p.appendEvent(ctx, tenant.NewEvent(t.ID, tenant.EventProvisioningCompleted, map[string]any{
		"subdomain":        t.Subdomain,
		"duration_minutes": minutes,
		"monthly_cost_usd": t.EstimatedMonthlyCost,
	}))
	p.logger.Info("provisioning completed",
		"tenant", t.Subdomain, "duration_minutes", minutes)
	if p.metrics != nil {
		p.metrics.ProvisionCompleted.Add(ctx, 1)
		p.metrics.ProvisionDuration.Record(ctx, minutes)
	}
	return nil
}

// createResources creates the encryption key, then the database, cache,
// and bucket concurrently. The key comes first: everything else encrypts
// under it.
func (p *Provisioner) createResources(ctx context.Context, run *provisionRun) error {
	t := run.t
	tags := map[string]string{"tenant": t.Subdomain, "managed_by": "mate"}

	key, err := p.provider.CreateKey(ctx, cloud.CreateKeyInput{
		Alias:       "alias/" + t.ResourceName("key"),
		Description: "Tenant data encryption key for " + t.Subdomain,
		Tags:        tags,
	})
	if err != nil {
		return fmt.Errorf("create encryption key: %w", err)
	}
	t.KeyID = key.ID
	t.KeyARN = key.ARN
	p.recordResource(ctx, t, tenant.ResourceEncryptionKey, key.ID, key.ARN, tenant.ResourceActive)

	run.dbPassword = randomToken(24)
	run.cacheToken = randomToken(32)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.createDatabase(gctx, run, tags) })
	g.Go(func() error { return p.createCache(gctx, run, tags) })
	g.Go(func() error { return p.createBucket(gctx, run, tags) })
	return g.Wait()
}

func (p *Provisioner) createDatabase(ctx context.Context, run *provisionRun, tags map[string]string) error {
	t := run.t
	info, err := p.provider.CreateInstance(ctx, cloud.CreateDatabaseInput{
		InstanceID:          t.ResourceName("db"),
		DatabaseName:        tenantDatabaseName(t.Subdomain),
		Engine:              "postgres",
		EngineVersion:       "16.4",
		InstanceClass:       databaseClass(t.Plan),
		MasterUsername:      "mate_admin",
		MasterPassword:      run.dbPassword,
		StorageGB:           t.MaxStorageGB,
		KeyARN:              t.KeyARN,
		MultiAZ:             true,
		BackupRetentionDays: 35,
		Tags:                tags,
	})
	if err != nil {
		return fmt.Errorf("create database instance: %w", err)
	}
	t.DatabaseInstanceID = info.ID
	t.DatabaseName = tenantDatabaseName(t.Subdomain)
	p.recordResource(ctx, t, tenant.ResourceDatabaseInstance, info.ID, info.Locator, tenant.ResourceCreating)
	return nil
}

func (p *Provisioner) createCache(ctx context.Context, run *provisionRun, tags map[string]string) error {
	t := run.t
	info, err := p.provider.CreateCluster(ctx, cloud.CreateCacheInput{
		ClusterID:         t.ResourceName("cache"),
		Description:       "Tenant cache for " + t.Subdomain,
		Engine:            "redis",
		EngineVersion:     "7.1",
		NodeType:          cacheNodeType(t.Plan),
		AuthToken:         run.cacheToken,
		KeyARN:            t.KeyARN,
		SnapshotRetention: 7,
		Tags:              tags,
	})
	if err != nil {
		return fmt.Errorf("create cache cluster: %w", err)
	}
	t.CacheClusterID = info.ID
	p.recordResource(ctx, t, tenant.ResourceCacheCluster, info.ID, info.Locator, tenant.ResourceCreating)
	return nil
}

func (p *Provisioner) createBucket(ctx context.Context, run *provisionRun, tags map[string]string) error {
	t := run.t
	// Bucket names are globally unique; the random suffix avoids collisions
	// with names claimed outside this deployment.
	name := t.ResourceName("docs") + "-" + randomToken(4)
	info, err := p.provider.CreateBucket(ctx, cloud.CreateBucketInput{
		Name:      name,
		Region:    t.Region,
		KeyARN:    t.KeyARN,
		LogPrefix: "access-logs/" + t.Subdomain + "/",
		Lifecycle: cloud.BucketLifecycleRule{
			ID:              "retention-tiering",
			ColdAfterDays:   90,
			FrozenAfterDays: 365,
		},
		Tags: tags,
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	t.BucketName = info.ID
	t.BucketRegion = t.Region
	// Buckets are usable as soon as creation succeeds.
	p.recordResource(ctx, t, tenant.ResourceObjectBucket, info.ID, info.Locator, tenant.ResourceActive)
	return nil
}

// configure is the post-create phase: wait until the database and cache
// accept connections, persist credentials to the secret store, and run the
// tenant schema migrations.
func (p *Provisioner) configure(ctx context.Context, run *provisionRun) error {
	t := run.t

	var dbEndpoint, cacheEndpoint cloud.Endpoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, span := mateotel.StartResourceSpan(gctx,
			string(tenant.ResourceDatabaseInstance), t.DatabaseInstanceID)
		defer span.End()
		ep, err := p.poller.WaitUntilReady(sctx, t.DatabaseInstanceID,
			func(ctx context.Context) (string, cloud.Endpoint, error) {
				state, err := p.provider.DescribeInstance(ctx, t.DatabaseInstanceID)
				if err != nil {
					return "", cloud.Endpoint{}, err
				}
				return state.Status, state.Endpoint, nil
			}, p.cfg.PollInterval, p.cfg.DatabaseMaxChecks)
		if err != nil {
			return fmt.Errorf("database readiness: %w", err)
		}
		dbEndpoint = ep
		return nil
	})
	g.Go(func() error {
		sctx, span := mateotel.StartResourceSpan(gctx,
			string(tenant.ResourceCacheCluster), t.CacheClusterID)
		defer span.End()
		ep, err := p.poller.WaitUntilReady(sctx, t.CacheClusterID,
			func(ctx context.Context) (string, cloud.Endpoint, error) {
				state, err := p.provider.DescribeCluster(ctx, t.CacheClusterID)
				if err != nil {
					return "", cloud.Endpoint{}, err
				}
				return state.Status, state.Endpoint, nil
			}, p.cfg.PollInterval, p.cfg.CacheMaxChecks)
		if err != nil {
			return fmt.Errorf("cache readiness: %w", err)
		}
		cacheEndpoint = ep
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	t.DatabaseEndpoint = dbEndpoint.Address
	t.DatabasePort = dbEndpoint.Port
	t.CacheEndpoint = cacheEndpoint.Address
	t.CachePort = cacheEndpoint.Port
	p.markResourceActive(ctx, t, tenant.ResourceDatabaseInstance)
	p.markResourceActive(ctx, t, tenant.ResourceCacheCluster)

	dbCreds := DBCredentials{
		Username: "mate_admin",
		Password: run.dbPassword,
		Host:     dbEndpoint.Address,
		Port:     dbEndpoint.Port,
		Database: t.DatabaseName,
		TLSMode:  "require",
	}
	dbRef, err := p.secrets.Put(ctx, "mate/"+t.Subdomain+"/db", map[string]string{
		"username": dbCreds.Username,
		"password": dbCreds.Password,
		"host":     dbCreds.Host,
		"port":     fmt.Sprint(dbCreds.Port),
		"database": dbCreds.Database,
		"tls_mode": dbCreds.TLSMode,
	})
	if err != nil {
		return fmt.Errorf("store database credentials: %w", err)
	}
	t.DBSecretRef = dbRef

	cacheRef, err := p.secrets.Put(ctx, "mate/"+t.Subdomain+"/cache", map[string]string{
		"host":       cacheEndpoint.Address,
		"port":       fmt.Sprint(cacheEndpoint.Port),
		"auth_token": run.cacheToken,
		"tls":        "true",
	})
	if err != nil {
		return fmt.Errorf("store cache credentials: %w", err)
	}
	t.CacheSecretRef = cacheRef

	if err := p.store.UpdateTenant(ctx, t); err != nil {
		return fmt.Errorf("persist endpoints: %w", err)
	}

	if err := p.migrate(ctx, dbCreds.DSN()); err != nil {
		return fmt.Errorf("tenant schema migration: %w", err)
	}
	return nil
}

// Deprovision flags a suspended tenant's resources for teardown. Records
// move to deleting and an event is written; actual provider deletion is a
// deliberate manual step.
func (p *Provisioner) Deprovision(ctx context.Context, tenantID, actor string) error {
	t, err := p.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.DeploymentStatus != tenant.StatusSuspended {
		return fmt.Errorf("deprovision %s: status %s, want suspended: %w",
			t.Subdomain, t.DeploymentStatus, domain.ErrInvalidState)
	}

	resources, err := p.store.ListResources(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, r := range resources {
		if r.Status.Terminal() {
			continue
		}
		if err := p.store.UpdateResourceStatus(ctx, t.ID, r.Kind, tenant.ResourceDeleting); err != nil {
			return err
		}
	}

	ev := tenant.NewEvent(t.ID, tenant.EventDeprovisionRequested, map[string]any{
		"resources": len(resources),
	})
	ev.Actor = actor
	p.appendEvent(ctx, ev)
	p.logger.Warn("deprovision requested; provider resources await manual deletion",
		"tenant", t.Subdomain, "resources", len(resources))
	return nil
}

// fail moves the tenant to failed, records the audit event, and logs any
// resources already created so operators can reconcile them.
func (p *Provisioner) fail(ctx context.Context, t *tenant.Tenant, step string, cause error) error {
	if p.metrics != nil {
		p.metrics.ProvisionFailed.Add(ctx, 1)
	}
	// The in-memory status may be ahead of the row when the failing step
	// was the persist itself; fail from what the store last saw, or the
	// retry path would find the tenant stuck mid-transition.
	if cur, gerr := p.store.GetTenant(ctx, t.ID); gerr == nil {
		t.DeploymentStatus = cur.DeploymentStatus
	}
	if t.DeploymentStatus.CanTransition(tenant.StatusFailed) {
		t.DeploymentStatus = tenant.StatusFailed
		t.Active = false
		t.ActivatedAt = nil
		t.ProvisioningCompletedAt = nil
		if err := p.store.UpdateTenant(ctx, t); err != nil {
			p.logger.Error("failed to persist failed status",
				"tenant", t.Subdomain, "error", err)
		}
	}

	ev := tenant.NewEvent(t.ID, tenant.EventInfrastructureFailed, map[string]any{
		"step":  step,
		"error": cause.Error(),
	})
	ev.Severity = "error"
	p.appendEvent(ctx, ev)

	resources, lerr := p.store.ListResources(ctx, t.ID)
	if lerr == nil && len(resources) > 0 {
		ids := make([]string, 0, len(resources))
		for _, r := range resources {
			ids = append(ids, string(r.Kind)+":"+r.ExternalID)
		}
		p.logger.Error("provisioning failed with orphaned resources; manual cleanup required",
			"tenant", t.Subdomain, "step", step,
			"orphaned", strings.Join(ids, ", "), "error", cause)
	} else {
		p.logger.Error("provisioning failed",
			"tenant", t.Subdomain, "step", step, "error", cause)
	}
	return fmt.Errorf("provision %s: %s: %w", t.Subdomain, step, cause)
}

func (p *Provisioner) recordResource(ctx context.Context, t *tenant.Tenant, kind tenant.ResourceKind, externalID, locator string, status tenant.ResourceStatus) {
	r := &tenant.Resource{
		TenantID:   t.ID,
		Kind:       kind,
		ExternalID: externalID,
		Locator:    locator,
		Status:     status,
	}
	if err := p.store.CreateResource(ctx, r); err != nil {
		p.logger.Error("resource record write failed",
			"tenant", t.Subdomain, "kind", kind, "error", err)
		return
	}
	p.appendEvent(ctx, tenant.NewEvent(t.ID, tenant.EventResourceCreated, map[string]any{
		"kind":        string(kind),
		"external_id": externalID,
	}))
}

func (p *Provisioner) markResourceActive(ctx context.Context, t *tenant.Tenant, kind tenant.ResourceKind) {
	if err := p.store.UpdateResourceStatus(ctx, t.ID, kind, tenant.ResourceActive); err != nil {
		p.logger.Error("resource status update failed",
			"tenant", t.Subdomain, "kind", kind, "error", err)
	}
}

func (p *Provisioner) appendEvent(ctx context.Context, ev *tenant.Event) {
	if err := p.store.AppendEvent(ctx, ev); err != nil {
		p.logger.Error("audit event write failed",
			"tenant_id", ev.TenantID, "kind", ev.Kind, "error", err)
	}
}

// tenantDatabaseName maps a subdomain to a valid postgres database name.
func tenantDatabaseName(subdomain string) string {
	return "mate_" + strings.ReplaceAll(subdomain, "-", "_")
}

func databaseClass(p tenant.Plan) string {
	switch p {
	case tenant.PlanEnterprise:
		return "db.r6g.xlarge"
	case tenant.PlanProfessional:
		return "db.r6g.large"
	default:
		return "db.t3.medium"
	}
}

func cacheNodeType(p tenant.Plan) string {
	switch p {
	case tenant.PlanEnterprise:
		return "cache.r6g.large"
	case tenant.PlanProfessional:
		return "cache.m6g.large"
	default:
		return "cache.t3.micro"
	}
}

// randomToken returns n random bytes hex-encoded.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
