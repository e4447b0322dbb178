package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	mateotel "github.com/matehq/mate/internal/adapter/otel"
	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/port/messagequeue"
	"github.com/matehq/mate/internal/tenantctx"
)

// Envelope is the wire format of a dispatched job. Tenant identity travels
// in the payload, never in ambient worker state.
type Envelope struct {
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	TenantID   string          `json:"tenant_id,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// JobHandler processes one job. The context carries the tenant resolved
// from the envelope, when there is one.
type JobHandler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher publishes and executes tenant-aware background jobs. On
// submission it captures the tenant from the caller's context into the
// envelope and, with queue isolation enabled, rewrites the logical queue
// to the tenant's own ("{subdomain}-{queue}"). On execution it rebuilds
// the tenant context from the envelope in a fresh per-job context, so
// tenant identity can never leak between jobs on a shared worker.
type Dispatcher struct {
	queue     messagequeue.Queue
	store     database.Store
	isolation bool
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[string]JobHandler
	metrics  *mateotel.Metrics // optional
}

// SetMetrics attaches metric instruments. Safe to leave unset.
func (d *Dispatcher) SetMetrics(m *mateotel.Metrics) { d.metrics = m }

// NewDispatcher creates a Dispatcher. isolation enables per-tenant queue
// rewriting.
func NewDispatcher(queue messagequeue.Queue, store database.Store, isolation bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		store:     store,
		isolation: isolation,
		logger:    logger,
		handlers:  map[string]JobHandler{},
	}
}

// Register binds a handler to a job name. Later registrations replace
// earlier ones.
func (d *Dispatcher) Register(job string, h JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[job] = h
}

// Enqueue publishes a job to the given logical queue. An empty queue name
// means the default queue. The current tenant, if any, rides along in the
// envelope.
func (d *Dispatcher) Enqueue(ctx context.Context, job, queue string, payload any) error {
	if job == "" {
		return fmt.Errorf("job name is required: %w", domain.ErrValidation)
	}
	if queue == "" {
		queue = messagequeue.QueueDefault
	}

	env := Envelope{ID: uuid.New().String(), Job: job, EnqueuedAt: time.Now().UTC()}
	if t, ok := tenantctx.From(ctx); ok {
		env.TenantID = t.ID
		if d.isolation {
			queue = t.Subdomain + "-" + queue
		}
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", job, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", job, err)
	}

	subject := fmt.Sprintf("%s.%s.%s", messagequeue.SubjectPrefix, queue, job)
	if err := d.queue.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("enqueue %s: %w", job, err)
	}
	if d.metrics != nil {
		d.metrics.JobsDispatched.Add(ctx, 1)
	}
	d.logger.Debug("job enqueued",
		"job", job, "job_id", env.ID, "queue", queue, "tenant_id", env.TenantID)
	return nil
}

// Start subscribes the dispatcher to the whole job subject space. The
// returned function cancels the subscription.
func (d *Dispatcher) Start(ctx context.Context) (func(), error) {
	return d.queue.Subscribe(ctx, messagequeue.SubjectPrefix+".>", d.runJob)
}

// runJob decodes the envelope, rebuilds tenant context, and runs the
// registered handler. The per-job context is derived fresh and dies with
// the call, panic or not.
func (d *Dispatcher) runJob(ctx context.Context, subject string, data []byte) (err error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode job on %s: %w", subject, err)
	}

	d.mu.RLock()
	handler, ok := d.handlers[env.Job]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for job %q: %w", env.Job, domain.ErrNotFound)
	}

	jobCtx, span := mateotel.StartJobSpan(ctx, env.Job, env.TenantID)
	defer span.End()
	logger := d.logger.With("job", env.Job, "job_id", env.ID)
	switch {
	case env.TenantID == "":
		logger.Warn("job has no tenant; running tenant-agnostic")
	default:
		t, err := d.store.GetTenant(ctx, env.TenantID)
		if err != nil {
			// An unknown tenant on a job is a hard failure: running it
			// against the wrong data set is worse than dropping it.
			logger.Error("job tenant lookup failed", "tenant_id", env.TenantID, "error", err)
			return fmt.Errorf("job %s tenant %s: %w", env.Job, env.TenantID, err)
		}
		jobCtx = tenantctx.Set(jobCtx, t)
		logger = logger.With("tenant", t.Subdomain)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			err = fmt.Errorf("job %s panicked: %v", env.Job, r)
		}
		if err != nil && d.metrics != nil {
			d.metrics.JobsFailed.Add(ctx, 1)
		}
	}()

	if err := handler(jobCtx, env.Payload); err != nil {
		logger.Error("job failed", "error", err)
		return fmt.Errorf("job %s: %w", env.Job, err)
	}
	logger.Debug("job completed")
	return nil
}
