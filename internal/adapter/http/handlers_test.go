package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/middleware"
	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/port/messagequeue"
	"github.com/matehq/mate/internal/service"
)

// memStore is the in-memory store slice these handler tests need.
// Unimplemented Store methods panic via the embedded nil interface.
type memStore struct {
	database.Store

	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
	events  []tenant.Event
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{tenants: map[string]*tenant.Tenant{}}
}

func (s *memStore) add(t *tenant.Tenant) *tenant.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if t.ID == "" {
		t.ID = fmt.Sprintf("tn-%d", s.nextID)
	}
	if t.DeploymentStatus == "" {
		t.DeploymentStatus = tenant.StatusPending
	}
	s.tenants[t.ID] = t
	return t
}

func (s *memStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	t := &tenant.Tenant{Name: req.Name, Subdomain: req.Subdomain, Plan: req.Plan}
	t.ApplyPlanLimits()
	return s.add(t), nil
}

func (s *memStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
}

func (s *memStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tenant.Tenant
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (s *memStore) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return fmt.Errorf("tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *memStore) AppendEvent(_ context.Context, ev *tenant.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.CreatedAt = time.Now()
	s.events = append(s.events, *ev)
	return nil
}

func (s *memStore) ListEvents(_ context.Context, tenantID string, limit int) ([]tenant.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tenant.Event
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].TenantID == tenantID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

// captureQueue records enqueued subjects.
type captureQueue struct {
	mu       sync.Mutex
	subjects []string
}

func (q *captureQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subjects = append(q.subjects, subject)
	return nil
}

func (q *captureQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *captureQueue) Drain() error      { return nil }
func (q *captureQueue) Close() error      { return nil }
func (q *captureQueue) IsConnected() bool { return true }

func newTestRouter(store *memStore, queue *captureQueue) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenants := service.NewTenantService(store, logger)
	dispatcher := service.NewDispatcher(queue, store, false, logger)
	h := NewHandlers(tenants, nil, dispatcher, queue)
	r := chi.NewRouter()
	MountRoutes(r, h, middleware.NewTenantResolver(store, "", logger))
	return r
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateTenantHandler(t *testing.T) {
	r := newTestRouter(newMemStore(), &captureQueue{})

	rec := doRequest(t, r, http.MethodPost, "/api/v1/tenants",
		`{"name":"Hospital A","subdomain":"hospital-a","plan":"professional"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got tenant.Tenant
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DeploymentStatus != tenant.StatusPending || got.MaxUsers != 200 {
		t.Errorf("tenant = %+v", got)
	}

	// Validation failures map to 400.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/tenants",
		`{"name":"Bad","subdomain":"ADMIN"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid subdomain: status = %d, want 400", rec.Code)
	}
}

func TestGetTenantNotFound(t *testing.T) {
	r := newTestRouter(newMemStore(), &captureQueue{})
	rec := doRequest(t, r, http.MethodGet, "/api/v1/tenants/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProvisionTenantQueuesJob(t *testing.T) {
	store := newMemStore()
	queue := &captureQueue{}
	r := newTestRouter(store, queue)
	tn := store.add(&tenant.Tenant{Name: "Hospital A", Subdomain: "hospital-a"})

	rec := doRequest(t, r, http.MethodPost, "/api/v1/tenants/"+tn.ID+"/provision", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(queue.subjects) != 1 || queue.subjects[0] != "jobs.provisioning.provision_infrastructure" {
		t.Errorf("subjects = %v", queue.subjects)
	}
}

func TestProvisionActiveTenantConflicts(t *testing.T) {
	store := newMemStore()
	queue := &captureQueue{}
	r := newTestRouter(store, queue)
	tn := store.add(&tenant.Tenant{
		Subdomain:        "hospital-a",
		DeploymentStatus: tenant.StatusActive,
		Active:           true,
	})

	rec := doRequest(t, r, http.MethodPost, "/api/v1/tenants/"+tn.ID+"/provision", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if len(queue.subjects) != 0 {
		t.Errorf("job queued for active tenant: %v", queue.subjects)
	}
}

func TestSuspendReactivateHandlers(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store, &captureQueue{})
	tn := store.add(&tenant.Tenant{
		Subdomain:        "hospital-a",
		DeploymentStatus: tenant.StatusActive,
		Active:           true,
	})

	rec := doRequest(t, r, http.MethodPost, "/api/v1/tenants/"+tn.ID+"/suspend", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend: status = %d, body %s", rec.Code, rec.Body)
	}

	// Suspending twice is an invalid transition.
	rec = doRequest(t, r, http.MethodPost, "/api/v1/tenants/"+tn.ID+"/suspend", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("double suspend: status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/tenants/"+tn.ID+"/reactivate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reactivate: status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestListTenantEventsHandler(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store, &captureQueue{})
	tn := store.add(&tenant.Tenant{Subdomain: "hospital-a"})
	_ = store.AppendEvent(context.Background(), tenant.NewEvent(tn.ID, tenant.EventCreated, nil))

	rec := doRequest(t, r, http.MethodGet, "/api/v1/tenants/"+tn.ID+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var events []tenant.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].Kind != tenant.EventCreated {
		t.Errorf("events = %+v", events)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/tenants/"+tn.ID+"/events?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	r := newTestRouter(newMemStore(), &captureQueue{})
	rec := doRequest(t, r, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestMeRequiresResolvedTenant(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store, &captureQueue{})
	tn := store.add(&tenant.Tenant{
		Name:             "Hospital A",
		Subdomain:        "hospital-a",
		DeploymentStatus: tenant.StatusActive,
		Active:           true,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("X-Tenant-Id", tn.ID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["subdomain"] != "hospital-a" {
		t.Errorf("body = %v", body)
	}

	// Without resolution the request never reaches the handler.
	rec = doRequest(t, r, http.MethodGet, "/v1/me", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unresolved: status = %d, want 404", rec.Code)
	}
}
