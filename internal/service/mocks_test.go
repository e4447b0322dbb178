package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/domain/tenant"
	"github.com/matehq/mate/internal/port/cloud"
	"github.com/matehq/mate/internal/port/database"
	"github.com/matehq/mate/internal/port/messagequeue"
	"github.com/matehq/mate/internal/port/secretstore"
)

// Compile-time port conformance for the mocks.
var (
	_ database.Store     = (*mockStore)(nil)
	_ secretstore.Store  = (*mockSecrets)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
	_ cloud.Provider     = (*mockCloud)(nil)
)

// mockStore is a minimal in-memory implementation of database.Store.
type mockStore struct {
	mu          sync.Mutex
	tenants     map[string]*tenant.Tenant
	resources   []tenant.Resource
	events      []tenant.Event
	memberships []tenant.Membership
	nextID      int

	// Error hooks.
	createTenantErr   error
	getTenantErr      error
	updateTenantErr   error
	updateTenantErrOn tenant.DeploymentStatus
	createResourceErr error
	appendEventErr    error
}

func newMockStore() *mockStore {
	return &mockStore{tenants: map[string]*tenant.Tenant{}}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) addTenant(t *tenant.Tenant) *tenant.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.id("tn")
	}
	if t.DeploymentStatus == "" {
		t.DeploymentStatus = tenant.StatusPending
	}
	t.CreatedAt = time.Now()
	m.tenants[t.ID] = t
	return t
}

func (m *mockStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if m.createTenantErr != nil {
		return nil, m.createTenantErr
	}
	m.mu.Lock()
	for _, t := range m.tenants {
		if t.Subdomain == req.Subdomain {
			m.mu.Unlock()
			return nil, fmt.Errorf("duplicate subdomain %s", req.Subdomain)
		}
	}
	m.mu.Unlock()
	t := &tenant.Tenant{
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Region:    req.Region,
		Plan:      req.Plan,
	}
	t.ApplyPlanLimits()
	return m.addTenant(t), nil
}

func (m *mockStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	if m.getTenantErr != nil {
		return nil, m.getTenantErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Subdomain == subdomain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("tenant %s: %w", subdomain, domain.ErrNotFound)
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tenant.Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockStore) ListActiveTenants(ctx context.Context) ([]tenant.Tenant, error) {
	all, _ := m.ListTenants(ctx)
	var out []tenant.Tenant
	for _, t := range all {
		if t.DeploymentStatus == tenant.StatusActive && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	if m.updateTenantErr != nil {
		return m.updateTenantErr
	}
	if m.updateTenantErrOn != "" && t.DeploymentStatus == m.updateTenantErrOn {
		return fmt.Errorf("tenant %s: write %s: %w", t.ID, t.DeploymentStatus, domain.ErrUpstream)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return fmt.Errorf("tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockStore) CreateResource(_ context.Context, r *tenant.Resource) error {
	if m.createResourceErr != nil {
		return m.createResourceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id("res")
	if r.Status == "" {
		r.Status = tenant.ResourceCreating
	}
	m.resources = append(m.resources, *r)
	return nil
}

func (m *mockStore) UpdateResourceStatus(_ context.Context, tenantID string, kind tenant.ResourceKind, status tenant.ResourceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.resources {
		if m.resources[i].TenantID == tenantID && m.resources[i].Kind == kind {
			m.resources[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("resource %s/%s: %w", tenantID, kind, domain.ErrNotFound)
}

func (m *mockStore) ListResources(_ context.Context, tenantID string) ([]tenant.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tenant.Resource
	for _, r := range m.resources {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) AppendEvent(_ context.Context, ev *tenant.Event) error {
	if m.appendEventErr != nil {
		return m.appendEventErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.id("ev")
	ev.CreatedAt = time.Now()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockStore) ListEvents(_ context.Context, tenantID string, limit int) ([]tenant.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tenant.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].TenantID != tenantID {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// eventKinds returns the kinds recorded for the tenant, oldest first.
func (m *mockStore) eventKinds(tenantID string) []tenant.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kinds []tenant.EventKind
	for _, ev := range m.events {
		if ev.TenantID == tenantID {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

func (m *mockStore) AddMembership(_ context.Context, mb *tenant.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mb.ID = m.id("mb")
	mb.CreatedAt = time.Now()
	m.memberships = append(m.memberships, *mb)
	return nil
}

func (m *mockStore) GetMembership(_ context.Context, tenantID, userID string) (*tenant.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.memberships {
		if m.memberships[i].TenantID == tenantID && m.memberships[i].UserID == userID {
			cp := m.memberships[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("membership %s/%s: %w", tenantID, userID, domain.ErrNotFound)
}

func (m *mockStore) TouchMembershipAccess(_ context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for i := range m.memberships {
		if m.memberships[i].TenantID == tenantID && m.memberships[i].UserID == userID {
			m.memberships[i].LastAccessAt = &now
		}
	}
	return nil
}

// mockSecrets is an in-memory secret store counting Get/Put calls.
type mockSecrets struct {
	mu       sync.Mutex
	secrets  map[string]map[string]string
	getCalls int
	putCalls int
	getErr   error
	putErr   error
}

func newMockSecrets() *mockSecrets {
	return &mockSecrets{secrets: map[string]map[string]string{}}
}

func (m *mockSecrets) Put(_ context.Context, name string, secret map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return "", m.putErr
	}
	m.secrets[name] = secret
	return name, nil
}

func (m *mockSecrets) Get(_ context.Context, handle string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if s, ok := m.secrets[handle]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("secret %s: %w", handle, domain.ErrNotFound)
}

// mockCache is an in-memory cache.Cache that ignores TTLs.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string][]byte{}}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mockCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string][]byte{}
	return nil
}

// published is one message captured by mockQueue.
type published struct {
	subject string
	data    []byte
}

// mockQueue captures published messages.
type mockQueue struct {
	mu         sync.Mutex
	messages   []published
	publishErr error
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.messages = append(m.messages, published{subject: subject, data: data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) last() published {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return published{}
	}
	return m.messages[len(m.messages)-1]
}

// mockCloud implements cloud.Provider with immediate availability by
// default; set pendingChecks to require that many describes first.
type mockCloud struct {
	mu            sync.Mutex
	created       []string // resource IDs in creation order
	pendingChecks int
	describes     int

	createDBErr      error
	createDBFailures int // fail this many CreateInstance calls, then succeed
	createCacheErr   error
	createBucketErr  error
	createKeyErr     error
}

func (m *mockCloud) record(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, id)
}

func (m *mockCloud) CreateInstance(_ context.Context, in cloud.CreateDatabaseInput) (*cloud.ResourceInfo, error) {
	if m.createDBErr != nil {
		return nil, m.createDBErr
	}
	m.mu.Lock()
	if m.createDBFailures > 0 {
		m.createDBFailures--
		m.mu.Unlock()
		return nil, fmt.Errorf("instance creation throttled")
	}
	m.mu.Unlock()
	m.record(in.InstanceID)
	return &cloud.ResourceInfo{ID: in.InstanceID, Locator: "arn:db:" + in.InstanceID}, nil
}

func (m *mockCloud) DescribeInstance(_ context.Context, id string) (*cloud.ResourceState, error) {
	return m.describe(id, 5432)
}

func (m *mockCloud) CreateCluster(_ context.Context, in cloud.CreateCacheInput) (*cloud.ResourceInfo, error) {
	if m.createCacheErr != nil {
		return nil, m.createCacheErr
	}
	m.record(in.ClusterID)
	return &cloud.ResourceInfo{ID: in.ClusterID, Locator: "arn:cache:" + in.ClusterID}, nil
}

func (m *mockCloud) DescribeCluster(_ context.Context, id string) (*cloud.ResourceState, error) {
	return m.describe(id, 6379)
}

func (m *mockCloud) CreateBucket(_ context.Context, in cloud.CreateBucketInput) (*cloud.ResourceInfo, error) {
	if m.createBucketErr != nil {
		return nil, m.createBucketErr
	}
	m.record(in.Name)
	return &cloud.ResourceInfo{ID: in.Name, Locator: "arn:bucket:" + in.Name}, nil
}

func (m *mockCloud) CreateKey(_ context.Context, in cloud.CreateKeyInput) (*cloud.KeyInfo, error) {
	if m.createKeyErr != nil {
		return nil, m.createKeyErr
	}
	m.record(in.Alias)
	return &cloud.KeyInfo{ID: "key-" + in.Alias, ARN: "arn:key:" + in.Alias}, nil
}

func (m *mockCloud) describe(id string, port int) (*cloud.ResourceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describes++
	if m.describes <= m.pendingChecks {
		return &cloud.ResourceState{Status: "creating"}, nil
	}
	return &cloud.ResourceState{
		Status:   cloud.StatusAvailable,
		Endpoint: cloud.Endpoint{Address: id + ".local", Port: port},
	}, nil
}
