// Package cloud defines the provider resource API ports: create/describe
// contracts for the four per-tenant resources. Exact provider request
// shapes stay in the adapter.
package cloud

import "context"

// StatusAvailable is the provider status string meaning the resource is
// ready to accept connections. Creation API acceptance alone does not
// imply readiness.
const StatusAvailable = "available"

// Endpoint is the reachable address of a provisioned resource.
type Endpoint struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// ResourceInfo identifies a resource accepted for creation.
type ResourceInfo struct {
	ID      string // provider resource identifier
	Locator string // provider ARN or equivalent
}

// ResourceState is a point-in-time describe result.
type ResourceState struct {
	Status   string
	Endpoint Endpoint
}

// CreateDatabaseInput requests a relational database instance. Encryption
// at rest with the tenant key and private network access are mandatory.
type CreateDatabaseInput struct {
	InstanceID          string
	DatabaseName        string
	Engine              string
	EngineVersion       string
	InstanceClass       string
	MasterUsername      string
	MasterPassword      string
	StorageGB           int
	KeyARN              string
	MultiAZ             bool
	BackupRetentionDays int
	Tags                map[string]string
}

// Databases is the provider API for relational database instances.
type Databases interface {
	CreateInstance(ctx context.Context, in CreateDatabaseInput) (*ResourceInfo, error)
	DescribeInstance(ctx context.Context, id string) (*ResourceState, error)
}

// CreateCacheInput requests a cache cluster with TLS, at-rest encryption
// under the tenant key, and an auth token.
type CreateCacheInput struct {
	ClusterID         string
	Description       string
	Engine            string
	EngineVersion     string
	NodeType          string
	AuthToken         string
	KeyARN            string
	SnapshotRetention int
	Tags              map[string]string
}

// Caches is the provider API for cache clusters.
type Caches interface {
	CreateCluster(ctx context.Context, in CreateCacheInput) (*ResourceInfo, error)
	DescribeCluster(ctx context.Context, id string) (*ResourceState, error)
}

// BucketLifecycleRule ages objects into colder storage classes, sized for
// a multi-year compliance retention window.
type BucketLifecycleRule struct {
	ID              string
	ColdAfterDays   int
	FrozenAfterDays int
}

// CreateBucketInput requests an object storage bucket. Versioning, access
// logging, and public-access blocking are applied by the adapter.
type CreateBucketInput struct {
	Name      string
	Region    string
	KeyARN    string
	LogPrefix string
	Lifecycle BucketLifecycleRule
	Tags      map[string]string
}

// Buckets is the provider API for object storage. Buckets report no
// asynchronous readiness phase; creation success means usable.
type Buckets interface {
	CreateBucket(ctx context.Context, in CreateBucketInput) (*ResourceInfo, error)
}

// CreateKeyInput requests a managed encryption key with rotation enabled.
type CreateKeyInput struct {
	Alias       string
	Description string
	Tags        map[string]string
}

// KeyInfo identifies a created encryption key.
type KeyInfo struct {
	ID  string
	ARN string
}

// Keys is the provider API for managed encryption keys.
type Keys interface {
	CreateKey(ctx context.Context, in CreateKeyInput) (*KeyInfo, error)
}

// Provider aggregates the four resource APIs a provisioning run needs.
type Provider interface {
	Databases
	Caches
	Buckets
	Keys
}
