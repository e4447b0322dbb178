// Package cloudhttp implements the cloud provider ports against the
// provider's REST resource APIs.
package cloudhttp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/matehq/mate/internal/config"
	"github.com/matehq/mate/internal/domain"
	"github.com/matehq/mate/internal/port/cloud"
)

// Client implements cloud.Provider over the provider's HTTP API.
type Client struct {
	http   *resty.Client
	region string
}

// New creates a provider API client from config.
func New(cfg config.Cloud) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIToken != "" {
		c.SetAuthToken(cfg.APIToken)
	}
	return &Client{http: c, region: cfg.Region}
}

// resourceResponse is the provider's create/describe envelope.
type resourceResponse struct {
	ID       string `json:"id"`
	ARN      string `json:"arn"`
	Status   string `json:"status"`
	Endpoint struct {
		Address string `json:"address"`
		Port    int    `json:"port"`
	} `json:"endpoint"`
	Message string `json:"message"`
}

// post issues a create call and maps transport and provider errors to
// ErrUpstream.
func (c *Client) post(ctx context.Context, path string, body any) (*resourceResponse, error) {
	var out resourceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %v: %w", path, err, domain.ErrUpstream)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("provider %s: status %d: %s: %w",
			path, resp.StatusCode(), out.Message, domain.ErrUpstream)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string) (*resourceResponse, error) {
	var out resourceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %v: %w", path, err, domain.ErrUpstream)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("provider %s: %w", path, domain.ErrNotFound)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("provider %s: status %d: %s: %w",
			path, resp.StatusCode(), out.Message, domain.ErrUpstream)
	}
	return &out, nil
}

// CreateInstance requests a relational database instance.
func (c *Client) CreateInstance(ctx context.Context, in cloud.CreateDatabaseInput) (*cloud.ResourceInfo, error) {
	body := map[string]any{
		"instance_id":           in.InstanceID,
		"database_name":         in.DatabaseName,
		"engine":                in.Engine,
		"engine_version":        in.EngineVersion,
		"instance_class":        in.InstanceClass,
		"master_username":       in.MasterUsername,
		"master_password":       in.MasterPassword,
		"storage_gb":            in.StorageGB,
		"storage_encrypted":     true,
		"kms_key_arn":           in.KeyARN,
		"multi_az":              in.MultiAZ,
		"publicly_accessible":   false,
		"deletion_protection":   true,
		"backup_retention_days": in.BackupRetentionDays,
		"region":                c.region,
		"tags":                  in.Tags,
	}
	out, err := c.post(ctx, "/v1/databases", body)
	if err != nil {
		return nil, err
	}
	return &cloud.ResourceInfo{ID: out.ID, Locator: out.ARN}, nil
}

// DescribeInstance reports a database instance's current state.
func (c *Client) DescribeInstance(ctx context.Context, id string) (*cloud.ResourceState, error) {
	out, err := c.get(ctx, "/v1/databases/"+id)
	if err != nil {
		return nil, err
	}
	return &cloud.ResourceState{
		Status:   out.Status,
		Endpoint: cloud.Endpoint{Address: out.Endpoint.Address, Port: out.Endpoint.Port},
	}, nil
}

// CreateCluster requests a cache cluster.
func (c *Client) CreateCluster(ctx context.Context, in cloud.CreateCacheInput) (*cloud.ResourceInfo, error) {
	body := map[string]any{
		"cluster_id":              in.ClusterID,
		"description":             in.Description,
		"engine":                  in.Engine,
		"engine_version":          in.EngineVersion,
		"node_type":               in.NodeType,
		"auth_token":              in.AuthToken,
		"at_rest_encryption":      true,
		"transit_encryption":      true,
		"kms_key_arn":             in.KeyARN,
		"snapshot_retention_days": in.SnapshotRetention,
		"region":                  c.region,
		"tags":                    in.Tags,
	}
	out, err := c.post(ctx, "/v1/caches", body)
	if err != nil {
		return nil, err
	}
	return &cloud.ResourceInfo{ID: out.ID, Locator: out.ARN}, nil
}

// DescribeCluster reports a cache cluster's current state.
func (c *Client) DescribeCluster(ctx context.Context, id string) (*cloud.ResourceState, error) {
	out, err := c.get(ctx, "/v1/caches/"+id)
	if err != nil {
		return nil, err
	}
	return &cloud.ResourceState{
		Status:   out.Status,
		Endpoint: cloud.Endpoint{Address: out.Endpoint.Address, Port: out.Endpoint.Port},
	}, nil
}

// CreateBucket requests an object storage bucket with versioning, access
// logging, public-access blocking, and lifecycle rules applied.
func (c *Client) CreateBucket(ctx context.Context, in cloud.CreateBucketInput) (*cloud.ResourceInfo, error) {
	body := map[string]any{
		"name":                in.Name,
		"region":              in.Region,
		"versioning":          true,
		"block_public_access": true,
		"kms_key_arn":         in.KeyARN,
		"access_log_prefix":   in.LogPrefix,
		"lifecycle": map[string]any{
			"id":                in.Lifecycle.ID,
			"cold_after_days":   in.Lifecycle.ColdAfterDays,
			"frozen_after_days": in.Lifecycle.FrozenAfterDays,
		},
		"tags": in.Tags,
	}
	out, err := c.post(ctx, "/v1/buckets", body)
	if err != nil {
		return nil, err
	}
	return &cloud.ResourceInfo{ID: out.ID, Locator: out.ARN}, nil
}

// CreateKey requests a managed encryption key with rotation enabled.
func (c *Client) CreateKey(ctx context.Context, in cloud.CreateKeyInput) (*cloud.KeyInfo, error) {
	body := map[string]any{
		"alias":            in.Alias,
		"description":      in.Description,
		"usage":            "ENCRYPT_DECRYPT",
		"rotation_enabled": true,
		"region":           c.region,
		"tags":             in.Tags,
	}
	out, err := c.post(ctx, "/v1/keys", body)
	if err != nil {
		return nil, err
	}
	return &cloud.KeyInfo{ID: out.ID, ARN: out.ARN}, nil
}
