// Package secretstore defines the secret store port. The store is the
// source of truth for credentials; anything cached from it is derived.
package secretstore

import "context"

// Store is the port interface for the external secret store.
type Store interface {
	// Put writes a structured secret under name and returns the handle
	// callers use to read it back.
	Put(ctx context.Context, name string, secret map[string]string) (handle string, err error)

	// Get reads a structured secret by handle.
	Get(ctx context.Context, handle string) (map[string]string, error)
}
