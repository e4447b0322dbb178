// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidState indicates an operation was attempted from the wrong
// tenant lifecycle state. Never retryable.
var ErrInvalidState = errors.New("invalid state")

// ErrConfiguration indicates required tenant configuration is missing or
// inconsistent. Not retryable; an operator must fix the record.
var ErrConfiguration = errors.New("configuration error")

// ErrUpstream indicates a cloud provider or secret store call failed.
// Retryable with backoff.
var ErrUpstream = errors.New("upstream error")

// ErrTimeout indicates a resource never reached readiness within its bound.
var ErrTimeout = errors.New("timed out")

// ErrValidation indicates invalid input from the caller.
var ErrValidation = errors.New("validation error")
