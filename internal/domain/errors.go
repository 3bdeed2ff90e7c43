// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable indicates a transient store failure (connection refused,
// timeout, broken pipe). Callers may retry.
var ErrUnavailable = errors.New("store unavailable")

// ErrPermissionDenied indicates the store rejected the caller's credentials.
// Retrying without an external change will not succeed.
var ErrPermissionDenied = errors.New("permission denied")
