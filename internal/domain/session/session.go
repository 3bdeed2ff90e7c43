// Package session defines the published session state model and the error
// taxonomy surfaced to session consumers.
package session

import (
	"fmt"

	"github.com/pulseboard/tenancy/internal/domain/tenant"
)

// State is the lifecycle phase of the session machine.
type State string

const (
	StateIdle    State = "idle"    // no authenticated user
	StateLoading State = "loading" // resolution or initialization in flight
	StateReady   State = "ready"   // tenant loaded (possibly nil)
	StateError   State = "error"   // resolution failed after retries
)

// ErrorKind classifies a session error so the UI can pick a remedy.
type ErrorKind string

const (
	KindConnectivity   ErrorKind = "connectivity"
	KindPermission     ErrorKind = "permission"
	KindInitialization ErrorKind = "initialization"
	KindMutation       ErrorKind = "mutation"
)

// Error is the typed error published in the session snapshot. Detail is a
// serialization-safe copy of the cause's message.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	Cause  error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause with a kind.
func NewError(kind ErrorKind, cause error) *Error {
	e := &Error{Kind: kind, Cause: cause}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// Snapshot is the immutable state cell published to subscribers. The Tenant
// is a deep copy; consumers must treat it as read-only and react to new
// snapshots rather than mutate in place.
type Snapshot struct {
	State   State          `json:"state"`
	Tenant  *tenant.Tenant `json:"tenant,omitempty"`
	Loading bool           `json:"loading"`
	Err     *Error         `json:"error,omitempty"`
}
