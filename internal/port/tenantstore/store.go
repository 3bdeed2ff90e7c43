// Package tenantstore defines the port interface for the remote tenant
// document store.
package tenantstore

import (
	"context"

	"github.com/pulseboard/tenancy/internal/domain/tenant"
)

// Patch is a document-level partial update. Nil fields are left untouched;
// non-nil map fields overwrite the whole map on the remote document, so the
// caller must send the already-merged result for any map it changes.
type Patch struct {
	Settings    map[string]string
	Usage       map[string]int64
	Initialized *bool
}

// Store is the port interface for the remote document store. Implementations
// classify failures onto the domain sentinels: domain.ErrNotFound,
// domain.ErrUnavailable (transient), domain.ErrPermissionDenied (permanent).
type Store interface {
	// Get loads the tenant document by id.
	Get(ctx context.Context, id string) (*tenant.Tenant, error)

	// Create writes a brand-new tenant document. Used only by the
	// account-provisioning flow, never by the resolver.
	Create(ctx context.Context, t *tenant.Tenant) error

	// Update applies a partial, last-writer-wins patch to the document.
	Update(ctx context.Context, id string, patch Patch) error

	// EnsureCollection idempotently creates a tenant-scoped sub-collection.
	// Creating an existing collection is a no-op, not an error.
	EnsureCollection(ctx context.Context, tenantID, name string) error
}
