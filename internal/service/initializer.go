package service

import (
	"context"
	"fmt"

	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
)

// Initializer provisions a tenant's required sub-collections on first use
// and flips the initialized flag exactly once per tenant.
type Initializer struct {
	store       tenantstore.Store
	collections []string
}

// NewInitializer creates an Initializer that provisions the given
// sub-collections.
func NewInitializer(store tenantstore.Store, collections []string) *Initializer {
	return &Initializer{store: store, collections: collections}
}

// EnsureInitialized provisions t's sub-collections and marks it
// initialized. A no-op when t is already initialized. Provisioning is
// idempotent, so a partial failure leaves the flag false and the next
// session retries in full: at-least-once provisioning, exactly-once
// completion. On success t.Initialized is updated in place.
func (i *Initializer) EnsureInitialized(ctx context.Context, t *tenant.Tenant) error {
	if t.Initialized {
		return nil
	}

	for _, name := range i.collections {
		if err := i.store.EnsureCollection(ctx, t.ID, name); err != nil {
			return fmt.Errorf("provision collection %s: %w", name, err)
		}
	}

	initialized := true
	if err := i.store.Update(ctx, t.ID, tenantstore.Patch{Initialized: &initialized}); err != nil {
		return fmt.Errorf("mark tenant %s initialized: %w", t.ID, err)
	}

	t.Initialized = true
	return nil
}
