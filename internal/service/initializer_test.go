package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/tenant"
)

var testCollections = []string{"campaigns", "reports"}

func TestEnsureInitializedProvisionsAndFlipsFlag(t *testing.T) {
	store := newMockStore()
	store.tenants["t1"] = &tenant.Tenant{ID: "t1"}

	ten := &tenant.Tenant{ID: "t1"}
	init := NewInitializer(store, testCollections)
	if err := init.EnsureInitialized(context.Background(), ten); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ten.Initialized {
		t.Fatal("expected tenant marked initialized")
	}
	if len(store.ensureCalls) != 2 {
		t.Fatalf("expected 2 collections provisioned, got %v", store.ensureCalls)
	}
	if len(store.updates) != 1 || store.updates[0].Initialized == nil || !*store.updates[0].Initialized {
		t.Fatalf("expected one initialized=true update, got %+v", store.updates)
	}
	if !store.tenants["t1"].Initialized {
		t.Fatal("expected remote document marked initialized")
	}
}

func TestEnsureInitializedIsNoOpWhenAlreadyInitialized(t *testing.T) {
	store := newMockStore()
	ten := &tenant.Tenant{ID: "t1", Initialized: true}

	init := NewInitializer(store, testCollections)
	if err := init.EnsureInitialized(context.Background(), ten); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.ensureCalls) != 0 || len(store.updates) != 0 {
		t.Fatal("expected no store activity for an initialized tenant")
	}
}

func TestPartialProvisioningFailureLeavesFlagFalse(t *testing.T) {
	store := newMockStore()
	store.tenants["t1"] = &tenant.Tenant{ID: "t1"}
	store.ensureErrs["reports"] = domain.ErrUnavailable

	ten := &tenant.Tenant{ID: "t1"}
	init := NewInitializer(store, testCollections)
	err := init.EnsureInitialized(context.Background(), ten)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected provisioning error, got %v", err)
	}

	if ten.Initialized {
		t.Fatal("initialized must stay false after partial failure")
	}
	if len(store.updates) != 0 {
		t.Fatal("initialized flag must not be written after partial failure")
	}
	if store.tenants["t1"].Initialized {
		t.Fatal("remote document must not be marked initialized")
	}
}

func TestProvisioningRetriesInFullNextTime(t *testing.T) {
	store := newMockStore()
	store.tenants["t1"] = &tenant.Tenant{ID: "t1"}
	store.ensureErrs["reports"] = domain.ErrUnavailable

	ten := &tenant.Tenant{ID: "t1"}
	init := NewInitializer(store, testCollections)
	if err := init.EnsureInitialized(context.Background(), ten); err == nil {
		t.Fatal("expected first provisioning pass to fail")
	}

	// The outage clears; the next pass re-runs every collection.
	delete(store.ensureErrs, "reports")
	if err := init.EnsureInitialized(context.Background(), ten); err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if !ten.Initialized {
		t.Fatal("expected tenant initialized after full pass")
	}
	// campaigns was provisioned on both passes (idempotent), reports once.
	if len(store.ensureCalls) != 3 {
		t.Fatalf("expected 3 idempotent provision calls, got %v", store.ensureCalls)
	}
}
