package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulseboard/tenancy/internal/adapter/devauth"
	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/identity"
	"github.com/pulseboard/tenancy/internal/domain/session"
	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/resilience"
)

func newTestSession(t *testing.T, store *mockStore, policy resilience.Policy) (*Session, *devauth.Source) {
	t.Helper()
	auth := devauth.New()
	s := NewSession(
		NewResolver(store, policy, nil),
		NewInitializer(store, testCollections),
		store, auth, SessionOpts{},
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s, auth
}

// waitSnapshot polls until the published snapshot satisfies cond.
func waitSnapshot(t *testing.T, s *Session, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for snapshot; last state: %+v", s.Snapshot())
	return session.Snapshot{}
}

func activeTenant(id string) *tenant.Tenant {
	return &tenant.Tenant{
		ID:          id,
		OwnerID:     id,
		Status:      tenant.StatusActive,
		Settings:    map[string]string{"theme": "light", "timezone": "UTC"},
		Initialized: true,
	}
}

func TestLoginPublishesReadyTenant(t *testing.T) {
	store := newMockStore()
	store.tenants["u1"] = activeTenant("u1")
	s, auth := newTestSession(t, store, fastPolicy)

	sub := s.Subscribe(context.Background())
	first := <-sub
	if first.State != session.StateIdle {
		t.Fatalf("expected initial Idle snapshot, got %s", first.State)
	}

	auth.Login(identity.User{ID: "u1", Email: "u1@example.com"})

	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })
	if snap.Tenant == nil || snap.Tenant.ID != "u1" {
		t.Fatalf("expected tenant u1, got %+v", snap.Tenant)
	}
	if snap.Loading || snap.Err != nil {
		t.Fatalf("expected clean ready snapshot, got %+v", snap)
	}
}

func TestMissingTenantIsReadyWithNil(t *testing.T) {
	store := newMockStore()
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "newcomer"})

	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })
	if snap.Tenant != nil {
		t.Fatalf("expected nil tenant for missing document, got %+v", snap.Tenant)
	}
	if snap.Err != nil {
		t.Fatalf("not-found must not surface as an error, got %v", snap.Err)
	}
}

func TestFirstLoginInitializesTenantOnce(t *testing.T) {
	store := newMockStore()
	store.tenants["u1"] = &tenant.Tenant{ID: "u1", OwnerID: "u1", Status: tenant.StatusActive}
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })
	if snap.Tenant == nil || !snap.Tenant.Initialized {
		t.Fatalf("expected initialized tenant, got %+v", snap.Tenant)
	}
	if got := len(store.ensureCalls); got != len(testCollections) {
		t.Fatalf("expected %d provision calls, got %d", len(testCollections), got)
	}

	// A second pass through the pipeline sees initialized=true and skips
	// provisioning entirely.
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(store.ensureCalls); got != len(testCollections) {
		t.Fatalf("expected provisioning to run once, got %d calls", got)
	}
}

func TestInitializationFailureKeepsTenantUsable(t *testing.T) {
	store := newMockStore()
	store.tenants["u1"] = &tenant.Tenant{ID: "u1", OwnerID: "u1", Status: tenant.StatusActive}
	store.ensureErrs["reports"] = domain.ErrUnavailable
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })

	if snap.Tenant == nil {
		t.Fatal("expected the uninitialized tenant to be held so the UI is not blocked")
	}
	if snap.Tenant.Initialized {
		t.Fatal("tenant must not be marked initialized after partial provisioning")
	}
	if snap.Err == nil || snap.Err.Kind != session.KindInitialization {
		t.Fatalf("expected initialization error, got %v", snap.Err)
	}
}

func TestPermissionFailureIsImmediateError(t *testing.T) {
	store := newMockStore()
	store.getErrs["u1"] = []error{fmt.Errorf("get: %w", domain.ErrPermissionDenied)}
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateError })

	if snap.Err == nil || snap.Err.Kind != session.KindPermission {
		t.Fatalf("expected permission error, got %v", snap.Err)
	}
	if store.calls() != 1 {
		t.Fatalf("permission failures must not be retried, got %d calls", store.calls())
	}
}

func TestConnectivityExhaustionIsError(t *testing.T) {
	store := newMockStore()
	store.getErrs["u1"] = []error{errUnavailable(), errUnavailable(), errUnavailable(), errUnavailable()}
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateError })

	if snap.Err == nil || snap.Err.Kind != session.KindConnectivity {
		t.Fatalf("expected connectivity error, got %v", snap.Err)
	}
	if store.calls() != 4 {
		t.Fatalf("expected 4 calls before giving up, got %d", store.calls())
	}
}

func TestStaleResolutionResultIsDropped(t *testing.T) {
	store := newMockStore()
	store.tenants["alice"] = activeTenant("alice")
	store.tenants["bob"] = activeTenant("bob")
	gate := make(chan struct{})
	store.getGate["alice"] = gate
	s, auth := newTestSession(t, store, fastPolicy)

	// Alice's resolution stalls inside the store call.
	auth.Login(identity.User{ID: "alice"})
	waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateLoading })

	// The user switches to Bob, whose resolution completes first.
	auth.Login(identity.User{ID: "bob"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool {
		return sn.State == session.StateReady && sn.Tenant != nil
	})
	if snap.Tenant.ID != "bob" {
		t.Fatalf("expected bob's tenant, got %s", snap.Tenant.ID)
	}

	// Alice's attempt now completes; its result must not be published.
	close(gate)
	time.Sleep(50 * time.Millisecond)
	snap = s.Snapshot()
	if snap.Tenant == nil || snap.Tenant.ID != "bob" {
		t.Fatalf("stale result overwrote published tenant: %+v", snap.Tenant)
	}
}

func TestLogoutCancelsPendingRetry(t *testing.T) {
	store := newMockStore()
	store.getErrs["u1"] = []error{errUnavailable(), errUnavailable()}
	// An hour-long delay: the retry can only fire if cancellation is broken.
	s, auth := newTestSession(t, store, resilience.Policy{MaxRetries: 3, BaseDelay: time.Hour})

	auth.Login(identity.User{ID: "u1"})
	waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateLoading })

	// Let the first attempt fail and the retry timer get scheduled.
	deadline := time.Now().Add(time.Second)
	for store.calls() < 1 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	auth.Logout()
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateIdle })
	if snap.Tenant != nil {
		t.Fatal("expected cached tenant cleared on teardown")
	}

	time.Sleep(50 * time.Millisecond)
	if store.calls() != 1 {
		t.Fatalf("retry fired after teardown: %d calls", store.calls())
	}
}

func TestReloadCoalescesConcurrentCalls(t *testing.T) {
	store := newMockStore()
	store.tenants["u1"] = activeTenant("u1")
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })
	before := store.calls()

	gate := make(chan struct{})
	store.mu.Lock()
	store.getGate["u1"] = gate
	store.mu.Unlock()

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- s.Reload(context.Background()) }()
	}

	// Wait for the single coalesced attempt to reach the store, and give
	// the second caller time to join the flight before releasing it.
	deadline := time.Now().Add(time.Second)
	for store.calls() < before+1 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)

	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("reload: %v", err)
		}
	}
	if got := store.calls(); got != before+1 {
		t.Fatalf("expected concurrent reloads to share one store call, got %d extra", got-before)
	}
}

func TestReloadWithoutUserIsNoOp(t *testing.T) {
	store := newMockStore()
	s, _ := newTestSession(t, store, fastPolicy)

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls() != 0 {
		t.Fatalf("expected no store calls, got %d", store.calls())
	}
}

func TestSnapshotTenantIsACopy(t *testing.T) {
	store := newMockStore()
	store.tenants["u1"] = activeTenant("u1")
	s, auth := newTestSession(t, store, fastPolicy)

	auth.Login(identity.User{ID: "u1"})
	snap := waitSnapshot(t, s, func(sn session.Snapshot) bool { return sn.State == session.StateReady })

	snap.Tenant.Settings["theme"] = "mangled"

	again := s.Snapshot()
	if again.Tenant.Settings["theme"] != "light" {
		t.Fatal("published snapshot aliases the cached tenant")
	}
}
