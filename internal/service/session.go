package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	otelx "github.com/pulseboard/tenancy/internal/adapter/otel"
	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/identity"
	"github.com/pulseboard/tenancy/internal/domain/session"
	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/port/authsource"
	"github.com/pulseboard/tenancy/internal/port/broadcast"
	"github.com/pulseboard/tenancy/internal/port/cache"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
)

// attempt is one tagged resolution pipeline. The tag is checked again at
// completion time; results from superseded attempts are dropped.
type attempt struct {
	id     string
	user   identity.User
	cancel context.CancelFunc
	done   chan struct{}
}

// Session owns the session lifecycle: it reacts to auth transitions,
// serializes resolve → (maybe) initialize → publish into one pipeline per
// auth change, and publishes {tenant, loading, error} snapshots to
// subscribers, the broadcast surfaces, and the snapshot cache.
type Session struct {
	resolver    *Resolver
	init        *Initializer
	store       tenantstore.Store
	auth        authsource.Source
	bcast       []broadcast.Broadcaster
	snapshots   cache.Cache // nil disables snapshot caching
	snapshotTTL time.Duration
	metrics     *otelx.Metrics

	mu     sync.Mutex
	state  session.State
	tenant *tenant.Tenant // the single cached document; writes go through mu
	err    *session.Error
	userID string
	cur    *attempt
	subs   map[chan session.Snapshot]struct{}

	flight singleflight.Group
}

// SessionOpts bundles the optional collaborators of a Session.
type SessionOpts struct {
	Broadcasters []broadcast.Broadcaster
	Snapshots    cache.Cache
	SnapshotTTL  time.Duration
	Metrics      *otelx.Metrics
}

// NewSession creates the session store. Call Run to start consuming auth
// state changes.
func NewSession(resolver *Resolver, init *Initializer, store tenantstore.Store, auth authsource.Source, opts SessionOpts) *Session {
	return &Session{
		resolver:    resolver,
		init:        init,
		store:       store,
		auth:        auth,
		bcast:       opts.Broadcasters,
		snapshots:   opts.Snapshots,
		snapshotTTL: opts.SnapshotTTL,
		metrics:     opts.Metrics,
		state:       session.StateIdle,
		subs:        make(map[chan session.Snapshot]struct{}),
	}
}

// Run consumes auth state changes until ctx ends. It must be called once;
// auth transitions drive the state machine from then on.
func (s *Session) Run(ctx context.Context) {
	for st := range s.auth.Subscribe(ctx) {
		s.onAuthChange(ctx, st)
	}
}

// onAuthChange advances the state machine for one auth observation.
func (s *Session) onAuthChange(ctx context.Context, st authsource.State) {
	if st.Loading {
		// The auth provider has not settled; act on nothing.
		return
	}
	if st.User == nil {
		s.teardown(ctx)
		return
	}

	s.mu.Lock()
	if s.userID == st.User.ID && s.state != session.StateIdle {
		// Re-emission of the current user; the in-flight or settled
		// pipeline already covers it.
		s.mu.Unlock()
		return
	}
	s.startAttemptLocked(ctx, *st.User)
	s.mu.Unlock()
}

// startAttemptLocked begins a tagged resolution pipeline for user,
// superseding any in-flight attempt. Caller holds s.mu.
func (s *Session) startAttemptLocked(ctx context.Context, user identity.User) {
	if s.cur != nil {
		s.cur.cancel()
	}

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{
		id:     uuid.NewString(),
		user:   user,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cur = a
	s.userID = user.ID
	s.state = session.StateLoading
	s.err = nil
	s.publishLocked()

	go s.runAttempt(actx, a)
}

// runAttempt executes resolve → (maybe) initialize, then hands the result
// to complete for tag-checked publication.
func (s *Session) runAttempt(ctx context.Context, a *attempt) {
	defer close(a.done)

	sctx, span := otelx.StartResolutionSpan(ctx, a.id, a.user.ID)
	defer span.End()

	t, err := s.resolver.Resolve(sctx, a.user.ID)

	var initErr error
	if err == nil && t != nil && !t.Initialized {
		initErr = s.init.EnsureInitialized(sctx, t)
	}

	s.complete(ctx, a, t, err, initErr)
}

// complete publishes an attempt's outcome unless the attempt has been
// superseded or torn down in the meantime.
func (s *Session) complete(ctx context.Context, a *attempt, t *tenant.Tenant, resolveErr, initErr error) {
	s.mu.Lock()

	if s.cur != a {
		// Stale result: the user changed (or logged out) while this
		// attempt was in flight. Its outcome must not be published.
		s.mu.Unlock()
		slog.Debug("dropping stale resolution result", "attempt", a.id, "user", a.user.ID)
		return
	}
	s.cur = nil

	if resolveErr != nil {
		if errors.Is(resolveErr, context.Canceled) {
			s.mu.Unlock()
			return
		}
		s.state = session.StateError
		s.tenant = nil
		s.err = session.NewError(errorKind(resolveErr), resolveErr)
		s.publishLocked()
		s.mu.Unlock()
		slog.Warn("tenant resolution failed", "user", a.user.ID, "kind", s.err.Kind, "error", resolveErr)
		return
	}

	s.state = session.StateReady
	s.tenant = t
	s.err = nil
	if initErr != nil {
		// The tenant loaded but provisioning did not finish; surface the
		// error while keeping the (uninitialized) tenant usable. A later
		// reload or the next session retries provisioning in full.
		s.err = session.NewError(session.KindInitialization, initErr)
	}
	s.publishLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeSnapshot(ctx, a.user.ID, snap)
	if t != nil {
		slog.Info("session ready", "user", a.user.ID, "tenant", t.ID, "initialized", t.Initialized)
	} else {
		slog.Info("session ready without tenant", "user", a.user.ID)
	}
}

// teardown returns the machine to Idle: the in-flight attempt (and any
// pending retry timer inside it) is cancelled and the cached tenant
// cleared. No stale retry may mutate state for an ended session.
func (s *Session) teardown(ctx context.Context) {
	s.mu.Lock()
	if s.cur != nil {
		s.cur.cancel()
		s.cur = nil
	}
	userID := s.userID
	s.userID = ""
	s.tenant = nil
	s.err = nil
	if s.state == session.StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = session.StateIdle
	s.publishLocked()
	s.mu.Unlock()

	if s.snapshots != nil && userID != "" {
		if err := s.snapshots.Delete(ctx, cache.SnapshotKey(userID)); err != nil {
			slog.Debug("snapshot delete failed", "user", userID, "error", err)
		}
	}
}

// Reload re-runs the resolution pipeline for the current user and waits for
// it to settle. Concurrent reloads are coalesced into a single in-flight
// attempt, as is a reload issued while the auth-driven pipeline is loading.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	s.mu.Unlock()

	_, err, _ := s.flight.Do(userID, func() (any, error) {
		s.mu.Lock()
		a := s.cur
		if a == nil {
			if s.userID != userID {
				// User changed between the check and the flight.
				s.mu.Unlock()
				return nil, nil
			}
			user := identity.User{ID: userID}
			if s.tenant != nil {
				user.Email = s.tenant.OwnerEmail
				user.DisplayName = s.tenant.OwnerName
			}
			s.startAttemptLocked(ctx, user)
			a = s.cur
		}
		s.mu.Unlock()

		select {
		case <-a.done:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	return err
}

// Snapshot returns the current published state. The tenant is a deep copy.
func (s *Session) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers the current snapshot first, then every transition.
// The channel closes when ctx ends.
func (s *Session) Subscribe(ctx context.Context) <-chan session.Snapshot {
	ch := make(chan session.Snapshot, 8)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// snapshotLocked builds the published view. Caller holds s.mu.
func (s *Session) snapshotLocked() session.Snapshot {
	return session.Snapshot{
		State:   s.state,
		Tenant:  s.tenant.Clone(),
		Loading: s.state == session.StateLoading,
		Err:     s.err,
	}
}

// publishLocked notifies subscribers and the broadcast surfaces of the
// current state. Caller holds s.mu.
func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; drop rather than stall the pipeline.
		}
	}

	ev := session.StateEvent{
		UserID: s.userID,
		State:  s.state,
	}
	if s.tenant != nil {
		ev.TenantID = s.tenant.ID
	}
	if s.err != nil {
		ev.Error = s.err.Error()
	}
	for _, b := range s.bcast {
		b.BroadcastEvent(context.Background(), session.EventState, ev)
	}
}

// writeSnapshot persists a Ready snapshot to the cache. Only confirmed
// state reaches here: a wholesale successful load or a confirmed write.
func (s *Session) writeSnapshot(ctx context.Context, userID string, snap session.Snapshot) {
	if s.snapshots == nil || snap.State != session.StateReady {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("snapshot marshal failed", "user", userID, "error", err)
		return
	}
	if err := s.snapshots.Set(ctx, cache.SnapshotKey(userID), data, s.snapshotTTL); err != nil {
		slog.Debug("snapshot cache write failed", "user", userID, "error", err)
	}
}

// CachedSnapshot returns the last confirmed snapshot persisted for userID,
// letting a reconnecting client render immediately while a fresh resolution
// runs. It is never consulted to satisfy resolution itself.
func (s *Session) CachedSnapshot(ctx context.Context, userID string) (*session.Snapshot, bool) {
	if s.snapshots == nil || userID == "" {
		return nil, false
	}
	data, ok, err := s.snapshots.Get(ctx, cache.SnapshotKey(userID))
	if err != nil || !ok {
		return nil, false
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

// errorKind maps a resolution error onto the published taxonomy.
func errorKind(err error) session.ErrorKind {
	if errors.Is(err, domain.ErrPermissionDenied) {
		return session.KindPermission
	}
	return session.KindConnectivity
}
