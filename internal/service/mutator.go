package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	otelx "github.com/pulseboard/tenancy/internal/adapter/otel"
	"github.com/pulseboard/tenancy/internal/domain/session"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
)

// ErrNoTenant is returned by mutation operations when no tenant is loaded.
var ErrNoTenant = errors.New("no active tenant")

// UpdateSettings writes patch through to the remote settings map and, only
// after the write confirms, shallow-merges it into the cached tenant. On
// failure the local cache is left untouched; there is no optimistic
// mutation to roll back.
func (s *Session) UpdateSettings(ctx context.Context, patch map[string]string) error {
	s.mu.Lock()
	if s.tenant == nil {
		s.mu.Unlock()
		return ErrNoTenant
	}
	id := s.tenant.ID
	// The store overwrites the whole map, so send the merged result
	// without touching the cached copy.
	merged := make(map[string]string, len(s.tenant.Settings)+len(patch))
	for k, v := range s.tenant.Settings {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.mu.Unlock()

	sctx, span := otelx.StartMutationSpan(ctx, id, "settings")
	defer span.End()

	if err := s.store.Update(sctx, id, tenantstore.Patch{Settings: merged}); err != nil {
		if s.metrics != nil {
			s.metrics.MutationsFailed.Add(ctx, 1)
		}
		return session.NewError(session.KindMutation, fmt.Errorf("update settings: %w", err))
	}

	s.confirmMerge(ctx, id, "settings", func() {
		s.tenant.MergeSettings(patch)
	})
	return nil
}

// UpdateUsage is UpdateSettings for the usage counters.
func (s *Session) UpdateUsage(ctx context.Context, patch map[string]int64) error {
	s.mu.Lock()
	if s.tenant == nil {
		s.mu.Unlock()
		return ErrNoTenant
	}
	id := s.tenant.ID
	merged := make(map[string]int64, len(s.tenant.Usage)+len(patch))
	for k, v := range s.tenant.Usage {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.mu.Unlock()

	sctx, span := otelx.StartMutationSpan(ctx, id, "usage")
	defer span.End()

	if err := s.store.Update(sctx, id, tenantstore.Patch{Usage: merged}); err != nil {
		if s.metrics != nil {
			s.metrics.MutationsFailed.Add(ctx, 1)
		}
		return session.NewError(session.KindMutation, fmt.Errorf("update usage: %w", err))
	}

	s.confirmMerge(ctx, id, "usage", func() {
		s.tenant.MergeUsage(patch)
	})
	return nil
}

// confirmMerge applies a confirmed remote write to the cached tenant and
// republishes. The merge is skipped if the session moved to a different
// tenant while the write was in flight.
func (s *Session) confirmMerge(ctx context.Context, tenantID, field string, merge func()) {
	s.mu.Lock()
	if s.tenant == nil || s.tenant.ID != tenantID {
		s.mu.Unlock()
		slog.Debug("dropping confirmed write for superseded tenant", "tenant", tenantID)
		return
	}
	merge()
	s.publishLocked()
	snap := s.snapshotLocked()
	userID := s.userID
	s.mu.Unlock()

	s.writeSnapshot(ctx, userID, snap)
	ev := session.TenantUpdatedEvent{TenantID: tenantID, Field: field}
	for _, b := range s.bcast {
		b.BroadcastEvent(ctx, session.EventTenantUpdated, ev)
	}
}

// CheckFeatureLimit reports whether the cached tenant's plan allows another
// use of feature given the current count. Pure read, no network; denies
// when no tenant is loaded.
func (s *Session) CheckFeatureLimit(feature string, currentCount int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant.FeatureAllowed(feature, currentCount)
}

// CollectionPath derives the storage address for a tenant-scoped
// sub-collection of the current tenant, or "" when no tenant is loaded.
// Addresses are always derived from the live session, so one tenant's path
// can never leak into a session resolved for another.
func (s *Session) CollectionPath(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant.CollectionPath(name)
}
