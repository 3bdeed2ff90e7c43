// Package service implements the tenancy core: tenant resolution,
// first-use initialization, write-through mutation, and the session
// lifecycle published to the rest of the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelx "github.com/pulseboard/tenancy/internal/adapter/otel"
	"github.com/pulseboard/tenancy/internal/domain"
	"github.com/pulseboard/tenancy/internal/domain/tenant"
	"github.com/pulseboard/tenancy/internal/port/tenantstore"
	"github.com/pulseboard/tenancy/internal/resilience"
)

// TenantIDForUser derives the tenant id addressed by a user. Tenants are
// keyed by their owning user's id.
func TenantIDForUser(userID string) string {
	return userID
}

// Resolver maps an authenticated user to their tenant document, retrying
// transient store failures. It never writes.
type Resolver struct {
	store   tenantstore.Store
	retry   *resilience.Retryer
	metrics *otelx.Metrics // nil disables instrumentation
}

// NewResolver creates a Resolver with the given retry policy.
func NewResolver(store tenantstore.Store, policy resilience.Policy, metrics *otelx.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		retry:   resilience.NewRetryer(policy, classifyStoreError),
		metrics: metrics,
	}
}

// Resolve loads the tenant document for userID. A missing document is not
// an error: it returns (nil, nil) and a different flow creates the tenant
// later. Transient failures are retried per the policy; permission failures
// return immediately. Cancelling ctx aborts any pending retry delay.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*tenant.Tenant, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	if r.metrics != nil {
		r.metrics.ResolutionsStarted.Add(ctx, 1)
	}
	start := time.Now()

	var t *tenant.Tenant
	calls := 0
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls > 1 && r.metrics != nil {
			r.metrics.Retries.Add(ctx, 1)
		}
		var err error
		t, err = r.store.Get(ctx, TenantIDForUser(userID))
		return err
	})

	if r.metrics != nil {
		r.metrics.ResolutionDuration.Record(ctx, time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if r.metrics != nil {
				r.metrics.ResolutionsSucceeded.Add(ctx, 1)
			}
			return nil, nil
		}
		if r.metrics != nil && !errors.Is(err, context.Canceled) {
			r.metrics.ResolutionsFailed.Add(ctx, 1)
		}
		return nil, fmt.Errorf("resolve tenant for user %s: %w", userID, err)
	}

	if r.metrics != nil {
		r.metrics.ResolutionsSucceeded.Add(ctx, 1)
	}
	return t, nil
}

// classifyStoreError maps store sentinels onto retry classes. Only
// connectivity-class failures are worth retrying.
func classifyStoreError(err error) resilience.Class {
	if errors.Is(err, domain.ErrUnavailable) {
		return resilience.ClassTransient
	}
	return resilience.ClassPermanent
}
