// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"context"
	"time"
)

// Class partitions failures by whether a retry can help.
type Class int

const (
	// ClassPermanent failures will not succeed on retry without an
	// external change (permissions, missing document).
	ClassPermanent Class = iota
	// ClassTransient failures are expected to succeed on retry
	// (connectivity class).
	ClassTransient
)

// Classifier maps an error to its failure class.
type Classifier func(error) Class

// Policy controls the retry schedule. Retry n (1-based) waits
// BaseDelay * n before running, so MaxRetries 3 with a 2s base yields
// delays of 2s, 4s, 6s.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Retryer runs an operation under a Policy, retrying transient failures.
type Retryer struct {
	policy   Policy
	classify Classifier
	sleep    func(ctx context.Context, d time.Duration) error // for testing
}

// NewRetryer creates a Retryer with the given policy and classifier.
func NewRetryer(policy Policy, classify Classifier) *Retryer {
	return &Retryer{
		policy:   policy,
		classify: classify,
		sleep:    sleepCtx,
	}
}

// Do runs fn until it succeeds, fails permanently, exhausts retries, or ctx
// is cancelled. A cancelled delay returns ctx.Err() immediately; the pending
// retry never runs.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if r.classify(err) != ClassTransient {
			return err
		}
		if attempt >= r.policy.MaxRetries {
			return err
		}
		delay := r.policy.BaseDelay * time.Duration(attempt+1)
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

// sleepCtx blocks for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
