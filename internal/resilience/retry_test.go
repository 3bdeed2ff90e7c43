package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("connection refused")
	errPermanent = errors.New("permission denied")
)

func classify(err error) Class {
	if errors.Is(err, errTransient) {
		return ClassTransient
	}
	return ClassPermanent
}

// fakeSleep records requested delays without waiting.
func fakeSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestSucceedsFirstTry(t *testing.T) {
	r := NewRetryer(Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}, classify)
	var delays []time.Duration
	r.sleep = fakeSleep(&delays)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Fatalf("expected 1 call and no delays, got %d calls, %v", calls, delays)
	}
}

func TestRetriesTransientWithLinearDelays(t *testing.T) {
	r := NewRetryer(Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}, classify)
	var delays []time.Duration
	r.sleep = fakeSleep(&delays)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Fatalf("expected delays %v, got %v", want, delays)
	}
}

func TestExhaustsRetries(t *testing.T) {
	r := NewRetryer(Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}, classify)
	var delays []time.Duration
	r.sleep = fakeSleep(&delays)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls (1 initial + 3 retries), got %d", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("expected delays %v, got %v", want, delays)
		}
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	r := NewRetryer(Policy{MaxRetries: 3, BaseDelay: 2 * time.Second}, classify)
	var delays []time.Duration
	r.sleep = fakeSleep(&delays)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Fatalf("expected 1 call and no delays, got %d calls, %v", calls, delays)
	}
}

func TestCancelledDelayAbortsRetry(t *testing.T) {
	r := NewRetryer(Policy{MaxRetries: 3, BaseDelay: time.Hour}, classify)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(context.Context) error {
			calls++
			return errTransient
		})
	}()

	// Let the first attempt fail and the retry timer start, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls)
	}
}
