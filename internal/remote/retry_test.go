// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

// noSleep records requested delays without actually sleeping.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Attempts: 3, Delay: 5 * time.Second, Settle: 2 * time.Second}.
		WithSleep(noSleep(&delays))

	calls := 0
	err := policy.Do(t.Context(), "copy", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	// Only the settle delay, no retry delays.
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Errorf("expected single 2s settle delay, got %v", delays)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Attempts: 3, Delay: 5 * time.Second, Settle: 2 * time.Second}.
		WithSleep(noSleep(&delays))

	calls := 0
	opErr := errors.New("remote unavailable")
	err := policy.Do(t.Context(), "copy", func() error {
		calls++
		return opErr
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, opErr) {
		t.Errorf("expected wrapped operation error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// Two inter-attempt delays, no settle.
	if len(delays) != 2 {
		t.Fatalf("expected 2 retry delays, got %v", delays)
	}
	for _, d := range delays {
		if d != 5*time.Second {
			t.Errorf("expected 5s retry delay, got %s", d)
		}
	}
}

func TestRetryRecoversMidway(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Attempts: 3, Delay: time.Second, Settle: time.Second}.
		WithSleep(noSleep(&delays))

	calls := 0
	err := policy.Do(t.Context(), "mkdir", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	policy := DefaultRetryPolicy().WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	})

	calls := 0
	err := policy.Do(ctx, "copy", func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no attempts after cancellation, got %d", calls)
	}
}

func TestRetryZeroAttemptsClampedToOne(t *testing.T) {
	policy := RetryPolicy{Attempts: 0}.WithSleep(func(context.Context, time.Duration) error { return nil })

	calls := 0
	_ = policy.Do(t.Context(), "copy", func() error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}
}
