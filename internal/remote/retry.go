// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
)

// RetryPolicy is the single bounded-retry policy applied uniformly to
// every mutating remote operation. Reads (List, ListRemotes) are pure and
// run exactly once.
type RetryPolicy struct {
	// Attempts is the maximum number of tries. Minimum 1.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Settle is the pause after a successful call, absorbing
	// eventual-consistency lag in the remote store.
	Settle time.Duration

	// sleep is injectable for tests. Defaults to a context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the reference deployment: 3 attempts, 5s
// between attempts, 2s settle.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 5 * time.Second, Settle: 2 * time.Second}
}

// WithSleep returns a copy of the policy using the given sleep function.
// Tests use this to run retry loops without real delays.
func (p RetryPolicy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = sleep
	return p
}

// Do runs fn up to Attempts times, pausing Delay between tries and Settle
// after success. The returned error is the last attempt's error; callers
// treat it as an operation outcome, not a fault to escalate.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.RemoteOpRetries.WithLabelValues(op).Inc()
		}

		lastErr = fn()
		if lastErr == nil {
			if p.Settle > 0 {
				if err := sleep(ctx, p.Settle); err != nil {
					return err
				}
			}
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < attempts {
			logging.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("retry_in", p.Delay).
				Err(lastErr).
				Msg("remote operation failed, retrying")
			if err := sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
