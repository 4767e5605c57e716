// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
)

// Client wraps a Store with Strata's remote-operation policy:
//
//   - every mutating call runs under the bounded RetryPolicy and is
//     followed by a settle delay on success
//   - an optional token-bucket rate limiter paces all calls
//   - an optional circuit breaker stops burning retries against a remote
//     that is down, tripping on failure ratio once a minimum sample size
//     is seen
//
// Errors returned by Client methods are operation outcomes. The rotation
// engine inspects them to decide state transitions; it never panics on
// them and never aborts sibling work except where the pipeline demands it.
type Client struct {
	store   Store
	policy  RetryPolicy
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewClient builds a Client around store using the retry, rate-limit and
// breaker settings from cfg.
func NewClient(store Store, cfg config.RemoteConfig) *Client {
	c := &Client{
		store: store,
		policy: RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
			Settle:   cfg.Retry.Settle,
		},
	}

	if cfg.RateLimit.OpsPerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.OpsPerSecond), burst)
	}

	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(breakerName(store), cfg.Breaker)
	}

	return c
}

// WithRetryPolicy returns a copy of the client using the given policy.
// Tests use it to eliminate real sleeps.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	clone := *c
	clone.policy = p
	return &clone
}

// Store exposes the wrapped store for callers that need raw reads.
func (c *Client) Store() Store { return c.store }

// Root returns the wrapped store's root path.
func (c *Client) Root() string { return c.store.Root() }

// breakerName derives a stable breaker identity from the store root.
func breakerName(store Store) string {
	name, _ := SplitRemotePath(store.Root())
	if name == "" {
		name = "remote"
	}
	return name + "-store"
}

// newBreaker builds a circuit breaker wired to the breaker metrics.
func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("remote store circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},
	})
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// call runs one store operation through the limiter and breaker, recording
// metrics. It is the common path for reads and single attempts of writes.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "rejected").Inc()
		}
	} else {
		err = fn()
	}
	metrics.RemoteOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.RemoteOpsTotal.WithLabelValues(op, result).Inc()
	return err
}

// mutate runs one mutating operation under the retry policy.
func (c *Client) mutate(ctx context.Context, op string, fn func() error) error {
	return c.policy.Do(ctx, op, func() error {
		return c.call(ctx, op, fn)
	})
}

// Mkdir creates a remote directory with retries.
func (c *Client) Mkdir(ctx context.Context, dir string) error {
	return c.mutate(ctx, "mkdir", func() error { return c.store.Mkdir(ctx, dir) })
}

// Copy transfers src to dst with retries.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	return c.mutate(ctx, "copy", func() error { return c.store.Copy(ctx, src, dst) })
}

// Move transfers src to dst and removes src, with retries.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	return c.mutate(ctx, "move", func() error { return c.store.Move(ctx, src, dst) })
}

// List returns the sorted entries under dir. Pure read: one attempt, no
// settle delay.
func (c *Client) List(ctx context.Context, dir string) ([]string, error) {
	var entries []string
	err := c.call(ctx, "list", func() error {
		var listErr error
		entries, listErr = c.store.List(ctx, dir)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(entries)
	return entries, nil
}

// DeleteOlderThan prunes entries older than age under dir, with retries.
func (c *Client) DeleteOlderThan(ctx context.Context, dir string, age time.Duration) error {
	return c.mutate(ctx, "delete-older-than", func() error {
		return c.store.DeleteOlderThan(ctx, dir, age)
	})
}

// DeleteFile removes one remote entry, with retries.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.mutate(ctx, "delete-file", func() error { return c.store.DeleteFile(ctx, path) })
}

// Preflight verifies remote connectivity before any job runs. It checks
// the binding version, the presence of the configured remote, and a root
// listing; on a failed listing it attempts exactly one reconnect and
// retries the listing. Any failure here is fatal to the entire run - no
// job executes against a store we cannot see.
func (c *Client) Preflight(ctx context.Context) error {
	if err := c.call(ctx, "version-check", func() error { return c.store.VersionCheck(ctx) }); err != nil {
		return fmt.Errorf("remote binding unusable: %w", err)
	}

	wantRemote, _ := SplitRemotePath(c.store.Root())
	var remotes []string
	err := c.call(ctx, "list-remotes", func() error {
		var listErr error
		remotes, listErr = c.store.ListRemotes(ctx)
		return listErr
	})
	if err != nil {
		return fmt.Errorf("listing configured remotes: %w", err)
	}
	if !remoteConfigured(remotes, wantRemote) {
		return fmt.Errorf("remote %q is not configured (found: %s)", wantRemote, strings.Join(remotes, ", "))
	}

	if _, err := c.List(ctx, c.store.Root()); err != nil {
		logging.Warn().Err(err).Msg("remote root not accessible, attempting reconnect")
		if recErr := c.call(ctx, "reconnect", func() error { return c.store.Reconnect(ctx) }); recErr != nil {
			return fmt.Errorf("reconnect failed: %w", recErr)
		}
		if _, err := c.List(ctx, c.store.Root()); err != nil {
			return fmt.Errorf("remote root still inaccessible after reconnect: %w", err)
		}
	}

	return nil
}

// remoteConfigured reports whether name appears in the "name:" entries.
func remoteConfigured(remotes []string, name string) bool {
	for _, r := range remotes {
		if strings.TrimSuffix(strings.TrimSpace(r), ":") == name {
			return true
		}
	}
	return false
}
