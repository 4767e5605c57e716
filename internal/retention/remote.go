// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package retention

import (
	"context"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
	"github.com/tomtom215/strata/internal/remote"
)

// Enforcer prunes remote tier directories. Count-based retention is the
// canonical policy; age-based pruning may be layered on the same tier.
// Every deletion is best-effort: failures are logged and counted, never
// escalated to the job.
type Enforcer struct {
	client *remote.Client
}

// NewEnforcer creates an enforcer over the given remote client.
func NewEnforcer(client *remote.Client) *Enforcer {
	return &Enforcer{client: client}
}

// Enforce applies the tier's policy to dir. tier labels logs and metrics
// (daily/weekly/monthly). Returns the number of entries deleted; the
// error case is reserved for a failed listing, which callers also treat
// as best-effort.
func (e *Enforcer) Enforce(ctx context.Context, tier, dir string, policy config.TierRetention) (int, error) {
	deleted := 0

	if policy.KeepLast > 0 {
		n, err := e.enforceCount(ctx, tier, dir, policy.KeepLast)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	if policy.MaxAge > 0 {
		if err := e.client.DeleteOlderThan(ctx, dir, policy.MaxAge); err != nil {
			logging.Error().Str("tier", tier).Str("dir", dir).Err(err).Msg("age-based pruning failed")
			metrics.RetentionFailures.WithLabelValues(tier).Inc()
		} else {
			logging.Info().Str("tier", tier).Str("dir", dir).Dur("max_age", policy.MaxAge).Msg("pruned entries beyond max age")
		}
	}

	return deleted, nil
}

// enforceCount keeps the newest keep entries by name-sort order and
// deletes the rest one at a time. A single stuck entry is logged and
// skipped so the rest of the pass still runs.
func (e *Enforcer) enforceCount(ctx context.Context, tier, dir string, keep int) (int, error) {
	entries, err := e.client.List(ctx, dir)
	if err != nil {
		logging.Error().Str("tier", tier).Str("dir", dir).Err(err).Msg("listing tier for retention failed")
		metrics.RetentionFailures.WithLabelValues(tier).Inc()
		return 0, err
	}

	if len(entries) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, name := range entries[:len(entries)-keep] {
		path := remote.JoinRemote(dir, name)
		if err := e.client.DeleteFile(ctx, path); err != nil {
			logging.Error().Str("tier", tier).Str("entry", name).Err(err).Msg("failed to delete stale entry, continuing")
			metrics.RetentionFailures.WithLabelValues(tier).Inc()
			continue
		}
		deleted++
		metrics.RetentionDeletes.WithLabelValues(tier).Inc()
		logging.Info().Str("tier", tier).Str("entry", name).Msg("deleted stale remote entry")
	}

	return deleted, nil
}
