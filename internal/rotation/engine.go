// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package rotation drives one backup job through its tier pipeline: build
// the daily archive, ship it, then on calendar boundaries derive the
// weekly artifact from the local daily copy and the monthly artifact from
// the newest remote weekly entry.
//
// The daily stage is load-bearing: any failure there marks the job FAILED
// and preserves the local archive for inspection. Weekly and monthly
// stages are best-effort promotions of data that already shipped, so
// their failures are logged without flipping the job outcome.
package rotation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/strata/internal/archive"
	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
	"github.com/tomtom215/strata/internal/remote"
	"github.com/tomtom215/strata/internal/retention"
)

// Result is the terminal record of one job execution. Exactly one Result
// is produced per job, success or not.
type Result struct {
	Job       string    `json:"job"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`

	// Artifact is the daily artifact name, set as soon as it is chosen.
	// Present even on failure so the report can point at the preserved
	// local file.
	Artifact     string `json:"artifact"`
	ArchiveBytes int64  `json:"archive_bytes"`

	// WeeklyArtifact and MonthlyArtifact are set only when the
	// corresponding derivation shipped.
	WeeklyArtifact  string `json:"weekly_artifact,omitempty"`
	MonthlyArtifact string `json:"monthly_artifact,omitempty"`

	// EmptyWeeklyTier reports that the monthly boundary fired but the
	// weekly tier had nothing to promote. The job still succeeds; the
	// flag exists so the gap is visible instead of silent.
	EmptyWeeklyTier bool `json:"empty_weekly_tier,omitempty"`

	// Err is the daily-stage error when Success is false.
	Err error `json:"-"`
}

// Engine executes the rotation pipeline for jobs. One engine serves all
// jobs of a run; per-job state lives in the run method's locals.
type Engine struct {
	client   *remote.Client
	enforcer *retention.Enforcer

	staging   string
	weeklyDay time.Weekday

	// now is injectable so boundary gating is testable.
	now func() time.Time

	// trace observes every state the pipeline enters. Test hook.
	trace func(State)
}

// NewEngine builds an engine over the given client using the run-wide
// settings from cfg. The weekly boundary day must already be validated.
func NewEngine(client *remote.Client, cfg *config.Config) *Engine {
	day, err := cfg.WeeklyBoundary()
	if err != nil {
		day = time.Sunday
	}
	return &Engine{
		client:    client,
		enforcer:  retention.NewEnforcer(client),
		staging:   cfg.StagingDir,
		weeklyDay: day,
		now:       time.Now,
	}
}

// WithNow returns a copy of the engine using the given clock.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// Run drives job through the pipeline and returns its Result. Run never
// panics on remote failures; errors are outcomes.
func (e *Engine) Run(ctx context.Context, job config.JobConfig) Result {
	now := e.now()
	res := Result{Job: job.Name, Timestamp: now}

	atWeekly := now.Weekday() == e.weeklyDay
	atMonthly := now.Day() == 1

	log := logging.With().Str("job", job.Name).Logger()
	log.Info().
		Bool("weekly_boundary", atWeekly).
		Bool("monthly_boundary", atMonthly).
		Time("run_time", now).
		Msg("starting rotation")

	// afterWeekly and afterMonthly are the boundary gates: any weekly
	// sub-stage failure skips ahead to the next gate, never to FAILED.
	afterWeekly := StateLocalCleanup
	if atMonthly {
		afterWeekly = StateMonthlyDerive
	}
	afterMonthly := StateLocalCleanup

	var dailyLocal, weeklyLocal, monthlyLocal string

	state := StateInit
	for state != StateDone {
		log.Debug().Str("state", state.String()).Msg("entering state")
		if e.trace != nil {
			e.trace(state)
		}

		switch state {
		case StateInit:
			if err := e.prepare(ctx, job); err != nil {
				res.Err = err
				state = StateFailed
				continue
			}
			state = StateDailyBuild

		case StateDailyBuild:
			res.Artifact = DailyName(job.Name, now)
			dailyLocal = filepath.Join(e.staging, res.Artifact)

			b := archive.NewBuilder(job.Name)
			size, err := b.Create(dailyLocal, job.BackupPaths, e.staging)
			if err != nil {
				res.Err = fmt.Errorf("building daily archive: %w", err)
				state = StateFailed
				continue
			}
			res.ArchiveBytes = size
			metrics.ArchiveBytes.WithLabelValues(job.Name).Set(float64(size))
			state = StateDailyUpload

		case StateDailyUpload:
			if err := e.client.Copy(ctx, dailyLocal, job.Remote.Daily); err != nil {
				// The local archive stays in staging for the next run or a
				// manual retry.
				res.Err = fmt.Errorf("uploading daily archive: %w", err)
				state = StateFailed
				continue
			}
			log.Info().Str("artifact", res.Artifact).Str("dir", job.Remote.Daily).Msg("daily archive uploaded")
			state = StateDailyRetain

		case StateDailyRetain:
			// Best-effort from here on: the backup already shipped.
			e.enforcer.Enforce(ctx, "daily", job.Remote.Daily, job.Retention.Daily) //nolint:errcheck // logged inside
			if atWeekly {
				state = StateWeeklyDerive
			} else {
				state = afterWeekly
			}

		case StateWeeklyDerive:
			weeklyLocal = filepath.Join(e.staging, WeeklyName(job.Name, now))
			if err := copyFile(dailyLocal, weeklyLocal); err != nil {
				log.Error().Err(err).Msg("weekly derivation failed, daily backup is unaffected")
				state = afterWeekly
				continue
			}
			state = StateWeeklyUpload

		case StateWeeklyUpload:
			err := e.client.Copy(ctx, weeklyLocal, job.Remote.Weekly)
			os.Remove(weeklyLocal) //nolint:errcheck // scratch copy, best effort
			if err != nil {
				log.Error().Err(err).Msg("weekly upload failed, daily backup is unaffected")
				state = afterWeekly
				continue
			}
			res.WeeklyArtifact = filepath.Base(weeklyLocal)
			log.Info().Str("artifact", res.WeeklyArtifact).Str("dir", job.Remote.Weekly).Msg("weekly artifact uploaded")
			state = StateWeeklyRetain

		case StateWeeklyRetain:
			e.enforcer.Enforce(ctx, "weekly", job.Remote.Weekly, job.Retention.Weekly) //nolint:errcheck // logged inside
			state = afterWeekly

		case StateMonthlyDerive:
			local, empty, err := e.deriveMonthly(ctx, job, now)
			switch {
			case err != nil:
				log.Error().Err(err).Msg("monthly derivation failed, daily backup is unaffected")
				state = afterMonthly
				continue
			case empty:
				res.EmptyWeeklyTier = true
				log.Warn().Str("dir", job.Remote.Weekly).Msg("weekly tier is empty at the monthly boundary, no monthly artifact produced")
				state = afterMonthly
				continue
			}
			monthlyLocal = local
			state = StateMonthlyUpload

		case StateMonthlyUpload:
			err := e.client.Copy(ctx, monthlyLocal, job.Remote.Monthly)
			os.Remove(monthlyLocal) //nolint:errcheck // scratch copy, best effort
			if err != nil {
				log.Error().Err(err).Msg("monthly upload failed, daily backup is unaffected")
				state = afterMonthly
				continue
			}
			res.MonthlyArtifact = filepath.Base(monthlyLocal)
			log.Info().Str("artifact", res.MonthlyArtifact).Str("dir", job.Remote.Monthly).Msg("monthly artifact uploaded")
			state = StateMonthlyRetain

		case StateMonthlyRetain:
			e.enforcer.Enforce(ctx, "monthly", job.Remote.Monthly, job.Retention.Monthly) //nolint:errcheck // logged inside
			state = afterMonthly

		case StateLocalCleanup:
			if err := retention.EnforceLocal(e.staging, job.MaxLocalBackups); err != nil {
				log.Error().Err(err).Msg("local cleanup failed, backup already shipped")
			}
			state = StateReport

		case StateFailed:
			// The terminal record is still owed; only the success-path
			// cleanup is skipped.
			state = StateReport

		case StateReport:
			if res.Err != nil {
				res.Success = false
				log.Error().
					Err(res.Err).
					Str("artifact", res.Artifact).
					Msg("rotation failed, local artifact preserved")
			} else {
				res.Success = true
				log.Info().
					Str("artifact", res.Artifact).
					Int64("bytes", res.ArchiveBytes).
					Str("weekly", res.WeeklyArtifact).
					Str("monthly", res.MonthlyArtifact).
					Msg("rotation complete")
			}
			state = StateDone
		}
	}

	if e.trace != nil {
		e.trace(StateDone)
	}
	return res
}

// prepare ensures the remote tier directories exist and applies the local
// cap before the new archive is built.
func (e *Engine) prepare(ctx context.Context, job config.JobConfig) error {
	for _, dir := range []string{job.Remote.Daily, job.Remote.Weekly, job.Remote.Monthly} {
		if err := e.client.Mkdir(ctx, dir); err != nil {
			return fmt.Errorf("creating tier dir %s: %w", dir, err)
		}
	}
	if err := retention.EnforceLocal(e.staging, job.MaxLocalBackups); err != nil {
		return fmt.Errorf("pre-build local retention: %w", err)
	}
	return nil
}

// deriveMonthly downloads the lexicographically newest weekly entry and
// renames it to the monthly name in staging, ready for upload. The empty
// return reports a weekly tier with nothing to promote, which is not an
// error.
func (e *Engine) deriveMonthly(ctx context.Context, job config.JobConfig, now time.Time) (local string, empty bool, err error) {
	entries, err := e.client.List(ctx, job.Remote.Weekly)
	if err != nil {
		return "", false, fmt.Errorf("listing weekly tier: %w", err)
	}
	if len(entries) == 0 {
		return "", true, nil
	}

	// List is sorted, so the last entry is the newest weekly artifact.
	newest := entries[len(entries)-1]
	if err := e.client.Copy(ctx, remote.JoinRemote(job.Remote.Weekly, newest), e.staging); err != nil {
		return "", false, fmt.Errorf("downloading weekly artifact %s: %w", newest, err)
	}
	scratch := filepath.Join(e.staging, newest)

	local = filepath.Join(e.staging, MonthlyName(job.Name, now))
	if err := os.Rename(scratch, local); err != nil {
		os.Remove(scratch) //nolint:errcheck // scratch copy, best effort
		return "", false, fmt.Errorf("renaming monthly artifact: %w", err)
	}
	return local, false, nil
}

// copyFile duplicates src to dst on the local filesystem.
func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths are staging-local
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.Create(dst) //nolint:gosec // G304: paths are staging-local
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return err
	}
	return out.Close()
}
