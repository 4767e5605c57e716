// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package runner executes backup jobs strictly sequentially and owns the
// terminal FINAL_STATUS contract: every job the runner touches produces
// exactly one outcome, whether it ran, failed validation, or panicked.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
	"github.com/tomtom215/strata/internal/rotation"
)

// Runner executes a run of backup jobs against one rotation engine.
type Runner struct {
	cfg    *config.Config
	engine *rotation.Engine

	// sleep is injectable so inter-job delays are testable.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a runner for cfg's jobs.
func New(cfg *config.Config, engine *rotation.Engine) *Runner {
	return &Runner{
		cfg:    cfg,
		engine: engine,
		sleep:  sleepCtx,
	}
}

// WithSleep returns a copy of the runner using the given sleep function.
func (r *Runner) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Runner {
	clone := *r
	clone.sleep = sleep
	return &clone
}

// Run executes the named jobs in the given order, or every configured job
// in lexicographic name order when names is empty. Jobs run strictly
// sequentially with the configured delay between them. Run stops early
// only on context cancellation; a failing job never blocks the next one.
func (r *Runner) Run(ctx context.Context, names []string) []Outcome {
	jobs, missing := r.selectJobs(names)

	outcomes := make([]Outcome, 0, len(jobs)+len(missing))
	for _, name := range missing {
		out := Outcome{
			RunID:     uuid.New(),
			Job:       name,
			Host:      r.cfg.Host,
			Timestamp: time.Now(),
			Error:     fmt.Sprintf("job %q is not configured", name),
		}
		r.report(out)
		outcomes = append(outcomes, out)
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			logging.Warn().Err(ctx.Err()).Msg("run canceled, remaining jobs skipped")
			break
		}

		out := r.runJob(ctx, job)
		r.report(out)
		outcomes = append(outcomes, out)

		if i < len(jobs)-1 && r.cfg.JobDelay > 0 {
			if err := r.sleep(ctx, r.cfg.JobDelay); err != nil {
				logging.Warn().Err(err).Msg("run canceled during inter-job delay")
				break
			}
		}
	}

	return outcomes
}

// selectJobs resolves the requested names against the configured jobs.
// Unknown names are returned separately so they still get FAILURE
// outcomes.
func (r *Runner) selectJobs(names []string) ([]config.JobConfig, []string) {
	byName := make(map[string]config.JobConfig, len(r.cfg.Jobs))
	for _, job := range r.cfg.Jobs {
		byName[job.Name] = job
	}

	if len(names) == 0 {
		all := make([]config.JobConfig, len(r.cfg.Jobs))
		copy(all, r.cfg.Jobs)
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		return all, nil
	}

	var jobs []config.JobConfig
	var missing []string
	for _, name := range names {
		if job, ok := byName[name]; ok {
			jobs = append(jobs, job)
		} else {
			missing = append(missing, name)
		}
	}
	return jobs, missing
}

// runJob executes one job, converting validation failures and panics into
// FAILURE outcomes. The engine's own failures arrive as Result values.
func (r *Runner) runJob(ctx context.Context, job config.JobConfig) (out Outcome) {
	start := time.Now()
	out = Outcome{
		RunID:     uuid.New(),
		Job:       job.Name,
		Host:      r.cfg.Host,
		Timestamp: start,
	}

	defer func() {
		if rec := recover(); rec != nil {
			out.Success = false
			out.Error = fmt.Sprintf("internal error: %v", rec)
			logging.Error().Str("job", job.Name).Interface("panic", rec).Msg("job panicked, converted to failure outcome")
		}
		out.Duration = time.Since(start)
		metrics.RecordJobResult(job.Name, out.Success, out.Duration.Seconds())
		if out.Success {
			metrics.JobLastSuccess.WithLabelValues(job.Name).SetToCurrentTime()
		}
	}()

	if err := job.Validate(r.cfg.StagingDir); err != nil {
		out.Error = err.Error()
		logging.Error().Str("job", job.Name).Err(err).Msg("job configuration invalid, skipping")
		return out
	}

	res := r.engine.Run(ctx, job)
	out.Success = res.Success
	out.Timestamp = res.Timestamp
	out.Artifact = res.Artifact
	out.ArchiveBytes = res.ArchiveBytes
	out.WeeklyArtifact = res.WeeklyArtifact
	out.MonthlyArtifact = res.MonthlyArtifact
	out.EmptyWeeklyTier = res.EmptyWeeklyTier
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// report emits the terminal status line for one outcome. The line goes to
// the log stream at info level regardless of outcome so notifiers can
// tail a single stream.
func (r *Runner) report(out Outcome) {
	logging.Info().
		Str("run_id", out.RunID.String()).
		Str("job", out.Job).
		Bool("success", out.Success).
		Dur("duration", out.Duration).
		Msg(out.StatusLine())

	if doc, err := out.JSON(); err == nil {
		logging.Debug().RawJSON("outcome", doc).Msg("job outcome")
	}
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
