// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package runner

import (
	"context"
	"time"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
)

// Scheduler runs the whole job set at a fixed interval. It implements
// suture.Service so daemon mode can supervise it; a panic escaping a run
// restarts the scheduler, not the process.
//
// Timer logic: intervals of 24h or more anchor on the preferred hour, so
// a daily schedule runs at e.g. 02:00 regardless of when the daemon
// started. Shorter intervals simply add the interval to the current time.
type Scheduler struct {
	schedule config.ScheduleConfig
	runner   *Runner

	// now is injectable for the timing tests.
	now func() time.Time
}

// NewScheduler creates a scheduler over the runner.
func NewScheduler(schedule config.ScheduleConfig, runner *Runner) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		runner:   runner,
		now:      time.Now,
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string { return "backup-scheduler" }

// Serve runs the scheduling loop until the context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	next := s.nextRunTime(s.now())
	logging.Info().Time("next_run", next).Dur("interval", s.schedule.Interval).Msg("backup scheduler started")

	timer := time.NewTimer(next.Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			outcomes := s.runner.Run(ctx, nil)
			failures := 0
			for _, out := range outcomes {
				if !out.Success {
					failures++
				}
			}
			logging.Info().
				Int("jobs", len(outcomes)).
				Int("failures", failures).
				Msg("scheduled run complete")

			next = s.nextRunTime(s.now())
			logging.Info().Time("next_run", next).Msg("next scheduled run")
			timer.Reset(next.Sub(s.now()))
		}
	}
}

// nextRunTime determines when the next scheduled run should start.
func (s *Scheduler) nextRunTime(now time.Time) time.Time {
	interval := s.schedule.Interval

	if interval >= 24*time.Hour {
		// Daily or longer: anchor on the preferred hour.
		next := time.Date(now.Year(), now.Month(), now.Day(),
			s.schedule.PreferredHour, 0, 0, 0, now.Location())

		// Already past the preferred hour today: start tomorrow.
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		// Intervals beyond a day push the anchor out by whole days.
		if interval > 24*time.Hour {
			days := int(interval.Hours() / 24)
			next = next.Add(time.Duration(days-1) * 24 * time.Hour)
		}

		return next
	}

	return now.Add(interval)
}
