// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// minScheduleInterval is the shortest allowed daemon-mode run interval.
const minScheduleInterval = time.Hour

// validate is the shared validator instance. Struct tag validation is
// stateless, so a single instance serves the whole package.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the global configuration sections. Per-job semantic
// problems are deliberately NOT fatal here: the runner re-validates each
// job via JobConfig.Validate and converts failures into per-job FAILURE
// outcomes, so one misconfigured job never blocks the rest of the run.
func (c *Config) Validate() error {
	if err := c.validateGlobals(); err != nil {
		return err
	}

	if err := c.validateRemote(); err != nil {
		return err
	}

	if err := c.validateSchedule(); err != nil {
		return err
	}

	return c.validateJobNames()
}

func (c *Config) validateGlobals() error {
	if strings.TrimSpace(c.StagingDir) == "" {
		return fmt.Errorf("staging_dir is required")
	}
	if c.JobDelay < 0 {
		return fmt.Errorf("job_delay must not be negative, got %s", c.JobDelay)
	}
	if _, err := parseWeekday(c.WeeklyBoundaryDay); err != nil {
		return fmt.Errorf("weekly_boundary_day: %w", err)
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch c.Remote.Backend {
	case "rclone":
		if c.Remote.Rclone.RemoteName == "" {
			return fmt.Errorf("remote.rclone.remote_name is required for the rclone backend")
		}
		if c.Remote.Rclone.Binary == "" {
			return fmt.Errorf("remote.rclone.binary is required for the rclone backend")
		}
	case "s3":
		if c.Remote.S3.Bucket == "" {
			return fmt.Errorf("remote.s3.bucket is required for the s3 backend")
		}
		if c.Remote.S3.AccessKey == "" || c.Remote.S3.SecretKey == "" {
			return fmt.Errorf("remote.s3.access_key and remote.s3.secret_key are required for the s3 backend")
		}
	case "memory":
		// Dry-run backend needs no settings.
	default:
		return fmt.Errorf("remote.backend must be one of rclone, s3, memory; got %q", c.Remote.Backend)
	}

	if c.Remote.Retry.Attempts < 1 {
		return fmt.Errorf("remote.retry.attempts must be at least 1, got %d", c.Remote.Retry.Attempts)
	}
	if c.Remote.Retry.Delay < 0 || c.Remote.Retry.Settle < 0 {
		return fmt.Errorf("remote.retry delays must not be negative")
	}
	if c.Remote.RateLimit.OpsPerSecond < 0 {
		return fmt.Errorf("remote.rate_limit.ops_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if !c.Schedule.Enabled {
		return nil
	}
	if c.Schedule.Interval < minScheduleInterval {
		return fmt.Errorf("schedule.interval must be at least %s, got %s", minScheduleInterval, c.Schedule.Interval)
	}
	if c.Schedule.PreferredHour < 0 || c.Schedule.PreferredHour > 23 {
		return fmt.Errorf("schedule.preferred_hour must be between 0 and 23, got %d", c.Schedule.PreferredHour)
	}
	return nil
}

// validateJobNames ensures jobs exist and names are unique. Everything else
// about a job is checked by JobConfig.Validate at run time.
func (c *Config) validateJobNames() error {
	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job must be configured")
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		name := strings.TrimSpace(job.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate job name: %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Validate checks one job against the structural tags and the tier layout
// invariants. stagingDir is the global staging directory; every tier
// directory must be disjoint from it and from its siblings.
func (j *JobConfig) Validate(stagingDir string) error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("job %q: %w", j.Name, err)
	}

	anyIncluded := false
	for path, include := range j.BackupPaths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("job %q: empty backup path", j.Name)
		}
		if include {
			anyIncluded = true
		}
	}
	if !anyIncluded {
		return fmt.Errorf("job %q: no backup path is enabled", j.Name)
	}

	tiers := map[string]string{
		"daily":   j.Remote.Daily,
		"weekly":  j.Remote.Weekly,
		"monthly": j.Remote.Monthly,
	}
	seen := make(map[string]string, len(tiers))
	cleanStaging := filepath.Clean(stagingDir)
	for tier, dir := range tiers {
		key := strings.TrimRight(dir, "/")
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("job %q: %s and %s tiers share directory %q", j.Name, prev, tier, dir)
		}
		seen[key] = tier
		if filepath.Clean(dir) == cleanStaging {
			return fmt.Errorf("job %q: %s tier directory collides with the staging dir", j.Name, tier)
		}
	}

	for tier, r := range map[string]TierRetention{
		"daily":   j.Retention.Daily,
		"weekly":  j.Retention.Weekly,
		"monthly": j.Retention.Monthly,
	} {
		if err := r.validate(); err != nil {
			return fmt.Errorf("job %q: %s retention: %w", j.Name, tier, err)
		}
	}

	return nil
}

func (r TierRetention) validate() error {
	if r.KeepLast < 0 {
		return fmt.Errorf("keep_last must not be negative")
	}
	if r.MaxAge < 0 {
		return fmt.Errorf("max_age must not be negative")
	}
	if r.KeepLast == 0 && r.MaxAge == 0 {
		return fmt.Errorf("either keep_last or max_age must be set")
	}
	return nil
}
