// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package config defines Strata's configuration model and loads it via
// Koanf v2 with layered sources (highest priority wins):
//
//  1. Environment variables (STRATA_ prefix, e.g. STRATA_STAGING_DIR)
//  2. Config file (config.yaml)
//  3. Built-in defaults
//
// The document describes a set of backup jobs, each with its source path
// inclusion map, three remote tier directories (daily/weekly/monthly),
// per-tier retention, and a local retention cap. Global sections configure
// the remote store backend, retry tuning, logging, the daemon-mode
// scheduler, and the metrics listener.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/strata/internal/logging"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/strata/config.yaml",
	"/etc/strata/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config
// file path.
const ConfigPathEnvVar = "STRATA_CONFIG_PATH"

// Config is the root configuration document.
type Config struct {
	// Host identifies this machine in artifact reports. Defaults to
	// os.Hostname().
	Host string `koanf:"host"`

	// StagingDir is the local directory that holds in-flight archives.
	// It must be disjoint from every job's remote tier directories and is
	// excluded from its own archive contents.
	StagingDir string `koanf:"staging_dir" validate:"required"`

	// JobDelay is the pause inserted between consecutive jobs to avoid
	// bursting the remote API.
	JobDelay time.Duration `koanf:"job_delay"`

	// WeeklyBoundaryDay names the weekday on which weekly artifacts are
	// derived (one day per seven). Default: Sunday.
	WeeklyBoundaryDay string `koanf:"weekly_boundary_day"`

	Logging  logging.Config `koanf:"logging"`
	Remote   RemoteConfig   `koanf:"remote"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Server   ServerConfig   `koanf:"server"`

	// Jobs is the ordered set of backup jobs. The runner executes them
	// lexicographically by name unless an explicit subset is requested.
	Jobs []JobConfig `koanf:"jobs" validate:"required,min=1,dive"`
}

// RemoteConfig selects and tunes the remote store backend.
type RemoteConfig struct {
	// Backend is one of: rclone (reference), s3, memory (dry-run).
	Backend string `koanf:"backend" validate:"oneof=rclone s3 memory"`

	Rclone RcloneConfig `koanf:"rclone"`
	S3     S3Config     `koanf:"s3"`

	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Breaker   BreakerConfig   `koanf:"breaker"`
}

// RcloneConfig configures the rclone-backed store.
type RcloneConfig struct {
	// Binary is the rclone executable path or name resolved via PATH.
	Binary string `koanf:"binary"`

	// ConfigPath is passed as rclone --config.
	ConfigPath string `koanf:"config_path"`

	// RemoteName is the configured rclone remote, e.g. "onedrive".
	// The preflight check requires it to appear in `rclone listremotes`.
	RemoteName string `koanf:"remote_name"`
}

// S3Config configures the S3-backed store.
type S3Config struct {
	Endpoint       string `koanf:"endpoint"`
	Region         string `koanf:"region"`
	Bucket         string `koanf:"bucket"`
	AccessKey      string `koanf:"access_key"`
	SecretKey      string `koanf:"secret_key"`
	ForcePathStyle bool   `koanf:"force_path_style"`
}

// RetryConfig tunes the bounded retry policy applied to every mutating
// remote operation.
type RetryConfig struct {
	// Attempts is the maximum number of tries per operation.
	Attempts int `koanf:"attempts" validate:"gte=1"`

	// Delay is the fixed pause between attempts.
	Delay time.Duration `koanf:"delay"`

	// Settle is the pause after every successful mutating call, tolerating
	// eventual-consistency lag in the remote store.
	Settle time.Duration `koanf:"settle"`
}

// RateLimitConfig caps the rate of remote store calls.
type RateLimitConfig struct {
	// OpsPerSecond is the sustained call rate. 0 disables limiting.
	OpsPerSecond float64 `koanf:"ops_per_second"`

	// Burst is the token bucket size.
	Burst int `koanf:"burst"`
}

// BreakerConfig tunes the remote store circuit breaker.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MinRequests is the minimum sample size before the breaker may trip.
	MinRequests uint32 `koanf:"min_requests"`

	// FailureRatio is the failure rate at which the circuit opens.
	FailureRatio float64 `koanf:"failure_ratio"`

	// OpenTimeout is the wait before the open circuit transitions to
	// half-open.
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// ScheduleConfig configures daemon-mode periodic runs. When disabled,
// Strata runs once and exits (the cron-driven reference mode).
type ScheduleConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between runs. Must be at least one hour when enabled.
	Interval time.Duration `koanf:"interval"`

	// PreferredHour (0-23) anchors runs with intervals >= 24h.
	PreferredHour int `koanf:"preferred_hour"`
}

// ServerConfig configures the daemon-mode health/metrics listener.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// JobConfig describes one backup job. Immutable for the duration of a run.
type JobConfig struct {
	// Name uniquely identifies the job and prefixes its artifact names.
	Name string `koanf:"name" validate:"required"`

	// BackupPaths maps source path -> include flag. Disabled and absent
	// paths are skipped without failing the archive.
	BackupPaths map[string]bool `koanf:"backup_paths" validate:"required,min=1"`

	// Remote holds the three tier directories. They must be pairwise
	// distinct and disjoint from the staging dir.
	Remote TierDirs `koanf:"remote"`

	// Retention holds one policy per tier.
	Retention RetentionConfig `koanf:"retention"`

	// MaxLocalBackups caps archives kept in the staging area. 0 keeps none
	// after a confirmed transfer.
	MaxLocalBackups int `koanf:"max_local_backups" validate:"gte=0"`
}

// TierDirs names the remote directory for each tier.
type TierDirs struct {
	Daily   string `koanf:"daily" validate:"required"`
	Weekly  string `koanf:"weekly" validate:"required"`
	Monthly string `koanf:"monthly" validate:"required"`
}

// TierRetention is the retention policy for one tier. At least one of the
// two limits must be set; when both are set, both are applied (count first,
// then age). Count-based retention is the canonical policy.
type TierRetention struct {
	// KeepLast retains the newest N entries by name-sort order.
	KeepLast int `koanf:"keep_last" validate:"gte=0"`

	// MaxAge deletes entries older than this duration.
	MaxAge time.Duration `koanf:"max_age"`
}

// RetentionConfig groups the per-tier retention policies.
type RetentionConfig struct {
	Daily   TierRetention `koanf:"daily"`
	Weekly  TierRetention `koanf:"weekly"`
	Monthly TierRetention `koanf:"monthly"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	host, _ := os.Hostname()

	return &Config{
		Host:              host,
		StagingDir:        "/var/lib/strata/staging",
		JobDelay:          30 * time.Second,
		WeeklyBoundaryDay: "Sunday",
		Logging:           logging.DefaultConfig(),
		Remote: RemoteConfig{
			Backend: "rclone",
			Rclone: RcloneConfig{
				Binary:     "rclone",
				ConfigPath: "",
				RemoteName: "onedrive",
			},
			S3: S3Config{
				Region:         "us-east-1",
				ForcePathStyle: true,
			},
			Retry: RetryConfig{
				Attempts: 3,
				Delay:    5 * time.Second,
				Settle:   2 * time.Second,
			},
			RateLimit: RateLimitConfig{
				OpsPerSecond: 0, // unlimited
				Burst:        1,
			},
			Breaker: BreakerConfig{
				Enabled:      true,
				MinRequests:  10,
				FailureRatio: 0.6,
				OpenTimeout:  2 * time.Minute,
			},
		},
		Schedule: ScheduleConfig{
			Enabled:       false,
			Interval:      24 * time.Hour,
			PreferredHour: 2,
		},
		Server: ServerConfig{
			Enabled: false,
			Listen:  ":9857",
		},
		Jobs: nil,
	}
}

// WeeklyBoundary parses WeeklyBoundaryDay into a time.Weekday.
func (c *Config) WeeklyBoundary() (time.Weekday, error) {
	return parseWeekday(c.WeeklyBoundaryDay)
}

// parseWeekday accepts full English weekday names, case-insensitively.
func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday: %q", name)
}
