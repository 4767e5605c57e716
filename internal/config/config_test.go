// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validJob returns a job configuration that passes validation.
func validJob(name string) JobConfig {
	return JobConfig{
		Name:        name,
		BackupPaths: map[string]bool{"/var/www": true, "/etc": false},
		Remote: TierDirs{
			Daily:   "onedrive:/backups/host/daily",
			Weekly:  "onedrive:/backups/host/weekly",
			Monthly: "onedrive:/backups/host/monthly",
		},
		Retention: RetentionConfig{
			Daily:   TierRetention{KeepLast: 7},
			Weekly:  TierRetention{KeepLast: 4},
			Monthly: TierRetention{MaxAge: 180 * 24 * time.Hour},
		},
		MaxLocalBackups: 0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Remote.Backend != "rclone" {
		t.Errorf("expected rclone backend default, got %q", cfg.Remote.Backend)
	}
	if cfg.Remote.Retry.Attempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Remote.Retry.Attempts)
	}
	if cfg.Remote.Retry.Delay != 5*time.Second {
		t.Errorf("expected 5s retry delay, got %s", cfg.Remote.Retry.Delay)
	}
	if cfg.Remote.Retry.Settle != 2*time.Second {
		t.Errorf("expected 2s settle delay, got %s", cfg.Remote.Retry.Settle)
	}
	if cfg.WeeklyBoundaryDay != "Sunday" {
		t.Errorf("expected Sunday boundary default, got %q", cfg.WeeklyBoundaryDay)
	}
	if cfg.Schedule.Enabled {
		t.Error("schedule must default to disabled (cron-driven reference mode)")
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
staging_dir: /tmp/strata-staging
job_delay: 10s
remote:
  backend: memory
jobs:
  - name: daily-pistar-config2
    backup_paths:
      /var/www: true
    remote:
      daily: onedrive:/backups/pistar/daily
      weekly: onedrive:/backups/pistar/weekly
      monthly: onedrive:/backups/pistar/monthly
    retention:
      daily:
        keep_last: 1
      weekly:
        keep_last: 4
      monthly:
        keep_last: 12
    max_local_backups: 0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.StagingDir != "/tmp/strata-staging" {
		t.Errorf("staging_dir = %q", cfg.StagingDir)
	}
	if cfg.JobDelay != 10*time.Second {
		t.Errorf("job_delay = %s", cfg.JobDelay)
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].Name != "daily-pistar-config2" {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if !cfg.Jobs[0].BackupPaths["/var/www"] {
		t.Error("expected /var/www to be included")
	}
	if cfg.Jobs[0].Retention.Daily.KeepLast != 1 {
		t.Errorf("daily keep_last = %d", cfg.Jobs[0].Retention.Daily.KeepLast)
	}
	// Defaults survive underneath the file layer.
	if cfg.Remote.Retry.Attempts != 3 {
		t.Errorf("retry attempts default lost: %d", cfg.Remote.Retry.Attempts)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
staging_dir: /tmp/from-file
remote:
  backend: memory
jobs:
  - name: j1
    backup_paths: {"/var/www": true}
    remote: {daily: "r:/d", weekly: "r:/w", monthly: "r:/m"}
    retention:
      daily: {keep_last: 1}
      weekly: {keep_last: 1}
      monthly: {keep_last: 1}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STRATA_STAGING_DIR", "/tmp/from-env")
	t.Setenv("STRATA_LOGGING__LEVEL", "debug")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.StagingDir != "/tmp/from-env" {
		t.Errorf("env override lost: staging_dir = %q", cfg.StagingDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("nested env override lost: logging.level = %q", cfg.Logging.Level)
	}
}

func TestValidateGlobalErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing staging dir", func(c *Config) { c.StagingDir = "" }},
		{"negative job delay", func(c *Config) { c.JobDelay = -time.Second }},
		{"bad weekday", func(c *Config) { c.WeeklyBoundaryDay = "Someday" }},
		{"bad backend", func(c *Config) { c.Remote.Backend = "ftp" }},
		{"rclone remote missing", func(c *Config) {
			c.Remote.Backend = "rclone"
			c.Remote.Rclone.RemoteName = ""
		}},
		{"s3 bucket missing", func(c *Config) {
			c.Remote.Backend = "s3"
			c.Remote.S3.Bucket = ""
		}},
		{"zero retry attempts", func(c *Config) { c.Remote.Retry.Attempts = 0 }},
		{"no jobs", func(c *Config) { c.Jobs = nil }},
		{"duplicate job names", func(c *Config) {
			c.Jobs = []JobConfig{validJob("a"), validJob("a")}
		}},
		{"short schedule interval", func(c *Config) {
			c.Schedule.Enabled = true
			c.Schedule.Interval = time.Minute
		}},
		{"bad preferred hour", func(c *Config) {
			c.Schedule.Enabled = true
			c.Schedule.PreferredHour = 24
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Jobs = []JobConfig{validJob("a")}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestJobValidate(t *testing.T) {
	staging := "/var/lib/strata/staging"

	tests := []struct {
		name    string
		mutate  func(*JobConfig)
		wantErr bool
	}{
		{"valid", func(j *JobConfig) {}, false},
		{"no paths", func(j *JobConfig) { j.BackupPaths = nil }, true},
		{"all paths disabled", func(j *JobConfig) {
			j.BackupPaths = map[string]bool{"/etc": false}
		}, true},
		{"tiers collide", func(j *JobConfig) { j.Remote.Weekly = j.Remote.Daily }, true},
		{"tier equals staging", func(j *JobConfig) { j.Remote.Daily = staging }, true},
		{"retention unset", func(j *JobConfig) {
			j.Retention.Weekly = TierRetention{}
		}, true},
		{"negative local cap", func(j *JobConfig) { j.MaxLocalBackups = -1 }, true},
		{"age-only retention", func(j *JobConfig) {
			j.Retention.Daily = TierRetention{MaxAge: 24 * time.Hour}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validJob("daily-pistar-config2")
			tt.mutate(&job)
			err := job.Validate(staging)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := parseWeekday("sunday"); err != nil || d != time.Sunday {
		t.Errorf("parseWeekday(sunday) = %v, %v", d, err)
	}
	if d, err := parseWeekday("Wednesday"); err != nil || d != time.Wednesday {
		t.Errorf("parseWeekday(Wednesday) = %v, %v", d, err)
	}
	if _, err := parseWeekday("Caturday"); err == nil {
		t.Error("expected error for unknown weekday")
	}
}
