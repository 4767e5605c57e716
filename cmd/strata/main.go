// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package main is the entry point for the Strata backup orchestrator.
//
// Strata archives configured host paths into tar.gz artifacts, ships them
// to a remote object store, and enforces grandfather-father-son retention
// across daily, weekly and monthly tiers.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered sources (env vars over config.yaml
//     over built-in defaults)
//  2. Logging: zerolog, JSON for production or console for interactive runs
//  3. Remote store: rclone (reference), s3, or memory (--dry-run)
//  4. Preflight: binding version, remote presence, root listing with one
//     reconnect attempt; any failure aborts before the first job
//  5. Jobs: strictly sequential, lexicographic order unless --jobs names a
//     subset
//
// # Modes
//
// One-shot (default): run every job once and exit; intended for cron. The
// exit code is non-zero if any job failed. Daemon (schedule.enabled=true):
// run under a suture supervisor with an interval scheduler and, when
// server.enabled=true, a /metrics + /healthz listener.
//
// # Example Usage
//
// Cron-driven nightly run:
//
//	strata -config /etc/strata/config.yaml
//
// Subset of jobs:
//
//	strata -config /etc/strata/config.yaml -jobs web,mail
//
// Full pipeline rehearsal without touching the remote:
//
//	strata -config /etc/strata/config.yaml -dry-run
//
// Every FINAL_STATUS line goes to the log stream; notifier daemons tail it
// to deliver success/failure messages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/remote"
	"github.com/tomtom215/strata/internal/rotation"
	"github.com/tomtom215/strata/internal/runner"
	"github.com/tomtom215/strata/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default: search config.yaml, /etc/strata/config.yaml)")
	jobsFlag := flag.String("jobs", "", "comma-separated subset of jobs to run (default: all)")
	dryRun := flag.Bool("dry-run", false, "run the full pipeline against an in-process store")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "strata: %v\n", err)
		return 1
	}

	logging.Init(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		logging.Error().Err(err).Msg("configuration invalid")
		return 1
	}

	if *dryRun {
		cfg.Remote.Backend = "memory"
		logging.Info().Msg("dry-run mode: using in-process store, remote untouched")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("remote store setup failed")
		return 1
	}
	client := remote.NewClient(store, cfg.Remote)

	// Connectivity failure here is fatal to the whole run: no job may
	// start against a store we cannot see.
	if err := client.Preflight(ctx); err != nil {
		logging.Error().Err(err).Msg("remote preflight failed, aborting run")
		return 1
	}

	engine := rotation.NewEngine(client, cfg)
	jobs := runner.New(cfg, engine)

	if cfg.Schedule.Enabled {
		return runDaemon(ctx, cfg, jobs)
	}
	return runOnce(ctx, jobs, splitJobs(*jobsFlag))
}

// runOnce executes one run and maps outcomes to the exit code.
func runOnce(ctx context.Context, jobs *runner.Runner, names []string) int {
	outcomes := jobs.Run(ctx, names)
	if len(outcomes) == 0 {
		logging.Error().Msg("no jobs executed")
		return 1
	}

	failures := 0
	for _, out := range outcomes {
		if !out.Success {
			failures++
		}
	}
	if failures > 0 {
		logging.Error().Int("failures", failures).Int("jobs", len(outcomes)).Msg("run finished with failures")
		return 1
	}
	logging.Info().Int("jobs", len(outcomes)).Msg("run finished")
	return 0
}

// runDaemon supervises the scheduler (and optionally the metrics listener)
// until a shutdown signal arrives.
func runDaemon(ctx context.Context, cfg *config.Config, jobs *runner.Runner) int {
	handler := &sutureslog.Handler{Logger: slog.New(logging.NewSlogHandler())}

	root := suture.New("strata", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	root.Add(runner.NewScheduler(cfg.Schedule, jobs))
	if cfg.Server.Enabled {
		root.Add(server.New(cfg.Server))
	}

	logging.Info().Dur("interval", cfg.Schedule.Interval).Msg("daemon mode started")
	err := root.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor exited")
		return 1
	}
	logging.Info().Msg("shutdown complete")
	return 0
}

// loadConfig loads from the explicit path when given, otherwise searches
// the default locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// buildStore constructs the configured remote store backend.
func buildStore(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	switch cfg.Remote.Backend {
	case "rclone":
		return remote.NewRcloneStore(cfg.Remote.Rclone), nil
	case "s3":
		return remote.NewS3Store(ctx, cfg.Remote.S3)
	case "memory":
		return remote.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

// splitJobs parses the -jobs flag into job names.
func splitJobs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
