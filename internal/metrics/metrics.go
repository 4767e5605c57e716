// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package metrics provides Prometheus instrumentation for Strata.
//
// Metrics are exposed on the daemon-mode /metrics endpoint. One-shot runs
// register the same collectors but normally exit before scraping; the
// collectors are still useful there for push-gateway setups.
//
// Families:
//   - backup_job_* : per-job run outcomes and durations
//   - remote_op_*  : remote store call results and retries
//   - retention_*  : pruning activity per tier
//   - circuit_breaker_* : remote store breaker state
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backup job metrics
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_job_runs_total",
			Help: "Total backup job executions by terminal result",
		},
		[]string{"job", "result"},
	)

	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_job_run_duration_seconds",
			Help:    "End-to-end duration of one backup job execution",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}, // Archive builds can take minutes
		},
		[]string{"job"},
	)

	JobLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backup_job_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run per job",
		},
		[]string{"job"},
	)

	ArchiveBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backup_archive_bytes",
			Help: "Size of the most recent archive per job",
		},
		[]string{"job"},
	)

	ArchivePathsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_archive_paths_skipped_total",
			Help: "Source paths skipped during archiving",
		},
		[]string{"job", "reason"},
	)

	// Remote operation metrics
	RemoteOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_op_total",
			Help: "Remote store operations by capability and result",
		},
		[]string{"op", "result"},
	)

	RemoteOpRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_op_retries_total",
			Help: "Retry attempts beyond the first try, per capability",
		},
		[]string{"op"},
	)

	RemoteOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_op_duration_seconds",
			Help:    "Remote store operation duration including retries",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"op"},
	)

	// Retention metrics
	RetentionDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_deletes_total",
			Help: "Artifacts removed by retention enforcement",
		},
		[]string{"tier"},
	)

	RetentionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_failures_total",
			Help: "Best-effort retention deletions that failed",
		},
		[]string{"tier"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests seen by the circuit breaker, by disposition",
		},
		[]string{"name", "disposition"},
	)
)

// RecordJobResult records one terminal job outcome.
func RecordJobResult(job string, success bool, durationSeconds float64) {
	result := "failure"
	if success {
		result = "success"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
	JobRunDuration.WithLabelValues(job).Observe(durationSeconds)
}
