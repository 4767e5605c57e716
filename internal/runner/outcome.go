// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package runner

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Outcome is the terminal record of one job execution. Exactly one is
// produced per job the runner touches, including jobs that never reached
// the engine (config failures, panics).
type Outcome struct {
	RunID uuid.UUID `json:"run_id"`
	Job   string    `json:"job"`
	Host  string    `json:"host"`

	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Artifact     string `json:"artifact,omitempty"`
	ArchiveBytes int64  `json:"archive_bytes,omitempty"`

	WeeklyArtifact  string `json:"weekly_artifact,omitempty"`
	MonthlyArtifact string `json:"monthly_artifact,omitempty"`
	EmptyWeeklyTier bool   `json:"empty_weekly_tier,omitempty"`

	Error string `json:"error,omitempty"`
}

// StatusLine renders the fixed-shape terminal line that downstream
// log-tailing notifiers match on. The shape is a stable contract: field
// order, separators and the timestamp format must not change.
func (o Outcome) StatusLine() string {
	status := "FAILURE"
	if o.Success {
		status = "SUCCESS"
	}
	return fmt.Sprintf("FINAL_STATUS | %s | Script: %s | Host: %s | Backup: %s | Timestamp: %s",
		status, o.Job, o.Host, o.Artifact, o.Timestamp.Format("2006-01-02 15:04:05"))
}

// JSON renders the outcome as a single JSON document for structured
// consumers.
func (o Outcome) JSON() ([]byte, error) {
	return json.Marshal(o)
}
