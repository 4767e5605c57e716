// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package rotation

import (
	"fmt"
	"time"
)

// Artifact names carry a sortable disambiguator so that within any tier
// directory, lexicographic order is chronological order. Retention and
// monthly derivation both rely on this.

// DailyName returns the daily artifact name for a run at t:
// daily-<job>-YYYYMMDDHHMMSS.tar.gz.
func DailyName(job string, t time.Time) string {
	return fmt.Sprintf("daily-%s-%s.tar.gz", job, t.Format("20060102150405"))
}

// WeeklyName returns the weekly artifact name for a run at t:
// weekly-<job>-YYYYWww.tar.gz using the ISO week, zero-padded so W02
// sorts before W11.
func WeeklyName(job string, t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("weekly-%s-%04dW%02d.tar.gz", job, year, week)
}

// MonthlyName returns the monthly artifact name for a run at t:
// monthly-<job>-YYYYMM.tar.gz.
func MonthlyName(job string, t time.Time) string {
	return fmt.Sprintf("monthly-%s-%s.tar.gz", job, t.Format("200601"))
}
