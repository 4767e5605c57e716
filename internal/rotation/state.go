// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package rotation

// State identifies one stage of a job's rotation pipeline. The engine
// walks the states in declaration order; the only branch points are the
// tier boundary gates, the skip-ahead on a weekly or monthly sub-stage
// failure, and the daily-stage jump to StateFailed. Every path, success
// or failure, passes through StateReport before StateDone.
type State int

const (
	StateInit State = iota
	StateDailyBuild
	StateDailyUpload
	StateDailyRetain
	StateWeeklyDerive
	StateWeeklyUpload
	StateWeeklyRetain
	StateMonthlyDerive
	StateMonthlyUpload
	StateMonthlyRetain
	StateLocalCleanup
	StateReport
	StateDone

	// StateFailed is entered only from the daily stage; it leads to
	// StateReport so the failed job still gets its terminal record.
	// Weekly and monthly failures never reach it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDailyBuild:
		return "daily-build"
	case StateDailyUpload:
		return "daily-upload"
	case StateDailyRetain:
		return "daily-retain"
	case StateWeeklyDerive:
		return "weekly-derive"
	case StateWeeklyUpload:
		return "weekly-upload"
	case StateWeeklyRetain:
		return "weekly-retain"
	case StateMonthlyDerive:
		return "monthly-derive"
	case StateMonthlyUpload:
		return "monthly-upload"
	case StateMonthlyRetain:
		return "monthly-retain"
	case StateLocalCleanup:
		return "local-cleanup"
	case StateReport:
		return "report"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
