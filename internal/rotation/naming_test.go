// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package rotation

import (
	"sort"
	"testing"
	"time"
)

func TestDailyName(t *testing.T) {
	at := time.Date(2026, 8, 23, 2, 5, 9, 0, time.UTC)
	if got := DailyName("web", at); got != "daily-web-20260823020509.tar.gz" {
		t.Errorf("DailyName = %q", got)
	}
}

func TestWeeklyName(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		// Single-digit ISO week is zero-padded so W05 sorts before W11.
		{time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC), "weekly-web-2026W05.tar.gz"},
		{time.Date(2026, 8, 23, 3, 0, 0, 0, time.UTC), "weekly-web-2026W34.tar.gz"},
		// 2026 is a 53-week ISO year.
		{time.Date(2026, 12, 28, 3, 0, 0, 0, time.UTC), "weekly-web-2026W53.tar.gz"},
	}
	for _, tt := range tests {
		if got := WeeklyName("web", tt.at); got != tt.want {
			t.Errorf("WeeklyName(%s) = %q, want %q", tt.at.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestMonthlyName(t *testing.T) {
	at := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	if got := MonthlyName("web", at); got != "monthly-web-202609.tar.gz" {
		t.Errorf("MonthlyName = %q", got)
	}
}

func TestNamesSortChronologically(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 2, 2, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 10, 2, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 2, 0, 0, 0, time.UTC),
	}

	var daily, monthly []string
	for _, at := range times {
		daily = append(daily, DailyName("web", at))
		monthly = append(monthly, MonthlyName("web", at))
	}
	if !sort.StringsAreSorted(daily) {
		t.Errorf("daily names out of chronological order: %v", daily)
	}
	if !sort.StringsAreSorted(monthly) {
		t.Errorf("monthly names out of chronological order: %v", monthly)
	}
}
