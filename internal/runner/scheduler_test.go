// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package runner

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/strata/internal/config"
)

func TestNextRunTime(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		hour     int
		now      time.Time
		want     time.Time
	}{
		{
			name:     "daily before preferred hour runs today",
			interval: 24 * time.Hour,
			hour:     2,
			now:      time.Date(2026, 8, 20, 1, 15, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily after preferred hour runs tomorrow",
			interval: 24 * time.Hour,
			hour:     2,
			now:      time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 21, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly at preferred hour runs tomorrow",
			interval: 24 * time.Hour,
			hour:     2,
			now:      time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 21, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "two-day interval pushes anchor out a day",
			interval: 48 * time.Hour,
			hour:     3,
			now:      time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 22, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "sub-daily interval ignores preferred hour",
			interval: 2 * time.Hour,
			hour:     2,
			now:      time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
			want:     time.Date(2026, 8, 20, 11, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(config.ScheduleConfig{
				Enabled:       true,
				Interval:      tt.interval,
				PreferredHour: tt.hour,
			}, nil)
			if got := s.nextRunTime(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextRunTime = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "web")
	r, _ := newTestRunner(t, cfg)
	s := NewScheduler(config.ScheduleConfig{Enabled: true, Interval: time.Hour}, r)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Serve must return the cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}
