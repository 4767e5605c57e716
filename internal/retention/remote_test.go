// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package retention

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/remote"
)

// newTestEnforcer wraps a MemoryStore in a client with no real sleeps.
func newTestEnforcer(store *remote.MemoryStore) *Enforcer {
	policy := remote.RetryPolicy{Attempts: 1}.
		WithSleep(func(context.Context, time.Duration) error { return nil })
	client := remote.NewClient(store, config.RemoteConfig{}).WithRetryPolicy(policy)
	return NewEnforcer(client)
}

func seedTier(store *remote.MemoryStore, names ...string) {
	base := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	for i, name := range names {
		store.Put("memory:/backups/daily/"+name, []byte(name), base.AddDate(0, 0, i))
	}
}

func TestEnforceCountKeepsNewest(t *testing.T) {
	store := remote.NewMemoryStore()
	seedTier(store,
		"daily-j-20260801020000.tar.gz",
		"daily-j-20260802020000.tar.gz",
		"daily-j-20260803020000.tar.gz",
		"daily-j-20260804020000.tar.gz",
		"daily-j-20260805020000.tar.gz",
	)
	e := newTestEnforcer(store)

	deleted, err := e.Enforce(t.Context(), "daily", "memory:/backups/daily", config.TierRetention{KeepLast: 2})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	want := []string{
		"backups/daily/daily-j-20260804020000.tar.gz",
		"backups/daily/daily-j-20260805020000.tar.gz",
	}
	if got := store.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("remaining %v, want %v", got, want)
	}
}

func TestEnforceCountUnderLimit(t *testing.T) {
	store := remote.NewMemoryStore()
	seedTier(store, "daily-j-20260801020000.tar.gz", "daily-j-20260802020000.tar.gz")
	e := newTestEnforcer(store)

	deleted, err := e.Enforce(t.Context(), "daily", "memory:/backups/daily", config.TierRetention{KeepLast: 7})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if got := store.Entries(); len(got) != 2 {
		t.Errorf("under-limit tier must be untouched, got %v", got)
	}
}

func TestEnforceCountToleratesDeleteFailure(t *testing.T) {
	store := remote.NewMemoryStore()
	seedTier(store,
		"daily-j-20260801020000.tar.gz",
		"daily-j-20260802020000.tar.gz",
		"daily-j-20260803020000.tar.gz",
	)
	store.FailWith("delete-file", errors.New("remote hiccup"))
	e := newTestEnforcer(store)

	// Deletions fail, but Enforce itself does not report an error.
	deleted, err := e.Enforce(t.Context(), "daily", "memory:/backups/daily", config.TierRetention{KeepLast: 1})
	if err != nil {
		t.Fatalf("delete failures must stay best-effort: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if got := store.Entries(); len(got) != 3 {
		t.Errorf("failed deletions must leave entries in place, got %v", got)
	}
}

func TestEnforceCountListFailure(t *testing.T) {
	store := remote.NewMemoryStore()
	store.FailWith("list", errors.New("remote down"))
	e := newTestEnforcer(store)

	_, err := e.Enforce(t.Context(), "daily", "memory:/backups/daily", config.TierRetention{KeepLast: 1})
	if err == nil {
		t.Error("expected error when the tier listing fails")
	}
}

func TestEnforceMaxAge(t *testing.T) {
	store := remote.NewMemoryStore()
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	store.Put("memory:/backups/monthly/monthly-j-202602.tar.gz", []byte("old"), now.AddDate(0, -6, 0))
	store.Put("memory:/backups/monthly/monthly-j-202608.tar.gz", []byte("new"), now.AddDate(0, 0, -1))
	e := newTestEnforcer(store)

	_, err := e.Enforce(t.Context(), "monthly", "memory:/backups/monthly", config.TierRetention{MaxAge: 90 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	want := []string{"backups/monthly/monthly-j-202608.tar.gz"}
	if got := store.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("remaining %v, want %v", got, want)
	}
}

func TestEnforceCombinedPolicies(t *testing.T) {
	store := remote.NewMemoryStore()
	now := time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })
	store.Put("memory:/backups/weekly/weekly-j-2026W30.tar.gz", []byte("a"), now.AddDate(0, 0, -28))
	store.Put("memory:/backups/weekly/weekly-j-2026W32.tar.gz", []byte("b"), now.AddDate(0, 0, -14))
	store.Put("memory:/backups/weekly/weekly-j-2026W34.tar.gz", []byte("c"), now.AddDate(0, 0, -1))
	e := newTestEnforcer(store)

	// Count pass trims to 2, age pass then removes the 14-day-old survivor.
	deleted, err := e.Enforce(t.Context(), "weekly", "memory:/backups/weekly", config.TierRetention{
		KeepLast: 2,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if deleted != 1 {
		t.Errorf("count-based deleted = %d, want 1", deleted)
	}

	want := []string{"backups/weekly/weekly-j-2026W34.tar.gz"}
	if got := store.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("remaining %v, want %v", got, want)
	}
}
