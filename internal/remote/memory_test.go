// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestIsRemotePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"onedrive:/backups/daily", true},
		{"memory:backups", true},
		{"s3:/backups/host/daily", true},
		{"/var/lib/strata/staging", false},
		{"relative/path", false},
		{"dir/with:colon", false},
		{":", false},
	}
	for _, tt := range tests {
		if got := IsRemotePath(tt.path); got != tt.want {
			t.Errorf("IsRemotePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSplitRemotePath(t *testing.T) {
	name, key := SplitRemotePath("onedrive:/backups/host/daily")
	if name != "onedrive" || key != "backups/host/daily" {
		t.Errorf("got %q, %q", name, key)
	}
}

func TestMemoryUploadListDownload(t *testing.T) {
	store := NewMemoryStore()
	dir := t.TempDir()

	src := filepath.Join(dir, "daily-j1-20260823020000.tar.gz")
	if err := os.WriteFile(src, []byte("archive-bytes"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := store.Copy(t.Context(), src, "memory:/backups/host/daily"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	names, err := store.List(t.Context(), "memory:/backups/host/daily")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"daily-j1-20260823020000.tar.gz"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("list = %v, want %v", names, want)
	}

	// Download back into a scratch dir.
	scratch := filepath.Join(dir, "scratch")
	if err := store.Copy(t.Context(), "memory:/backups/host/daily/daily-j1-20260823020000.tar.gz", scratch); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(scratch, "daily-j1-20260823020000.tar.gz"))
	if err != nil {
		t.Fatalf("read downloaded: %v", err)
	}
	if string(data) != "archive-bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestMemoryListOnlyDirectChildren(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Put("memory:/backups/daily/a.tar.gz", nil, now)
	store.Put("memory:/backups/daily/nested/b.tar.gz", nil, now)
	store.Put("memory:/backups/weekly/c.tar.gz", nil, now)

	names, err := store.List(t.Context(), "memory:/backups/daily")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"a.tar.gz"}) {
		t.Errorf("list = %v", names)
	}
}

func TestMemoryDeleteOlderThan(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return now })

	store.Put("memory:/daily/old.tar.gz", nil, now.Add(-48*time.Hour))
	store.Put("memory:/daily/fresh.tar.gz", nil, now.Add(-time.Hour))

	if err := store.DeleteOlderThan(t.Context(), "memory:/daily", 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	names, _ := store.List(t.Context(), "memory:/daily")
	if !reflect.DeepEqual(names, []string{"fresh.tar.gz"}) {
		t.Errorf("expected only fresh entry, got %v", names)
	}
}

func TestMemoryMoveRemovesSource(t *testing.T) {
	store := NewMemoryStore()
	store.Put("memory:/daily/a.tar.gz", []byte("x"), time.Now())

	if err := store.Move(t.Context(), "memory:/daily/a.tar.gz", "memory:/weekly"); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get("memory:/daily/a.tar.gz"); ok {
		t.Error("source should be gone after move")
	}
	if _, ok := store.Get("memory:/weekly/a.tar.gz"); !ok {
		t.Error("destination should exist after move")
	}
}

func TestMemoryInjectedFailure(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("simulated outage")
	store.FailWith("copy", boom)

	err := store.Copy(t.Context(), "/nonexistent", "memory:/daily")
	if !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}

	store.FailWith("copy", nil)
	if err := store.Copy(t.Context(), "/nonexistent", "memory:/daily"); errors.Is(err, boom) {
		t.Error("failure should be cleared")
	}
}
