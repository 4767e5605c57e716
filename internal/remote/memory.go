// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// memObject is one stored entry.
type memObject struct {
	data    []byte
	modTime time.Time
}

// MemoryStore is an in-process Store. It backs --dry-run mode, where a run
// exercises the whole pipeline without touching a real remote, and the
// test suites of every package that needs a remote.
//
// Remote paths use the "memory:" prefix; the local side of Copy/Move reads
// and writes the real filesystem so archives flow exactly as they would
// against rclone.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memObject

	// now is injectable so age-based retention is testable.
	now func() time.Time

	// failures maps an operation name to a forced error, simulating
	// remote-side outages. Guarded by mu.
	failures map[string]error
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string]memObject),
		now:      time.Now,
		failures: make(map[string]error),
	}
}

// SetNow overrides the store clock. Entries written afterwards carry the
// new clock's timestamps.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWith forces every subsequent call of the named operation (mkdir,
// copy, move, list, list-remotes, version-check, delete-older-than,
// delete-file, reconnect) to return err. Pass nil to clear.
func (s *MemoryStore) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Entries returns the sorted keys currently stored. Test helper.
func (s *MemoryStore) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Put stores an object directly, bypassing Copy. Test helper for seeding
// tier directories.
func (s *MemoryStore) Put(path string, data []byte, modTime time.Time) {
	_, key := SplitRemotePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: data, modTime: modTime}
}

// Get returns a stored object's bytes. Test helper.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	_, key := SplitRemotePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj.data, ok
}

func (s *MemoryStore) fail(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

// Root returns "memory:/".
func (s *MemoryStore) Root() string { return "memory:/" }

// VersionCheck always succeeds unless a failure is injected.
func (s *MemoryStore) VersionCheck(_ context.Context) error {
	return s.fail("version-check")
}

// ListRemotes reports the single built-in remote.
func (s *MemoryStore) ListRemotes(_ context.Context) ([]string, error) {
	if err := s.fail("list-remotes"); err != nil {
		return nil, err
	}
	return []string{"memory:"}, nil
}

// Mkdir is a no-op: the store is prefix-based like an object store.
func (s *MemoryStore) Mkdir(_ context.Context, _ string) error {
	return s.fail("mkdir")
}

// Copy routes between the filesystem and the object map based on which
// sides carry a remote prefix.
func (s *MemoryStore) Copy(_ context.Context, src, dst string) error {
	if err := s.fail("copy"); err != nil {
		return err
	}
	return s.transfer(src, dst, false)
}

// Move is Copy plus removal of the source.
func (s *MemoryStore) Move(_ context.Context, src, dst string) error {
	if err := s.fail("move"); err != nil {
		return err
	}
	return s.transfer(src, dst, true)
}

func (s *MemoryStore) transfer(src, dst string, removeSrc bool) error {
	switch {
	case !IsRemotePath(src) && IsRemotePath(dst):
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading local source: %w", err)
		}
		_, dstKey := SplitRemotePath(dst)
		s.mu.Lock()
		s.objects[dstKey+"/"+filepath.Base(src)] = memObject{data: data, modTime: s.now()}
		s.mu.Unlock()
		if removeSrc {
			return os.Remove(src)
		}
		return nil

	case IsRemotePath(src) && !IsRemotePath(dst):
		_, srcKey := SplitRemotePath(src)
		s.mu.Lock()
		obj, ok := s.objects[srcKey]
		if removeSrc && ok {
			delete(s.objects, srcKey)
		}
		s.mu.Unlock()
		if !ok {
			return fmt.Errorf("remote object not found: %s", src)
		}
		if err := os.MkdirAll(dst, 0o750); err != nil {
			return err
		}
		name := srcKey[strings.LastIndex(srcKey, "/")+1:]
		return os.WriteFile(filepath.Join(dst, name), obj.data, 0o640)

	case IsRemotePath(src) && IsRemotePath(dst):
		_, srcKey := SplitRemotePath(src)
		_, dstKey := SplitRemotePath(dst)
		s.mu.Lock()
		defer s.mu.Unlock()
		obj, ok := s.objects[srcKey]
		if !ok {
			return fmt.Errorf("remote object not found: %s", src)
		}
		name := srcKey[strings.LastIndex(srcKey, "/")+1:]
		s.objects[dstKey+"/"+name] = memObject{data: obj.data, modTime: s.now()}
		if removeSrc {
			delete(s.objects, srcKey)
		}
		return nil

	default:
		return fmt.Errorf("local-to-local transfer is not a remote operation: %s -> %s", src, dst)
	}
}

// List returns the sorted direct children of dir.
func (s *MemoryStore) List(_ context.Context, dir string) ([]string, error) {
	if err := s.fail("list"); err != nil {
		return nil, err
	}

	_, prefix := SplitRemotePath(dir)
	prefix = strings.TrimRight(prefix, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for key := range s.objects {
		if prefix != "" && !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		rest := key
		if prefix != "" {
			rest = strings.TrimPrefix(key, prefix+"/")
		}
		if rest == "" || strings.Contains(rest, "/") {
			continue // not a direct child
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteOlderThan removes direct children of dir older than age.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, dir string, age time.Duration) error {
	if err := s.fail("delete-older-than"); err != nil {
		return err
	}

	names, err := s.List(ctx, dir)
	if err != nil {
		return err
	}

	_, prefix := SplitRemotePath(dir)
	prefix = strings.TrimRight(prefix, "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-age)
	for _, name := range names {
		key := prefix + "/" + name
		if obj, ok := s.objects[key]; ok && obj.modTime.Before(cutoff) {
			delete(s.objects, key)
		}
	}
	return nil
}

// DeleteFile removes one entry.
func (s *MemoryStore) DeleteFile(_ context.Context, path string) error {
	if err := s.fail("delete-file"); err != nil {
		return err
	}

	_, key := SplitRemotePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("remote object not found: %s", path)
	}
	delete(s.objects, key)
	return nil
}

// Reconnect clears any injected list failure, modeling a successful
// re-authentication.
func (s *MemoryStore) Reconnect(_ context.Context) error {
	if err := s.fail("reconnect"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, "list")
	return nil
}
