// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package remote isolates every external-store concern behind a single
// seam: the Store capability interface and the Client that wraps it with
// bounded retries, settle delays, rate limiting, and a circuit breaker.
//
// Three Store implementations ship with Strata:
//
//	RcloneStore - shells out to rclone (the reference deployment)
//	S3Store     - talks to any S3-compatible endpoint via aws-sdk-go-v2
//	MemoryStore - in-process map store for --dry-run mode and tests
//
// Remote paths follow rclone's "remote:path" convention; a path without a
// remote prefix is a local filesystem path. Copy and Move accept any
// combination and the stores route accordingly.
package remote

import (
	"context"
	"strings"
	"time"
)

// Store is the typed capability surface of a remote object store. Every
// method maps to exactly one remote operation; policy (retries, settle,
// backoff) lives in Client, never in implementations.
type Store interface {
	// Root returns the store root in remote-path form, e.g. "onedrive:/".
	Root() string

	// VersionCheck verifies the underlying binding is usable at all.
	VersionCheck(ctx context.Context) error

	// ListRemotes returns the configured remote identifiers, each in
	// "name:" form.
	ListRemotes(ctx context.Context) ([]string, error)

	// Mkdir creates a remote directory. Creating an existing directory is
	// not an error.
	Mkdir(ctx context.Context, dir string) error

	// Copy copies src into dst. When dst is a directory the entry keeps
	// its base name. Either side may be local or remote.
	Copy(ctx context.Context, src, dst string) error

	// Move is Copy followed by removal of src.
	Move(ctx context.Context, src, dst string) error

	// List returns the entry names directly under dir, sorted
	// lexicographically ascending. Listing a missing directory returns an
	// empty slice.
	List(ctx context.Context, dir string) ([]string, error)

	// DeleteOlderThan removes every entry under dir older than age.
	DeleteOlderThan(ctx context.Context, dir string, age time.Duration) error

	// DeleteFile removes a single remote entry.
	DeleteFile(ctx context.Context, path string) error

	// Reconnect re-authenticates the remote binding after an access
	// failure. Stores with static credentials may treat it as a no-op.
	Reconnect(ctx context.Context) error
}

// IsRemotePath reports whether p carries a "remote:" prefix. Absolute and
// relative filesystem paths never contain a colon in Strata's layout.
func IsRemotePath(p string) bool {
	i := strings.Index(p, ":")
	if i <= 0 {
		return false
	}
	// A colon after a path separator is part of a filename, not a remote.
	return !strings.ContainsAny(p[:i], "/\\")
}

// SplitRemotePath splits "remote:path" into the remote name and the
// path component with leading slashes trimmed.
func SplitRemotePath(p string) (remoteName, key string) {
	i := strings.Index(p, ":")
	if i <= 0 {
		return "", p
	}
	return p[:i], strings.TrimLeft(p[i+1:], "/")
}

// BaseName returns the final element of a remote or local path.
func BaseName(p string) string {
	_, key := SplitRemotePath(p)
	key = strings.TrimRight(key, "/")
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// JoinRemote appends name to a remote directory path.
func JoinRemote(dir, name string) string {
	return strings.TrimRight(dir, "/") + "/" + name
}
