// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package archive builds the compressed tarball for one backup job.
//
// The builder is deliberately forgiving about source paths: a configured
// path that is absent, or that turns inaccessible partway through
// enumeration, is logged and skipped without aborting the archive. Only
// destination-side failures (cannot create or write the archive file) are
// fatal. Entries are recorded with archive-relative names so the tarball
// stays portable across hosts.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/tomtom215/strata/internal/logging"
	"github.com/tomtom215/strata/internal/metrics"
)

// Builder creates archives for one job.
type Builder struct {
	// Job names the job for logs and metrics.
	Job string

	// CompressionLevel is the gzip level, passed through verbatim.
	// gzip.NoCompression (0) is a valid setting, so NewBuilder supplies
	// the default rather than a zero-value remap.
	CompressionLevel int
}

// NewBuilder returns a Builder for job with the default gzip level.
func NewBuilder(job string) *Builder {
	return &Builder{Job: job, CompressionLevel: gzip.DefaultCompression}
}

// writers holds the layered archive writers, closed in reverse order.
type writers struct {
	tw      *tar.Writer
	closers []io.Closer
}

func (w *writers) Close() error {
	var firstErr error
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// setupWriters opens the destination file and stacks gzip and tar writers
// on top of it.
func (b *Builder) setupWriters(destPath string) (*writers, error) {
	outFile, err := os.Create(destPath) //nolint:gosec // G304: destPath is built from job configuration
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	w := &writers{closers: []io.Closer{outFile}}

	gz, err := gzip.NewWriterLevel(outFile, b.CompressionLevel)
	if err != nil {
		outFile.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	w.closers = append(w.closers, gz)

	w.tw = tar.NewWriter(gz)
	w.closers = append(w.closers, w.tw)
	return w, nil
}

// Create produces destPath from the job's path-inclusion map. excludeDir
// (the staging directory receiving the archive) is created if absent and
// excluded from the archive's own contents. The returned size is the
// finished archive's byte count.
func (b *Builder) Create(destPath string, backupPaths map[string]bool, excludeDir string) (int64, error) {
	if err := os.MkdirAll(excludeDir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create staging dir: %w", err)
	}

	w, err := b.setupWriters(destPath)
	if err != nil {
		return 0, err
	}

	cleanExclude := filepath.Clean(excludeDir)

	// Deterministic ordering: the config map is unordered in memory.
	sources := make([]string, 0, len(backupPaths))
	for path, include := range backupPaths {
		if include {
			sources = append(sources, path)
		}
	}
	sort.Strings(sources)

	for _, source := range sources {
		if filepath.Clean(source) == cleanExclude {
			logging.Info().Str("job", b.Job).Str("path", source).Msg("excluding staging dir from its own archive")
			continue
		}
		if _, err := os.Stat(source); err != nil {
			if os.IsNotExist(err) {
				logging.Warn().Str("job", b.Job).Str("path", source).Msg("path does not exist, skipping")
				metrics.ArchivePathsSkipped.WithLabelValues(b.Job, "missing").Inc()
				continue
			}
			logging.Error().Str("job", b.Job).Str("path", source).Err(err).Msg("path not accessible, skipping")
			metrics.ArchivePathsSkipped.WithLabelValues(b.Job, "inaccessible").Inc()
			continue
		}

		if err := b.addTree(w.tw, source, cleanExclude); err != nil {
			// Destination-side failure: the archive itself is broken.
			w.Close() //nolint:errcheck // Already failing, surface the write error
			return 0, err
		}
		logging.Info().Str("job", b.Job).Str("path", source).Msg("added path to archive")
	}

	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("archive missing after write: %w", err)
	}
	return info.Size(), nil
}

// addTree walks one source path into the tar stream. Per-entry access
// failures are logged and skipped; write failures on the tar stream abort.
func (b *Builder) addTree(tw *tar.Writer, source, cleanExclude string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Inaccessible entry mid-walk: skip it, keep the archive going.
			logging.Warn().Str("job", b.Job).Str("path", path).Err(walkErr).Msg("skipping inaccessible entry")
			metrics.ArchivePathsSkipped.WithLabelValues(b.Job, "inaccessible").Inc()
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		clean := filepath.Clean(path)
		if clean == cleanExclude || strings.HasPrefix(clean, cleanExclude+string(filepath.Separator)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn().Str("job", b.Job).Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}

		// Symlinks are recorded as links, never followed.
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				logging.Warn().Str("job", b.Job).Str("path", path).Err(err).Msg("skipping unreadable symlink")
				return nil
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			logging.Warn().Str("job", b.Job).Str("path", path).Err(err).Msg("skipping entry without tar header")
			return nil
		}
		hdr.Name = relName(path)

		if !info.Mode().IsRegular() {
			if err := tw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("failed to write tar header for %s: %w", path, err)
			}
			return nil
		}

		// Open before the header goes out: a file that stats but cannot be
		// read must be skipped entirely, not leave a bodyless entry.
		f, err := os.Open(path) //nolint:gosec // G304: path comes from the walked source tree
		if err != nil {
			logging.Warn().Str("job", b.Job).Str("path", path).Err(err).Msg("skipping unreadable file")
			metrics.ArchivePathsSkipped.WithLabelValues(b.Job, "inaccessible").Inc()
			return nil
		}
		defer f.Close() //nolint:errcheck // Read-only handle

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", path, err)
		}
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to write %s into archive: %w", path, err)
		}
		return nil
	})
}

// relName converts an absolute source path to its archive-relative entry
// name: "/var/www/index.html" -> "var/www/index.html".
func relName(path string) string {
	name := filepath.ToSlash(path)
	return strings.TrimPrefix(name, "/")
}
