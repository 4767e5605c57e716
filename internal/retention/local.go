// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package retention enforces Strata's two retention surfaces: the local
// staging directory (count cap, oldest-first) and the remote tier
// directories (count and/or age policies, best-effort).
//
// Artifact names embed a sortable disambiguator, so "oldest" is always
// "lexicographically smallest". Local enforcement is strict before the
// build (a failure is a job-level fault); remote enforcement is
// best-effort, since a stale entry that refuses to die must never fail a
// backup that already shipped.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomtom215/strata/internal/logging"
)

// archiveSuffix limits local enforcement to Strata's own artifacts.
const archiveSuffix = ".tar.gz"

// EnforceLocal caps the archives in the staging dir at max, deleting
// oldest-first by name order. max = 0 deletes all of them. Idempotent: an
// already-compliant directory is a no-op. A missing directory is treated
// as empty.
func EnforceLocal(dir string, max int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list staging dir: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), archiveSuffix) {
			archives = append(archives, entry.Name())
		}
	}
	sort.Strings(archives)

	var doomed []string
	switch {
	case max == 0:
		doomed = archives
	case len(archives) > max:
		doomed = archives[:len(archives)-max]
	}

	for _, name := range doomed {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete local archive %s: %w", name, err)
		}
		logging.Info().Str("archive", name).Int("max_local", max).Msg("deleted local archive")
	}

	return nil
}
