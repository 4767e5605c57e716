// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
)

// commandRunner executes one external command and returns its stdout.
// Injectable so tests can exercise RcloneStore without an rclone binary.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout string, err error)

// RcloneStore implements Store by shelling out to rclone. Every capability
// is exactly one rclone invocation built from an argument vector - no
// shell string interpolation anywhere.
type RcloneStore struct {
	binary     string
	configPath string
	remoteName string
	run        commandRunner
}

// NewRcloneStore builds a store from the rclone section of the remote
// configuration.
func NewRcloneStore(cfg config.RcloneConfig) *RcloneStore {
	return &RcloneStore{
		binary:     cfg.Binary,
		configPath: cfg.ConfigPath,
		remoteName: cfg.RemoteName,
		run:        runCommand,
	}
}

// withRunner swaps the command runner. Test hook.
func (s *RcloneStore) withRunner(run commandRunner) *RcloneStore {
	clone := *s
	clone.run = run
	return &clone
}

// Root returns "remote:/".
func (s *RcloneStore) Root() string {
	return s.remoteName + ":/"
}

// args prepends the global rclone flags to an operation argument vector.
func (s *RcloneStore) args(op []string) []string {
	out := make([]string, 0, len(op)+2)
	if s.configPath != "" {
		out = append(out, "--config", s.configPath)
	}
	return append(out, op...)
}

// VersionCheck runs `rclone version`.
func (s *RcloneStore) VersionCheck(ctx context.Context) error {
	out, err := s.run(ctx, s.binary, s.args([]string{"version"})...)
	if err != nil {
		return err
	}
	if line, _, _ := strings.Cut(out, "\n"); line != "" {
		logging.Debug().Str("version", strings.TrimSpace(line)).Msg("rclone version check")
	}
	return nil
}

// ListRemotes runs `rclone listremotes`.
func (s *RcloneStore) ListRemotes(ctx context.Context) ([]string, error) {
	out, err := s.run(ctx, s.binary, s.args([]string{"listremotes"})...)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Mkdir runs `rclone mkdir dir`.
func (s *RcloneStore) Mkdir(ctx context.Context, dir string) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"mkdir", dir})...)
	return err
}

// Copy runs `rclone copy src dst`.
func (s *RcloneStore) Copy(ctx context.Context, src, dst string) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"copy", src, dst})...)
	return err
}

// Move runs `rclone move src dst`.
func (s *RcloneStore) Move(ctx context.Context, src, dst string) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"move", src, dst})...)
	return err
}

// List runs `rclone lsf dir`. rclone reports a missing directory as an
// error; callers see that as an empty tier only after Mkdir has run, so
// the error is propagated as-is.
func (s *RcloneStore) List(ctx context.Context, dir string) ([]string, error) {
	out, err := s.run(ctx, s.binary, s.args([]string{"lsf", dir})...)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// DeleteOlderThan runs `rclone delete --min-age AGE dir`.
func (s *RcloneStore) DeleteOlderThan(ctx context.Context, dir string, age time.Duration) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"delete", "--min-age", formatAge(age), dir})...)
	return err
}

// DeleteFile runs `rclone deletefile path`.
func (s *RcloneStore) DeleteFile(ctx context.Context, path string) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"deletefile", path})...)
	return err
}

// Reconnect runs `rclone config reconnect remote: --auto-confirm` to
// refresh tokens non-interactively.
func (s *RcloneStore) Reconnect(ctx context.Context) error {
	_, err := s.run(ctx, s.binary, s.args([]string{"config", "reconnect", s.remoteName + ":", "--auto-confirm"})...)
	return err
}

// runCommand is the production commandRunner: captured stdout/stderr,
// exit status classified into the returned error.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug().Str("binary", name).Strs("args", args).Msg("running remote command")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return stdout.String(), fmt.Errorf("%s %s: %w: %s", name, args[len(args)-1], err, msg)
		}
		return stdout.String(), fmt.Errorf("%s: %w", name, err)
	}

	if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
		logging.Debug().Str("binary", name).Str("stderr", errOut).Msg("remote command warnings")
	}

	return stdout.String(), nil
}

// formatAge renders a duration in rclone's --min-age syntax. Whole days
// collapse to the "Nd" form rclone documents for retention flags.
func formatAge(age time.Duration) string {
	if age >= 24*time.Hour && age%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", int(age/(24*time.Hour)))
	}
	return age.String()
}

// splitLines splits command output into trimmed, non-empty lines.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
