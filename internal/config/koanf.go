// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces Strata's environment variables.
const envPrefix = "STRATA_"

// Load builds the configuration from layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (first of DefaultConfigPaths, or
//     STRATA_CONFIG_PATH)
//  3. Environment variables: STRATA_-prefixed, highest priority
//
// The result is validated before it is returned; an invalid global section
// fails the load, while per-job problems are left to the runner so one bad
// job cannot block the others.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile builds the configuration using an explicit config file path.
// An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// STRATA_STAGING_DIR -> staging_dir
	// STRATA_REMOTE__RCLONE__REMOTE_NAME -> remote.rclone.remote_name
	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, environment override first.
// Returns the first existing path, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf paths. A double
// underscore separates nesting levels so that key names may themselves
// contain underscores:
//
//	STRATA_STAGING_DIR                  -> staging_dir
//	STRATA_LOGGING__LEVEL               -> logging.level
//	STRATA_REMOTE__RETRY__ATTEMPTS      -> remote.retry.attempts
//	STRATA_REMOTE__RCLONE__REMOTE_NAME  -> remote.rclone.remote_name
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
