// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads rebirthsim configuration.
//
// Order: defaults -> YAML file -> environment variables -> Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/rebirthsim/pkg/logging"
	"github.com/AleutianAI/rebirthsim/services/kinetics"
)

// DefaultPath returns ~/.rebirthsim/rebirthsim.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".rebirthsim", "rebirthsim.yaml"), nil
}

// Load reads path (or the default path when empty), applies environment
// overrides and validates the result. A missing file at the default path is
// not an error; a missing explicit path is.
func Load(path string) (RebirthConfig, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return RebirthConfig{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return RebirthConfig{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return RebirthConfig{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges and enumerations.
func (c RebirthConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if !slices.Contains([]string{"", "debug", "release", "test"}, c.Server.GinMode) {
		return fmt.Errorf("invalid server.gin_mode: %s (valid: debug, release, test)", c.Server.GinMode)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must be non-negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("server.rate_burst must be at least 1 when rate limiting is on")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("server.max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent)
	}
	if !slices.Contains(kinetics.SolverNames(), c.Simulation.Solver) {
		return fmt.Errorf("invalid simulation.solver: %s (valid: %v)", c.Simulation.Solver, kinetics.SolverNames())
	}
	if c.Simulation.Timeout <= 0 {
		return fmt.Errorf("simulation.timeout must be positive, got %v", c.Simulation.Timeout)
	}
	if c.Simulation.MaxTrajectories < 1 {
		return fmt.Errorf("simulation.max_trajectories must be at least 1, got %d", c.Simulation.MaxTrajectories)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must be non-negative, got %d", c.Simulation.Workers)
	}
	if c.Simulation.MaxPopulation <= 0 {
		return fmt.Errorf("simulation.max_population must be positive, got %v", c.Simulation.MaxPopulation)
	}
	if c.Simulation.MaxRate <= 0 {
		return fmt.Errorf("simulation.max_rate must be positive, got %v", c.Simulation.MaxRate)
	}
	if c.Simulation.RecoveryThreshold < 0 {
		return fmt.Errorf("simulation.recovery_threshold must be non-negative, got %d", c.Simulation.RecoveryThreshold)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled, got %v", c.Cache.TTL)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	if !slices.Contains([]string{"", "text", "json"}, c.Logging.Format) {
		return fmt.Errorf("invalid logging.format: %s (valid: text, json, or empty for auto)", c.Logging.Format)
	}
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client.base_url must not be empty")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numeric values are ignored.
func applyEnvOverrides(cfg *RebirthConfig) {
	if v := os.Getenv("REBIRTH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("REBIRTH_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = f
		}
	}
	if v := os.Getenv("REBIRTH_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConcurrent = n
		}
	}

	if v := os.Getenv("REBIRTH_SOLVER"); v != "" {
		cfg.Simulation.Solver = v
	}
	if v := os.Getenv("REBIRTH_SIM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulation.Timeout = d
		}
	}

	if v := os.Getenv("REBIRTH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REBIRTH_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("REBIRTH_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}

	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := os.Getenv("OTEL_METRICS_EXPORTER"); v != "" {
		cfg.Telemetry.MetricExporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	if v := os.Getenv("REBIRTH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REBIRTH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("REBIRTH_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}

	if v := os.Getenv("REBIRTH_API_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
}
