// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/rebirthsim/pkg/telemetry"
	"github.com/AleutianAI/rebirthsim/services/kinetics"
)

type RebirthConfig struct {
	// Server: HTTP listener and request admission
	Server ServerConfig `yaml:"server"`

	// Simulation: solver choice and per-request limits
	Simulation SimulationConfig `yaml:"simulation"`

	// Cache: in-memory cache of seeded responses
	Cache CacheConfig `yaml:"cache"`

	// Telemetry: OpenTelemetry exporters
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Logging: level, format and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// Client: where the dashboard sends requests
	Client ClientConfig `yaml:"client"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`             // e.g. "" for all interfaces
	Port            int           `yaml:"port"`             // e.g. 5000
	GinMode         string        `yaml:"gin_mode"`         // debug, release or test
	CORSOrigins     []string      `yaml:"cors_origins"`     // e.g. ["*"]
	RateLimit       float64       `yaml:"rate_limit"`       // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rate_burst"`       // e.g. 20
	MaxConcurrent   int           `yaml:"max_concurrent"`   // simulations running at once
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // e.g. 10s
}

type SimulationConfig struct {
	Solver            string        `yaml:"solver"`             // tau_leaping or ssa
	Timeout           time.Duration `yaml:"timeout"`            // per request
	MaxTrajectories   int           `yaml:"max_trajectories"`   // ensemble size cap
	Workers           int           `yaml:"workers"`            // 0 means GOMAXPROCS
	MaxPopulation     float64       `yaml:"max_population"`     // per-species cap on initial counts
	MaxRate           float64       `yaml:"max_rate"`           // cap on every rate constant
	RecoveryThreshold int64         `yaml:"recovery_threshold"` // damaged cells below this count as recovered
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Dir     string        `yaml:"dir,omitempty"` // empty keeps the cache in memory
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json or empty for auto
	Dir    string `yaml:"dir,omitempty"`
}

type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func DefaultConfig() RebirthConfig {
	return RebirthConfig{
		Server: ServerConfig{
			Port:            5000,
			GinMode:         "release",
			CORSOrigins:     []string{"*"},
			RateLimit:       10,
			RateBurst:       20,
			MaxConcurrent:   4,
			ShutdownTimeout: 10 * time.Second,
		},
		Simulation: SimulationConfig{
			Solver:            kinetics.SolverTauLeaping,
			Timeout:           30 * time.Second,
			MaxTrajectories:   32,
			MaxPopulation:     1_000_000,
			MaxRate:           1000,
			RecoveryThreshold: kinetics.DefaultRecoveryThreshold,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 60 * time.Second,
		},
	}
}
