// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores simulation responses in BadgerDB, keyed by a hash of
// the fully resolved request.
//
// Only seeded requests are cacheable: an unseeded request is expected to
// produce a fresh random run every time.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/rebirthsim/services/kinetics"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

// keyPrefix namespaces entries so the database can be shared.
const keyPrefix = "sim/v1/"

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache is closed")

// Config holds configuration for a response cache.
type Config struct {
	// Dir is the directory for BadgerDB files. Empty keeps the cache in
	// memory.
	Dir string

	// TTL is how long an entry lives. Must be positive.
	TTL time.Duration

	// GCInterval is how often value log GC runs for an on-disk cache.
	// Zero disables it. Ignored in memory.
	GCInterval time.Duration

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *slog.Logger
}

// DefaultConfig returns an in-memory cache with a ten minute TTL.
func DefaultConfig() Config {
	return Config{
		TTL:        10 * time.Minute,
		GCInterval: 5 * time.Minute,
	}
}

// Key identifies a fully resolved simulation request.
type Key struct {
	Parameters        kinetics.Parameters   `json:"parameters"`
	InitialStates     kinetics.InitialState `json:"initial_states"`
	Solver            string                `json:"solver"`
	Seed              uint64                `json:"seed"`
	Trajectories      int                   `json:"trajectories"`
	RecoveryThreshold int64                 `json:"recovery_threshold"`
}

// Hash returns the hex sha256 of the key's canonical JSON.
func (k Key) Hash() string {
	// Struct fields marshal in declaration order, so the encoding is stable.
	b, _ := json.Marshal(k)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Cache is a TTL cache of SimulateResponse values.
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open creates and opens a cache.
//
// # Description
//
// Opens BadgerDB in memory, or at cfg.Dir when set, and starts value log GC
// for on-disk caches.
//
// # Outputs
//
//   - *Cache: The cache. Caller must call Close().
//   - error: Non-nil if the TTL is not positive or BadgerDB fails to open.
func Open(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %v", cfg.TTL)
	}

	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Cache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.Dir != "" && cfg.GCInterval > 0 {
		go c.runGC(cfg.GCInterval)
	} else {
		close(c.doneCh)
	}
	return c, nil
}

// Get returns the cached response for key, or ok=false on a miss.
func (c *Cache) Get(key Key) (resp *datatypes.SimulateResponse, ok bool, err error) {
	if c.db.IsClosed() {
		return nil, false, ErrClosed
	}
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key.Hash()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			resp = &datatypes.SimulateResponse{}
			return json.Unmarshal(val, resp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return resp, true, nil
}

// Put stores resp under key for the configured TTL.
func (c *Cache) Put(key Key, resp *datatypes.SimulateResponse) error {
	if c.db.IsClosed() {
		return ErrClosed
	}
	val, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(keyPrefix+key.Hash()), val).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}

func (c *Cache) runGC(interval time.Duration) {
	defer close(c.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
