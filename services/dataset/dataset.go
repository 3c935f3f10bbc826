// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset manages the per-session tabular data that the analysis
// agent queries and transforms.
//
// Each session owns one libsql database holding a sequence of immutable
// version tables (data_v1, data_v2, ...). Readers bind a TEMP VIEW named
// "data" to the version that was current when the reader was opened, so a
// batch of parallel queries always sees one consistent snapshot even while
// a commit is promoting the next version. Commits are serialized by a write
// lock and never rewrite an existing version table.
//
// License: libsql is MIT licensed (github.com/tursodatabase/go-libsql).
package dataset

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/tursodatabase/go-libsql"
)

// ErrSessionNotFound is returned when a session has no dataset loaded.
var ErrSessionNotFound = errors.New("dataset: session not found")

// ErrNoData is returned when an operation requires a loaded dataset and the
// session database exists but holds no version tables yet.
var ErrNoData = errors.New("dataset: no data loaded")

// Config holds configuration for a dataset Store.
type Config struct {
	// Dir is the directory for per-session database files.
	// Required for persistent stores. Ignored when InMemory is true.
	Dir string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// Logger is the logger for store operations. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store owns the datasets of all live sessions.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The store lock only guards the
// session map; each Dataset carries its own lock for version promotion.
type Store struct {
	cfg      Config
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*Dataset
}

// NewStore creates a Store. For persistent stores the directory is created
// if it does not exist.
func NewStore(cfg Config) (*Store, error) {
	if !cfg.InMemory {
		if cfg.Dir == "" {
			return nil, errors.New("dataset: Dir is required unless InMemory is set")
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("dataset: failed to create data directory: %w", err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Dataset),
	}, nil
}

// Get returns the dataset for a session, or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return ds, nil
}

// Drop closes and forgets a session's dataset. Dropping an unknown session
// is a no-op.
func (s *Store) Drop(sessionID string) error {
	s.mu.Lock()
	ds, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return ds.Close()
}

// Close releases every session database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, ds := range s.sessions {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.sessions, id)
	}
	return firstErr
}

// open creates the session database and registers the Dataset. Called by the
// ingest paths in csv.go; callers must not hold the store lock.
func (s *Store) open(sessionID, sourceName string) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.sessions[sessionID]; ok {
		// A re-upload replaces the previous dataset wholesale.
		_ = ds.Close()
		delete(s.sessions, sessionID)
	}

	dsn := ":memory:"
	if !s.cfg.InMemory {
		dbPath := filepath.Join(s.cfg.Dir, sessionID+".db")
		dsn = fmt.Sprintf("file:%s", dbPath)
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open session database: %w", err)
	}
	if s.cfg.InMemory {
		// An in-memory libsql database is private to its connection, so the
		// pool must never hand out a second one.
		db.SetMaxOpenConns(1)
	}

	ds := &Dataset{
		sessionID:  sessionID,
		sourceName: sourceName,
		db:         db,
		logger:     s.logger.With(slog.String("session_id", sessionID)),
	}
	s.sessions[sessionID] = ds
	return ds, nil
}

// quoteIdent wraps an identifier in double quotes for safe interpolation
// into DDL built at ingest and commit time.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// versionTable returns the physical table name for a version number.
func versionTable(version int) string {
	return fmt.Sprintf("data_v%d", version)
}
