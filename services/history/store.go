// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// ErrNotFound is returned when a session id has no stored record.
var ErrNotFound = errors.New("history: session not found")

const sessionPrefix = "session/"

// Record is the full persisted state of one analysis session.
type Record struct {
	SessionID  string `json:"session_id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`

	// Conversation is the provider-format message history used to rebuild
	// the model context when the session resumes.
	Conversation []datatypes.Message `json:"conversation"`

	// Events is the user-visible transcript replayed into a reconnecting
	// client.
	Events []datatypes.AgentEvent `json:"events"`

	// Suggestions are the follow-up questions from the last finalize call.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Summary is the sidebar listing shape: metadata without the transcript.
type Summary struct {
	SessionID  string `json:"session_id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Store persists session records.
//
// # Thread Safety
//
// Safe for concurrent use. Badger provides transactional isolation; the
// store's own mutex only serializes read-modify-write helpers like
// UpdateTitle.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	mu     sync.Mutex

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewStore opens the session database.
func NewStore(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// runGC triggers value log garbage collection until Close.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger GC failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops GC and releases the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

// Save writes a record, stamping UpdatedAt (and CreatedAt on first save).
func (s *Store) Save(rec *Record) error {
	if rec.SessionID == "" {
		return errors.New("history: record has no session id")
	}
	now := time.Now().UnixMilli()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: failed to encode record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(rec.SessionID), payload)
	})
	if err != nil {
		return fmt.Errorf("history: failed to save session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Load reads one session record.
func (s *Store) Load(sessionID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("history: failed to load session %s: %w", sessionID, err)
	}
	return &rec, nil
}

// UpdateTitle renames a session, preserving the rest of the record.
func (s *Store) UpdateTitle(sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Load(sessionID)
	if err != nil {
		return err
	}
	rec.Title = title
	return s.Save(rec)
}

// List returns summaries of all sessions, most recently updated first.
func (s *Store) List() ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, Summary{
					SessionID:  rec.SessionID,
					Title:      rec.Title,
					SourceName: rec.SourceName,
					CreatedAt:  rec.CreatedAt,
					UpdatedAt:  rec.UpdatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to list sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *Store) Delete(sessionID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(sessionID))
	})
	if err != nil {
		return fmt.Errorf("history: failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
