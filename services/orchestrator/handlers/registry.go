// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"fmt"
	"sync"
)

// ErrRunInProgress is returned when a session already has an active turn.
var ErrRunInProgress = fmt.Errorf("a turn is already running for this session")

// RunRegistry tracks the in-flight turn per session so a stop request or a
// dropped connection can cancel it. At most one turn runs per session; the
// dataset's commit lock makes concurrent turns pointless and confusing.
//
// # Thread Safety
//
// Safe for concurrent use.
type RunRegistry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRunRegistry builds an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{active: make(map[string]context.CancelFunc)}
}

// Begin registers a new run for the session and returns its context. It
// fails with ErrRunInProgress when a run is already active.
func (r *RunRegistry) Begin(parent context.Context, sessionID string) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[sessionID]; busy {
		return nil, ErrRunInProgress
	}
	ctx, cancel := context.WithCancel(parent)
	r.active[sessionID] = cancel
	return ctx, nil
}

// End releases the session's slot. Safe to call for a session with no run.
func (r *RunRegistry) End(sessionID string) {
	r.mu.Lock()
	cancel, ok := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Cancel stops the session's active run, if any. The run keeps its registry
// slot until its goroutine calls End, so a rapid-fire follow-up message
// cannot start before the canceled run has emitted its done event.
func (r *RunRegistry) Cancel(sessionID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
