// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// AgentEventType identifies one kind of event on the run's ordered stream.
type AgentEventType string

const (
	EventStatus        AgentEventType = "status"
	EventText          AgentEventType = "text"
	EventTextDelta     AgentEventType = "text_delta"
	EventTable         AgentEventType = "table"
	EventPlot          AgentEventType = "plot"
	EventQueryResult   AgentEventType = "query_result"
	EventJudge         AgentEventType = "judge"
	EventError         AgentEventType = "error"
	EventSessionUpdate AgentEventType = "session_update"
	EventDone          AgentEventType = "done"
)

// AgentEvent is a single entry on the append-only event stream a client
// consumes during a run. Events are ordered; "done" is always last and is
// emitted exactly once per run.
//
// Each event carries:
//   - Id: UUID v4 for client-side ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Data: type-specific payload
type AgentEvent struct {
	Id        string         `json:"id"`
	Type      AgentEventType `json:"type"`
	CreatedAt int64          `json:"created_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewAgentEvent creates an event of the given type with identity and
// timestamp populated. Payload fields are attached via the With* builders.
func NewAgentEvent(t AgentEventType) AgentEvent {
	return AgentEvent{
		Id:        uuid.New().String(),
		Type:      t,
		CreatedAt: time.Now().UnixMilli(),
		Data:      make(map[string]any),
	}
}

// WithMessage sets the human-readable message field (status, error).
func (e AgentEvent) WithMessage(msg string) AgentEvent {
	e.Data["message"] = msg
	return e
}

// WithText sets the text payload (text, text_delta).
func (e AgentEvent) WithText(text string) AgentEvent {
	e.Data["text"] = text
	return e
}

// WithField attaches an arbitrary payload field.
func (e AgentEvent) WithField(key string, value any) AgentEvent {
	e.Data[key] = value
	return e
}
