// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"sync"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianData/services/orchestrator/observability"
)

// EventSink receives the typed event stream of one agent turn.
//
// Send must not fail: the runner treats delivery as fire-and-forget, and
// the terminal done event in particular must always be deliverable even
// when the turn was canceled. Implementations that bridge to unreliable
// transports buffer or drop internally.
type EventSink interface {
	Send(event datatypes.AgentEvent)
}

// ChannelSink bridges the event stream onto a buffered channel for a
// WebSocket writer or CLI renderer to drain.
//
// Send deliberately does not select on the run context: cancellation stops
// the producer loop, and the already-emitted events plus the final done
// event still reach the consumer. If the consumer abandons the channel and
// the buffer fills, Send drops rather than wedging the runner.
type ChannelSink struct {
	ch        chan datatypes.AgentEvent
	closeOnce sync.Once
}

// NewChannelSink creates a sink with the given buffer. A buffer below 16
// is raised to 16 so one burst of tool results cannot stall the loop.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 16 {
		buffer = 16
	}
	return &ChannelSink{ch: make(chan datatypes.AgentEvent, buffer)}
}

// Send implements EventSink.
//
// The last buffer slot is reserved for the terminal done event: when an
// abandoned consumer lets the buffer fill, intermediate events are dropped
// but the done event always lands. The runner is the only sender, so the
// length check cannot race with another producer.
func (s *ChannelSink) Send(event datatypes.AgentEvent) {
	observability.RecordEvent(string(event.Type))
	if event.Type != datatypes.EventDone && len(s.ch) >= cap(s.ch)-1 {
		return
	}
	select {
	case s.ch <- event:
	default:
		// Consumer gone and buffer full. Dropping beats blocking the run.
	}
}

// Events returns the consumer side of the stream.
func (s *ChannelSink) Events() <-chan datatypes.AgentEvent {
	return s.ch
}

// Close ends the stream. Safe to call more than once.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
