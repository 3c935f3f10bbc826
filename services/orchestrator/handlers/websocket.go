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
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianData/services/agent"
	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/history"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// WSRequest is one client frame on the analyze socket.
type WSRequest struct {
	// Type is "message", "auto_analyze", or "stop".
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Query     string `json:"query,omitempty"`
}

// autoAnalyzeQuestion is the canned opener behind the one-click analysis
// button.
const autoAnalyzeQuestion = "Give me an overview of this dataset: its shape, " +
	"what each column seems to represent, notable distributions or outliers, " +
	"and anything that looks like a data quality problem."

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

// wsWriter serializes writes. Run events arrive from a pump goroutine while
// the read loop may answer protocol errors; gorilla allows one writer at a
// time.
type wsWriter struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsWriter) sendJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ws.WriteJSON(v); err != nil {
		slog.Warn("failed to write WebSocket JSON", "error", err)
		return err
	}
	return nil
}

func (w *wsWriter) sendError(sessionID, msg string) {
	_ = w.sendJSON(datatypes.NewAgentEvent(datatypes.EventError).
		WithMessage(msg).
		WithField("session_id", sessionID))
}

// HandleAnalyzeWebSocket is the conversational analysis channel. Each
// "message" frame runs one agent turn; every event the turn produces is
// forwarded as its own JSON frame, ending with "done". "stop" cancels the
// session's active turn. Disconnecting cancels every turn this connection
// started.
func HandleAnalyzeWebSocket(datasets *dataset.Store, sessions *history.Store,
	runner *agent.Runner, runs *RunRegistry) gin.HandlerFunc {

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		writer := &wsWriter{ws: ws}
		slog.Info("websocket client connected")

		// Conn-scoped parent: closing the socket cancels in-flight turns.
		connCtx, connCancel := context.WithCancel(context.Background())
		defer connCancel()

		var wg sync.WaitGroup
		defer wg.Wait()

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("websocket client disconnected", "error", err.Error())
				return
			}

			switch req.Type {
			case "stop":
				if !runs.Cancel(req.SessionID) {
					writer.sendError(req.SessionID, "no active turn to stop")
				}

			case "message", "auto_analyze":
				question := req.Query
				if req.Type == "auto_analyze" {
					question = autoAnalyzeQuestion
				}
				if question == "" {
					writer.sendError(req.SessionID, "query is required")
					continue
				}
				startTurn(connCtx, &wg, writer, datasets, sessions, runner, runs, req.SessionID, question)

			default:
				writer.sendError(req.SessionID, "unknown request type: "+req.Type)
			}
		}
	}
}

// startTurn validates the session, begins a registry-tracked run, and pumps
// its events to the client in the background so the read loop stays free for
// stop frames.
func startTurn(parent context.Context, wg *sync.WaitGroup, writer *wsWriter,
	datasets *dataset.Store, sessions *history.Store, runner *agent.Runner,
	runs *RunRegistry, sessionID, question string) {

	ds, err := datasets.Get(sessionID)
	if err != nil {
		writer.sendError(sessionID, "no dataset loaded for this session; upload a CSV first")
		return
	}
	rec, err := sessions.Load(sessionID)
	if err != nil {
		writer.sendError(sessionID, "session not found")
		return
	}
	ctx, err := runs.Begin(parent, sessionID)
	if err != nil {
		writer.sendError(sessionID, err.Error())
		return
	}

	sink := agent.NewChannelSink(256)
	summaryCh := make(chan agent.TurnSummary, 1)
	wg.Add(1)

	go func() {
		summaryCh <- runner.Run(ctx, agent.TurnRequest{
			SessionID: sessionID,
			Question:  question,
			Dataset:   ds,
			History:   rec.Conversation,
		}, sink)
		sink.Close()
	}()

	go func() {
		defer wg.Done()
		defer runs.End(sessionID)

		var transcript []datatypes.AgentEvent
		for event := range sink.Events() {
			if replayable(event.Type) {
				transcript = append(transcript, event)
			}
			// Send failures keep draining so the runner never sees
			// backpressure from a dead client.
			_ = writer.sendJSON(event.WithField("session_id", sessionID))
		}
		persistTurn(sessions, rec, question, <-summaryCh, transcript)
	}()
}

// replayable filters the transcript persisted for reconnecting clients.
// Deltas and progress lines are transient by design.
func replayable(t datatypes.AgentEventType) bool {
	switch t {
	case datatypes.EventTextDelta, datatypes.EventStatus, datatypes.EventDone:
		return false
	}
	return true
}

// persistTurn folds a finished turn into the session record.
func persistTurn(sessions *history.Store, rec *history.Record, question string,
	summary agent.TurnSummary, transcript []datatypes.AgentEvent) {

	rec.Conversation = summary.Messages
	rec.Events = append(rec.Events,
		datatypes.NewAgentEvent(datatypes.EventStatus).
			WithField("role", "user").
			WithMessage(question))
	rec.Events = append(rec.Events, transcript...)
	if summary.SessionTitle != "" {
		rec.Title = summary.SessionTitle
	}
	if len(summary.Suggestions) > 0 {
		rec.Suggestions = summary.Suggestions
	}
	if err := sessions.Save(rec); err != nil {
		slog.Error("failed to persist turn", "sessionID", rec.SessionID, "error", err)
	}
}
