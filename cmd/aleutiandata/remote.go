// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianData/pkg/ux"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// remoteConn serializes frames onto one websocket. The stop handler writes
// from a signal goroutine, so writes need the mutex.
type remoteConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *remoteConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// runRemoteChat ingests the CSV into a running service over REST, then
// drives the conversation over its websocket, rendering the event stream
// exactly as the in-process chat does.
func runRemoteChat(ctx context.Context) error {
	base := strings.TrimRight(flagServer, "/")

	sessionID, snapshot, err := createRemoteSession(ctx, base, flagFile)
	if err != nil {
		return err
	}

	wsURL, err := websocketURL(base)
	if err != nil {
		return err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("could not open the analysis websocket: %w", err)
	}
	defer ws.Close()
	conn := &remoteConn{ws: ws}

	interactive := ux.IsInteractive() && !flagMachine
	renderer := ux.NewEventRenderer(os.Stdout, interactive)
	if interactive {
		fmt.Println(ux.Styles.Title.Render("⚓ Aleutian Data"))
		fmt.Println(ux.Styles.Muted.Render(fmt.Sprintf("%s @ %s", snapshot, base)))
		fmt.Println(ux.Styles.Muted.Render("Ask a question, or /quit to exit. Ctrl-C stops a running turn."))
	}

	stdin := bufio.NewScanner(os.Stdin)
	stdin.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print(ux.Styles.Highlight.Render("> "))
		}
		if !stdin.Scan() {
			return stdin.Err()
		}
		question := strings.TrimSpace(stdin.Text())
		switch question {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		if err := runRemoteTurn(ctx, conn, renderer, sessionID, question); err != nil {
			return err
		}
	}
}

// runRemoteTurn sends one message frame and renders events until the turn's
// terminal done event. Ctrl-C sends a stop frame; the server still delivers
// the done event for the canceled turn.
func runRemoteTurn(ctx context.Context, conn *remoteConn, renderer *ux.EventRenderer, sessionID, question string) error {
	if err := conn.writeJSON(map[string]any{
		"type":       "message",
		"session_id": sessionID,
		"query":      question,
	}); err != nil {
		return fmt.Errorf("could not send the question: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	go func() {
		<-sigCtx.Done()
		if ctx.Err() == nil && sigCtx.Err() != nil {
			_ = conn.writeJSON(map[string]any{"type": "stop", "session_id": sessionID})
		}
	}()

	first := true
	for {
		var event datatypes.AgentEvent
		if err := conn.ws.ReadJSON(&event); err != nil {
			return fmt.Errorf("the analysis stream closed: %w", err)
		}
		renderer.Render(event)
		if event.Type == datatypes.EventDone {
			return nil
		}
		// A lone error frame before any turn activity means the turn never
		// started (busy session, missing dataset) and no done will follow.
		if first && event.Type == datatypes.EventError {
			return nil
		}
		first = false
	}
}

// createRemoteSession uploads the CSV and returns the new session id plus a
// short dataset description for the banner.
func createRemoteSession(ctx context.Context, base, file string) (string, string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", "", fmt.Errorf("could not open %s: %w", file, err)
	}
	defer f.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", "", err
	}
	if err := form.Close(); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/sessions", &body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("could not reach %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("upload rejected (%s): %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var created struct {
		SessionID string `json:"session_id"`
		Dataset   struct {
			SourceName string   `json:"source_name"`
			RowCount   int64    `json:"row_count"`
			Columns    []string `json:"columns"`
		} `json:"dataset"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", "", fmt.Errorf("unexpected upload response: %w", err)
	}
	desc := fmt.Sprintf("%s: %d rows, %d columns",
		created.Dataset.SourceName, created.Dataset.RowCount, len(created.Dataset.Columns))
	return created.SessionID, desc, nil
}

// websocketURL maps the REST base URL onto the ws endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid --server value: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported --server scheme %q", u.Scheme)
	}
	u.Path = "/v1/analyze/ws"
	return u.String(), nil
}
