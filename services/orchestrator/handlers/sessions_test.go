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
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/history"
)

const fixtureCSV = "region,units,price\nnorth,10,9.99\nsouth,7,12.50\n"

type testEnv struct {
	router   *gin.Engine
	datasets *dataset.Store
	sessions *history.Store
	runs     *RunRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	datasets, err := dataset.NewStore(dataset.InMemoryConfig())
	if err != nil {
		t.Fatalf("dataset store: %v", err)
	}
	t.Cleanup(func() { _ = datasets.Close() })

	sessions, err := history.NewStore(history.InMemoryConfig())
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	runs := NewRunRegistry()
	router := gin.New()
	router.POST("/v1/sessions", CreateSession(datasets, sessions))
	router.GET("/v1/sessions", ListSessions(sessions))
	router.GET("/v1/sessions/:sessionId/history", GetSessionHistory(sessions))
	router.POST("/v1/sessions/:sessionId/dataset", ReplaceDataset(datasets, sessions))
	router.PATCH("/v1/sessions/:sessionId/title", UpdateSessionTitle(sessions))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(datasets, sessions, runs))

	return &testEnv{router: router, datasets: datasets, sessions: sessions, runs: runs}
}

func uploadCSV(t *testing.T, env *testEnv, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("multipart: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("multipart write: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func createTestSession(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := uploadCSV(t, env, "/v1/sessions", "sales.csv", fixtureCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected a session_id in the response")
	}
	return resp.SessionID
}

func TestCreateSession_LoadsDatasetAndPersists(t *testing.T) {
	env := newTestEnv(t)
	sessionID := createTestSession(t, env)

	ds, err := env.datasets.Get(sessionID)
	if err != nil {
		t.Fatalf("dataset not registered: %v", err)
	}
	if snap := ds.Snapshot(); snap.RowCount != 2 {
		t.Errorf("expected 2 rows, got %d", snap.RowCount)
	}

	record, err := env.sessions.Load(sessionID)
	if err != nil {
		t.Fatalf("session record not persisted: %v", err)
	}
	if record.SourceName != "sales.csv" {
		t.Errorf("expected source name recorded, got %q", record.SourceName)
	}
}

func TestCreateSession_RejectsNonCSV(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadCSV(t, env, "/v1/sessions", "report.pdf", "not a csv")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
}

func TestReplaceDataset_UnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadCSV(t, env, "/v1/sessions/nope/dataset", "sales.csv", fixtureCSV)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReplaceDataset_RestartsVersionHistory(t *testing.T) {
	env := newTestEnv(t)
	sessionID := createTestSession(t, env)

	ds, _ := env.datasets.Get(sessionID)
	if _, err := ds.Commit(context.Background(), "SELECT *, units * price AS revenue FROM data"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rec := uploadCSV(t, env, "/v1/sessions/"+sessionID+"/dataset", "other.csv", fixtureCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	ds, err := env.datasets.Get(sessionID)
	if err != nil {
		t.Fatalf("dataset missing after replace: %v", err)
	}
	if snap := ds.Snapshot(); snap.Version != 1 {
		t.Errorf("expected version history restarted at 1, got %d", snap.Version)
	}
}

func TestUpdateSessionTitle(t *testing.T) {
	env := newTestEnv(t)
	sessionID := createTestSession(t, env)

	body := strings.NewReader(`{"title": "Q3 revenue review"}`)
	req := httptest.NewRequest(http.MethodPatch, "/v1/sessions/"+sessionID+"/title", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	record, err := env.sessions.Load(sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if record.Title != "Q3 revenue review" {
		t.Errorf("expected title updated, got %q", record.Title)
	}
}

func TestDeleteSession_RemovesDatasetAndRecord(t *testing.T) {
	env := newTestEnv(t)
	sessionID := createTestSession(t, env)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+sessionID, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := env.datasets.Get(sessionID); err == nil {
		t.Error("expected the dataset dropped")
	}
	if _, err := env.sessions.Load(sessionID); err == nil {
		t.Error("expected the record deleted")
	}
}

func TestGetSessionHistory_Unknown404(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/nope/history", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
