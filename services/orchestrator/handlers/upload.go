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
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/history"
)

// maxUploadBytes caps a single CSV upload at 100MB.
const maxUploadBytes = 100 * 1024 * 1024

// previewRows is the sample size returned with an upload response.
const previewRows = 10

// CreateSession accepts a multipart CSV upload, loads it as a fresh session
// dataset, and persists the session shell. The response carries the new
// session id, the dataset snapshot, and a small sample for immediate display.
func CreateSession(datasets *dataset.Store, sessions *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := uuid.New().String()
		loadDataset(c, datasets, sessions, sessionID, true)
	}
}

// ReplaceDataset re-uploads a CSV into an existing session. The dataset is
// replaced wholesale and its version history restarts at 1; the conversation
// is kept.
func ReplaceDataset(datasets *dataset.Store, sessions *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if _, err := sessions.Load(sessionID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		loadDataset(c, datasets, sessions, sessionID, false)
	}
}

func loadDataset(c *gin.Context, datasets *dataset.Store, sessions *history.Store, sessionID string, create bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the 100MB upload limit"})
		return
	}
	sourceName := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(sourceName), ".csv") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only CSV uploads are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	defer file.Close()

	ds, err := datasets.LoadCSV(c.Request.Context(), sessionID, sourceName, file)
	if err != nil {
		slog.Error("CSV load failed", "sessionID", sessionID, "file", sourceName, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	snap := ds.Snapshot()

	if create {
		rec := &history.Record{
			SessionID:  sessionID,
			Title:      sourceName,
			SourceName: sourceName,
		}
		if err := sessions.Save(rec); err != nil {
			slog.Error("failed to persist session", "sessionID", sessionID, "error", err)
			_ = datasets.Drop(sessionID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
			return
		}
	}

	columns, rows, err := ds.Preview(c.Request.Context(), previewRows)
	if err != nil {
		slog.Warn("dataset preview failed", "sessionID", sessionID, "error", err)
		columns, rows = snap.Columns, nil
	}

	slog.Info("dataset loaded",
		"sessionID", sessionID,
		"file", sourceName,
		"rows", snap.RowCount,
		"columns", len(snap.Columns))

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"dataset":    snap,
		"preview": gin.H{
			"columns": columns,
			"rows":    rows,
		},
	})
}
