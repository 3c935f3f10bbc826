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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/history"
)

func ListSessions(sessions *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := sessions.List()
		if err != nil {
			slog.Error("failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": summaries})
	}
}

// GetSessionHistory returns the full record: conversation, replayable event
// transcript, and the last suggestions.
func GetSessionHistory(sessions *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		rec, err := sessions.Load(sessionID)
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load session", "sessionID", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

func UpdateSessionTitle(sessions *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		var req titleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		err := sessions.UpdateTitle(sessionID, req.Title)
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			slog.Error("failed to update title", "sessionID", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update title"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "title": req.Title})
	}
}

// DeleteSession cancels any active run, drops the in-memory dataset, and
// removes the persisted record.
func DeleteSession(datasets *dataset.Store, sessions *history.Store, runs *RunRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		slog.Info("deleting session", "sessionID", sessionID)

		runs.Cancel(sessionID)
		if err := datasets.Drop(sessionID); err != nil {
			slog.Warn("failed to drop dataset", "sessionID", sessionID, "error", err)
		}
		if err := sessions.Delete(sessionID); err != nil {
			slog.Error("failed to delete session", "sessionID", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": sessionID})
	}
}
