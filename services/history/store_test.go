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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	rec := &Record{
		SessionID:  "sess-1",
		Title:      "Q3 revenue",
		SourceName: "sales.csv",
		Conversation: []datatypes.Message{
			datatypes.TextMessage(datatypes.RoleUser, "What is total revenue?"),
		},
		Events: []datatypes.AgentEvent{
			datatypes.NewAgentEvent(datatypes.EventText).WithText("Total revenue is 1234.56."),
		},
		Suggestions: []string{"Break it down by region"},
	}
	require.NoError(t, store.Save(rec))
	assert.NotZero(t, rec.CreatedAt, "Save must stamp CreatedAt")
	assert.NotZero(t, rec.UpdatedAt, "Save must stamp UpdatedAt")

	loaded, err := store.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Q3 revenue", loaded.Title)
	assert.Equal(t, "sales.csv", loaded.SourceName)
	assert.Len(t, loaded.Conversation, 1)
	assert.Len(t, loaded.Events, 1)
	assert.Equal(t, []string{"Break it down by region"}, loaded.Suggestions)
}

func TestLoadMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTitle(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{SessionID: "sess-1", Title: "Untitled"}))

	require.NoError(t, store.UpdateTitle("sess-1", "Churn analysis"))
	loaded, err := store.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Churn analysis", loaded.Title)

	assert.ErrorIs(t, store.UpdateTitle("ghost", "x"), ErrNotFound)
}

func TestListOrdersByRecency(t *testing.T) {
	store := newTestStore(t)

	a := &Record{SessionID: "a", Title: "first"}
	b := &Record{SessionID: "b", Title: "second"}
	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))
	// Touch "a" so it becomes most recent. Timestamps have millisecond
	// resolution, so force a tick first.
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.Save(a))

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a", summaries[0].SessionID, "most recently saved session first")
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Record{SessionID: "sess-1"}))

	require.NoError(t, store.Delete("sess-1"))
	_, err := store.Load("sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete("sess-1"), "deleting a missing session is a no-op")
}
