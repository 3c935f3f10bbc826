// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func TestEventRenderer_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRenderer(&buf, false)

	r.Render(datatypes.NewAgentEvent(datatypes.EventStatus).WithMessage("Counting rows..."))
	r.Render(datatypes.NewAgentEvent(datatypes.EventText).WithText("There are 3 rows."))
	r.Render(datatypes.NewAgentEvent(datatypes.EventDone).
		WithField("status", "completed").
		WithField("iterations", 2))

	out := buf.String()
	for _, want := range []string{
		"STATUS: Counting rows...",
		"TEXT: There are 3 rows.",
		"DONE: status=completed iterations=2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestEventRenderer_DeltasSuppressFinalText(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRenderer(&buf, true)

	r.Render(datatypes.NewAgentEvent(datatypes.EventTextDelta).WithText("hello "))
	r.Render(datatypes.NewAgentEvent(datatypes.EventTextDelta).WithText("world"))
	r.Render(datatypes.NewAgentEvent(datatypes.EventText).WithText("hello world"))

	if got := buf.String(); got != "hello world\n" {
		t.Errorf("expected the answer painted exactly once, got %q", got)
	}
}

func TestEventRenderer_TextWithoutDeltas(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRenderer(&buf, true)

	r.Render(datatypes.NewAgentEvent(datatypes.EventText).WithText("plain answer"))
	if !strings.Contains(buf.String(), "plain answer") {
		t.Errorf("expected the text rendered, got %q", buf.String())
	}
}

func TestEventRenderer_MachineTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRenderer(&buf, false)

	r.Render(datatypes.NewAgentEvent(datatypes.EventTable).
		WithField("title", "Revenue by region").
		WithField("headers", []string{"region", "revenue"}).
		WithField("rows", [][]any{{"north", 99.9}, {"south", 87.5}}))

	out := buf.String()
	if !strings.Contains(out, "TABLE: Revenue by region (2 rows)") {
		t.Errorf("missing table header, got:\n%s", out)
	}
	if !strings.Contains(out, "north | 99.9") {
		t.Errorf("missing row output, got:\n%s", out)
	}
}

func TestEventRenderer_QueryFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewEventRenderer(&buf, false)

	r.Render(datatypes.NewAgentEvent(datatypes.EventQueryResult).
		WithField("query", "DROP TABLE data").
		WithField("description", "Dropping...").
		WithField("success", false).
		WithField("error", "statement contains forbidden constructs"))

	if !strings.Contains(buf.String(), "QUERY_FAILED: DROP TABLE data") {
		t.Errorf("expected failure line, got %q", buf.String())
	}
}
