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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// EventRenderer displays one agent turn's event stream on a terminal.
//
// Interactive mode uses the Aleutian palette; machine mode prints
// "KEY: value" lines suitable for piping. Deltas stream in place and the
// closing text event is suppressed once its deltas were printed, so the
// answer appears exactly once either way.
//
// # Thread Safety
//
// Safe for concurrent use; a mutex serializes writes.
type EventRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	streaming   bool // a delta sequence is open on the current line
}

// NewEventRenderer builds a renderer. Pass interactive=false for CI logs and
// pipes.
func NewEventRenderer(out io.Writer, interactive bool) *EventRenderer {
	return &EventRenderer{out: out, interactive: interactive}
}

// Render displays a single event.
func (r *EventRenderer) Render(event datatypes.AgentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case datatypes.EventStatus:
		r.closeStream()
		r.line(Styles.Muted.Render("→ "+stringField(event, "message")),
			"STATUS: "+stringField(event, "message"))

	case datatypes.EventTextDelta:
		if r.interactive {
			fmt.Fprint(r.out, stringField(event, "text"))
			r.streaming = true
		}

	case datatypes.EventText:
		if r.interactive && r.streaming {
			// The deltas already painted this message.
			r.closeStream()
			return
		}
		r.line(stringField(event, "text"), "TEXT: "+stringField(event, "text"))

	case datatypes.EventTable:
		r.closeStream()
		r.renderTable(event)

	case datatypes.EventPlot:
		r.closeStream()
		title := stringField(event, "title")
		r.line(Styles.Subtitle.Render("[chart] ")+title, "PLOT: "+title)

	case datatypes.EventQueryResult:
		r.closeStream()
		r.renderQueryResult(event)

	case datatypes.EventJudge:
		// Verdicts are advisory; surface them only in machine mode where
		// a harness can consume them.
		if !r.interactive {
			raw, _ := json.Marshal(event.Data)
			fmt.Fprintf(r.out, "JUDGE: %s\n", raw)
		}

	case datatypes.EventError:
		r.closeStream()
		msg := stringField(event, "message")
		r.line(Styles.Error.Render("error: "+msg), "ERROR: "+msg)

	case datatypes.EventSessionUpdate:
		r.closeStream()
		if title := stringField(event, "title"); title != "" {
			r.line(Styles.Muted.Render("session: "+title), "SESSION: "+title)
		}
		if msg := stringField(event, "message"); msg != "" {
			r.line(Styles.Muted.Render(msg), "DATASET: "+msg)
		}

	case datatypes.EventDone:
		r.closeStream()
		r.line(Styles.Muted.Render(fmt.Sprintf("done (%v iterations)", event.Data["iterations"])),
			fmt.Sprintf("DONE: status=%v iterations=%v", event.Data["status"], event.Data["iterations"]))
	}
}

// closeStream terminates an open delta line. Callers hold the mutex.
func (r *EventRenderer) closeStream() {
	if r.streaming {
		fmt.Fprintln(r.out)
		r.streaming = false
	}
}

// line prints the interactive or machine variant. Callers hold the mutex.
func (r *EventRenderer) line(pretty, machine string) {
	if r.interactive {
		fmt.Fprintln(r.out, pretty)
	} else {
		fmt.Fprintln(r.out, machine)
	}
}

func (r *EventRenderer) renderTable(event datatypes.AgentEvent) {
	headers := stringSlice(event.Data["headers"])
	rows := anyRows(event.Data["rows"])
	title := stringField(event, "title")

	if !r.interactive {
		fmt.Fprintf(r.out, "TABLE: %s (%d rows)\n", title, len(rows))
		fmt.Fprintln(r.out, strings.Join(headers, " | "))
		for _, row := range rows {
			fmt.Fprintln(r.out, strings.Join(cellStrings(row), " | "))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	rendered := make([][]string, len(rows))
	for i, row := range rows {
		cells := cellStrings(row)
		for j, cell := range cells {
			if j < len(widths) && len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
		rendered[i] = cells
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(Styles.Title.Render(title) + "\n")
	}
	for i, h := range headers {
		b.WriteString(Styles.TableHeader.Render(pad(h, widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	for _, cells := range rendered {
		b.WriteString("\n")
		for j, cell := range cells {
			if j < len(widths) {
				b.WriteString(pad(cell, widths[j]))
			} else {
				b.WriteString(cell)
			}
			if j < len(cells)-1 {
				b.WriteString("  ")
			}
		}
	}
	fmt.Fprintln(r.out, Styles.Box.Render(b.String()))
}

func (r *EventRenderer) renderQueryResult(event datatypes.AgentEvent) {
	desc := stringField(event, "description")
	if success, ok := event.Data["success"].(bool); ok && !success {
		r.line(Styles.Warning.Render("✗ "+desc+": "+stringField(event, "error")),
			"QUERY_FAILED: "+stringField(event, "query"))
		return
	}
	summary := fmt.Sprintf("✓ %s (%v rows)", desc, event.Data["row_count"])
	r.line(Styles.Muted.Render(summary), "QUERY_OK: "+stringField(event, "query"))
}

func stringField(event datatypes.AgentEvent, key string) string {
	s, _ := event.Data[key].(string)
	return s
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = fmt.Sprintf("%v", e)
		}
		return out
	}
	return nil
}

func anyRows(v any) [][]any {
	switch t := v.(type) {
	case [][]any:
		return t
	case []any:
		out := make([][]any, 0, len(t))
		for _, e := range t {
			if row, ok := e.([]any); ok {
				out = append(out, row)
			}
		}
		return out
	}
	return nil
}

func cellStrings(row []any) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		if cell == nil {
			out[i] = ""
			continue
		}
		out[i] = fmt.Sprintf("%v", cell)
	}
	return out
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
