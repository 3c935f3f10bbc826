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
	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// ToolDefs returns the tool surface offered to the model on every turn.
// The schemas must stay in sync with the typed inputs in the datatypes
// package; DecodeToolInput is the enforcement point.
func ToolDefs() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: datatypes.ToolSQLQuery,
			Description: "Run one read-only SQL statement against the dataset, which is " +
				"available as the table `data`. Use this for every lookup, aggregation, " +
				"and transformation. Write SELECT or WITH statements only; other " +
				"statements are rejected. A result that keeps all original columns at a " +
				"similar row count replaces the dataset for the rest of the session.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The SQL statement to execute.",
					},
					"description": map[string]any{
						"type": "string",
						"description": "Short present-tense progress note shown to the user " +
							"while the query runs, e.g. \"Computing average price...\".",
					},
				},
				"required": []string{"query", "description"},
			},
		},
		{
			Name: datatypes.ToolOutputText,
			Description: "Send a markdown message to the user. This is the only way the " +
				"user sees prose; plain assistant text is not delivered.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "Markdown content for the user.",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name: datatypes.ToolOutputTable,
			Description: "Display a formatted table to the user. Use this for small result " +
				"sets the user should see verbatim; for exploration keep results in tool " +
				"space instead.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Table caption.",
					},
					"headers": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Column headers, left to right.",
					},
					"rows": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":  "array",
							"items": map[string]any{},
						},
						"description": "Row values matching the headers.",
					},
				},
				"required": []string{"title", "headers", "rows"},
			},
		},
		{
			Name: datatypes.ToolCreatePlot,
			Description: "Display a chart to the user. Provide a Vega-Lite specification; " +
				"if the spec has no inline data, the current dataset is attached " +
				"automatically (capped to 100 rows).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Chart title.",
					},
					"vega_lite_spec": map[string]any{
						"type":        "object",
						"description": "A complete Vega-Lite v5 specification object.",
					},
				},
				"required": []string{"title", "vega_lite_spec"},
			},
		},
		{
			Name: datatypes.ToolFinalize,
			Description: "End the turn once the question is fully answered. Optionally " +
				"set a short session title and up to three follow-up questions the user " +
				"might ask next.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_title": map[string]any{
						"type":        "string",
						"description": "Concise title for the session list, max ~6 words.",
					},
					"suggestions": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Follow-up questions the user might ask next.",
					},
				},
			},
		},
	}
}
