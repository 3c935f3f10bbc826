// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Tool names the model may invoke. Anything else is answered with an
// is_error tool result, never a run failure.
const (
	ToolSQLQuery    = "sql_query"
	ToolOutputText  = "output_text"
	ToolOutputTable = "output_table"
	ToolCreatePlot  = "create_plot"
	ToolFinalize    = "finalize"
)

// validate is the shared validator instance for tool argument structs.
// validator.Validate is safe for concurrent use.
var validate = validator.New()

// SQLQueryInput is the argument payload for the sql_query tool.
//
// Description is a present-progressive status line ("Counting null values
// per column...") surfaced to the user while the query runs.
type SQLQueryInput struct {
	Query       string `json:"query" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// OutputTextInput is the argument payload for the output_text tool.
type OutputTextInput struct {
	Text string `json:"text" validate:"required"`
}

// OutputTableInput is the argument payload for the output_table tool.
// Rows are loosely typed because cell values come straight from model JSON.
type OutputTableInput struct {
	Title   string   `json:"title" validate:"required"`
	Headers []string `json:"headers" validate:"required,min=1,dive,required"`
	Rows    [][]any  `json:"rows" validate:"required"`
}

// CreatePlotInput is the argument payload for the create_plot tool. The spec
// is a Vega-Lite v5 document with inline data.values; the dispatcher
// truncates oversized inline data rather than rejecting the plot.
type CreatePlotInput struct {
	Title        string         `json:"title" validate:"required"`
	VegaLiteSpec map[string]any `json:"vega_lite_spec" validate:"required"`
}

// FinalizeInput is the argument payload for the finalize tool. Both fields
// are optional; a bare finalize simply ends the turn.
type FinalizeInput struct {
	SessionTitle string   `json:"session_title,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// DecodeToolInput unmarshals and validates raw tool arguments into the typed
// struct for the given tool name. Each tool's arguments are a distinct shape;
// modeling them as a tagged union validated here keeps untyped maps from
// leaking past the dispatcher boundary.
func DecodeToolInput(name string, raw json.RawMessage) (any, error) {
	var dst any
	switch name {
	case ToolSQLQuery:
		dst = &SQLQueryInput{}
	case ToolOutputText:
		dst = &OutputTextInput{}
	case ToolOutputTable:
		dst = &OutputTableInput{}
	case ToolCreatePlot:
		dst = &CreatePlotInput{}
	case ToolFinalize:
		dst = &FinalizeInput{}
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("malformed arguments for %s: %w", name, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return dst, nil
}
