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

// ResultKind classifies what a sandbox execution produced.
type ResultKind string

const (
	// ResultScalar is a single-row, single-column value.
	ResultScalar ResultKind = "scalar"

	// ResultTable is a read-only tabular view (aggregation, filter preview).
	ResultTable ResultKind = "table"

	// ResultTableTransform marks a result that should replace the canonical
	// dataset snapshot: it preserves every original column at a comparable
	// row count. Nothing is committed until the orchestrator applies it.
	ResultTableTransform ResultKind = "table_transform"

	// ResultFigure is a bound chart object.
	ResultFigure ResultKind = "figure"

	// ResultNone means execution produced no value.
	ResultNone ResultKind = "none"
)

// ExecutionResult is the outcome of one sandboxed query execution. The
// sandbox never raises: failures are captured into Success=false + Error.
//
// Rows holds at most the sandbox's row budget; RowCount is the full result
// cardinality. Preview is the truncated textual rendering that re-enters the
// LLM conversation and is independently byte-capped.
type ExecutionResult struct {
	Success  bool       `json:"success"`
	Kind     ResultKind `json:"kind"`
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]any    `json:"rows,omitempty"`
	RowCount int64      `json:"row_count"`
	Preview  string     `json:"preview,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// IsScalar reports whether the result is a single value.
func (r *ExecutionResult) IsScalar() bool {
	return r.Kind == ResultScalar
}

// ScalarValue returns the single value of a scalar result, or nil.
func (r *ExecutionResult) ScalarValue() any {
	if r.Kind != ResultScalar || len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return nil
	}
	return r.Rows[0][0]
}
