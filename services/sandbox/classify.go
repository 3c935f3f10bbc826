// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// Classify decides what a successful query result represents.
//
// The order matters: a 1x1 result is always a scalar, even when the query
// text looks like a transformation; only after that does the transform
// heuristic get a vote, and everything else is a plain table view.
func Classify(query string, before dataset.Snapshot, columns []string, rowCount int64) datatypes.ResultKind {
	if len(columns) == 0 {
		return datatypes.ResultNone
	}
	if rowCount == 1 && len(columns) == 1 {
		return datatypes.ResultScalar
	}
	if isTransform(query, before, columns, rowCount) {
		return datatypes.ResultTableTransform
	}
	return datatypes.ResultTable
}

// isTransform applies the dataset-replacement heuristic.
//
// Two independent signals can mark a result as a transformation:
//
//  1. Textual hints in the SQL itself: a "SELECT * ... AS" derived column,
//     REPLACE(), or COALESCE()/CASE WHEN applied over "SELECT *". These are
//     the shapes a model writes when it means "give me the dataset back with
//     a fix applied".
//
//  2. Structural evidence in the result: every original column survives,
//     at least one new column appears, and the row count stays within 50%
//     of the original. Aggregations and narrow projections fail this test
//     because they drop columns or collapse rows.
func isTransform(query string, before dataset.Snapshot, columns []string, rowCount int64) bool {
	normalized := strings.ToUpper(strings.Join(strings.Fields(query), " "))

	selectStar := strings.Contains(normalized, "SELECT *")
	switch {
	case selectStar && strings.Contains(normalized, " AS "):
		return true
	case strings.Contains(normalized, "REPLACE("):
		return true
	case selectStar && strings.Contains(normalized, "COALESCE("):
		return true
	case selectStar && strings.Contains(normalized, "CASE WHEN"):
		return true
	}

	if len(columns) <= len(before.Columns) {
		return false
	}
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[strings.ToLower(c)] = true
	}
	for _, c := range before.Columns {
		if !have[strings.ToLower(c)] {
			return false
		}
	}

	lower := float64(before.RowCount) * 0.5
	upper := float64(before.RowCount) * 1.5
	n := float64(rowCount)
	return n >= lower && n <= upper
}

// TransformSummary captures the shape delta of an applied transformation.
// It feeds both the session_update event payload and the tool result text.
type TransformSummary struct {
	Version        int      `json:"version"`
	BeforeRows     int64    `json:"before_rows"`
	AfterRows      int64    `json:"after_rows"`
	BeforeColumns  int      `json:"before_columns"`
	AfterColumns   int      `json:"after_columns"`
	AddedColumns   []string `json:"added_columns,omitempty"`
	RemovedColumns []string `json:"removed_columns,omitempty"`
}

// Summarize diffs two snapshots of the same dataset.
func Summarize(before, after dataset.Snapshot) TransformSummary {
	beforeSet := make(map[string]bool, len(before.Columns))
	for _, c := range before.Columns {
		beforeSet[c] = true
	}
	afterSet := make(map[string]bool, len(after.Columns))
	for _, c := range after.Columns {
		afterSet[c] = true
	}

	summary := TransformSummary{
		Version:       after.Version,
		BeforeRows:    before.RowCount,
		AfterRows:     after.RowCount,
		BeforeColumns: len(before.Columns),
		AfterColumns:  len(after.Columns),
	}
	for _, c := range after.Columns {
		if !beforeSet[c] {
			summary.AddedColumns = append(summary.AddedColumns, c)
		}
	}
	for _, c := range before.Columns {
		if !afterSet[c] {
			summary.RemovedColumns = append(summary.RemovedColumns, c)
		}
	}
	return summary
}

// Describe renders the summary as one line of tool-result prose.
func (t TransformSummary) Describe() string {
	var b strings.Builder
	b.WriteString("Dataset updated: ")
	b.WriteString(shapeString(t.AfterRows, t.AfterColumns))
	b.WriteString(" (was ")
	b.WriteString(shapeString(t.BeforeRows, t.BeforeColumns))
	b.WriteString(")")
	if len(t.AddedColumns) > 0 {
		b.WriteString("; added columns: ")
		b.WriteString(strings.Join(t.AddedColumns, ", "))
	}
	if len(t.RemovedColumns) > 0 {
		b.WriteString("; removed columns: ")
		b.WriteString(strings.Join(t.RemovedColumns, ", "))
	}
	return b.String()
}

func shapeString(rows int64, cols int) string {
	return strconv.FormatInt(rows, 10) + " rows x " + strconv.Itoa(cols) + " columns"
}
