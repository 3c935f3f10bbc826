// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox executes model-submitted SQL against a session dataset
// under a read-only policy.
//
// Every execution runs in three phases: validation (comment stripping,
// single-statement and read-only gates), bounded execution against a pinned
// dataset snapshot, and result classification. The sandbox never returns a
// Go error to the agent loop for a bad query; failures are folded into the
// ExecutionResult so the model can read them as a tool result and retry.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianData/services/policy_engine"
)

var tracer = otel.Tracer("aleutian.sandbox") // Specific tracer name

const (
	// MaxQueryRows bounds how many rows of a result are materialized and
	// fed back into the conversation.
	MaxQueryRows = 50

	// MaxPlotRows bounds how many rows may back a single chart.
	MaxPlotRows = 100

	// MaxPreviewChars bounds the textual preview re-entering the prompt.
	MaxPreviewChars = 2000
)

// Sandbox validates and executes read-only SQL.
//
// # Thread Safety
//
// Safe for concurrent use. The policy engine is immutable after
// construction and per-call state lives on the stack; snapshot isolation
// for concurrent executions comes from dataset.Reader.
type Sandbox struct {
	policy *policy_engine.PolicyEngine
	logger *slog.Logger
}

// New builds a Sandbox backed by the embedded statement rules.
func New(logger *slog.Logger) (*Sandbox, error) {
	engine, err := policy_engine.NewPolicyEngine()
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to load policy rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{policy: engine, logger: logger}, nil
}

// Outcome bundles the execution result with the transformation metadata
// that only exists when a query was promoted to a new dataset version.
type Outcome struct {
	Result    datatypes.ExecutionResult
	Transform *TransformSummary
	Snapshot  *dataset.Snapshot
}

// Execute runs one query through the full validate/execute/classify path.
//
// # Description
//
//	The query runs against the snapshot current at call time. The full
//	cardinality is measured with a COUNT(*) wrapper and at most
//	MaxQueryRows rows are materialized. If classification decides the
//	result is a transformation, the query is committed as the next dataset
//	version and the outcome carries the shape delta.
//
// # Inputs
//
//	ctx   - cancels in-flight SQL.
//	ds    - the session's dataset.
//	query - raw model-submitted SQL.
//
// # Outputs
//
//	Outcome - Result.Success is false for any validation or SQL failure;
//	          the error text is written for model consumption.
func (s *Sandbox) Execute(ctx context.Context, ds *dataset.Dataset, query string) Outcome {
	ctx, span := tracer.Start(ctx, "sandbox.Execute",
		trace.WithAttributes(attribute.Int("query_length", len(query))))
	defer span.End()

	cleaned, err := s.Validate(query)
	if err != nil {
		s.logger.Warn("query rejected", slog.String("reason", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation rejected")
		return failure(err)
	}

	// The read phase releases its connection before any commit: with an
	// in-memory dataset the pool holds a single connection, and Commit
	// needs it.
	before, columns, values, rowCount, err := s.runRead(ctx, ds, cleaned)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return failure(err)
	}

	kind := Classify(cleaned, before, columns, rowCount)
	span.SetAttributes(
		attribute.String("result_kind", string(kind)),
		attribute.Int64("row_count", rowCount))
	result := datatypes.ExecutionResult{
		Success:  true,
		Kind:     kind,
		Columns:  columns,
		Rows:     values,
		RowCount: rowCount,
		Preview:  RenderPreview(columns, values, rowCount),
	}

	if kind != datatypes.ResultTableTransform {
		return Outcome{Result: result}
	}

	after, err := ds.Commit(ctx, cleaned)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return failure(fmt.Errorf("transformation could not be applied: %w", err))
	}
	summary := Summarize(before, after)
	return Outcome{Result: result, Transform: &summary, Snapshot: &after}
}

// runRead executes the bounded query against a pinned snapshot and returns
// the snapshot, the result schema, the materialized rows, and the full
// cardinality. The reader is closed before return.
func (s *Sandbox) runRead(ctx context.Context, ds *dataset.Dataset, cleaned string) (dataset.Snapshot, []string, [][]any, int64, error) {
	reader, err := ds.Reader(ctx)
	if err != nil {
		return dataset.Snapshot{}, nil, nil, 0, err
	}
	defer reader.Close()

	var rowCount int64
	countStmt := fmt.Sprintf("SELECT COUNT(*) FROM (%s) _sub", cleaned)
	if err := reader.QueryRow(ctx, countStmt).Scan(&rowCount); err != nil {
		return dataset.Snapshot{}, nil, nil, 0, fmt.Errorf("query failed: %w", err)
	}

	bounded := fmt.Sprintf("SELECT * FROM (%s) _sub LIMIT %d", cleaned, MaxQueryRows)
	rows, err := reader.Query(ctx, bounded)
	if err != nil {
		return dataset.Snapshot{}, nil, nil, 0, fmt.Errorf("query failed: %w", err)
	}
	columns, values, err := dataset.CollectRows(rows)
	if err != nil {
		return dataset.Snapshot{}, nil, nil, 0, err
	}
	return reader.Snapshot, columns, values, rowCount, nil
}

// failure folds an error into a model-readable result.
func failure(err error) Outcome {
	return Outcome{Result: datatypes.ExecutionResult{
		Success: false,
		Kind:    datatypes.ResultNone,
		Error:   err.Error(),
	}}
}

// RenderPreview produces the pipe-delimited text block fed back to the
// model. Truncation is stated explicitly so the model does not mistake the
// preview for the whole result.
func RenderPreview(columns []string, rows [][]any, rowCount int64) string {
	if len(columns) == 0 {
		return "(no result)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		line := "\n" + strings.Join(cells, " | ")
		if b.Len()+len(line) > MaxPreviewChars {
			b.WriteString("\n... (preview truncated)")
			return b.String()
		}
		b.WriteString(line)
	}
	if remaining := rowCount - int64(len(rows)); remaining > 0 {
		fmt.Fprintf(&b, "\n... (%d more rows)", remaining)
	}
	return b.String()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case float64:
		// Trim float noise the way a human-formatted table would.
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", t), "0"), ".")
	default:
		return fmt.Sprintf("%v", t)
	}
}
