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
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/evaluator"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianData/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianData/services/sandbox"
)

// toolOutcome is one tool's contribution to the turn. The block feeds back to
// the model; apply publishes the user-visible side effects. Tools execute
// concurrently but apply runs sequentially in invocation order after the
// rejoin, so the event stream is deterministic regardless of which tool
// finished first.
type toolOutcome struct {
	block datatypes.ContentBlock
	apply func(st *TurnState, sink EventSink)
}

// dispatch runs one assistant message's tool invocations in parallel and
// returns the tool_result blocks in invocation order.
//
// A status event is emitted per invocation before any tool starts, in order,
// so the client sees what is about to run even when execution interleaves.
func (r *Runner) dispatch(ctx context.Context, ds *dataset.Dataset, invs []datatypes.ToolInvocation, st *TurnState, sink EventSink) []datatypes.ContentBlock {
	for _, inv := range invs {
		sink.Send(datatypes.NewAgentEvent(datatypes.EventStatus).
			WithMessage(statusLine(inv)).
			WithField("tool", inv.Name))
	}

	outcomes := make([]toolOutcome, len(invs))
	g, gctx := errgroup.WithContext(ctx)
	for i, inv := range invs {
		g.Go(func() error {
			outcomes[i] = r.runTool(gctx, ds, inv)
			return nil
		})
	}
	// Tools report failure through is_error tool results, never through
	// group errors.
	_ = g.Wait()

	blocks := make([]datatypes.ContentBlock, len(invs))
	for i, oc := range outcomes {
		if oc.apply != nil {
			oc.apply(st, sink)
		}
		blocks[i] = oc.block
	}
	return blocks
}

// statusLine picks the progress message shown while a tool runs. sql_query
// carries a model-authored description; everything else gets a stock line.
func statusLine(inv datatypes.ToolInvocation) string {
	if inv.Name == datatypes.ToolSQLQuery {
		if dec, err := datatypes.DecodeToolInput(inv.Name, inv.Input); err == nil {
			return dec.(*datatypes.SQLQueryInput).Description
		}
	}
	switch inv.Name {
	case datatypes.ToolOutputText:
		return "Writing response..."
	case datatypes.ToolOutputTable:
		return "Preparing table..."
	case datatypes.ToolCreatePlot:
		return "Creating chart..."
	case datatypes.ToolFinalize:
		return "Wrapping up..."
	default:
		return fmt.Sprintf("Running %s...", inv.Name)
	}
}

func (r *Runner) runTool(ctx context.Context, ds *dataset.Dataset, inv datatypes.ToolInvocation) toolOutcome {
	input, err := datatypes.DecodeToolInput(inv.Name, inv.Input)
	if err != nil {
		r.logger.Warn("tool input rejected",
			slog.String("tool", inv.Name),
			slog.String("error", err.Error()))
		observability.RecordTool(inv.Name, false)
		return toolOutcome{block: inv.ToolResultBlock(err.Error(), true)}
	}

	var oc toolOutcome
	switch in := input.(type) {
	case *datatypes.SQLQueryInput:
		oc = r.handleQuery(ctx, ds, inv, in)
	case *datatypes.OutputTextInput:
		oc = r.handleText(inv, in)
	case *datatypes.OutputTableInput:
		oc = r.handleTable(inv, in)
	case *datatypes.CreatePlotInput:
		oc = r.handlePlot(ctx, ds, inv, in)
	case *datatypes.FinalizeInput:
		oc = r.handleFinalize(inv, in)
	}
	observability.RecordTool(inv.Name, !oc.block.IsError)
	return oc
}

func (r *Runner) handleQuery(ctx context.Context, ds *dataset.Dataset, inv datatypes.ToolInvocation, in *datatypes.SQLQueryInput) toolOutcome {
	outcome := r.sandbox.Execute(ctx, ds, in.Query)
	result := outcome.Result

	var content string
	switch {
	case !result.Success:
		content = "Query failed: " + result.Error
	case outcome.Transform != nil:
		content = outcome.Transform.Describe() + "\n\n" + result.Preview
	default:
		content = result.Preview
	}

	// A structurally empty or degenerate result is reported back so the
	// model can adjust the query instead of narrating a hollow answer.
	if result.Success {
		if check := evaluator.CheckResultValidity(result); !check.Passed {
			report := (&datatypes.Report{}).Add(check)
			content += report.Feedback()
		}
	}

	apply := func(st *TurnState, sink EventSink) {
		st.queries = append(st.queries, in.Query)
		st.results = append(st.results, result)

		event := datatypes.NewAgentEvent(datatypes.EventQueryResult).
			WithField("query", in.Query).
			WithField("description", in.Description).
			WithField("success", result.Success).
			WithField("kind", string(result.Kind))
		if result.Success {
			event = event.
				WithField("columns", result.Columns).
				WithField("rows", result.Rows).
				WithField("row_count", result.RowCount)
		} else {
			event = event.WithField("error", result.Error)
		}
		sink.Send(event)

		if outcome.Snapshot != nil {
			st.dataUpdated = true
			observability.RecordCommit()
			sink.Send(datatypes.NewAgentEvent(datatypes.EventSessionUpdate).
				WithMessage(outcome.Transform.Describe()).
				WithField("dataset", *outcome.Snapshot))
		}
	}
	return toolOutcome{block: inv.ToolResultBlock(content, !result.Success), apply: apply}
}

func (r *Runner) handleText(inv datatypes.ToolInvocation, in *datatypes.OutputTextInput) toolOutcome {
	apply := func(st *TurnState, sink EventSink) {
		st.messagesSent++
		st.outputs = append(st.outputs, in.Text)
		StreamText(sink, in.Text)
	}
	return toolOutcome{block: inv.ToolResultBlock("Message delivered to the user.", false), apply: apply}
}

func (r *Runner) handleTable(inv datatypes.ToolInvocation, in *datatypes.OutputTableInput) toolOutcome {
	// Oversized tables are cut to the row budget, not rejected.
	if len(in.Rows) > sandbox.MaxQueryRows {
		in.Rows = in.Rows[:sandbox.MaxQueryRows]
	}
	for _, row := range in.Rows {
		if len(row) != len(in.Headers) {
			msg := fmt.Sprintf("table rows must have %d cells to match the headers", len(in.Headers))
			return toolOutcome{block: inv.ToolResultBlock(msg, true)}
		}
	}
	apply := func(st *TurnState, sink EventSink) {
		st.messagesSent++
		st.outputs = append(st.outputs, sandbox.RenderPreview(in.Headers, in.Rows, int64(len(in.Rows))))
		sink.Send(datatypes.NewAgentEvent(datatypes.EventTable).
			WithField("title", in.Title).
			WithField("headers", in.Headers).
			WithField("rows", in.Rows))
	}
	return toolOutcome{block: inv.ToolResultBlock("Table displayed to the user.", false), apply: apply}
}

func (r *Runner) handlePlot(ctx context.Context, ds *dataset.Dataset, inv datatypes.ToolInvocation, in *datatypes.CreatePlotInput) toolOutcome {
	spec := in.VegaLiteSpec
	if data, ok := spec["data"].(map[string]any); ok {
		// Models sometimes inline every row; cut the payload to the plot
		// budget rather than rejecting the chart.
		if values, ok := data["values"].([]any); ok && len(values) > sandbox.MaxPlotRows {
			data["values"] = values[:sandbox.MaxPlotRows]
		}
	} else if _, present := spec["data"]; !present {
		// The model usually references dataset columns without inlining
		// values; attach the current version, bounded.
		columns, rows, err := ds.Preview(ctx, sandbox.MaxPlotRows)
		if err != nil {
			return toolOutcome{block: inv.ToolResultBlock("could not attach dataset to plot: "+err.Error(), true)}
		}
		values := make([]map[string]any, len(rows))
		for i, row := range rows {
			record := make(map[string]any, len(columns))
			for j, col := range columns {
				record[col] = row[j]
			}
			values[i] = record
		}
		spec["data"] = map[string]any{"values": values}
	}

	apply := func(st *TurnState, sink EventSink) {
		st.plotsCreated++
		sink.Send(datatypes.NewAgentEvent(datatypes.EventPlot).
			WithField("title", in.Title).
			WithField("vega_lite_spec", spec))
	}
	return toolOutcome{block: inv.ToolResultBlock("Chart displayed to the user.", false), apply: apply}
}

func (r *Runner) handleFinalize(inv datatypes.ToolInvocation, in *datatypes.FinalizeInput) toolOutcome {
	apply := func(st *TurnState, sink EventSink) {
		st.finalized = true
		if in.SessionTitle != "" {
			st.sessionTitle = in.SessionTitle
		}
		if len(in.Suggestions) > 0 {
			st.suggestions = in.Suggestions
		}
	}
	return toolOutcome{block: inv.ToolResultBlock("Turn complete.", false), apply: apply}
}
