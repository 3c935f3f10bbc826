// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the tool-calling loop that turns one user question into
// an ordered stream of user-visible events. The model drives; the runner
// executes tools, feeds results back, and enforces the turn's guarantees:
// a bounded number of iterations, at least one user-visible output, and
// exactly one terminal done event per run, cancellation included.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianData/services/dataset"
	"github.com/AleutianAI/AleutianData/services/evaluator"
	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianData/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianData/services/sandbox"
)

const (
	// MaxIterations caps model round-trips per turn. The ceiling is a
	// runaway guard, not a target; typical turns finish in two to four.
	MaxIterations = 15

	// FallbackText is delivered when a turn ends without the model having
	// produced any user-visible output.
	FallbackText = "I wasn't able to produce a response for that question. " +
		"Could you rephrase it, or ask about a specific column?"
)

// TurnRequest describes one user question against a loaded dataset.
type TurnRequest struct {
	SessionID string
	Question  string
	Dataset   *dataset.Dataset
	History   []datatypes.Message
}

// TurnSummary is the durable outcome of a run: the extended conversation to
// persist plus the counters mirrored in the done event.
type TurnSummary struct {
	Messages     []datatypes.Message
	Iterations   int
	DataUpdated  bool
	MessagesSent int
	PlotsCreated int
	SessionTitle string
	Suggestions  []string
	Metrics      map[string]any
}

// TurnState accumulates per-run counters and artifacts. It is mutated only
// by apply closures and the run loop, both single-threaded, so it needs no
// locking.
type TurnState struct {
	iterations   int
	finalized    bool
	dataUpdated  bool
	messagesSent int
	plotsCreated int
	sessionTitle string
	suggestions  []string

	queries []string
	results []datatypes.ExecutionResult
	outputs []string
}

// Config bundles the runner's collaborators.
//
// Judge is optional; without it the post-turn evaluation is limited to the
// deterministic checks.
type Config struct {
	Client llm.ToolCallingClient
	Judge  *evaluator.Judge
	Logger *slog.Logger
	Params llm.GenerationParams
}

// Runner executes turns. Safe for concurrent use; all per-turn state lives
// in TurnState.
type Runner struct {
	client  llm.ToolCallingClient
	sandbox *sandbox.Sandbox
	eval    *evaluator.Evaluator
	judge   *evaluator.Judge
	logger  *slog.Logger
	params  llm.GenerationParams
}

// NewRunner wires a Runner from the config, constructing the sandbox and
// evaluator internally so they share the same policy rules.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("agent: config requires a tool-calling client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sb, err := sandbox.New(logger)
	if err != nil {
		return nil, err
	}
	ev, err := evaluator.New(logger)
	if err != nil {
		return nil, err
	}
	return &Runner{
		client:  cfg.Client,
		sandbox: sb,
		eval:    ev,
		judge:   cfg.Judge,
		logger:  logger,
		params:  cfg.Params,
	}, nil
}

// Run executes one turn and publishes its events to sink.
//
// # Description
//
//	The loop alternates model calls and tool dispatch until the model stops
//	requesting tools, calls finalize, or the iteration ceiling is reached.
//	Context cancellation stops the loop between steps without an error
//	event. Every exit path flows through the same tail: fallback text when
//	nothing was delivered, post-turn evaluation, and a single done event.
//
// # Inputs
//
//	ctx  - cancels the run; in-flight SQL and model calls observe it.
//	req  - the question, dataset, and prior conversation.
//	sink - receives the event stream; Send must not block.
//
// # Outputs
//
//	TurnSummary - conversation and counters for persistence. Returned even
//	              on error and cancellation with whatever progress was made.
func (r *Runner) Run(ctx context.Context, req TurnRequest, sink EventSink) TurnSummary {
	start := time.Now()
	st := &TurnState{}
	status := observability.StatusCompleted
	observability.IncActiveRuns()
	defer func() {
		observability.DecActiveRuns()
		observability.RecordRun(status, time.Since(start).Seconds(), st.iterations)
	}()

	messages := make([]datatypes.Message, 0, len(req.History)+2)
	messages = append(messages, req.History...)
	messages = append(messages, datatypes.TextMessage(datatypes.RoleUser, req.Question))

	system, err := BuildSystemPrompt(ctx, req.Dataset)
	switch {
	case err != nil && ctx.Err() != nil:
		status = observability.StatusCanceled
	case err != nil:
		status = observability.StatusError
		sink.Send(datatypes.NewAgentEvent(datatypes.EventError).WithMessage(err.Error()))
	default:
		status = r.loop(ctx, req, system, &messages, st, sink)
	}

	// Fallback guarantee: the user always sees something, even when the
	// model burned its budget on queries or the first model call failed.
	// A canceled run skips it; the user asked the turn to stop.
	if status != observability.StatusCanceled && st.messagesSent == 0 && st.plotsCreated == 0 {
		st.messagesSent++
		st.outputs = append(st.outputs, FallbackText)
		StreamText(sink, FallbackText)
	}

	var metrics map[string]any
	if status == observability.StatusCompleted {
		metrics = r.evaluate(ctx, req, st, sink)
	}

	if st.sessionTitle != "" || len(st.suggestions) > 0 {
		event := datatypes.NewAgentEvent(datatypes.EventSessionUpdate)
		if st.sessionTitle != "" {
			event = event.WithField("title", st.sessionTitle)
		}
		if len(st.suggestions) > 0 {
			event = event.WithField("suggestions", st.suggestions)
		}
		sink.Send(event)
	}

	sink.Send(datatypes.NewAgentEvent(datatypes.EventDone).
		WithField("status", status).
		WithField("iterations", st.iterations).
		WithField("data_updated", st.dataUpdated).
		WithField("messages_sent", st.messagesSent).
		WithField("plots_created", st.plotsCreated).
		WithField("metrics", metrics))

	r.logger.Info("turn finished",
		slog.String("session_id", req.SessionID),
		slog.String("status", status),
		slog.Int("iterations", st.iterations),
		slog.Duration("elapsed", time.Since(start)))

	return TurnSummary{
		Messages:     messages,
		Iterations:   st.iterations,
		DataUpdated:  st.dataUpdated,
		MessagesSent: st.messagesSent,
		PlotsCreated: st.plotsCreated,
		SessionTitle: st.sessionTitle,
		Suggestions:  st.suggestions,
		Metrics:      metrics,
	}
}

// loop runs the model/tool alternation and returns the run status. It never
// emits done; that is Run's job, once.
func (r *Runner) loop(ctx context.Context, req TurnRequest, system string, messages *[]datatypes.Message, st *TurnState, sink EventSink) string {
	for st.iterations < MaxIterations && !st.finalized {
		if ctx.Err() != nil {
			return observability.StatusCanceled
		}
		st.iterations++

		reply, err := r.client.Chat(ctx, system, *messages, ToolDefs(), r.params)
		if err != nil {
			if ctx.Err() != nil {
				return observability.StatusCanceled
			}
			r.logger.Error("model call failed",
				slog.String("session_id", req.SessionID),
				slog.Int("iteration", st.iterations),
				slog.String("error", err.Error()))
			sink.Send(datatypes.NewAgentEvent(datatypes.EventError).
				WithMessage("The model is unavailable right now. Please try again."))
			return observability.StatusError
		}
		*messages = append(*messages, reply)

		texts, invocations := datatypes.PartitionBlocks(reply.Content)
		if len(invocations) == 0 {
			// No tools requested: treat the free text as the answer
			// rather than losing it, then stop.
			final := strings.TrimSpace(strings.Join(texts, "\n\n"))
			if final != "" {
				st.messagesSent++
				st.outputs = append(st.outputs, final)
				StreamText(sink, final)
			}
			return observability.StatusCompleted
		}

		blocks := r.dispatch(ctx, req.Dataset, invocations, st, sink)
		resultMsg := datatypes.ToolResultMessage(blocks)
		if err := datatypes.ValidateToolResultOrder(reply, resultMsg); err != nil {
			// Dispatch preserves order by construction; a mismatch here
			// is a bug worth loud logging, not a run failure.
			r.logger.Error("tool result order violation", slog.String("error", err.Error()))
		}
		*messages = append(*messages, resultMsg)

		if ctx.Err() != nil {
			return observability.StatusCanceled
		}
	}
	return observability.StatusCompleted
}

// evaluate runs the post-turn checks and the optional judge, publishes the
// judge event, and returns the metrics map for the done event.
func (r *Runner) evaluate(ctx context.Context, req TurnRequest, st *TurnState, sink EventSink) map[string]any {
	answer := strings.Join(st.outputs, "\n\n")

	report := &datatypes.Report{}
	report.Add(r.eval.CheckUnsafeCode(st.queries))
	report.Add(evaluator.CheckValidAnswer(st.messagesSent+st.plotsCreated, answer))
	report.Add(evaluator.CheckGrounding(answer, evaluator.CollectNumbers(st.results)))

	event := datatypes.NewAgentEvent(datatypes.EventJudge).
		WithField("report", report.ToMap())

	if r.judge != nil {
		dataContext, err := DataContext(ctx, req.Dataset)
		if err != nil {
			dataContext = ""
		}
		verdict := r.judge.Evaluate(ctx, req.Question, answer, dataContext)
		event = event.WithField("verdict", verdict)
	}
	sink.Send(event)
	return report.ToMap()
}
