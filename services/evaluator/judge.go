// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

const judgePromptTemplate = `You are grading the answer a data-analysis assistant gave to a user.

User question:
%s

Assistant answer:
%s

Dataset context:
%s

Score the answer on three dimensions from 0 to 10:
- relevance: does it address what was asked?
- accuracy: are claims consistent with the dataset context?
- completeness: does it cover the whole question?

Then pick a verdict: "pass" (good), "warn" (usable but flawed), or "retry"
(the assistant should try again).

Respond with ONLY a JSON object:
{"relevance": <int>, "accuracy": <int>, "completeness": <int>, "verdict": "<pass|warn|retry>", "feedback": "<one sentence>"}`

// Judge grades a finished turn with a second model call.
//
// The judge is strictly best-effort: any failure (provider error, garbage
// output, timeout) degrades to a pass verdict so a broken judge can never
// block a working answer.
type Judge struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewJudge wraps a Generator as a turn judge.
func NewJudge(gen llm.Generator, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{gen: gen, logger: logger}
}

// Evaluate grades an answer against the question and dataset context.
func (j *Judge) Evaluate(ctx context.Context, question, answer, dataContext string) datatypes.JudgeVerdict {
	prompt := fmt.Sprintf(judgePromptTemplate, question, answer, dataContext)

	maxTokens := 512
	temp := float32(0)
	raw, err := j.gen.Generate(ctx, prompt, llm.GenerationParams{
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		j.logger.Warn("judge call failed, degrading to pass", slog.String("error", err.Error()))
		return passVerdict("judge unavailable")
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		j.logger.Warn("judge output unparseable, degrading to pass",
			slog.String("error", err.Error()),
			slog.String("raw", truncate(raw, 200)))
		return passVerdict("judge output unparseable")
	}
	return verdict
}

func passVerdict(feedback string) datatypes.JudgeVerdict {
	return datatypes.JudgeVerdict{
		Relevance:    10,
		Accuracy:     10,
		Completeness: 10,
		Verdict:      datatypes.VerdictPass,
		Feedback:     feedback,
	}
}

// parseVerdict extracts the first JSON object from the model output and
// validates it. Models wrap JSON in prose or code fences often enough that
// a plain Unmarshal is not good enough.
func parseVerdict(raw string) (datatypes.JudgeVerdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return datatypes.JudgeVerdict{}, fmt.Errorf("no JSON object in judge output")
	}

	var verdict datatypes.JudgeVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &verdict); err != nil {
		return datatypes.JudgeVerdict{}, fmt.Errorf("invalid judge JSON: %w", err)
	}

	switch verdict.Verdict {
	case datatypes.VerdictPass, datatypes.VerdictWarn, datatypes.VerdictRetry:
	default:
		return datatypes.JudgeVerdict{}, fmt.Errorf("invalid verdict %q", verdict.Verdict)
	}
	verdict.Relevance = clampScore(verdict.Relevance)
	verdict.Accuracy = clampScore(verdict.Accuracy)
	verdict.Completeness = clampScore(verdict.Completeness)
	return verdict, nil
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
