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
	"testing"

	"github.com/AleutianAI/AleutianData/services/llm"
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func TestJudge_ParsesWellFormedVerdict(t *testing.T) {
	gen := llm.NewScriptedClient(nil, []string{
		`{"relevance": 9, "accuracy": 8, "completeness": 7, "verdict": "warn", "feedback": "missing the east region"}`,
	})
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "What are total sales?", "Sales were 10234.57.", "sales.csv, 3 rows")
	if verdict.Verdict != datatypes.VerdictWarn {
		t.Errorf("expected warn, got %q", verdict.Verdict)
	}
	if verdict.Relevance != 9 || verdict.Accuracy != 8 || verdict.Completeness != 7 {
		t.Errorf("unexpected scores: %+v", verdict)
	}
}

func TestJudge_HandlesProseWrappedJSON(t *testing.T) {
	gen := llm.NewScriptedClient(nil, []string{
		"Here is my assessment:\n```json\n{\"relevance\": 10, \"accuracy\": 10, \"completeness\": 9, \"verdict\": \"pass\", \"feedback\": \"solid\"}\n```\nHope that helps!",
	})
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "q", "a", "ctx")
	if verdict.Verdict != datatypes.VerdictPass {
		t.Errorf("expected pass, got %q", verdict.Verdict)
	}
	if verdict.Completeness != 9 {
		t.Errorf("expected completeness 9, got %d", verdict.Completeness)
	}
}

func TestJudge_DegradesToPassOnGarbage(t *testing.T) {
	gen := llm.NewScriptedClient(nil, []string{"I refuse to answer in JSON."})
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "q", "a", "ctx")
	if verdict.Verdict != datatypes.VerdictPass {
		t.Errorf("garbage judge output must degrade to pass, got %q", verdict.Verdict)
	}
}

func TestJudge_DegradesToPassOnError(t *testing.T) {
	gen := llm.NewScriptedClient(nil, nil) // no script -> Generate errors
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "q", "a", "ctx")
	if verdict.Verdict != datatypes.VerdictPass {
		t.Errorf("judge error must degrade to pass, got %q", verdict.Verdict)
	}
}

func TestJudge_ClampsScores(t *testing.T) {
	gen := llm.NewScriptedClient(nil, []string{
		`{"relevance": 15, "accuracy": -3, "completeness": 10, "verdict": "pass", "feedback": ""}`,
	})
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "q", "a", "ctx")
	if verdict.Relevance != 10 {
		t.Errorf("expected relevance clamped to 10, got %d", verdict.Relevance)
	}
	if verdict.Accuracy != 0 {
		t.Errorf("expected accuracy clamped to 0, got %d", verdict.Accuracy)
	}
}

func TestJudge_RejectsUnknownVerdictValue(t *testing.T) {
	gen := llm.NewScriptedClient(nil, []string{
		`{"relevance": 5, "accuracy": 5, "completeness": 5, "verdict": "maybe", "feedback": ""}`,
	})
	judge := NewJudge(gen, nil)

	verdict := judge.Evaluate(context.Background(), "q", "a", "ctx")
	if verdict.Verdict != datatypes.VerdictPass {
		t.Errorf("unknown verdict must degrade to pass, got %q", verdict.Verdict)
	}
}
