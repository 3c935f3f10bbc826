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

import "strings"

// Evaluator check names.
const (
	CheckValidAnswer   = "valid_answer"
	CheckValidResult   = "valid_result"
	CheckHallucination = "hallucination"
	CheckUnsafeCode    = "unsafe_code"
)

// CheckResult is the outcome of a single evaluator check.
type CheckResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail"`
}

// Report aggregates the checks run against one tool execution. Reports are
// advisory feedback for the model with a single exception: a failing
// unsafe_code check blocks execution entirely.
type Report struct {
	Checks []CheckResult `json:"checks"`
}

// Add appends a check result and returns the report for chaining.
func (r *Report) Add(c CheckResult) *Report {
	r.Checks = append(r.Checks, c)
	return r
}

// AllPassed reports whether every check passed.
func (r *Report) AllPassed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// ShouldRetry is true when a failed check indicates a retry could help.
// Hallucination is deliberately excluded: derived numbers (totals, averages,
// percentages) are legitimate even when absent from the result preview, and
// feeding a FAIL back causes the model to duplicate messages.
func (r *Report) ShouldRetry() bool {
	for _, c := range r.Checks {
		if !c.Passed && c.Name == CheckValidAnswer {
			return true
		}
	}
	return false
}

// Feedback renders the report as the compact text block appended to a tool
// result so the model can self-correct on the next iteration.
func (r *Report) Feedback() string {
	if len(r.Checks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nQUALITY METRICS:")
	for _, c := range r.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		b.WriteString("\n  - " + c.Name + ": " + status + " (" + c.Detail + ")")
	}
	if r.ShouldRetry() {
		b.WriteString("\n  >> RECOMMENDATION: Retry with a different approach.")
	}
	return b.String()
}

// ToMap serializes the report for logging and the done-event metrics list.
func (r *Report) ToMap() map[string]any {
	checks := make([]map[string]any, 0, len(r.Checks))
	for _, c := range r.Checks {
		checks = append(checks, map[string]any{
			"name":   c.Name,
			"passed": c.Passed,
			"score":  c.Score,
			"detail": c.Detail,
		})
	}
	return map[string]any{
		"all_passed":   r.AllPassed(),
		"should_retry": r.ShouldRetry(),
		"checks":       checks,
	}
}

// Judge verdict values.
const (
	VerdictPass  = "pass"
	VerdictWarn  = "warn"
	VerdictRetry = "retry"
)

// JudgeVerdict is the structured output of an LLM-as-judge evaluation.
// Scores are clamped to [0, 10]. Verdicts are advisory only and never feed
// back into the model's context as an authoritative failure.
type JudgeVerdict struct {
	Relevance    int    `json:"relevance"`
	Accuracy     int    `json:"accuracy"`
	Completeness int    `json:"completeness"`
	Verdict      string `json:"verdict"`
	Feedback     string `json:"feedback"`
}
