// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evaluator scores agent output.
//
// valid_result runs in-band, per query, and its feedback is appended to the
// tool result so the model can self-correct mid-turn. The remaining checks
// run after the loop ends. unsafe_code is the only blocking
// one: a forbidden statement that somehow reached execution suppresses the
// response. valid_answer can recommend one retry iteration. The numeric
// grounding check is strictly advisory: its outcome is reported on the
// judge event but never fed back into the loop, because a false positive
// would make the agent argue with its own correct arithmetic.
package evaluator

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianData/services/policy_engine"
	"github.com/AleutianAI/AleutianData/services/sandbox"
)

// groundingPassRatio is the fraction of reported numbers that must trace
// back to query results for the grounding check to pass.
const groundingPassRatio = 0.3

// ordinalCeiling is the largest whole number assumed to be prose ("the top
// 5 regions") rather than a data claim. Decimals are always checked.
const ordinalCeiling = 20

// numberPattern matches integers, decimals, and comma-grouped figures.
var numberPattern = regexp.MustCompile(`-?\d{1,3}(?:,\d{3})+(?:\.\d+)?|-?\d+\.\d+|-?\d+`)

// Evaluator runs the post-turn quality checks.
type Evaluator struct {
	policy *policy_engine.PolicyEngine
	logger *slog.Logger
}

// New builds an Evaluator backed by the embedded statement rules.
func New(logger *slog.Logger) (*Evaluator, error) {
	engine, err := policy_engine.NewPolicyEngine()
	if err != nil {
		return nil, fmt.Errorf("evaluator: failed to load policy rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{policy: engine, logger: logger}, nil
}

// CheckUnsafeCode scans every executed statement against the deny rules.
// This is the blocking check: the sandbox should have rejected these
// before execution, so any hit here means the safety boundary failed and
// the response must not be shown.
func (e *Evaluator) CheckUnsafeCode(statements []string) datatypes.CheckResult {
	var hits []string
	for _, stmt := range statements {
		for _, finding := range e.policy.ScanStatement(sandbox.BlankLiterals(stmt)) {
			hits = append(hits, fmt.Sprintf("%s: %s", finding.ClassificationName, strings.TrimSpace(finding.MatchedContent)))
		}
	}
	if len(hits) > 0 {
		e.logger.Error("unsafe statements detected after execution", slog.Int("count", len(hits)))
		return datatypes.CheckResult{
			Name:   datatypes.CheckUnsafeCode,
			Passed: false,
			Score:  0,
			Detail: strings.Join(hits, "; "),
		}
	}
	return datatypes.CheckResult{Name: datatypes.CheckUnsafeCode, Passed: true, Score: 1}
}

// CheckValidAnswer verifies the turn produced something for the user: at
// least one output message or a non-empty final text.
func CheckValidAnswer(outputCount int, finalText string) datatypes.CheckResult {
	if outputCount > 0 || strings.TrimSpace(finalText) != "" {
		return datatypes.CheckResult{Name: datatypes.CheckValidAnswer, Passed: true, Score: 1}
	}
	return datatypes.CheckResult{
		Name:   datatypes.CheckValidAnswer,
		Passed: false,
		Score:  0,
		Detail: "no text, table, or plot was produced for the user",
	}
}

// CheckResultValidity scores a single execution result. A failed query, an
// empty result set, or a NaN scalar fails the check; otherwise the score is
// the non-null ratio of the preview cells.
func CheckResultValidity(result datatypes.ExecutionResult) datatypes.CheckResult {
	fail := func(detail string) datatypes.CheckResult {
		return datatypes.CheckResult{Name: datatypes.CheckValidResult, Passed: false, Score: 0, Detail: detail}
	}
	if !result.Success {
		return fail("execution failed: " + result.Error)
	}
	if result.Kind == datatypes.ResultNone || result.RowCount == 0 {
		return fail("the query returned no rows")
	}
	if result.IsScalar() {
		if v, ok := asFloat(result.ScalarValue()); ok && math.IsNaN(v) {
			return fail("scalar result is NaN")
		}
	}

	total, filled := 0, 0
	for _, row := range result.Rows {
		for _, cell := range row {
			total++
			if cell != nil {
				filled++
			}
		}
	}
	if total > 0 && filled == 0 {
		return fail("every returned cell is null")
	}
	score := 1.0
	if total > 0 {
		score = float64(filled) / float64(total)
	}
	return datatypes.CheckResult{Name: datatypes.CheckValidResult, Passed: true, Score: score}
}

// CheckGrounding verifies that the numbers claimed in the answer trace back
// to values observed in query results.
//
// Only substantive figures are considered: anything with a decimal point,
// or whole numbers above the ordinal ceiling. A claimed number counts as
// grounded if an observed value matches it exactly or after rounding to the
// same number of decimal places the answer used (0 to 2). Comma grouping in
// the answer is ignored.
//
// An answer with no substantive numbers passes vacuously.
func CheckGrounding(answer string, observed []float64) datatypes.CheckResult {
	candidates := extractClaimedNumbers(answer)
	if len(candidates) == 0 {
		return datatypes.CheckResult{Name: datatypes.CheckHallucination, Passed: true, Score: 1}
	}

	matched := 0
	var missing []string
	for _, cand := range candidates {
		if isGrounded(cand, observed) {
			matched++
		} else {
			missing = append(missing, cand.raw)
		}
	}

	score := float64(matched) / float64(len(candidates))
	result := datatypes.CheckResult{
		Name:   datatypes.CheckHallucination,
		Passed: score >= groundingPassRatio,
		Score:  score,
	}
	if len(missing) > 0 {
		result.Detail = fmt.Sprintf("ungrounded numbers: %s", strings.Join(missing, ", "))
	}
	return result
}

// claimedNumber is one numeric figure found in the answer text.
type claimedNumber struct {
	raw      string
	value    float64
	decimals int
}

func extractClaimedNumbers(answer string) []claimedNumber {
	var out []claimedNumber
	for _, raw := range numberPattern.FindAllString(answer, -1) {
		plain := strings.ReplaceAll(raw, ",", "")
		value, err := strconv.ParseFloat(plain, 64)
		if err != nil {
			continue
		}
		decimals := 0
		if i := strings.IndexByte(plain, '.'); i >= 0 {
			decimals = len(plain) - i - 1
		}
		// Small whole numbers read as prose, not data claims.
		if decimals == 0 && math.Abs(value) <= ordinalCeiling {
			continue
		}
		if decimals > 2 {
			decimals = 2
		}
		out = append(out, claimedNumber{raw: raw, value: value, decimals: decimals})
	}
	return out
}

func isGrounded(cand claimedNumber, observed []float64) bool {
	for _, v := range observed {
		if v == cand.value {
			return true
		}
		// The answer may have rounded the observed value to 0-2 decimals.
		for d := cand.decimals; d <= 2; d++ {
			scale := math.Pow(10, float64(d))
			if math.Round(v*scale)/scale == cand.value {
				return true
			}
		}
	}
	return false
}

// CollectNumbers harvests every numeric value from a set of execution
// results, including total row counts, for use as grounding evidence.
func CollectNumbers(results []datatypes.ExecutionResult) []float64 {
	var out []float64
	for _, res := range results {
		if !res.Success {
			continue
		}
		out = append(out, float64(res.RowCount))
		for _, row := range res.Rows {
			for _, cell := range row {
				if v, ok := asFloat(cell); ok {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
