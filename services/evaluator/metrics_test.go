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
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

func TestCheckValidAnswer(t *testing.T) {
	if res := CheckValidAnswer(0, ""); res.Passed {
		t.Error("no outputs and empty text must fail")
	}
	if res := CheckValidAnswer(2, ""); !res.Passed {
		t.Error("emitted outputs must pass even with empty final text")
	}
	if res := CheckValidAnswer(0, "The average is 12.5."); !res.Passed {
		t.Error("non-empty final text must pass")
	}
	if res := CheckValidAnswer(0, "   \n"); res.Passed {
		t.Error("whitespace-only text must fail")
	}
}

func TestCheckGrounding(t *testing.T) {
	observed := []float64{10234.567, 42, 0.37, 125}

	tests := []struct {
		name       string
		answer     string
		wantPassed bool
	}{
		{
			name:       "verbatim value",
			answer:     "The total is 10234.567 across all regions.",
			wantPassed: true,
		},
		{
			name:       "rounded to two decimals",
			answer:     "The total is 10234.57 across all regions.",
			wantPassed: true,
		},
		{
			name:       "rounded to whole number",
			answer:     "Roughly 10235 units in total.",
			wantPassed: true,
		},
		{
			name:       "comma-grouped variant",
			answer:     "That comes to 10,234.57 overall.",
			wantPassed: true,
		},
		{
			name:       "invented figure",
			answer:     "Revenue reached 99999.99 last month.",
			wantPassed: false,
		},
		{
			name:       "small ordinals are ignored",
			answer:     "Here are the top 5 regions out of 12.",
			wantPassed: true, // vacuous pass, nothing substantive claimed
		},
		{
			name:       "mixed mostly grounded",
			answer:     "42 categories totalling 10234.57, about 37.0 percent... wait, 125 rows.",
			wantPassed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := CheckGrounding(tc.answer, observed)
			if res.Passed != tc.wantPassed {
				t.Errorf("CheckGrounding(%q) passed=%v (score %.2f, detail %q), want %v",
					tc.answer, res.Passed, res.Score, res.Detail, tc.wantPassed)
			}
			if res.Name != datatypes.CheckHallucination {
				t.Errorf("wrong check name %q", res.Name)
			}
		})
	}
}

func TestCheckGrounding_RatioThreshold(t *testing.T) {
	observed := []float64{100.5}

	// One grounded figure out of three: 1/3 >= 0.3 passes.
	res := CheckGrounding("Values: 100.5, 555.5, 777.7", observed)
	if !res.Passed {
		t.Errorf("expected ratio 1/3 to pass, got score %.2f", res.Score)
	}

	// Zero grounded figures fails and names them.
	res = CheckGrounding("Values: 555.5 and 777.7", observed)
	if res.Passed {
		t.Error("expected all-ungrounded answer to fail")
	}
	if !strings.Contains(res.Detail, "555.5") {
		t.Errorf("detail should list ungrounded numbers, got %q", res.Detail)
	}
}

func TestCheckUnsafeCode(t *testing.T) {
	ev, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res := ev.CheckUnsafeCode([]string{"SELECT * FROM data", "SELECT AVG(price) FROM data"})
	if !res.Passed {
		t.Errorf("read statements must pass, detail: %s", res.Detail)
	}

	res = ev.CheckUnsafeCode([]string{"SELECT * FROM data WHERE note = 'please UPDATE me'"})
	if !res.Passed {
		t.Errorf("forbidden verb inside a string literal must pass, detail: %s", res.Detail)
	}

	res = ev.CheckUnsafeCode([]string{"SELECT * FROM data", "DROP TABLE data"})
	if res.Passed {
		t.Error("DROP must fail the unsafe_code check")
	}
	if !strings.Contains(res.Detail, "ddl") {
		t.Errorf("detail should carry the classification, got %q", res.Detail)
	}
}

func TestCollectNumbers(t *testing.T) {
	results := []datatypes.ExecutionResult{
		{
			Success:  true,
			RowCount: 3,
			Rows:     [][]any{{"north", int64(10), 9.99}, {"south", int64(7), 12.5}},
		},
		{Success: false, Error: "boom", RowCount: 99},
	}

	got := CollectNumbers(results)
	want := map[float64]bool{3: true, 10: true, 9.99: true, 7: true, 12.5: true}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected collected number %v", v)
		}
		delete(want, v)
	}
	if len(want) > 0 {
		t.Errorf("missing numbers: %v", want)
	}
}

func TestCheckResultValidity(t *testing.T) {
	ok := datatypes.ExecutionResult{
		Success:  true,
		Kind:     datatypes.ResultTable,
		Columns:  []string{"region", "units"},
		Rows:     [][]any{{"north", int64(10)}, {"south", nil}},
		RowCount: 2,
	}
	res := CheckResultValidity(ok)
	if !res.Passed {
		t.Errorf("well-formed table must pass, detail: %s", res.Detail)
	}
	if res.Score != 0.75 {
		t.Errorf("expected non-null ratio 0.75, got %.2f", res.Score)
	}

	res = CheckResultValidity(datatypes.ExecutionResult{Success: false, Error: "no such column"})
	if res.Passed || !strings.Contains(res.Detail, "no such column") {
		t.Errorf("failed execution must fail with its error, got %+v", res)
	}

	res = CheckResultValidity(datatypes.ExecutionResult{Success: true, Kind: datatypes.ResultTable, RowCount: 0})
	if res.Passed {
		t.Error("empty result must fail")
	}

	res = CheckResultValidity(datatypes.ExecutionResult{
		Success:  true,
		Kind:     datatypes.ResultScalar,
		Columns:  []string{"avg"},
		Rows:     [][]any{{math.NaN()}},
		RowCount: 1,
	})
	if res.Passed {
		t.Error("NaN scalar must fail")
	}

	res = CheckResultValidity(datatypes.ExecutionResult{
		Success:  true,
		Kind:     datatypes.ResultTable,
		Columns:  []string{"a"},
		Rows:     [][]any{{nil}, {nil}},
		RowCount: 2,
	})
	if res.Passed {
		t.Error("all-null result must fail")
	}
}
