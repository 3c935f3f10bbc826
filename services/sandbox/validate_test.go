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
	"strings"
	"testing"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sb
}

func TestValidate(t *testing.T) {
	sb := newTestSandbox(t)

	tests := []struct {
		name    string
		query   string
		wantErr string // substring, empty means valid
	}{
		{
			name:  "plain select",
			query: "SELECT * FROM data",
		},
		{
			name:  "cte",
			query: "WITH t AS (SELECT region FROM data) SELECT * FROM t",
		},
		{
			name:  "trailing semicolon allowed",
			query: "SELECT 1;",
		},
		{
			name:  "lowercase select",
			query: "select count(*) from data",
		},
		{
			name:    "empty after comments",
			query:   "-- just a comment\n",
			wantErr: "empty",
		},
		{
			name:    "non-select statement",
			query:   "EXPLAIN SELECT 1",
			wantErr: "only SELECT or WITH",
		},
		{
			name:    "stacked statements",
			query:   "SELECT 1; SELECT 2",
			wantErr: "multiple statements",
		},
		{
			name:  "semicolon inside literal",
			query: "SELECT * FROM data WHERE region = 'a;b'",
		},
		{
			name:    "delete denied",
			query:   "SELECT 1 WHERE EXISTS (DELETE FROM data)",
			wantErr: "forbidden",
		},
		{
			name:    "attach denied",
			query:   "SELECT 1 UNION ATTACH 'other.db' AS other",
			wantErr: "forbidden",
		},
		{
			name:  "forbidden verb inside comment is ignored",
			query: "SELECT region FROM data -- cleanup: DROP TABLE tmp",
		},
		{
			name:  "forbidden verb inside block comment is ignored",
			query: "SELECT /* was: DELETE */ region FROM data",
		},
		{
			name:  "forbidden verb inside string literal is ignored",
			query: "SELECT * FROM data WHERE note = 'please UPDATE me'",
		},
		{
			name:    "drop rejection names the verb",
			query:   "DROP TABLE data",
			wantErr: "DROP",
		},
		{
			name:    "vacuum denied",
			query:   "VACUUM",
			wantErr: "VACUUM",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cleaned, err := sb.Validate(tc.query)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				if strings.HasSuffix(cleaned, ";") {
					t.Errorf("trailing semicolon not stripped: %q", cleaned)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got none (cleaned=%q)", tc.wantErr, cleaned)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1 -- trailing", "SELECT 1 "},
		{"SELECT 1 /* block */ + 2", "SELECT 1   + 2"},
		{"SELECT '--not a comment'", "SELECT '--not a comment'"},
		{"SELECT '/*kept*/'", "SELECT '/*kept*/'"},
		{"SELECT 'it''s -- fine'", "SELECT 'it''s -- fine'"},
		{"SELECT/*x*/1", "SELECT 1"},
	}
	for _, tc := range tests {
		if got := stripComments(tc.in); got != tc.want {
			t.Errorf("stripComments(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBlankLiterals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM data WHERE note = 'please UPDATE me'", "SELECT * FROM data WHERE note = ''"},
		{"SELECT 'it''s quoted' FROM data", "SELECT '' FROM data"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tc := range tests {
		if got := BlankLiterals(tc.in); got != tc.want {
			t.Errorf("blankLiterals(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSemicolonOutsideStrings(t *testing.T) {
	if !semicolonOutsideStrings("SELECT 1; SELECT 2") {
		t.Error("expected bare semicolon to be detected")
	}
	if semicolonOutsideStrings("SELECT 'a;b'") {
		t.Error("semicolon inside literal must not be detected")
	}
	if semicolonOutsideStrings("SELECT 'it''s; quoted'") {
		t.Error("semicolon after escaped quote must not be detected")
	}
}
