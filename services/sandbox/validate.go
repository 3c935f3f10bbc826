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
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned when a query is blank after comment stripping.
var ErrEmptyQuery = errors.New("sandbox: query is empty")

// Validate normalizes a model-submitted query and rejects anything that is
// not a single read statement.
//
// # Description
//
//	Strips SQL comments, trims one trailing semicolon, then enforces three
//	gates in order:
//	 1. the embedded policy rules must classify the statement as a read,
//	 2. the statement must start with SELECT or WITH,
//	 3. no semicolon may remain outside a string literal (one statement
//	    per call).
//
//	Comment stripping happens first so a forbidden verb cannot hide behind
//	"--" or "/* */", and so deny rules never fire on commented-out text.
//	String literal contents are blanked before the policy scan for the same
//	reason in reverse: a forbidden verb inside quoted data is data, not a
//	statement. The policy gate runs before the prefix gate so a rejection
//	names the offending verb instead of the generic prefix message.
//
// # Outputs
//
//	string - the cleaned statement to execute.
//	error  - a message safe to return to the model as a tool result.
func (s *Sandbox) Validate(query string) (string, error) {
	cleaned := strings.TrimSpace(stripComments(query))
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	if cleaned == "" {
		return "", ErrEmptyQuery
	}

	if findings := s.policy.ScanStatement(BlankLiterals(cleaned)); len(findings) > 0 {
		reasons := make([]string, 0, len(findings))
		for _, f := range findings {
			reasons = append(reasons, fmt.Sprintf("%s (%s)", strings.TrimSpace(f.MatchedContent), f.ClassificationName))
		}
		return "", fmt.Errorf("statement contains forbidden constructs: %s", strings.Join(reasons, ", "))
	}

	upper := strings.ToUpper(cleaned)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", errors.New("only SELECT or WITH statements are allowed")
	}

	if semicolonOutsideStrings(cleaned) {
		return "", errors.New("multiple statements are not allowed; submit one query per call")
	}
	return cleaned, nil
}

// stripComments removes "--" line comments and "/* */" block comments while
// respecting single-quoted string literals, including doubled-quote escapes.
func stripComments(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	inString := false
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case inString:
			b.WriteByte(c)
			if c == '\'' {
				// A doubled quote is an escaped quote, not a terminator.
				if i+1 < len(query) && query[i+1] == '\'' {
					b.WriteByte('\'')
					i++
				} else {
					inString = false
				}
			}
			i++
		case c == '\'':
			inString = true
			b.WriteByte(c)
			i++
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			i += 2
			for i+1 < len(query) && !(query[i] == '*' && query[i+1] == '/') {
				i++
			}
			i += 2
			// Keep a separator so "SELECT/*x*/1" stays two tokens.
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// BlankLiterals empties the contents of single-quoted literals, keeping the
// quotes, so deny rules match statement structure rather than quoted data.
// The evaluator applies the same blanking before its own scan so both
// safety layers agree on what counts as statement text.
func BlankLiterals(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			if inString && i+1 < len(query) && query[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if !inString {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// semicolonOutsideStrings reports whether a semicolon appears anywhere
// outside a single-quoted literal.
func semicolonOutsideStrings(query string) bool {
	inString := false
	for i := 0; i < len(query); i++ {
		switch query[i] {
		case '\'':
			if inString && i+1 < len(query) && query[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if !inString {
				return true
			}
		}
	}
	return false
}
