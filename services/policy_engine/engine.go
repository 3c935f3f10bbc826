// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"fmt"

	"github.com/AleutianAI/AleutianData/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// ClassificationRead is returned for statements that match no deny rule.
// It is the only classification the sandbox allows to execute.
const ClassificationRead = "read"

// PolicyEngine serves as the main entry point for SQL statement classification.
// It holds the state of the loaded rules and provides methods to scan statements
// against those rules.
type PolicyEngine struct {
	Classifiers []Classification
}

// NewPolicyEngine initializes a new instance of the PolicyEngine.
//
// This function takes no arguments. It automatically loads the deny rules
// embedded in the binary via the enforcement package.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts classifications by priority.
//
// Returns an error if the embedded YAML is malformed or contains invalid regex.
func NewPolicyEngine() (*PolicyEngine, error) {
	// Parse the YAML into the types struct
	var classificationFile PolicyEngineClassificationFile
	if err := yaml.Unmarshal(enforcement.SQLStatementRules, &classificationFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}

	// Compile the regex patterns for performance and sort by priority
	if err := classificationFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}

	// Sort the classifications from highest to lowest priority
	classificationFile.SortByPriority()

	// Return the fully initialized engine.
	engine := &PolicyEngine{Classifiers: classificationFile.ClassificationPatterns}
	return engine, nil
}

// ClassifyStatement performs a quick check on a SQL statement and returns its
// classification name.
//
// It iterates through classifications by priority and returns the name of the
// *first* classification that matches. If no deny rule matches, it returns
// ClassificationRead.
//
// The caller is expected to strip comments before classification; the rules
// assume bare statement text.
func (e *PolicyEngine) ClassifyStatement(statement string) string {
	data := []byte(statement)
	for _, classifier := range e.Classifiers {
		for _, re := range classifier.CompiledPatterns {
			if re.Match(data) {
				return classifier.Name
			}
		}
	}
	return ClassificationRead
}

// ScanStatement performs a comprehensive audit of a SQL statement.
//
// It checks the statement against every pattern in the engine and captures
// specific details about every match found, including the text that triggered
// the match. Unlike ClassifyStatement, it does not stop at the first hit.
//
// This function feeds the tool-result error messages returned to the model, so
// a statement that stacks several forbidden verbs reports all of them at once.
func (e *PolicyEngine) ScanStatement(statement string) []StatementFinding {
	var findings []StatementFinding
	for _, classifier := range e.Classifiers {
		for _, pattern := range classifier.Patterns {
			match := pattern.compiledPattern.FindString(statement)
			if match != "" {
				finding := StatementFinding{
					MatchedContent:     match,
					ClassificationName: classifier.Name,
					PatternId:          pattern.Id,
					PatternDescription: pattern.Description,
					Confidence:         pattern.Confidence,
				}
				findings = append(findings, finding)
			}
		}
	}
	return findings
}
