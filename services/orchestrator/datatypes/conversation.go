// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared wire and domain types for the
// dataset-analysis agent: conversation messages and content blocks, tool
// invocation payloads, execution results, evaluation reports, and the
// streamed event protocol.
package datatypes

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles. The tool-use protocol only ever produces these two;
// tool results ride inside a "user" message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types within a Message.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one element of a message's content list. Exactly one of
// the three shapes is populated, selected by Type:
//
//   - text:        Text
//   - tool_use:    ID, Name, Input
//   - tool_result: ToolUseID, Content, IsError
//
// The flattened struct mirrors the Anthropic Messages API wire format so a
// Message can be marshaled into a provider request without translation.
type ContentBlock struct {
	Type string `json:"type"`

	// Text is set for "text" blocks.
	Text string `json:"text,omitempty"`

	// ID, Name and Input are set for "tool_use" blocks. Input is kept raw
	// until the dispatcher decodes it into the per-tool typed struct.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID, Content and IsError are set for "tool_result" blocks.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is a single turn in the conversation history sent to the LLM.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a plain single-block message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolResultMessage wraps a batch of tool_result blocks into the single
// "user" message that must immediately follow the assistant message
// containing the matching tool_use blocks. Order is preserved.
func ToolResultMessage(results []ContentBlock) Message {
	return Message{Role: RoleUser, Content: results}
}

// ToolInvocation is a structured request from the LLM to run one named tool.
// Produced only by parsing tool_use content blocks, never synthesized by the
// orchestrator.
type ToolInvocation struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock builds the tool_result content block answering inv.
// Content is fed back verbatim into the next LLM call, so callers must keep
// it within the preview budget.
func (inv ToolInvocation) ToolResultBlock(content string, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: inv.ID,
		Content:   content,
		IsError:   isError,
	}
}

// PartitionBlocks splits an assistant response into its free-text segments
// and tool invocations, preserving the order both appeared in.
func PartitionBlocks(content []ContentBlock) (texts []string, invocations []ToolInvocation) {
	for _, block := range content {
		switch block.Type {
		case BlockText:
			if strings.TrimSpace(block.Text) != "" {
				texts = append(texts, block.Text)
			}
		case BlockToolUse:
			invocations = append(invocations, ToolInvocation{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return texts, invocations
}

// ValidateToolResultOrder checks the core conversation invariant: a batch of
// tool results must match the preceding assistant message's tool_use blocks
// one-to-one and in the same order. Providers reject histories that violate
// this, so we fail fast locally instead.
func ValidateToolResultOrder(assistant Message, results Message) error {
	var useIDs []string
	for _, b := range assistant.Content {
		if b.Type == BlockToolUse {
			useIDs = append(useIDs, b.ID)
		}
	}
	var resultIDs []string
	for _, b := range results.Content {
		if b.Type == BlockToolResult {
			resultIDs = append(resultIDs, b.ToolUseID)
		}
	}
	if len(useIDs) != len(resultIDs) {
		return fmt.Errorf("tool result count mismatch: %d tool_use blocks, %d tool_result blocks",
			len(useIDs), len(resultIDs))
	}
	for i := range useIDs {
		if useIDs[i] != resultIDs[i] {
			return fmt.Errorf("tool result order mismatch at index %d: want %q, got %q",
				i, useIDs[i], resultIDs[i])
		}
	}
	return nil
}
