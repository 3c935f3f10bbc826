package llm

import (
	"context"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ToolDefinition describes one callable tool in the provider-neutral shape.
// InputSchema is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Generator defines the minimal interface for plain text generation.
// The evaluator's judge only needs this.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ToolCallingClient runs one full conversation turn with tool definitions
// attached. The returned assistant message may interleave text and tool_use
// content blocks; callers partition it with datatypes.PartitionBlocks.
type ToolCallingClient interface {
	Generator
	Chat(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (datatypes.Message, error)
}
