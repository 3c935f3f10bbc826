package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate implements the Generator interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	applyParams(&req, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// Chat implements the ToolCallingClient interface. The block-structured
// history is flattened into the OpenAI chat format: tool_use blocks become
// tool calls on an assistant message and tool_result blocks become "tool"
// role messages.
func (o *OpenAIClient) Chat(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (datatypes.Message, error) {
	var apiMessages []openai.ChatCompletionMessage
	if system != "" {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		apiMessages = append(apiMessages, flattenMessage(msg)...)
	}

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: apiMessages,
	}
	applyParams(&req, params)

	for _, tool := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return datatypes.Message{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return datatypes.Message{}, fmt.Errorf("OpenAI returned no choices")
	}

	choice := resp.Choices[0].Message
	var content []datatypes.ContentBlock
	if choice.Content != "" {
		content = append(content, datatypes.ContentBlock{Type: datatypes.BlockText, Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		content = append(content, datatypes.ContentBlock{
			Type:  datatypes.BlockToolUse,
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	if len(content) == 0 {
		return datatypes.Message{}, fmt.Errorf("OpenAI returned an empty message")
	}
	return datatypes.Message{Role: datatypes.RoleAssistant, Content: content}, nil
}

// flattenMessage converts one block-structured message into the one or more
// flat messages the OpenAI API expects.
func flattenMessage(msg datatypes.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	if msg.Role == datatypes.RoleAssistant {
		flat := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
		for _, block := range msg.Content {
			switch block.Type {
			case datatypes.BlockText:
				flat.Content += block.Text
			case datatypes.BlockToolUse:
				flat.ToolCalls = append(flat.ToolCalls, openai.ToolCall{
					ID:   block.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.Name,
						Arguments: string(block.Input),
					},
				})
			}
		}
		return append(out, flat)
	}

	// User side: plain text and tool results cannot share one message.
	var text string
	for _, block := range msg.Content {
		switch block.Type {
		case datatypes.BlockText:
			text += block.Text
		case datatypes.BlockToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    block.Content,
				ToolCallID: block.ToolUseID,
			})
		}
	}
	if text != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: text,
		})
	}
	return out
}

func applyParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}
