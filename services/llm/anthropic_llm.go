package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens    = 4096
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`
	Tools     []toolsDefinition  `json:"tools,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// anthropicMessage carries structured content blocks. datatypes.ContentBlock
// already mirrors the wire format, so no translation layer is needed.
type anthropicMessage struct {
	Role    string                   `json:"role"`
	Content []datatypes.ContentBlock `json:"content"`
}

type anthropicResponse struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Role       string                   `json:"role"`
	Content    []datatypes.ContentBlock `json:"content"`
	StopReason string                   `json:"stop_reason"`
	Error      *anthropicError          `json:"error,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type toolsDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"input_schema"` // JSON Schema
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

type AnthropicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	model      string
}

func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := os.Getenv("CLAUDE_MODEL")

	// 1. Robust Secret Loading
	if apiKey == "" {
		secretPath := "/run/secrets/anthropic_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Anthropic API Key from Podman Secrets")
		}
	}

	// 2. Graceful Failure
	if apiKey == "" {
		slog.Warn("Anthropic API Key is missing.")
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is missing")
	}

	if model == "" {
		model = "claude-sonnet-4-20250514"
		slog.Info("CLAUDE_MODEL not set, defaulting to", "model", model)
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		// An agent turn fires one call per iteration plus judge calls;
		// throttle locally instead of surfacing provider 429s.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		apiKey:  apiKey,
		model:   model,
	}, nil
}

// Generate implements the Generator interface.
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	messages := []datatypes.Message{datatypes.TextMessage(datatypes.RoleUser, prompt)}
	resp, err := a.Chat(ctx, "", messages, nil, params)
	if err != nil {
		return "", err
	}
	texts, _ := datatypes.PartitionBlocks(resp.Content)
	if len(texts) == 0 {
		return "", fmt.Errorf("received content but no text block found")
	}
	return strings.Join(texts, "\n"), nil
}

// Chat implements the ToolCallingClient interface.
func (a *AnthropicClient) Chat(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (datatypes.Message, error) {
	apiMessages := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	// Handle System Prompt with Caching
	var systemBlocks []systemBlock
	if system != "" {
		block := systemBlock{Type: "text", Text: system}
		if len(system) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	reqPayload := anthropicRequest{
		Model:       a.model,
		Messages:    apiMessages,
		System:      systemBlocks,
		MaxTokens:   defaultMaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		StopSeqs:    params.Stop,
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = *params.MaxTokens
	}
	for _, tool := range tools {
		reqPayload.Tools = append(reqPayload.Tools, toolsDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return datatypes.Message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return datatypes.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", defaultBaseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return datatypes.Message{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Anthropic", "model", a.model, "tools", len(tools))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return datatypes.Message{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return datatypes.Message{}, fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return datatypes.Message{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return datatypes.Message{}, fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	if len(apiResp.Content) == 0 {
		return datatypes.Message{}, fmt.Errorf("received empty content from Anthropic")
	}

	slog.Debug("Anthropic response", "stop_reason", apiResp.StopReason, "blocks", len(apiResp.Content))

	return datatypes.Message{Role: datatypes.RoleAssistant, Content: apiResp.Content}, nil
}
