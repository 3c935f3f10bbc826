package llm

import (
	"fmt"
	"strings"
)

// NewToolCallingClient selects the tool-calling backend by name.
// Supported providers: "anthropic" (default), "openai".
func NewToolCallingClient(provider string) (ToolCallingClient, error) {
	switch strings.ToLower(provider) {
	case "", "anthropic":
		return NewAnthropicClient()
	case "openai":
		return NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown tool-calling provider %q", provider)
	}
}

// NewGenerator selects a plain generation backend by name. The judge can run
// on a cheaper or local model than the main turn.
// Supported providers: "anthropic" (default), "openai", "ollama".
func NewGenerator(provider string) (Generator, error) {
	switch strings.ToLower(provider) {
	case "", "anthropic":
		return NewAnthropicClient()
	case "openai":
		return NewOpenAIClient()
	case "ollama":
		return NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown generator provider %q", provider)
	}
}
