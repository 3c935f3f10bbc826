package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// ScriptedClient replays a fixed sequence of assistant messages. It backs
// the agent and evaluator tests, where deterministic responses matter more
// than intelligence.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []datatypes.Message
	texts     []string
	calls     int
}

// NewScriptedClient builds a client that returns the given messages in
// order from Chat. Generate draws from texts the same way.
func NewScriptedClient(responses []datatypes.Message, texts []string) *ScriptedClient {
	return &ScriptedClient{responses: responses, texts: texts}
}

// Calls reports how many Chat invocations were consumed.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Chat implements ToolCallingClient.
func (s *ScriptedClient) Chat(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (datatypes.Message, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return datatypes.Message{}, fmt.Errorf("scripted client exhausted after %d calls", s.calls)
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

// Generate implements Generator.
func (s *ScriptedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return "", fmt.Errorf("scripted client has no generation script")
	}
	text := s.texts[0]
	if len(s.texts) > 1 {
		s.texts = s.texts[1:]
	}
	return text, nil
}
