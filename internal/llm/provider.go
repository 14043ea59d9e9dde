package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/aperturelabs/deepquery/internal/research"
)

// ToolSchema describes one callable tool for GenerateWithTools, matching
// spec.md §6's {name, description, input_schema} shape.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Provider is the Loop's LLM capability interface (spec.md §4.3, §6).
// Generate is the primary structured-output workhorse; GenerateWithTools is
// optional function-call-style structured output. ContextWindowTokens and
// Model are optional read-only attributes whose presence the Loop probes:
// a non-zero ContextWindowTokens makes it construct a BudgetTracker and a
// non-empty Model a CostTracker, each independently (internal/loop wiring).
type Provider interface {
	Generate(ctx context.Context, messages []Message, systemPrompt string, maxTokens int, temperature float64) (string, Usage, error)
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSchema, systemPrompt string, maxTokens int, temperature float64) (map[string]any, Usage, error)
	ContextWindowTokens() int
	Model() string
}

// Usage is the wire shape of an OpenRouter usage block, tagged directly so
// ChatResponse can decode into it with no intermediate anonymous struct.
// Provider implementations other than Client report Usage without
// depending on this package's HTTP types.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenRouterProvider adapts the teacher's raw-net/http ChatClient to the
// Provider interface spec.md §4.3 describes. Grounded on
// internal/llm/client.go, which the teacher itself implements with no LLM
// SDK dependency (see DESIGN.md for the stdlib-only justification).
type OpenRouterProvider struct {
	client              ChatClient
	contextWindowTokens int
}

var _ Provider = (*OpenRouterProvider)(nil)

// NewOpenRouterProvider wraps an existing ChatClient. contextWindowTokens
// is the model's advertised context window; pass 0 if unknown (the Loop
// then skips constructing a BudgetTracker, per spec.md §4.3).
func NewOpenRouterProvider(client ChatClient, contextWindowTokens int) *OpenRouterProvider {
	return &OpenRouterProvider{client: client, contextWindowTokens: contextWindowTokens}
}

func (p *OpenRouterProvider) Generate(ctx context.Context, messages []Message, systemPrompt string, maxTokens int, temperature float64) (string, Usage, error) {
	full := withSystemPrompt(messages, systemPrompt)
	resp, err := p.client.Chat(ctx, full, maxTokens, temperature)
	if err != nil {
		// Client.Chat already classifies transient failures.
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, nil
	}
	return resp.Choices[0].Message.Content, resp.Usage, nil
}

// GenerateWithTools is not supported by the OpenRouter raw-HTTP client
// (the teacher's client has no function-calling request shape): it always
// returns a non-nil error and no result, so callers use Generate + the JSON
// parsing contract instead, matching spec.md §4.3's
// "optionally GenerateWithTools... used when available."
func (p *OpenRouterProvider) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSchema, systemPrompt string, maxTokens int, temperature float64) (map[string]any, Usage, error) {
	return nil, Usage{}, errors.New("llm: GenerateWithTools not supported by OpenRouterProvider")
}

func (p *OpenRouterProvider) ContextWindowTokens() int { return p.contextWindowTokens }
func (p *OpenRouterProvider) Model() string             { return p.client.GetModel() }

func withSystemPrompt(messages []Message, systemPrompt string) []Message {
	if systemPrompt == "" {
		return messages
	}
	full := make([]Message, 0, len(messages)+1)
	full = append(full, Message{Role: "system", Content: systemPrompt})
	full = append(full, messages...)
	return full
}

// IsRetryable reports whether err should be retried at the outer task
// boundary (internal/task), per spec.md §7.
func IsRetryable(err error) bool {
	var transient *research.ProviderTransientError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, http.ErrHandlerTimeout)
}
