package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aperturelabs/deepquery/internal/appconfig"
	"github.com/aperturelabs/deepquery/internal/research"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// ChatClient is the interface for LLM interactions (allows faking in tests).
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, maxTokens int, temperature float64) (*ChatResponse, error)
	StreamChat(ctx context.Context, messages []Message, maxTokens int, temperature float64, handler func(chunk string) error) error
	SetModel(model string)
	GetModel() string
}

// Client is a raw net/http OpenRouter client. No SDK dependency: OpenRouter
// exposes a single OpenAI-shaped REST endpoint, so a small client built
// directly on net/http covers it without pulling in a provider SDK.
type Client struct {
	apiKey     string
	httpClient *http.Client
	model      string
}

// NewClient builds a Client from process configuration.
func NewClient(cfg *appconfig.AppConfig) *Client {
	return &Client{
		apiKey:     cfg.OpenRouterAPIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		model:      cfg.Model,
	}
}

// NewClientWithDefaults builds a Client against DefaultModel with a
// generous timeout, for callers outside the composition root (tests, ad
// hoc tools) that don't carry a full AppConfig.
func NewClientWithDefaults(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		model:      DefaultModel,
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the wire shape OpenRouter's chat completion endpoint
// expects; unexported since callers only ever construct one through Chat
// or StreamChat.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ChatResponse is a non-streaming completion response. Usage is the same
// public type OpenRouterProvider.Generate returns, so no separate
// conversion step is needed between the wire format and Provider's
// vocabulary.
type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// send builds, issues, and validates one OpenRouter request. Chat and
// StreamChat both route through it so header construction and error
// classification live in exactly one place; the caller gets back an open
// response body it is responsible for closing.
func (c *Client) send(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/aperturelabs/deepquery")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("API error %d: %s", resp.StatusCode, string(errBody))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &research.ProviderTransientError{Err: apiErr}
		}
		return nil, apiErr
	}
	return resp, nil
}

// classifyError wraps connect/timeout failures as research.ProviderTransientError
// so they are retried at the outer task boundary (internal/task), per
// spec.md §7. Other errors are wrapped with context but not marked
// transient.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &research.ProviderTransientError{Err: err}
	}
	return fmt.Errorf("send request: %w", err)
}

// Chat sends a single-shot chat completion request.
func (c *Client) Chat(ctx context.Context, messages []Message, maxTokens int, temperature float64) (*ChatResponse, error) {
	resp, err := c.send(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &chatResp, nil
}

// SetModel changes the model used for requests.
func (c *Client) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *Client) GetModel() string { return c.model }

// StreamChat sends a streaming chat request and calls handler for each
// content chunk as it arrives over the SSE stream.
func (c *Client) StreamChat(ctx context.Context, messages []Message, maxTokens int, temperature float64, handler func(chunk string) error) error {
	resp, err := c.send(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // malformed SSE chunk, skip it
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := handler(chunk.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
