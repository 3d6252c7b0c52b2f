// Package orchestrator drives the chat-completions tool loop for report
// generation. The loop is bounded: the tools array is stripped from the
// request after the first tool-call round.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client defaults.
const (
	defaultRateLimit = 2.0 // requests per second
	defaultBurst     = 4
	defaultTimeout   = 120 * time.Second
)

// ErrEmptyResponse indicates the chat endpoint returned no choices.
var ErrEmptyResponse = errors.New("empty response from chat endpoint")

// Message is one chat-completions message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares one callable function to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function schema inside a tool declaration.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ClientConfig holds chat endpoint settings and sampling parameters.
type ClientConfig struct {
	URL         string
	Model       string
	APIKey      string
	Temperature float64
	TopP        float64
	TopK        int
	MinP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// Validate validates the configuration.
func (c ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("chat url required")
	}
	if c.Model == "" {
		return errors.New("chat model required")
	}
	return nil
}

// Client calls an OpenAI-compatible chat-completions endpoint. Requests are
// rate limited; failures are terminal with no internal retry.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a chat-completions client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

type chatRequest struct {
	Model             string    `json:"model"`
	Messages          []Message `json:"messages"`
	Tools             []Tool    `json:"tools,omitempty"`
	ToolChoice        string    `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool     `json:"parallel_tool_calls,omitempty"`
	Temperature       float64   `json:"temperature,omitempty"`
	TopP              float64   `json:"top_p,omitempty"`
	TopK              int       `json:"top_k,omitempty"`
	MinP              float64   `json:"min_p,omitempty"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	Stream            bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completions round trip. When tools are given the
// request carries tool_choice=auto and parallel_tool_calls=false; the model
// then answers with either content or tool calls.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		TopK:        c.config.TopK,
		MinP:        c.config.MinP,
		MaxTokens:   c.config.MaxTokens,
		Stream:      false,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
		parallel := false
		req.ParallelToolCalls = &parallel
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &parsed.Choices[0].Message, nil
}
