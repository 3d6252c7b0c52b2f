package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{Model: "m"})
	assert.ErrorContains(t, err, "url required")

	_, err = NewClient(ClientConfig{URL: "http://localhost/v1/chat/completions"})
	assert.ErrorContains(t, err, "model required")
}

func TestClient_Complete(t *testing.T) {
	var captured map[string]any
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		URL:         server.URL,
		Model:       "qwen3:14b",
		APIKey:      "secret-key",
		Temperature: 0.3,
		TopP:        0.9,
		TopK:        40,
		MinP:        0.05,
		MaxTokens:   4096,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	response, err := client.Complete(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, toolDefinitions())
	require.NoError(t, err)
	assert.Equal(t, "hello", response.Content)

	assert.Equal(t, "Bearer secret-key", authHeader)
	assert.Equal(t, "qwen3:14b", captured["model"])
	assert.Equal(t, "auto", captured["tool_choice"])
	assert.Equal(t, false, captured["parallel_tool_calls"])
	assert.Equal(t, false, captured["stream"])
	assert.InDelta(t, 0.3, captured["temperature"], 1e-9)
	assert.InDelta(t, 0.9, captured["top_p"], 1e-9)
	assert.EqualValues(t, 40, captured["top_k"])
	assert.InDelta(t, 0.05, captured["min_p"], 1e-9)
	assert.EqualValues(t, 4096, captured["max_tokens"])
	assert.Len(t, captured["tools"], 3)
}

func TestClient_Complete_NoTools(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{URL: server.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)

	_, hasTools := captured["tools"]
	assert.False(t, hasTools, "tools omitted when stripped")
	_, hasChoice := captured["tool_choice"]
	assert.False(t, hasChoice)
	_, hasParallel := captured["parallel_tool_calls"]
	assert.False(t, hasParallel)
}

func TestClient_Complete_ToolCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_abc",
						"type": "function",
						"function": map[string]any{
							"name":      "get_document",
							"arguments": `{"id":"reports:a"}`,
						},
					}},
				},
			}},
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{URL: server.URL, Model: "m"})
	require.NoError(t, err)

	response, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, toolDefinitions())
	require.NoError(t, err)

	require.Len(t, response.ToolCalls, 1)
	assert.Equal(t, "call_abc", response.ToolCalls[0].ID)
	assert.Equal(t, "get_document", response.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"id":"reports:a"}`, response.ToolCalls[0].Function.Arguments)
}

func TestClient_Complete_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{URL: server.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{URL: server.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
