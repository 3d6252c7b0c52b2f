package orchestrator

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// thinkBlock matches chain-of-thought regions some models emit before the
// answer.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ChatCompleter is the chat endpoint surface. Satisfied by Client.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Message, error)
}

// Run is the explicit per-request state: the prompts, the retrieval context
// the tools need, and the tool-result cache. A Run is single-use and not
// safe for concurrent use.
type Run struct {
	System string
	User   string

	// Query is the search text get_examples runs against.
	Query string

	// Modality restricts get_template, empty matches any.
	Modality string

	cache map[uint64]string
}

// NewRun creates run state for one generation request.
func NewRun(system, user, query, modality string) *Run {
	return &Run{
		System:   system,
		User:     user,
		Query:    query,
		Modality: modality,
		cache:    make(map[uint64]string),
	}
}

// fingerprint keys the tool cache by name and arguments, independent of the
// model-assigned call id: repeated identical calls reuse the first result.
func fingerprint(name, arguments string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(arguments))
	return h.Sum64()
}

// Orchestrator runs the bounded tool loop against the chat endpoint.
type Orchestrator struct {
	client ChatCompleter
	source Source
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(client ChatCompleter, source Source, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{client: client, source: source, logger: logger}
}

// Generate runs the conversation to completion and returns the final content
// with any <think> region stripped.
//
// The model is offered the tool set only on the first request. After the
// first tool round the tools array is stripped, which bounds the loop to
// effectively one round of tool use: without tools on offer the model must
// answer with content. Tool execution failures become tool-output strings
// and never abort the run; transport or HTTP failure of the chat call itself
// does.
func (o *Orchestrator) Generate(ctx context.Context, run *Run) (string, error) {
	messages := []Message{
		{Role: "system", Content: run.System},
		{Role: "user", Content: run.User},
	}
	tools := toolDefinitions()

	for round := 1; ; round++ {
		response, err := o.client.Complete(ctx, messages, tools)
		if err != nil {
			return "", fmt.Errorf("chat round %d: %w", round, err)
		}

		if len(response.ToolCalls) == 0 {
			return stripThink(response.Content), nil
		}

		messages = append(messages, *response)
		for _, call := range response.ToolCalls {
			result := o.dispatch(ctx, run, call)
			messages = append(messages, Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		tools = nil
	}
}

// dispatch executes one tool call through the run's result cache.
func (o *Orchestrator) dispatch(ctx context.Context, run *Run, call ToolCall) string {
	key := fingerprint(call.Function.Name, call.Function.Arguments)
	if cached, ok := run.cache[key]; ok {
		o.logger.Debug("tool cache hit", zap.String("tool", call.Function.Name))
		return cached
	}

	result := executeTool(ctx, o.source, run, call.Function.Name, call.Function.Arguments)
	run.cache[key] = result

	o.logger.Debug("tool executed",
		zap.String("tool", call.Function.Name),
		zap.Int("result_len", len(result)),
	)
	return result
}

func stripThink(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}
