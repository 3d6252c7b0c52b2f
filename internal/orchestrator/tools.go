package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool names of the fixed capability set.
const (
	ToolGetDocument = "get_document"
	ToolGetTemplate = "get_template"
	ToolGetExamples = "get_examples"
)

// defaultExampleCount applies when get_examples is called without a count.
const defaultExampleCount = 5

// Source is the retrieval surface the tools execute against. Satisfied by
// retrieval.Retriever.
type Source interface {
	Document(ctx context.Context, documentID string) (string, error)
	Template(ctx context.Context, modality string) (string, error)
	Examples(ctx context.Context, query string, count int) ([]string, error)
}

// toolDefinitions declares the fixed capability set offered to the model on
// the first round.
func toolDefinitions() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolGetDocument,
				Description: "Fetch the full text of a stored report or template by its document id.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"id": {"type": "string", "description": "Canonical document id, e.g. reports:mri:2024:g287-jane-doe"}
					},
					"required": ["id"]
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolGetTemplate,
				Description: "Fetch the report template for the current request.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"language": {"type": "string", "description": "Optional template language code"}
					}
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolGetExamples,
				Description: "Fetch example report passages similar to the current request.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"count": {"type": "integer", "description": "Number of examples, default 5"}
					}
				}`),
			},
		},
	}
}

// executeTool runs one tool call against the retrieval source. Failures are
// reported as descriptive output strings, never as errors: the conversation
// continues and the model sees what went wrong.
func executeTool(ctx context.Context, source Source, run *Run, name, arguments string) string {
	var args struct {
		ID       string `json:"id"`
		Language string `json:"language"`
		Count    int    `json:"count"`
	}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("invalid arguments for %s: %v", name, err)
		}
	}

	switch name {
	case ToolGetDocument:
		if args.ID == "" {
			return "get_document requires an id argument"
		}
		text, err := source.Document(ctx, args.ID)
		if err != nil {
			return fmt.Sprintf("document %s not found: %v", args.ID, err)
		}
		return text

	case ToolGetTemplate:
		text, err := source.Template(ctx, run.Modality)
		if err != nil {
			return fmt.Sprintf("no template available: %v", err)
		}
		return text

	case ToolGetExamples:
		count := args.Count
		if count <= 0 {
			count = defaultExampleCount
		}
		examples, err := source.Examples(ctx, run.Query, count)
		if err != nil {
			return fmt.Sprintf("example retrieval failed: %v", err)
		}
		if len(examples) == 0 {
			return "no examples found"
		}
		joined := examples[0]
		for _, example := range examples[1:] {
			joined += "\n\n" + example
		}
		return joined

	default:
		return fmt.Sprintf("unknown tool: %s", name)
	}
}
