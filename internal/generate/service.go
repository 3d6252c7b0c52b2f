// Package generate wires the read path together: prompt assembly, context
// retrieval and the orchestrated tool loop, producing drafted report text.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/orchestrator"
	"github.com/radwerk/reportd/internal/prompt"
	"go.uber.org/zap"
)

// ErrEmptyRequest indicates neither a document id nor request terms were
// given.
var ErrEmptyRequest = errors.New("document id or terms required")

// Request describes one generation request.
type Request struct {
	// DocumentID names the report being drafted; its derived metadata
	// fills the prompt variables. Optional when Terms is set.
	DocumentID string

	// Terms is the free-text request driving example retrieval. Optional
	// when DocumentID is set.
	Terms string

	// Language selects the prompt template language; empty falls back to
	// the configured default.
	Language string
}

// Source retrieves stored material for the context block and the tool loop.
// Satisfied by retrieval.Retriever.
type Source interface {
	orchestrator.Source
}

// Service runs generation requests end to end.
type Service struct {
	parser       *identifier.Parser
	prompts      *prompt.Store
	source       Source
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

// NewService creates a generation service.
func NewService(parser *identifier.Parser, prompts *prompt.Store, source Source, orch *orchestrator.Orchestrator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		parser:       parser,
		prompts:      prompts,
		source:       source,
		orchestrator: orch,
		logger:       logger,
	}
}

// Generate drafts report text for the request. Retrieval misses while
// building the context block are tolerated: the block shrinks or disappears
// and the model can still reach the material through its tools.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if req.DocumentID == "" && strings.TrimSpace(req.Terms) == "" {
		return "", ErrEmptyRequest
	}

	var meta identifier.DocumentMetadata
	if req.DocumentID != "" {
		meta = s.parser.Metadata(s.parser.Parse(req.DocumentID))
	}

	system, err := s.prompts.Load(prompt.TemplateSystem, req.Language)
	if err != nil {
		return "", fmt.Errorf("loading system template: %w", err)
	}
	userTemplate, err := s.prompts.Load(prompt.TemplateReport, req.Language)
	if err != nil {
		return "", fmt.Errorf("loading report template: %w", err)
	}

	query := strings.TrimSpace(req.Terms)
	if query == "" {
		query = strings.TrimSpace(meta.Name + " " + meta.Modality)
	}

	user := prompt.Substitute(userTemplate, map[string]string{
		"name":     meta.Name,
		"modality": meta.Modality,
		"terms":    query,
	})

	contextBlock := prompt.BuildContext(s.buildContextInput(ctx, meta, query))
	run := orchestrator.NewRun(system, prompt.Assemble(contextBlock, user), query, meta.Modality)

	text, err := s.orchestrator.Generate(ctx, run)
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}

	s.logger.Info("generated report draft",
		zap.String("document_id", req.DocumentID),
		zap.String("language", req.Language),
		zap.Int("length", len(text)),
	)
	return text, nil
}

// buildContextInput gathers what retrieval can offer up front. Every miss is
// logged at debug and skipped.
func (s *Service) buildContextInput(ctx context.Context, meta identifier.DocumentMetadata, query string) prompt.ContextInput {
	var in prompt.ContextInput

	if template, err := s.source.Template(ctx, meta.Modality); err == nil {
		in.Template = template
	} else {
		s.logger.Debug("no template for context block", zap.Error(err))
	}

	if examples, err := s.source.Examples(ctx, query, 0); err == nil {
		in.Examples = examples
	} else {
		s.logger.Debug("no examples for context block", zap.Error(err))
	}

	if meta.DocumentID != "" {
		if body, err := s.source.Document(ctx, meta.DocumentID); err == nil {
			in.Snippets = []string{body}
		} else {
			s.logger.Debug("no stored document for context block", zap.Error(err))
		}
	}

	return in
}
