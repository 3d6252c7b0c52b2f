package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/radwerk/reportd/internal/identifier"
	"github.com/radwerk/reportd/internal/orchestrator"
	"github.com/radwerk/reportd/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures the first request and answers with fixed content.
type recordingClient struct {
	messages []orchestrator.Message
}

func (r *recordingClient) Complete(_ context.Context, messages []orchestrator.Message, _ []orchestrator.Tool) (*orchestrator.Message, error) {
	if r.messages == nil {
		r.messages = messages
	}
	return &orchestrator.Message{Role: "assistant", Content: "drafted text"}, nil
}

type fakeSource struct {
	template string
	examples []string
	document string
}

func (f *fakeSource) Document(context.Context, string) (string, error) {
	if f.document == "" {
		return "", errors.New("not stored")
	}
	return f.document, nil
}

func (f *fakeSource) Template(context.Context, string) (string, error) {
	if f.template == "" {
		return "", errors.New("no template")
	}
	return f.template, nil
}

func (f *fakeSource) Examples(context.Context, string, int) ([]string, error) {
	if f.examples == nil {
		return nil, errors.New("no examples")
	}
	return f.examples, nil
}

func newTestService(t *testing.T, source *fakeSource, client orchestrator.ChatCompleter) *Service {
	t.Helper()
	parser := identifier.NewParser(identifier.Config{DefaultInstitution: "internal"})
	prompts := prompt.NewStore(prompt.Config{Dir: t.TempDir(), DefaultLanguage: "en"})
	orch := orchestrator.NewOrchestrator(client, source, nil)
	return NewService(parser, prompts, source, orch, nil)
}

func TestGenerate_FullContext(t *testing.T) {
	client := &recordingClient{}
	source := &fakeSource{
		template: "template body",
		examples: []string{"example one"},
		document: "stored report",
	}
	s := newTestService(t, source, client)

	text, err := s.Generate(context.Background(), Request{
		DocumentID: "reports:mri:2024:g287-jane-doe",
		Terms:      "knee follow-up",
	})
	require.NoError(t, err)
	assert.Equal(t, "drafted text", text)

	require.Len(t, client.messages, 2)
	assert.Equal(t, "system", client.messages[0].Role)
	assert.Contains(t, client.messages[0].Content, "radiology")

	user := client.messages[1].Content
	assert.Contains(t, user, "<context>")
	assert.Contains(t, user, "template body")
	assert.Contains(t, user, "example one")
	assert.Contains(t, user, "stored report")
	assert.Contains(t, user, "jane doe", "prompt variables substituted from metadata")
	assert.Contains(t, user, "knee follow-up")
	assert.Less(t, strings.Index(user, "</context>"), strings.Index(user, "jane doe"),
		"context block is prepended to the user prompt")
}

func TestGenerate_NoContextOmitsWrapper(t *testing.T) {
	client := &recordingClient{}
	s := newTestService(t, &fakeSource{}, client)

	_, err := s.Generate(context.Background(), Request{Terms: "knee mri"})
	require.NoError(t, err, "retrieval misses never fail the request")
	assert.NotContains(t, client.messages[1].Content, "<context>")
}

func TestGenerate_QueryFallsBackToMetadata(t *testing.T) {
	client := &recordingClient{}
	s := newTestService(t, &fakeSource{}, client)

	_, err := s.Generate(context.Background(), Request{
		DocumentID: "reports:mri:2024:g287-jane-doe",
	})
	require.NoError(t, err)
	assert.Contains(t, client.messages[1].Content, "jane doe mri",
		"terms default to name and modality")
}

func TestGenerate_EmptyRequest(t *testing.T) {
	s := newTestService(t, &fakeSource{}, &recordingClient{})

	_, err := s.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestGenerate_LanguageSelectsTemplate(t *testing.T) {
	client := &recordingClient{}
	s := newTestService(t, &fakeSource{}, client)

	_, err := s.Generate(context.Background(), Request{Terms: "knie mrt", Language: "de"})
	require.NoError(t, err)
	assert.Contains(t, client.messages[0].Content, "radiologische Befundung")
}
