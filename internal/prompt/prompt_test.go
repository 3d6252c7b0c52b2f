package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadEmbeddedDefault(t *testing.T) {
	store := NewStore(Config{Dir: t.TempDir(), DefaultLanguage: "en"})

	text, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)
	assert.Contains(t, text, "radiology reporting assistant")
}

func TestStore_LoadWritesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Config{Dir: dir, DefaultLanguage: "en"})

	_, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "system_en.txt")
	assert.Contains(t, names, "report_de.txt")
}

func TestStore_UserFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "system_en.txt"), []byte("custom system prompt\n"), 0o600))

	store := NewStore(Config{Dir: dir, DefaultLanguage: "en"})

	text, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)
	assert.Equal(t, "custom system prompt", text)
}

func TestStore_LanguageFallback(t *testing.T) {
	store := NewStore(Config{Dir: t.TempDir(), DefaultLanguage: "en"})

	text, err := store.Load(TemplateSystem, "fr")
	require.NoError(t, err, "missing language falls back to the default")
	assert.Contains(t, text, "radiology reporting assistant")
}

func TestStore_EmptyLanguageUsesDefault(t *testing.T) {
	store := NewStore(Config{Dir: t.TempDir(), DefaultLanguage: "de"})

	text, err := store.Load(TemplateSystem, "")
	require.NoError(t, err)
	assert.Contains(t, text, "radiologische Befundung")
}

func TestStore_UnknownTemplate(t *testing.T) {
	store := NewStore(Config{Dir: t.TempDir(), DefaultLanguage: "en"})

	_, err := store.Load("nonexistent", "en")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Config{Dir: dir, DefaultLanguage: "en"})

	first, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "system_en.txt"), []byte("edited\n"), 0o600))

	cached, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)
	assert.Equal(t, first, cached, "edits are invisible until Reload")

	store.Reload()
	fresh, err := store.Load(TemplateSystem, "en")
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]string
		want string
	}{
		{
			name: "single token",
			text: "Draft the report for {name}.",
			vars: map[string]string{"name": "jane doe"},
			want: "Draft the report for jane doe.",
		},
		{
			name: "multiple tokens",
			text: "{name} ({modality})",
			vars: map[string]string{"name": "jane doe", "modality": "mri"},
			want: "jane doe (mri)",
		},
		{
			name: "unknown token left verbatim",
			text: "hello {missing}",
			vars: map[string]string{"name": "x"},
			want: "hello {missing}",
		},
		{
			name: "no recursive expansion",
			text: "{a}",
			vars: map[string]string{"a": "{b}", "b": "boom"},
			want: "{b}",
		},
		{
			name: "nil vars",
			text: "plain",
			vars: nil,
			want: "plain",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Substitute(tc.text, tc.vars))
		})
	}
}

func TestBuildContext_AllAbsentOmitsWrapper(t *testing.T) {
	block := BuildContext(ContextInput{})
	assert.Empty(t, block)
	assert.NotContains(t, block, "<context>")
}

func TestBuildContext_FixedOrder(t *testing.T) {
	block := BuildContext(ContextInput{
		Template: "template body",
		Examples: []string{"example one", "example two"},
		Snippets: []string{"snippet one"},
	})

	assert.True(t, strings.HasPrefix(block, "<context>\n"))
	assert.True(t, strings.HasSuffix(block, "</context>"))

	templateAt := strings.Index(block, "<template>")
	examplesAt := strings.Index(block, "<examples>")
	snippetsAt := strings.Index(block, "<snippets>")
	require.True(t, templateAt >= 0 && examplesAt >= 0 && snippetsAt >= 0)
	assert.Less(t, templateAt, examplesAt)
	assert.Less(t, examplesAt, snippetsAt)

	assert.Contains(t, block, "example one\n\nexample two")
}

func TestBuildContext_PartialInput(t *testing.T) {
	block := BuildContext(ContextInput{Snippets: []string{"only snippet"}})

	assert.Contains(t, block, "<context>")
	assert.Contains(t, block, "<snippets>\nonly snippet\n</snippets>")
	assert.NotContains(t, block, "<template>")
	assert.NotContains(t, block, "<examples>")
}

func TestAssemble(t *testing.T) {
	assert.Equal(t, "user prompt", Assemble("", "user prompt"))

	combined := Assemble("<context>\nx\n</context>", "user prompt")
	assert.True(t, strings.HasPrefix(combined, "<context>"))
	assert.True(t, strings.HasSuffix(combined, "user prompt"))
}
