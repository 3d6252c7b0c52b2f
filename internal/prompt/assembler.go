package prompt

import "strings"

// Substitute replaces literal {key} tokens in text with the given variable
// values. Single pass, no escaping, no recursive expansion: a substituted
// value containing {other} is never expanded again.
func Substitute(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ContextInput carries the retrieved material for one generation request.
// Empty fields are omitted from the context block.
type ContextInput struct {
	Template string
	Examples []string
	Snippets []string
}

// IsEmpty reports whether no material is present at all.
func (in ContextInput) IsEmpty() bool {
	return in.Template == "" && len(in.Examples) == 0 && len(in.Snippets) == 0
}

// BuildContext renders the retrieved material as a labelled context block in
// fixed order: template, then examples, then snippets. Returns "" when all
// three are absent; no empty wrapper is ever emitted.
func BuildContext(in ContextInput) string {
	if in.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("<context>\n")
	if in.Template != "" {
		writeBlock(&b, "template", in.Template)
	}
	if len(in.Examples) > 0 {
		writeBlock(&b, "examples", strings.Join(in.Examples, "\n\n"))
	}
	if len(in.Snippets) > 0 {
		writeBlock(&b, "snippets", strings.Join(in.Snippets, "\n\n"))
	}
	b.WriteString("</context>")
	return b.String()
}

// Assemble prepends the context block to the user prompt. The context never
// leaks into the system prompt.
func Assemble(contextBlock, userPrompt string) string {
	if contextBlock == "" {
		return userPrompt
	}
	return contextBlock + "\n\n" + userPrompt
}

func writeBlock(b *strings.Builder, label, content string) {
	b.WriteString("<" + label + ">\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n</" + label + ">\n")
}
