// Package chunker splits document bodies into ordered paragraph chunks.
//
// Documents are split at blank-line boundaries. Heading lines (wrapped in
// repeated "=" markers) are not emitted as chunks: their words become the
// current tag set, carried forward to every following chunk until the next
// heading.
package chunker

import (
	"regexp"
	"strings"
)

// minTagLength is the minimum word length for heading words to become tags.
const minTagLength = 4

var (
	// blankLines matches one or more blank lines separating paragraphs.
	blankLines = regexp.MustCompile(`\n[ \t]*\n+`)

	// heading matches a segment wrapped in repeated "=" markers,
	// e.g. "== Findings ==".
	heading = regexp.MustCompile(`^=+\s*(.*?)\s*=+$`)

	// tagWord matches candidate tag words inside a heading.
	tagWord = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// Chunk is one non-empty paragraph of a document.
type Chunk struct {
	// Content is the trimmed paragraph text.
	Content string

	// Number is the 1-based position among emitted chunks.
	Number int

	// Tags is the tag set of the most recently seen heading, lowercased and
	// deduplicated. Nil when no heading precedes the chunk.
	Tags []string
}

// Split breaks text into ordered chunks. Segments matching the heading
// pattern update the current tag set instead of being emitted; empty
// segments are dropped. The returned slice length is the document's total
// chunk count.
func Split(text string) []Chunk {
	segments := blankLines.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1)

	var chunks []Chunk
	var tags []string

	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if m := heading.FindStringSubmatch(segment); m != nil {
			tags = headingTags(m[1])
			continue
		}

		chunks = append(chunks, Chunk{
			Content: segment,
			Number:  len(chunks) + 1,
			Tags:    tags,
		})
	}

	return chunks
}

// headingTags extracts the tag set from heading text: lowercased words of at
// least minTagLength characters, deduplicated, in order of first appearance.
func headingTags(text string) []string {
	words := tagWord.FindAllString(strings.ToLower(text), -1)

	var tags []string
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) < minTagLength || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
	}
	return tags
}
