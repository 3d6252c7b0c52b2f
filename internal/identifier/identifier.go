// Package identifier derives canonical document identifiers and structured
// metadata from filesystem paths and hierarchical document IDs.
//
// A canonical identifier is a colon-joined path rooted at the fixed "reports"
// namespace, e.g. "reports:mri:2024:g287-jane-doe". Parsing is a pure
// function of the input and the configured base path: it never fails, and
// malformed input yields a best-effort identifier.
package identifier

import (
	"path/filepath"
	"strconv"
	"strings"
)

// RootNamespace is the fixed first segment of every canonical identifier.
// It doubles as the default collection name for ingested documents.
const RootNamespace = "reports"

// templatesSegment marks template documents anywhere in the identifier.
const templatesSegment = "templates"

// Config holds parser settings.
type Config struct {
	// BasePath is the document tree root stripped from filesystem paths.
	BasePath string

	// DefaultInstitution is assigned when the identifier carries a year
	// segment in place of an institution segment.
	DefaultInstitution string
}

// Parser converts paths and ID strings into canonical identifiers and
// derives document metadata from them.
type Parser struct {
	basePath           string
	defaultInstitution string
}

// NewParser creates a parser for the given configuration.
func NewParser(cfg Config) *Parser {
	return &Parser{
		basePath:           filepath.Clean(cfg.BasePath),
		defaultInstitution: cfg.DefaultInstitution,
	}
}

// ID is a canonical colon-joined document identifier.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// Segments splits the identifier into its non-empty segments.
func (id ID) Segments() []string {
	if id == "" {
		return nil
	}
	raw := strings.Split(string(id), ":")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Collection returns the collection name for this identifier: the first
// segment, or fallback when the identifier is empty. All callers resolve
// collection names through this method.
func (id ID) Collection(fallback string) string {
	segments := id.Segments()
	if len(segments) == 0 {
		return fallback
	}
	return segments[0]
}

// ChunkID returns the id of the n-th (1-based) chunk of this document.
func (id ID) ChunkID(n int) string {
	return string(id) + "@" + strconv.Itoa(n)
}

// Parse converts a filesystem path or an already-colon-delimited ID into a
// canonical identifier. Filesystem paths are stripped of the configured base
// path and their extension, then split on path separators. The fixed root
// segment is prepended when missing.
func (p *Parser) Parse(input string) ID {
	if input == "" {
		return ID(RootNamespace)
	}

	var raw []string
	if strings.Contains(input, ":") && !strings.ContainsAny(input, `/\`) {
		raw = strings.Split(strings.ToLower(input), ":")
	} else {
		cleaned := filepath.ToSlash(filepath.Clean(input))
		base := filepath.ToSlash(p.basePath)
		if base != "" && base != "." {
			cleaned = strings.TrimPrefix(cleaned, base)
		}
		if ext := filepath.Ext(cleaned); ext != "" {
			cleaned = strings.TrimSuffix(cleaned, ext)
		}
		raw = strings.Split(strings.ToLower(cleaned), "/")
	}

	segments := make([]string, 0, len(raw)+1)
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 || segments[0] != RootNamespace {
		segments = append([]string{RootNamespace}, segments...)
	}

	return ID(strings.Join(segments, ":"))
}
