// Package prompt loads language-specific prompt templates from user-editable
// files, substitutes variables and assembles the contextual block prepended
// to generation prompts.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrTemplateNotFound indicates a template is missing in both the requested
// language and the configured default language.
var ErrTemplateNotFound = errors.New("prompt template not found")

// Template names.
const (
	TemplateSystem = "system"
	TemplateReport = "report"
)

// Config holds prompt store settings.
type Config struct {
	// Dir is the directory holding <name>_<language>.txt template files.
	Dir string

	// DefaultLanguage is the fallback when a requested language is missing.
	DefaultLanguage string
}

// Store loads prompt templates from files on disk with fallback to embedded
// defaults. Initialisation is lazy: the directory and default files are only
// created when the first template is loaded.
type Store struct {
	dir             string
	defaultLanguage string

	mu       sync.RWMutex
	cache    map[string]string
	initOnce sync.Once
	initErr  error
}

// defaultTemplates holds the embedded defaults, keyed by "<name>_<language>".
// They seed the prompt directory on first use so operators can edit them.
var defaultTemplates = map[string]string{
	"system_en": `You are a radiology reporting assistant. You draft structured
radiology report text from the reference material you are given.

Rules:
- Follow the section structure of the template document when one is provided.
- Imitate the phrasing and terminology of the example reports.
- Never invent findings that are not supported by the provided material.
- Answer with the report text only, no preamble.`,

	"system_de": `Du bist ein Assistent für radiologische Befundung. Du entwirfst
strukturierten Befundtext aus dem bereitgestellten Referenzmaterial.

Regeln:
- Folge der Gliederung des Vorlagendokuments, wenn eines vorliegt.
- Übernimm Formulierungen und Terminologie der Beispielbefunde.
- Erfinde keine Befunde, die das Material nicht stützt.
- Antworte nur mit dem Befundtext, ohne Einleitung.`,

	"report_en": `Draft the report for {name} ({modality}).

Request: {terms}`,

	"report_de": `Entwirf den Befund für {name} ({modality}).

Anfrage: {terms}`,
}

// NewStore creates a prompt store. No I/O happens until the first Load.
func NewStore(cfg Config) *Store {
	defaultLanguage := cfg.DefaultLanguage
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Store{
		dir:             cfg.Dir,
		defaultLanguage: defaultLanguage,
		cache:           make(map[string]string),
	}
}

// Dir returns the template directory path.
func (s *Store) Dir() string { return s.dir }

// Load returns the template for the given name and language. A missing
// language falls back to the default language; when neither exists the error
// wraps ErrTemplateNotFound.
func (s *Store) Load(name, language string) (string, error) {
	if language == "" {
		language = s.defaultLanguage
	}

	text, err := s.load(name + "_" + language)
	if err == nil {
		return text, nil
	}
	if language != s.defaultLanguage {
		if text, err := s.load(name + "_" + s.defaultLanguage); err == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("template %s (language %s): %w", name, language, ErrTemplateNotFound)
}

// load resolves one concrete "<name>_<language>" key: cache, then file, then
// embedded default.
func (s *Store) load(key string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Directory setup failed; the embedded defaults still serve.
		if text, ok := defaultTemplates[key]; ok {
			return text, nil
		}
		return "", s.initErr
	}

	s.mu.RLock()
	text, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := s.loadFromFile(key)
	if err != nil {
		if text, ok := defaultTemplates[key]; ok {
			return text, nil
		}
		return "", err
	}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		text = cached
	} else {
		s.cache[key] = text
	}
	s.mu.Unlock()

	return text, nil
}

// Reload clears the cache, forcing fresh reads from disk.
func (s *Store) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// initialise creates the template directory and writes the embedded defaults
// for files that do not exist yet. Called once on first Load.
func (s *Store) initialise() {
	if s.dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			s.initErr = fmt.Errorf("resolving home directory: %w", err)
			return
		}
		s.dir = filepath.Join(home, ".reportd", "prompts")
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.initErr = fmt.Errorf("creating prompt directory: %w", err)
		return
	}

	for key, content := range defaultTemplates {
		path := filepath.Join(s.dir, key+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				s.initErr = fmt.Errorf("writing default template %s: %w", key, err)
				return
			}
		}
	}
}

func (s *Store) loadFromFile(key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
