package symbols

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and symbol query for a
// language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query. Each pattern captures the
	// identifier as @name and the definition node under a capture named
	// after the symbol type (@function, @class, ...).
	Query      string
	Extensions []string
	Aliases    []string

	once     sync.Once
	compiled *sitter.Query
	err      error
}

// query compiles Query on first use.
func (s *LanguageSpec) query() (*sitter.Query, error) {
	s.once.Do(func() {
		s.compiled, s.err = sitter.NewQuery([]byte(s.Query), s.Language)
	})
	return s.compiled, s.err
}

// Registry maps file extensions and language names to specs.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]*LanguageSpec // extension (without dot) → spec
	langs   map[string]*LanguageSpec // language name → spec
	names   map[*LanguageSpec]string
	aliases map[string]string // alias → language name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:   make(map[string]*LanguageSpec),
		langs:   make(map[string]*LanguageSpec),
		names:   make(map[*LanguageSpec]string),
		aliases: make(map[string]string),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[name] = spec
	r.names[spec] = name
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
	for _, alias := range spec.Aliases {
		r.aliases[alias] = name
	}
}

// Lookup returns the spec and language name for a file path based on its
// extension, or nil.
func (r *Registry) Lookup(path string) (*LanguageSpec, string) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[ext]
	if !ok {
		return nil, ""
	}
	return s, r.names[s]
}

// Resolve maps a language name or alias ("ts", "py") to its registered name.
func (r *Registry) Resolve(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.langs[lang]; ok {
		return lang, nil
	}
	if name, ok := r.aliases[lang]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.langs))
	for name := range r.langs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}
