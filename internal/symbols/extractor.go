// Package symbols extracts code symbols with tree-sitter, caches them per
// directory and language, and serves substring searches over the cache.
package symbols

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnknownLanguage is returned for languages without a registered grammar.
var ErrUnknownLanguage = errors.New("unknown language")

const maxLineContent = 200

// Symbol is one definition found in a source file.
type Symbol struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	FilePath     string `json:"filePath"`
	RelativePath string `json:"relativePath"`
	LineNumber   int    `json:"lineNumber"`
	LineContent  string `json:"lineContent"`
	Language     string `json:"language"`
}

// Extractor parses source files and returns their symbols.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor backed by the given registry.
func NewExtractor(r *Registry) *Extractor {
	return &Extractor{registry: r}
}

// Extract returns the symbols in src. Files without a registered grammar
// yield nil.
func (e *Extractor) Extract(ctx context.Context, path, relPath string, src []byte) ([]Symbol, error) {
	spec, lang := e.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer tree.Close()

	q, err := spec.query()
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	lines := strings.Split(string(src), "\n")
	seen := make(map[string]bool)
	var out []Symbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}

		var (
			kind     string
			nameNode *sitter.Node
		)
		for _, c := range m.Captures {
			switch capName := q.CaptureNameForId(c.Index); capName {
			case "name":
				nameNode = c.Node
			default:
				kind = capName
			}
		}
		if nameNode == nil || kind == "" {
			continue
		}

		name := nameNode.Content(src)
		line := int(nameNode.StartPoint().Row) + 1
		key := fmt.Sprintf("%s:%d", name, line)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, Symbol{
			Name:         name,
			Type:         kind,
			FilePath:     path,
			RelativePath: relPath,
			LineNumber:   line,
			LineContent:  lineContent(lines, line),
			Language:     lang,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func lineContent(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	s := strings.TrimSpace(lines[line-1])
	if len(s) > maxLineContent {
		s = s[:maxLineContent]
	}
	return s
}
