package symbols

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/directory"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/settings"
)

var (
	// ErrDisabled is returned when symbol search is turned off in settings.
	ErrDisabled = errors.New("symbol search is disabled")
	// ErrDirectoryDisabled is returned for system directories that are never indexed.
	ErrDirectoryDisabled = errors.New("symbol search is disabled for this directory")
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 50

// SettingsSource supplies the current settings.
type SettingsSource interface {
	Get() *settings.Settings
}

// SearchResult is returned by Search.
type SearchResult struct {
	Directory string   `json:"directory"`
	Language  string   `json:"language"`
	Query     string   `json:"query"`
	Symbols   []Symbol `json:"symbols"`
	FromCache bool     `json:"fromCache"`
}

// Searcher answers symbol queries from the cache, rebuilding it on a miss.
type Searcher struct {
	registry  *Registry
	extractor *Extractor
	cache     *Cache
	settings  SettingsSource
	logger    arbor.ILogger
	disabled  func(string) bool

	// rebuild serializes index builds so concurrent misses extract once
	rebuild sync.Mutex
}

// NewSearcher creates a searcher.
func NewSearcher(registry *Registry, cache *Cache, src SettingsSource, logger arbor.ILogger) *Searcher {
	return &Searcher{
		registry:  registry,
		extractor: NewExtractor(registry),
		cache:     cache,
		settings:  src,
		logger:    logger,
		disabled:  directory.IsFileSearchDisabledDirectory,
	}
}

// Registry exposes the language registry.
func (s *Searcher) Registry() *Registry {
	return s.registry
}

// Search returns symbols of lang under dir whose names contain query,
// case-insensitively. Exact matches rank first, then prefix matches.
func (s *Searcher) Search(ctx context.Context, dir, lang, query string, limit int) (*SearchResult, error) {
	cfg := s.settings.Get()
	if !cfg.SymbolSearchEnabled() {
		return nil, ErrDisabled
	}
	if dir == "" {
		return nil, errors.New("directory is required")
	}
	dir = filepath.Clean(dir)
	if s.disabled(dir) {
		return nil, ErrDirectoryDisabled
	}
	language, err := s.registry.Resolve(lang)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if cfg.SymbolSearch.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.SymbolSearch.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	fromCache, err := s.ensureIndex(ctx, dir, cfg)
	if err != nil {
		metrics.RecordSymbolSearch("error")
		return nil, err
	}
	if fromCache {
		metrics.RecordSymbolSearch("hit")
	} else {
		metrics.RecordSymbolSearch("miss")
	}

	syms, err := s.cache.LoadSymbols(dir, language)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Directory: dir,
		Language:  language,
		Query:     query,
		Symbols:   Rank(syms, query, limit),
		FromCache: fromCache,
	}, nil
}

// Index rebuilds the symbol cache for dir regardless of freshness.
func (s *Searcher) Index(ctx context.Context, dir string) (*Metadata, error) {
	cfg := s.settings.Get()
	if !cfg.SymbolSearchEnabled() {
		return nil, ErrDisabled
	}
	dir = filepath.Clean(dir)
	if s.disabled(dir) {
		return nil, ErrDirectoryDisabled
	}

	s.rebuild.Lock()
	defer s.rebuild.Unlock()
	return s.build(ctx, dir, cfg)
}

// ensureIndex reports whether the cache already held a fresh, valid index.
func (s *Searcher) ensureIndex(ctx context.Context, dir string, cfg *settings.Settings) (bool, error) {
	if s.usable(dir) {
		return true, nil
	}

	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	// another caller may have rebuilt while we waited
	if s.usable(dir) {
		return true, nil
	}
	if _, err := s.build(ctx, dir, cfg); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Searcher) usable(dir string) bool {
	meta, err := s.cache.Load(dir)
	if err != nil {
		s.logger.Debug().Err(err).Str("directory", dir).Msg("Symbol cache unreadable")
		return false
	}
	if meta == nil || s.cache.IsStale(meta) {
		return false
	}
	valid, err := s.cache.Validate(dir)
	return err == nil && valid
}

func (s *Searcher) build(ctx context.Context, dir string, cfg *settings.Settings) (*Metadata, error) {
	start := time.Now()

	fs := cfg.FileSearch
	walker := NewWalker(WalkOptions{
		ExcludePatterns: fs.ExcludePatterns,
		IncludeHidden:   fs.IncludeHidden,
		MaxDepth:        fs.MaxDepth,
		Extensions:      s.registry.Extensions(),
	})

	maxSymbols := cfg.SymbolSearch.MaxSymbols
	idx := Index{Symbols: make(map[string][]Symbol), Files: make(map[string]int)}
	total := 0
	errLimit := errors.New("symbol limit reached")

	err := walker.Walk(ctx, dir, func(path, relPath string, content []byte) error {
		syms, err := s.extractor.Extract(ctx, path, relPath, content)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug().Err(err).Str("file", relPath).Msg("Skipping unparseable file")
			return nil
		}
		_, lang := s.registry.Lookup(path)
		if lang == "" {
			return nil
		}
		idx.Files[lang]++
		if _, ok := idx.Symbols[lang]; !ok {
			idx.Symbols[lang] = []Symbol{}
		}
		for _, sym := range syms {
			if maxSymbols > 0 && total >= maxSymbols {
				return errLimit
			}
			idx.Symbols[lang] = append(idx.Symbols[lang], sym)
			total++
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("index %s: %w", dir, err)
	}

	meta, err := s.cache.Save(dir, idx)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("directory", dir).
		Int("symbols", meta.TotalSymbolCount).
		Str("elapsed", time.Since(start).String()).
		Msg("Symbol index built")
	return meta, nil
}

// Rank filters syms by a case-insensitive substring match on the name and
// orders exact, prefix, then other matches. An empty query keeps everything.
func Rank(syms []Symbol, query string, limit int) []Symbol {
	q := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		sym  Symbol
		rank int
	}
	matches := make([]scored, 0, len(syms))
	for _, sym := range syms {
		name := strings.ToLower(sym.Name)
		switch {
		case q == "":
			matches = append(matches, scored{sym, 2})
		case name == q:
			matches = append(matches, scored{sym, 0})
		case strings.HasPrefix(name, q):
			matches = append(matches, scored{sym, 1})
		case strings.Contains(name, q):
			matches = append(matches, scored{sym, 2})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.sym.RelativePath != b.sym.RelativePath {
			return a.sym.RelativePath < b.sym.RelativePath
		}
		return a.sym.LineNumber < b.sym.LineNumber
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Symbol, len(matches))
	for i, m := range matches {
		out[i] = m.sym
	}
	return out
}
