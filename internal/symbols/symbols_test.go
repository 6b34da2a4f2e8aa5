package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/settings"
)

const goSource = `package demo

type Server struct{}

func NewServer() *Server { return &Server{} }

func (s *Server) Start() error { return nil }
`

const pySource = `class Parser:
    def parse(self, text):
        return text


def parse_all(items):
    return [Parser().parse(i) for i in items]
`

type staticSettings struct{ s *settings.Settings }

func (s staticSettings) Get() *settings.Settings { return s.s.Clone() }

func enabledSettings() *settings.Settings {
	s := settings.Defaults()
	s.FileSearch = settings.DefaultFileSearch()
	s.SymbolSearch = settings.DefaultSymbolSearch()
	return s
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func names(syms []Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}

func TestExtractGo(t *testing.T) {
	ex := NewExtractor(DefaultRegistry())

	syms, err := ex.Extract(context.Background(), "/src/demo/server.go", "server.go", []byte(goSource))
	require.NoError(t, err)
	require.Len(t, syms, 3)

	assert.Equal(t, Symbol{
		Name:         "Server",
		Type:         "type",
		FilePath:     "/src/demo/server.go",
		RelativePath: "server.go",
		LineNumber:   3,
		LineContent:  "type Server struct{}",
		Language:     "go",
	}, syms[0])
	assert.Equal(t, "NewServer", syms[1].Name)
	assert.Equal(t, "function", syms[1].Type)
	assert.Equal(t, "Start", syms[2].Name)
	assert.Equal(t, "method", syms[2].Type)
	assert.Equal(t, 7, syms[2].LineNumber)
}

func TestExtractPython(t *testing.T) {
	ex := NewExtractor(DefaultRegistry())

	syms, err := ex.Extract(context.Background(), "/src/parser.py", "parser.py", []byte(pySource))
	require.NoError(t, err)
	assert.Equal(t, []string{"Parser", "parse", "parse_all"}, names(syms))
	assert.Equal(t, "class", syms[0].Type)
	assert.Equal(t, "python", syms[0].Language)
}

func TestExtractUnknownExtension(t *testing.T) {
	ex := NewExtractor(DefaultRegistry())
	syms, err := ex.Extract(context.Background(), "/src/README.md", "README.md", []byte("# hi"))
	require.NoError(t, err)
	assert.Nil(t, syms)
}

func TestRegistryResolve(t *testing.T) {
	r := DefaultRegistry()

	for alias, want := range map[string]string{
		"go": "go", "golang": "go", "ts": "typescript", "TSX": "typescript",
		"py": "python", "js": "javascript", " javascript ": "javascript",
	} {
		got, err := r.Resolve(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, got, alias)
	}

	_, err := r.Resolve("cobol")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
	assert.Equal(t, []string{"go", "javascript", "python", "typescript"}, r.Languages())
}

func TestRank(t *testing.T) {
	syms := []Symbol{
		{Name: "parseConfig", RelativePath: "b.go", LineNumber: 1},
		{Name: "Parse", RelativePath: "a.go", LineNumber: 9},
		{Name: "reparse", RelativePath: "a.go", LineNumber: 2},
		{Name: "Render", RelativePath: "a.go", LineNumber: 3},
	}

	assert.Equal(t, []string{"Parse", "parseConfig", "reparse"}, names(Rank(syms, "PARSE", 0)))
	assert.Equal(t, []string{"Parse"}, names(Rank(syms, "parse", 1)))
	assert.Len(t, Rank(syms, "", 0), 4)
	assert.Empty(t, Rank(syms, "zzz", 0))
}

func TestCacheSaveLoadValidate(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root, time.Hour, arbor.NewLogger())
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	dir := "/Users/me/project"
	meta, err := c.Save(dir, Index{
		Symbols: map[string][]Symbol{
			"go":     {{Name: "Main", Language: "go"}},
			"python": {},
		},
		Files: map[string]int{"go": 1, "python": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalSymbolCount)
	assert.Equal(t, LanguageStats{SymbolCount: 0, FileCount: 2}, meta.Languages["python"])

	assert.FileExists(t, filepath.Join(c.Dir(dir), "symbols-go.jsonl"))
	assert.FileExists(t, filepath.Join(c.Dir(dir), "symbols-python.jsonl"))

	loaded, err := c.Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(3600), loaded.TTLSeconds)
	assert.False(t, c.IsStale(loaded))

	valid, err := c.Validate(dir)
	require.NoError(t, err)
	assert.True(t, valid)

	syms, err := c.LoadSymbols(dir, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"Main"}, names(syms))

	now = now.Add(2 * time.Hour)
	assert.True(t, c.IsStale(loaded))
}

func TestCacheSaveRemovesDroppedLanguages(t *testing.T) {
	c := NewCache(t.TempDir(), time.Hour, arbor.NewLogger())
	dir := "/Users/me/project"

	_, err := c.Save(dir, Index{Symbols: map[string][]Symbol{"go": {}, "python": {}}})
	require.NoError(t, err)
	_, err = c.Save(dir, Index{Symbols: map[string][]Symbol{"go": {}}})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(c.Dir(dir), "symbols-python.jsonl"))
	valid, err := c.Validate(dir)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCacheValidateInvalidatesMismatch(t *testing.T) {
	c := NewCache(t.TempDir(), time.Hour, arbor.NewLogger())
	dir := "/Users/me/project"

	_, err := c.Save(dir, Index{Symbols: map[string][]Symbol{"go": {}, "python": {}}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(c.Dir(dir), "symbols-python.jsonl")))

	valid, err := c.Validate(dir)
	require.NoError(t, err)
	assert.False(t, valid)

	meta, err := c.Load(dir)
	require.NoError(t, err)
	assert.Nil(t, meta, "metadata removed")
}

func TestCacheClear(t *testing.T) {
	c := NewCache(t.TempDir(), time.Hour, arbor.NewLogger())
	dir := "/Users/me/project"

	_, err := c.Save(dir, Index{Symbols: map[string][]Symbol{"go": {{Name: "A"}}}})
	require.NoError(t, err)
	require.NoError(t, c.Clear(dir))

	meta, err := c.Load(dir)
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.NoFileExists(t, filepath.Join(c.Dir(dir), "symbols-go.jsonl"))
	assert.NoError(t, c.Clear("/never/cached"))
}

func TestWalkerSkipsIgnoredAndExcluded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", goSource)
	writeFile(t, root, "pkg/util.go", goSource)
	writeFile(t, root, "node_modules/lib/index.js", "function x() {}")
	writeFile(t, root, ".hidden/secret.go", goSource)
	writeFile(t, root, "gen/out.go", goSource)
	writeFile(t, root, "notes.txt", "text")
	writeFile(t, root, "blob.go", "pack\x00age")

	w := NewWalker(WalkOptions{
		ExcludePatterns: []string{"gen"},
		Extensions:      DefaultRegistry().Extensions(),
	})

	var seen []string
	err := w.Walk(context.Background(), root, func(_, rel string, _ []byte) error {
		seen = append(seen, rel)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "pkg/util.go"}, seen)
}

func TestWalkerHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", goSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWalker(WalkOptions{}).Walk(ctx, root, func(_, _ string, _ []byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"main.go", "*.go", true},
		{"pkg/main.go", "*.go", false},
		{"pkg/main.go", "**/*.go", true},
		{"main_test.go", "*_test.go", true},
		{"dist/", "dist/", true},
		{"a.js", "?.js", true},
		{"ab.js", "?.js", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, matchGlob(tc.path, tc.pattern), "%s ~ %s", tc.path, tc.pattern)
	}
}

func newSearcher(t *testing.T, s *settings.Settings) (*Searcher, *Cache) {
	t.Helper()
	cache := NewCache(t.TempDir(), time.Hour, arbor.NewLogger())
	searcher := NewSearcher(DefaultRegistry(), cache, staticSettings{s}, arbor.NewLogger())
	// test directories live under system temp roots
	searcher.disabled = func(string) bool { return false }
	return searcher, cache
}

func TestSearchBuildsThenServesFromCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.go", goSource)
	writeFile(t, root, "tools/parser.py", pySource)

	searcher, cache := newSearcher(t, enabledSettings())
	ctx := context.Background()

	res, err := searcher.Search(ctx, root, "golang", "server", 10)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "go", res.Language)
	assert.Equal(t, []string{"Server", "NewServer"}, names(res.Symbols))

	meta, err := cache.Load(root)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 6, meta.TotalSymbolCount)
	assert.Equal(t, 1, meta.Languages["python"].FileCount)

	res, err = searcher.Search(ctx, root, "py", "parse", 10)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, []string{"parse", "Parser", "parse_all"}, names(res.Symbols))
}

func TestSearchRebuildsStaleCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.go", goSource)

	searcher, cache := newSearcher(t, enabledSettings())
	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	_, err := searcher.Search(context.Background(), root, "go", "", 0)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	res, err := searcher.Search(context.Background(), root, "go", "", 0)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestSearchCapsSymbols(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.go", goSource)

	s := enabledSettings()
	s.SymbolSearch.MaxSymbols = 2
	searcher, _ := newSearcher(t, s)

	res, err := searcher.Search(context.Background(), root, "go", "", 0)
	require.NoError(t, err)
	assert.Len(t, res.Symbols, 2)
}

func TestSearchRefusals(t *testing.T) {
	ctx := context.Background()

	off := settings.Defaults()
	searcher, _ := newSearcher(t, off)
	_, err := searcher.Search(ctx, "/Users/me/project", "go", "x", 0)
	assert.ErrorIs(t, err, ErrDisabled)

	fileOnly := settings.Defaults()
	fileOnly.FileSearch = settings.DefaultFileSearch()
	searcher, _ = newSearcher(t, fileOnly)
	_, err = searcher.Search(ctx, "/Users/me/project", "go", "x", 0)
	assert.ErrorIs(t, err, ErrDisabled, "symbol search depends on file search")

	searcher, _ = newSearcher(t, enabledSettings())
	_, err = searcher.Search(ctx, "/Users/me/project", "cobol", "x", 0)
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	searcher.disabled = func(dir string) bool { return dir == "/usr/local" }
	_, err = searcher.Search(ctx, "/usr/local", "go", "x", 0)
	assert.ErrorIs(t, err, ErrDirectoryDisabled)
}
