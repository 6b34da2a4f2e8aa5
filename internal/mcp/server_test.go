package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/symbols"
)

type fakeDetector struct {
	cached *model.DirectoryInfo
	info   model.DirectoryInfo
	err    error
}

func (f *fakeDetector) LoadCachedFiles(context.Context) *model.DirectoryInfo { return f.cached }

func (f *fakeDetector) Detect(context.Context) (model.DirectoryInfo, error) { return f.info, f.err }

type fakeSymbols struct {
	dir, lang, query string
	err              error
}

func (f *fakeSymbols) Search(_ context.Context, dir, lang, query string, limit int) (*symbols.SearchResult, error) {
	f.dir, f.lang, f.query = dir, lang, query
	if f.err != nil {
		return nil, f.err
	}
	return &symbols.SearchResult{
		Directory: dir,
		Language:  "go",
		Query:     query,
		Symbols: []symbols.Symbol{
			{Name: "NewServer", Type: "function", RelativePath: "server.go", LineNumber: 5, LineContent: "func NewServer() *Server"},
		},
	}, nil
}

type fakeHistory struct{ items []history.Item }

func (f fakeHistory) Recent(context.Context, int) ([]history.Item, error) { return f.items, nil }

func (f fakeHistory) Search(context.Context, string, int) ([]history.Item, error) { return nil, nil }

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func newTestServer() (*Server, *fakeDetector, *fakeSymbols) {
	det := &fakeDetector{cached: &model.DirectoryInfo{
		Directory: "/Users/me/project",
		Files:     []string{"/Users/me/project/main.go", "/Users/me/project/api/handler.go", "/Users/me/project/README.md"},
	}}
	syms := &fakeSymbols{}
	hist := fakeHistory{items: []history.Item{{
		ID: "01H", Text: "fix the build\nplease", AppName: "Terminal",
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}}}
	return NewServer("test", det, syms, hist), det, syms
}

func TestSearchFiles(t *testing.T) {
	s, det, _ := newTestServer()

	text, isErr := call(t, s.handleSearchFiles, map[string]any{"query": "HANDLER"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Directory: /Users/me/project")
	assert.Contains(t, text, "api/handler.go")
	assert.NotContains(t, text, "README.md")

	text, _ = call(t, s.handleSearchFiles, map[string]any{"limit": float64(1)})
	assert.Contains(t, text, "main.go")
	assert.NotContains(t, text, "handler.go")

	det.cached = nil
	_, isErr = call(t, s.handleSearchFiles, nil)
	assert.True(t, isErr)
}

func TestSearchSymbols(t *testing.T) {
	s, det, syms := newTestServer()

	_, isErr := call(t, s.handleSearchSymbols, map[string]any{"query": "x"})
	assert.True(t, isErr, "language is required")

	text, isErr := call(t, s.handleSearchSymbols, map[string]any{"language": "golang", "query": "server"})
	assert.False(t, isErr)
	assert.Equal(t, "/Users/me/project", syms.dir)
	assert.Equal(t, "golang", syms.lang)
	assert.Contains(t, text, "function NewServer  server.go:5")

	_, _ = call(t, s.handleSearchSymbols, map[string]any{"language": "go", "directory": "/src"})
	assert.Equal(t, "/src", syms.dir)

	det.cached = nil
	_, isErr = call(t, s.handleSearchSymbols, map[string]any{"language": "go"})
	assert.True(t, isErr)

	syms.err = symbols.ErrDisabled
	text, isErr = call(t, s.handleSearchSymbols, map[string]any{"language": "go", "directory": "/src"})
	assert.True(t, isErr)
	assert.Contains(t, text, "disabled")
}

func TestDetectDirectory(t *testing.T) {
	s, det, _ := newTestServer()
	det.info = model.DirectoryInfo{Directory: "/Users/me/other", Files: []string{"a", "b"}, DirectoryChanged: true, Hint: "install fd"}

	text, isErr := call(t, s.handleDetectDirectory, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, `"directory": "/Users/me/other"`)
	assert.Contains(t, text, `"file_count": 2`)
	assert.Contains(t, text, `"hint": "install fd"`)

	det.err = assert.AnError
	_, isErr = call(t, s.handleDetectDirectory, nil)
	assert.True(t, isErr)
}

func TestHistoryTool(t *testing.T) {
	s, _, _ := newTestServer()

	text, isErr := call(t, s.handleHistory, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "[2026-03-01 09:30] 01H (Terminal)")
	assert.Contains(t, text, "  please\n")

	text, _ = call(t, s.handleHistory, map[string]any{"query": "nothing"})
	assert.Equal(t, "No history.\n", text)
}
