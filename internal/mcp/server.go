// Package mcp exposes file, symbol, directory and history lookups as Model
// Context Protocol tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/symbols"
)

// Detector provides the current directory and its cached listing.
type Detector interface {
	LoadCachedFiles(ctx context.Context) *model.DirectoryInfo
	Detect(ctx context.Context) (model.DirectoryInfo, error)
}

// SymbolSearcher answers symbol queries.
type SymbolSearcher interface {
	Search(ctx context.Context, dir, lang, query string, limit int) (*symbols.SearchResult, error)
}

// HistoryStore lists paste history.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]history.Item, error)
	Search(ctx context.Context, query string, limit int) ([]history.Item, error)
}

// Server wraps the daemon components to provide MCP tool access.
type Server struct {
	detector Detector
	symbols  SymbolSearcher
	history  HistoryStore
	server   *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(version string, detector Detector, searcher SymbolSearcher, store HistoryStore) *Server {
	s := &Server{
		detector: detector,
		symbols:  searcher,
		history:  store,
	}

	mcpServer := server.NewMCPServer(
		"promptline",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.server = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("search_files",
			mcp.WithDescription("Search the cached file list of the current working directory by path substring."),
			mcp.WithString("query",
				mcp.Description("Case-insensitive path substring (e.g., 'handler', 'cmd/')"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default: 50)"),
			),
		),
		s.handleSearchFiles,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_symbols",
			mcp.WithDescription("Search code symbols (functions, types, classes) in a directory."),
			mcp.WithString("language",
				mcp.Required(),
				mcp.Description("Language name or alias: go, python, javascript, typescript, ts, py, js"),
			),
			mcp.WithString("query",
				mcp.Description("Case-insensitive symbol name substring"),
			),
			mcp.WithString("directory",
				mcp.Description("Directory to search (default: current working directory)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default: 50)"),
			),
		),
		s.handleSearchSymbols,
	)

	mcpServer.AddTool(
		mcp.NewTool("detect_directory",
			mcp.WithDescription("Detect the working directory of the frontmost terminal or editor and refresh its file list."),
		),
		s.handleDetectDirectory,
	)

	mcpServer.AddTool(
		mcp.NewTool("history",
			mcp.WithDescription("List recently pasted inputs, optionally filtered by text."),
			mcp.WithString("query",
				mcp.Description("Text to search for"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Number of items to show (default: 10)"),
			),
		),
		s.handleHistory,
	)
}

func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(request.GetString("query", ""))
	limit := request.GetInt("limit", 50)

	info := s.detector.LoadCachedFiles(ctx)
	if info == nil {
		return mcp.NewToolResultError("no cached file list; run detect_directory first"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", info.Directory)
	n := 0
	for _, f := range info.Files {
		if query != "" && !strings.Contains(strings.ToLower(f), query) {
			continue
		}
		if n >= limit {
			break
		}
		b.WriteString(f)
		b.WriteByte('\n')
		n++
	}
	if n == 0 {
		b.WriteString("No matching files.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang := request.GetString("language", "")
	if lang == "" {
		return mcp.NewToolResultError("language parameter is required"), nil
	}

	dir := request.GetString("directory", "")
	if dir == "" {
		if info := s.detector.LoadCachedFiles(ctx); info != nil {
			dir = info.Directory
		}
	}
	if dir == "" {
		return mcp.NewToolResultError("directory parameter is required when no directory has been detected"), nil
	}

	res, err := s.symbols.Search(ctx, dir, lang, request.GetString("query", ""), request.GetInt("limit", symbols.DefaultLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("symbol search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(FormatSymbols(res)), nil
}

func (s *Server) handleDetectDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.detector.Detect(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := map[string]interface{}{
		"directory":         info.Directory,
		"file_count":        len(info.Files),
		"directory_changed": info.DirectoryChanged,
		"files_disabled":    info.FilesDisabled,
	}
	if info.AppName != "" {
		result["app"] = info.AppName
	}
	if info.Hint != "" {
		result["hint"] = info.Hint
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	limit := request.GetInt("limit", 10)

	var (
		items []history.Item
		err   error
	)
	if query != "" {
		items, err = s.history.Search(ctx, query, limit)
	} else {
		items, err = s.history.Recent(ctx, limit)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get history failed: %v", err)), nil
	}

	return mcp.NewToolResultText(FormatHistory(items)), nil
}

// ServeStdio starts the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}

// FormatSymbols renders search results one symbol per line.
func FormatSymbols(res *symbols.SearchResult) string {
	if len(res.Symbols) == 0 {
		return fmt.Sprintf("No %s symbols matching %q in %s.\n", res.Language, res.Query, res.Directory)
	}
	var b strings.Builder
	for _, sym := range res.Symbols {
		fmt.Fprintf(&b, "%s %s  %s:%d\n", sym.Type, sym.Name, sym.RelativePath, sym.LineNumber)
		if sym.LineContent != "" {
			fmt.Fprintf(&b, "    %s\n", sym.LineContent)
		}
	}
	return b.String()
}

// FormatHistory renders history items newest first.
func FormatHistory(items []history.Item) string {
	if len(items) == 0 {
		return "No history.\n"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "[%s] %s", it.Timestamp.Format("2006-01-02 15:04"), it.ID)
		if it.AppName != "" {
			fmt.Fprintf(&b, " (%s)", it.AppName)
		}
		b.WriteByte('\n')
		for _, line := range strings.Split(it.Text, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}
