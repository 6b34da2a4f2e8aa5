package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/settings"
	"github.com/ternarybob/promptline/internal/symbols"
	"github.com/ternarybob/promptline/internal/window"
)

// version is set via -ldflags at build time
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

const (
	defaultFileLimit    = 100
	defaultHistoryLimit = 50
)

// Response types

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WindowStateResponse is the response for GET /window.
type WindowStateResponse struct {
	State string `json:"state"`
}

// PasteRequest is the request body for /paste and /draft.
type PasteRequest struct {
	Text string `json:"text"`
}

// FilesResponse lists cached files of the saved directory.
type FilesResponse struct {
	Directory string   `json:"directory"`
	Files     []string `json:"files"`
	Total     int      `json:"total"`
	FromCache bool     `json:"fromCache"`
}

// HistoryResponse wraps history items.
type HistoryResponse struct {
	Items []history.Item `json:"items"`
	Query string         `json:"query,omitempty"`
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: version,
		Service: "promptline",
	})
}

func (s *Server) handleWindowState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WindowStateResponse{State: s.deps.Window.State().String()})
}

func (s *Server) handleShowWindow(w http.ResponseWriter, r *http.Request) {
	var req window.ShowRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.deps.Window.ShowInputWindow(r.Context(), req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleWindowState(w, r)
}

func (s *Server) handleHideWindow(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Window.HideInputWindow(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.handleWindowState(w, r)
}

func (s *Server) handleWindowLoaded(w http.ResponseWriter, r *http.Request) {
	s.deps.Host.MarkLoaded()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	item, err := s.deps.Window.Paste(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.deps.Window.SaveDraft(r.Context(), req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	limit := queryInt(r, "limit", defaultFileLimit)

	resp := FilesResponse{Files: []string{}}
	info := s.deps.Files.LoadCachedFiles(r.Context())
	if info == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Directory = info.Directory
	resp.FromCache = info.FromCache
	for _, f := range info.Files {
		if query != "" && !strings.Contains(strings.ToLower(f), query) {
			continue
		}
		resp.Total++
		if len(resp.Files) < limit {
			resp.Files = append(resp.Files, f)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir := q.Get("directory")
	if dir == "" {
		if info := s.deps.Files.LoadCachedFiles(r.Context()); info != nil {
			dir = info.Directory
		}
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, "Directory is required")
		return
	}
	lang := q.Get("language")
	if lang == "" {
		writeError(w, http.StatusBadRequest, "Language is required")
		return
	}

	res, err := s.deps.Symbols.Search(r.Context(), dir, lang, q.Get("query"), queryInt(r, "limit", symbols.DefaultLimit))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, symbols.ErrDisabled), errors.Is(err, symbols.ErrDirectoryDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, symbols.ErrUnknownLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limit := queryInt(r, "limit", defaultHistoryLimit)

	var (
		items []history.Item
		err   error
	)
	if query != "" {
		items, err = s.deps.History.Search(r.Context(), query, limit)
	} else {
		items, err = s.deps.History.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []history.Item{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items, Query: query})
}

func (s *Server) handleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.History.Remove(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "History item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.deps.Settings.Replace(&next)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Helpers

func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
