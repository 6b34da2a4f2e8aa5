// Package api provides the local HTTP bridge between the daemon and the
// native window host.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/config"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/ipc"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/settings"
	"github.com/ternarybob/promptline/internal/symbols"
	"github.com/ternarybob/promptline/internal/window"
)

// WindowController drives the input window.
type WindowController interface {
	ShowInputWindow(ctx context.Context, req window.ShowRequest) error
	HideInputWindow(ctx context.Context) error
	Paste(ctx context.Context, text string) (*history.Item, error)
	SaveDraft(ctx context.Context, text string) error
	State() window.State
}

// Host is the part of the bridge host the renderer reports back to.
type Host interface {
	MarkLoaded()
}

// FileSource serves the cached listing of the saved directory.
type FileSource interface {
	LoadCachedFiles(ctx context.Context) *model.DirectoryInfo
}

// SymbolSearcher answers symbol queries.
type SymbolSearcher interface {
	Search(ctx context.Context, dir, lang, query string, limit int) (*symbols.SearchResult, error)
}

// HistoryStore lists and edits paste history.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]history.Item, error)
	Search(ctx context.Context, query string, limit int) ([]history.Item, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// SettingsStore reads and replaces user settings.
type SettingsStore interface {
	Get() *settings.Settings
	Replace(s *settings.Settings) (*settings.Settings, error)
}

// Deps are the collaborators served by the API.
type Deps struct {
	Window   WindowController
	Host     Host
	Bus      *ipc.Bus
	Files    FileSource
	Symbols  SymbolSearcher
	History  HistoryStore
	Settings SettingsStore
	Logger   arbor.ILogger
}

// Server represents the API server.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router chi.Router
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
	}

	s.setupRouter()
	return s
}

// setupRouter configures all routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*", "file://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.API.APIKey != "" {
		r.Use(s.apiKeyAuth)
	}

	// Health and version endpoints (no auth)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Handle("/metrics", metrics.Handler())

	// SSE stays open for the lifetime of the host connection
	r.Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/window", func(r chi.Router) {
			r.Get("/", s.handleWindowState)
			r.Post("/show", s.handleShowWindow)
			r.Post("/hide", s.handleHideWindow)
			r.Post("/loaded", s.handleWindowLoaded)
		})
		r.Post("/paste", s.handlePaste)
		r.Put("/draft", s.handleSaveDraft)

		r.Get("/files", s.handleFiles)
		r.Get("/symbols", s.handleSymbols)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Delete("/", s.handleClearHistory)
			r.Delete("/{id}", s.handleRemoveHistory)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// apiKeyAuth is middleware that validates API key.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/version" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey != s.cfg.API.APIKey {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
