// Package app wires the daemon components together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/api"
	"github.com/ternarybob/promptline/internal/config"
	"github.com/ternarybob/promptline/internal/directory"
	"github.com/ternarybob/promptline/internal/filecache"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/ipc"
	"github.com/ternarybob/promptline/internal/mcp"
	"github.com/ternarybob/promptline/internal/native"
	"github.com/ternarybob/promptline/internal/settings"
	"github.com/ternarybob/promptline/internal/space"
	"github.com/ternarybob/promptline/internal/symbols"
	"github.com/ternarybob/promptline/internal/window"
)

// App holds every long-lived component of the daemon.
type App struct {
	Config   *config.Config
	Logger   arbor.ILogger
	Settings *settings.Manager
	Watcher  *settings.Watcher
	History  *history.Store
	Files    *filecache.Manager
	Native   *native.Client
	Space    *space.Manager
	Detector *directory.Detector
	Symbols  *symbols.Searcher
	Bus      *ipc.Bus
	Host     *ipc.BridgeHost
	Window   *window.Manager

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the component graph. Nothing runs until Start.
func New(cfg *config.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.Settings = settings.NewManager(cfg.SettingsPath(), logger)
	if _, err := a.Settings.Load(); err != nil {
		// keep running on defaults; the watcher picks up a fixed file
		logger.Warn().Err(err).Str("path", cfg.SettingsPath()).Msg("Invalid settings file, using defaults")
	}

	store, err := history.Open(cfg.HistoryPath(), history.DefaultMaxItems)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	a.History = store

	runner := native.NewRunner(cfg.Native.ToolsDir, logger)
	a.Native = native.NewClient(runner, native.Timeouts{
		App:    cfg.AppTimeout(),
		Bounds: cfg.BoundsTimeout(),
		Paste:  cfg.PasteTimeout(),
	})

	// the window manager hands the frontmost app to every space probe
	a.Space = space.NewManager(logger, space.Options{
		Permission: a.Native.CheckAccessibility,
	})

	a.Files = filecache.NewManager(cfg.CacheDir(), cfg.FileTTL(), logger)
	a.Detector = directory.NewDetector(a.Native, a.Files, a.History, a.Settings, logger, directory.Options{
		Timeout: cfg.DetectTimeout(),
	})

	symbolCache := symbols.NewCache(cfg.CacheDir(), cfg.SymbolTTL(), logger)
	a.Symbols = symbols.NewSearcher(symbols.DefaultRegistry(), symbolCache, a.Settings, logger)

	a.Bus = ipc.NewBus()
	a.Host = ipc.NewBridgeHost(a.Bus)
	a.Window = window.NewManager(window.Deps{
		Host:        a.Host,
		Native:      a.Native,
		Space:       a.Space,
		Detector:    a.Detector,
		History:     a.History,
		Settings:    a.Settings,
		Logger:      logger,
		BaseContext: a.ctx,
	})

	a.Settings.OnChange(func(s *settings.Settings) {
		if err := a.Bus.Send(ipc.ChannelSettingsUpdated, s); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish settings update")
		}
	})

	return a, nil
}

// Start initializes the space manager and begins watching the settings
// file.
func (a *App) Start() error {
	if err := a.Space.Initialize(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Desktop space manager unavailable")
	}

	w, err := settings.NewWatcher(a.Settings, settings.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return err
	}
	a.Watcher = w

	if !a.Detector.CheckFdCommandAvailability() {
		a.Logger.Info().Msg(directory.FdHint)
	}
	return nil
}

// APIServer returns the HTTP bridge over the app components.
func (a *App) APIServer() *api.Server {
	return api.NewServer(a.Config, api.Deps{
		Window:   a.Window,
		Host:     a.Host,
		Bus:      a.Bus,
		Files:    a.Detector,
		Symbols:  a.Symbols,
		History:  a.History,
		Settings: a.Settings,
		Logger:   a.Logger,
	})
}

// MCPServer returns the stdio tool server over the app components.
func (a *App) MCPServer(version string) *mcp.Server {
	return mcp.NewServer(version, a.Detector, a.Symbols, a.History)
}

// Close stops background work and releases resources.
func (a *App) Close() error {
	a.cancel()

	var errs []error
	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Window.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := a.History.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
