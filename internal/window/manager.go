// Package window coordinates the floating input window: it probes the
// frontmost app and desktop space, decides whether the native window is
// reused or recreated, delivers the renderer payload and starts background
// directory detection once the window is visible.
package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/ipc"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/settings"
	"github.com/ternarybob/promptline/internal/space"
)

// ShowRequest carries per-show overrides and the display the window opens on.
type ShowRequest struct {
	Position   string  `json:"position,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FileSearch *bool   `json:"fileSearch,omitempty"`
	Display    Display `json:"display"`
}

// WindowData is the window-shown payload.
type WindowData struct {
	SourceApp           *model.AppInfo       `json:"sourceApp,omitempty"`
	SpaceInfo           *space.Info          `json:"spaceInfo,omitempty"`
	FileSearchEnabled   bool                 `json:"fileSearchEnabled"`
	SymbolSearchEnabled bool                 `json:"symbolSearchEnabled"`
	DirectoryData       *model.DirectoryInfo `json:"directoryData,omitempty"`
	Draft               string               `json:"draft,omitempty"`
	Settings            *settings.Settings   `json:"settings,omitempty"`
}

// Deps are the collaborators of a Manager. Space may be nil.
type Deps struct {
	Host     Host
	Native   NativeClient
	Space    space.FingerprintProvider
	Detector Detector
	History  History
	Settings SettingsSource
	Logger   arbor.ILogger

	// Schedule runs background work. Defaults to a new goroutine.
	Schedule func(fn func())
	// BaseContext outlives individual show requests and bounds background
	// detection. Defaults to context.Background().
	BaseContext context.Context
}

// Manager owns the input window lifecycle.
type Manager struct {
	host     Host
	native   NativeClient
	space    space.FingerprintProvider
	detector Detector
	history  History
	settings SettingsSource
	logger   arbor.ILogger
	schedule func(fn func())
	baseCtx  context.Context

	mu            sync.Mutex
	state         State
	generation    uint64
	lastSignature string
	sourceApp     *model.AppInfo
}

// NewManager creates a window manager.
func NewManager(deps Deps) *Manager {
	if deps.Schedule == nil {
		deps.Schedule = func(fn func()) { go fn() }
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	return &Manager{
		host:     deps.Host,
		native:   deps.Native,
		space:    deps.Space,
		detector: deps.Detector,
		history:  deps.History,
		settings: deps.Settings,
		logger:   deps.Logger,
		schedule: deps.Schedule,
		baseCtx:  deps.BaseContext,
		state:    Uninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SourceApp returns the app that was frontmost when the window last opened.
func (m *Manager) SourceApp() *model.AppInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sourceApp == nil {
		return nil
	}
	app := *m.sourceApp
	return &app
}

// ShowInputWindow opens the input window for the frontmost app.
func (m *Manager) ShowInputWindow(ctx context.Context, req ShowRequest) error {
	if err := m.showInputWindow(ctx, req); err != nil {
		m.logger.Error().Err(err).Msg("Failed to show input window")
		return fmt.Errorf("show input window: %w", err)
	}
	return nil
}

func (m *Manager) showInputWindow(ctx context.Context, req ShowRequest) error {
	s := applyOverrides(m.settings.Get(), req)

	app, spaceInfo := m.probe(ctx)

	bounds := m.calculateBounds(ctx, s.Window, req.Display)

	m.mu.Lock()
	m.sourceApp = app
	recreate := m.needsRecreateLocked(spaceInfo)
	if spaceInfo != nil && spaceInfo.Method != space.MethodError {
		m.lastSignature = spaceInfo.Signature
	}
	var err error
	if recreate {
		err = m.recreateLocked(ctx, bounds)
	} else if repositionOnReuse(s.Window.Position) {
		err = m.host.SetBounds(bounds)
	}
	gen := m.generation
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if recreate {
		metrics.RecordWindowShow("recreated")
	} else {
		metrics.RecordWindowShow("reused")
	}

	data := m.buildWindowData(ctx, s, app, spaceInfo)

	if m.host.IsLoading() {
		m.logger.Debug().Msg("Window still loading, deferring window-shown")
		m.host.OnFinishLoad(func() {
			if err := m.deliver(gen, data, s.FileSearch); err != nil {
				m.logger.Error().Err(err).Msg("Deferred window delivery failed")
			}
		})
		return nil
	}
	return m.deliver(gen, data, s.FileSearch)
}

// probe fetches the frontmost app and the space info concurrently. The
// space probe is handed the app result, so current-app runs once per show.
// Either probe may fail without affecting the other.
func (m *Manager) probe(ctx context.Context) (*model.AppInfo, *space.Info) {
	var (
		wg        sync.WaitGroup
		app       *model.AppInfo
		spaceInfo *space.Info
	)
	appCh := make(chan *model.AppInfo, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var resolved *model.AppInfo
		defer func() { appCh <- resolved }()
		defer m.recoverProbe("app")
		r := m.native.CurrentApp(ctx)
		if !r.IsOk() {
			m.logger.Warn().Str("reason", r.Reason()).Msg("Frontmost app detection failed")
			return
		}
		v := r.Value()
		resolved = &v
		app = resolved
	}()

	if m.space != nil && m.space.IsReady() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.recoverProbe("space")
			frontmost := <-appCh
			info, err := m.space.CurrentSpaceInfo(ctx, frontmost)
			if err != nil {
				m.logger.Warn().Err(err).Msg("Space detection failed")
				return
			}
			spaceInfo = info
		}()
	}

	wg.Wait()
	return app, spaceInfo
}

func (m *Manager) recoverProbe(name string) {
	if r := recover(); r != nil {
		m.logger.Error().Str("probe", name).Str("panic", fmt.Sprint(r)).Msg("Probe panicked")
	}
}

// needsRecreateLocked decides between reuse and recreation. Without usable
// space info the window is only created when none is live.
func (m *Manager) needsRecreateLocked(info *space.Info) bool {
	if !m.state.Live() {
		return true
	}
	if info == nil || info.Method == space.MethodError {
		return false
	}
	return info.Signature != m.lastSignature
}

func (m *Manager) recreateLocked(ctx context.Context, bounds model.Rect) error {
	if m.state.Live() {
		if err := m.host.Destroy(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to destroy window")
		}
		if err := m.transitionLocked(Destroyed); err != nil {
			return err
		}
	}

	if err := m.host.Create(ctx, bounds); err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	if err := m.transitionLocked(Created); err != nil {
		return err
	}
	m.generation++
	return nil
}

func (m *Manager) transitionLocked(to State) error {
	next, err := m.state.Transition(to)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *Manager) buildWindowData(ctx context.Context, s *settings.Settings, app *model.AppInfo, spaceInfo *space.Info) WindowData {
	data := WindowData{
		SourceApp:           app,
		SpaceInfo:           spaceInfo,
		FileSearchEnabled:   s.FileSearchEnabled(),
		SymbolSearchEnabled: s.SymbolSearchEnabled(),
		Settings:            s,
	}

	draft, err := m.history.Draft(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load draft")
	}
	data.Draft = draft.Text

	if !data.FileSearchEnabled {
		return data
	}

	if cached := m.detector.LoadCachedFilesForWindow(ctx, s.FileSearch); cached != nil {
		data.DirectoryData = cached
	} else if draft.Directory != "" {
		data.DirectoryData = &model.DirectoryInfo{Directory: draft.Directory, FromDraft: true}
	}
	if data.DirectoryData != nil && app != nil {
		data.DirectoryData.AppName = app.Name
		data.DirectoryData.BundleID = app.BundleID
	}
	return data
}

// deliver sends the payload, shows the window and then schedules detection
// with the file search in effect for this show.
func (m *Manager) deliver(gen uint64, data WindowData, fs *settings.FileSearch) error {
	m.mu.Lock()
	if gen != m.generation || !m.state.Live() {
		m.mu.Unlock()
		m.logger.Debug().Msg("Window replaced before delivery")
		return nil
	}
	err := m.showLocked(data)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	notifier := &windowNotifier{manager: m, generation: gen}
	m.schedule(func() {
		m.detector.ExecuteBackgroundDirectoryDetection(m.baseCtx, notifier, fs)
	})
	return nil
}

func (m *Manager) showLocked(data WindowData) error {
	if err := m.host.Send(ipc.ChannelWindowShown, data); err != nil {
		return fmt.Errorf("send window data: %w", err)
	}
	if err := m.host.Show(); err != nil {
		return fmt.Errorf("show window: %w", err)
	}
	if err := m.host.Focus(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to focus window")
	}
	if m.state != Shown {
		if err := m.transitionLocked(Shown); err != nil {
			return err
		}
	}
	if err := m.host.Send(ipc.ChannelFocusTextarea, nil); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to focus textarea")
	}
	return nil
}

// HideInputWindow hides a shown window.
func (m *Manager) HideInputWindow(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Shown {
		return nil
	}
	if err := m.host.Hide(); err != nil {
		return fmt.Errorf("hide window: %w", err)
	}
	if err := m.transitionLocked(Hidden); err != nil {
		return err
	}
	if err := m.host.Send(ipc.ChannelWindowHidden, nil); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to send window-hidden")
	}
	return nil
}

// Destroy closes the native window.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Live() {
		return nil
	}
	if err := m.host.Destroy(); err != nil {
		return fmt.Errorf("destroy window: %w", err)
	}
	m.generation++
	return m.transitionLocked(Destroyed)
}

// SaveDraft stores the in-progress text.
func (m *Manager) SaveDraft(ctx context.Context, text string) error {
	return m.history.SaveDraftText(ctx, text)
}

// Paste hides the window, pastes text into the app that was frontmost when
// the window opened and then records it in history. A failed paste leaves
// history and the draft untouched.
func (m *Manager) Paste(ctx context.Context, text string) (*history.Item, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("paste: text is empty")
	}

	app := m.SourceApp()
	appName := ""
	if app != nil {
		appName = app.Name
	}

	if err := m.host.WriteClipboard(text); err != nil {
		return nil, fmt.Errorf("paste: write clipboard: %w", err)
	}
	if err := m.HideInputWindow(ctx); err != nil {
		return nil, fmt.Errorf("paste: %w", err)
	}

	if app != nil && app.BundleID != "" {
		if r := m.native.ActivateAndPaste(ctx, app.BundleID); !r.IsOk() {
			return nil, fmt.Errorf("paste: %s", r.Reason())
		}
	} else if r := m.native.Paste(ctx); !r.IsOk() {
		return nil, fmt.Errorf("paste: %s", r.Reason())
	}

	// history and draft change only once the text has been delivered
	item, err := m.history.Add(ctx, text, appName, m.detector.SavedDirectory(ctx))
	if err != nil {
		return nil, fmt.Errorf("paste: %w", err)
	}
	if err := m.history.ClearDraftText(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clear draft")
	}

	if err := m.host.Send(ipc.ChannelHistoryUpdated, item); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to send history-updated")
	}
	return item, nil
}

// windowNotifier drops detection results meant for a window that has since
// been replaced or destroyed.
type windowNotifier struct {
	manager    *Manager
	generation uint64
}

func (n *windowNotifier) Send(channel string, payload any) error {
	m := n.manager
	m.mu.Lock()
	stale := n.generation != m.generation || !m.state.Live()
	m.mu.Unlock()
	if stale {
		m.logger.Debug().Str("channel", channel).Msg("Dropping event for replaced window")
		return nil
	}
	return m.host.Send(channel, payload)
}

// applyOverrides returns s with per-show overrides applied. The persisted
// settings are not changed.
func applyOverrides(s *settings.Settings, req ShowRequest) *settings.Settings {
	if req.Position != "" && settings.ValidPosition(req.Position) {
		s.Window.Position = req.Position
	}
	if req.Width > 0 {
		s.Window.Width = req.Width
	}
	if req.Height > 0 {
		s.Window.Height = req.Height
	}
	if req.FileSearch != nil {
		switch {
		case !*req.FileSearch:
			s.FileSearch = nil
			s.SymbolSearch = nil
		case s.FileSearch == nil:
			s.FileSearch = settings.DefaultFileSearch()
		}
	}
	return s
}
