// Package space produces a best-effort "has the desktop space changed" signal
// without screen recording permission. The signal decides whether the input
// window must be recreated before it is shown again.
package space

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/model"
)

// ErrNotInitialized is returned when the manager is used before Initialize.
var ErrNotInitialized = errors.New("desktop space manager not initialized")

const (
	// MethodHeuristic marks space info synthesized from the frontmost app.
	MethodHeuristic = "FrontmostAppHeuristic"
	// MethodError marks degraded space info.
	MethodError = "Error"
	// UnknownSignature is the signature of degraded space info.
	UnknownSignature = "unknown"

	// DefaultCacheTTL is how long computed space info is reused.
	DefaultCacheTTL = 2000 * time.Millisecond

	timeBucketOwner = "TimeBucket"
)

// FingerprintProvider fingerprints the current desktop space. The heuristic
// Manager is the only implementation today; a real OS query can replace it
// without touching the window manager.
type FingerprintProvider interface {
	Initialize(ctx context.Context) error
	IsReady() bool
	CurrentSpaceInfo(ctx context.Context, app *model.AppInfo) (*Info, error)
	HasSpaceChanged(ctx context.Context, app *model.AppInfo) (bool, error)
}

// Info describes the fingerprinted space.
type Info struct {
	Method       string         `json:"method"`
	Signature    string         `json:"signature"`
	FrontmostApp *model.AppInfo `json:"frontmostApp"`
	WindowCount  int            `json:"windowCount"`
	AppCount     int            `json:"appCount"`
	Apps         []App          `json:"apps"`
}

// App summarizes the windows of one owner.
type App struct {
	Name        string `json:"name"`
	PID         int    `json:"pid,omitempty"`
	WindowCount int    `json:"windowCount"`
	IsActive    bool   `json:"isActive"`
}

// Window is one (possibly synthetic) window entry.
type Window struct {
	OwnerName string
	OwnerPID  int
	Title     string
}

// WindowSource lists the windows visible in the current space.
type WindowSource func(ctx context.Context, app *model.AppInfo, now time.Time) ([]Window, error)

// AppSource resolves the frontmost app when the caller does not supply one.
type AppSource func(ctx context.Context) (*model.AppInfo, error)

// PermissionChecker reports whether accessibility permission is granted.
type PermissionChecker func(ctx context.Context) (bool, error)

// Options configures a Manager. Zero fields take defaults.
type Options struct {
	GOOS       string
	CacheTTL   time.Duration
	Clock      func() time.Time
	Windows    WindowSource
	Apps       AppSource
	Permission PermissionChecker
}

// Manager is the heuristic FingerprintProvider.
type Manager struct {
	logger     arbor.ILogger
	goos       string
	ttl        time.Duration
	clock      func() time.Time
	windows    WindowSource
	apps       AppSource
	permission PermissionChecker

	mu            sync.Mutex
	ready         bool
	cached        *Info
	cachedAt      time.Time
	lastSignature string
}

var _ FingerprintProvider = (*Manager)(nil)

// NewManager creates a space manager.
func NewManager(logger arbor.ILogger, opts Options) *Manager {
	m := &Manager{
		logger:     logger,
		goos:       opts.GOOS,
		ttl:        opts.CacheTTL,
		clock:      opts.Clock,
		windows:    opts.Windows,
		apps:       opts.Apps,
		permission: opts.Permission,
	}
	if m.goos == "" {
		m.goos = runtime.GOOS
	}
	if m.ttl <= 0 {
		m.ttl = DefaultCacheTTL
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.windows == nil {
		m.windows = SyntheticWindows
	}
	return m
}

// Initialize marks the manager ready. On macOS it probes accessibility
// permission first; a denial or probe failure is logged, never fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.goos == "darwin" && m.permission != nil {
		granted, err := m.permission(ctx)
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Msg("Accessibility permission probe failed")
		case !granted:
			m.logger.Warn().Msg("Accessibility permission not granted, space detection limited to frontmost app")
		default:
			m.logger.Debug().Msg("Accessibility permission granted")
		}
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()

	m.logger.Debug().Str("platform", m.goos).Msg("Desktop space manager ready")
	return nil
}

// IsReady reports whether Initialize has run.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// CurrentSpaceInfo returns the space fingerprint, reusing the previous one
// when it is younger than the cache TTL. Detection problems degrade to an
// Error-method Info rather than an error.
func (m *Manager) CurrentSpaceInfo(ctx context.Context, app *model.AppInfo) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotInitialized
	}

	now := m.clock()
	if m.cached != nil && now.Sub(m.cachedAt) < m.ttl {
		return m.cached, nil
	}

	info, err := m.compute(ctx, app, now)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Space detection failed, using degraded space info")
		return degraded(app), nil
	}

	m.cached = info
	m.cachedAt = now
	return info, nil
}

// HasSpaceChanged compares the current signature with the one seen on the
// previous call. The first call establishes the baseline and reports false.
func (m *Manager) HasSpaceChanged(ctx context.Context, app *model.AppInfo) (bool, error) {
	info, err := m.CurrentSpaceInfo(ctx, app)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.lastSignature
	m.lastSignature = info.Signature
	if previous == "" || previous == info.Signature {
		return false, nil
	}

	m.logger.Info().
		Str("previous", previous).
		Str("current", info.Signature).
		Msg("Desktop space change detected")
	return true, nil
}

// Invalidate drops the cached fingerprint.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

func (m *Manager) compute(ctx context.Context, app *model.AppInfo, now time.Time) (*Info, error) {
	if app == nil && m.apps != nil {
		resolved, err := m.apps(ctx)
		if err != nil {
			m.logger.Debug().Err(err).Msg("Frontmost app unavailable for space detection")
		} else {
			app = resolved
		}
	}

	windows, err := m.windows(ctx, app, now)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	apps := groupByOwner(windows, app)
	return &Info{
		Method:       MethodHeuristic,
		Signature:    GenerateSpaceSignature(windows),
		FrontmostApp: app,
		WindowCount:  len(windows),
		AppCount:     len(apps),
		Apps:         apps,
	}, nil
}

// SyntheticWindows is the default WindowSource: one entry for the frontmost
// app plus one entry for the current one-second time bucket.
func SyntheticWindows(_ context.Context, app *model.AppInfo, now time.Time) ([]Window, error) {
	var windows []Window
	if app != nil && app.Name != "" {
		windows = append(windows, Window{OwnerName: app.Name, OwnerPID: app.PID, Title: app.Name})
	}
	windows = append(windows, Window{
		OwnerName: fmt.Sprintf("%s-%d", timeBucketOwner, now.Unix()),
	})
	return windows, nil
}

// GenerateSpaceSignature groups windows by owner and joins the sorted
// "owner:count" pairs with "|".
func GenerateSpaceSignature(windows []Window) string {
	counts := make(map[string]int)
	for _, w := range windows {
		counts[w.OwnerName]++
	}

	pairs := make([]string, 0, len(counts))
	for owner, n := range counts {
		pairs = append(pairs, fmt.Sprintf("%s:%d", owner, n))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

func groupByOwner(windows []Window, active *model.AppInfo) []App {
	index := make(map[string]int)
	var apps []App
	for _, w := range windows {
		if strings.HasPrefix(w.OwnerName, timeBucketOwner+"-") {
			continue
		}
		if i, ok := index[w.OwnerName]; ok {
			apps[i].WindowCount++
			continue
		}
		index[w.OwnerName] = len(apps)
		apps = append(apps, App{
			Name:        w.OwnerName,
			PID:         w.OwnerPID,
			WindowCount: 1,
			IsActive:    active != nil && active.Name == w.OwnerName,
		})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps
}

func degraded(app *model.AppInfo) *Info {
	return &Info{
		Method:       MethodError,
		Signature:    UnknownSignature,
		FrontmostApp: app,
		Apps:         []App{},
	}
}
