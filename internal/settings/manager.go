package settings

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/fileutil"
)

// Manager owns the loaded settings and persists every mutation.
type Manager struct {
	path   string
	logger arbor.ILogger

	mu       sync.RWMutex
	current  *Settings
	lastHash [sha256.Size]byte

	listenersMu sync.Mutex
	listeners   []func(*Settings)
}

// NewManager creates a manager for the settings file at path. Call Load
// before use.
func NewManager(path string, logger arbor.ILogger) *Manager {
	return &Manager{
		path:    path,
		logger:  logger,
		current: Defaults(),
	}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the settings file, writing defaults when it does not exist.
func (m *Manager) Load() (*Settings, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		s := Defaults()
		if err := m.persist(s); err != nil {
			return nil, err
		}
		m.logger.Info().Str("path", m.path).Msg("Created default settings")
		m.set(s)
		return s.Clone(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = s
	m.lastHash = sha256.Sum256(data)
	m.mu.Unlock()

	m.logger.Debug().Str("path", m.path).Msg("Loaded settings")
	return s.Clone(), nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// OnChange registers fn to run after every successful change, including
// reloads triggered by external edits.
func (m *Manager) OnChange(fn func(*Settings)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// Update applies fn to a copy of the current settings, validates the
// result and persists it.
func (m *Manager) Update(fn func(*Settings)) (*Settings, error) {
	m.mu.Lock()
	next := m.current.Clone()
	fn(next)
	next.normalize()
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.persistLocked(next); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.current = next
	m.mu.Unlock()

	m.notify(next)
	return next.Clone(), nil
}

// Replace swaps the whole document.
func (m *Manager) Replace(s *Settings) (*Settings, error) {
	return m.Update(func(cur *Settings) { *cur = *s.Clone() })
}

// ResetToDefaults restores and persists the default settings.
func (m *Manager) ResetToDefaults() (*Settings, error) {
	return m.Replace(Defaults())
}

// SetWindowPosition changes the position mode.
func (m *Manager) SetWindowPosition(mode string) (*Settings, error) {
	if !ValidPosition(mode) {
		return nil, fmt.Errorf("%w: unknown window position %q", ErrInvalidSettings, mode)
	}
	return m.Update(func(s *Settings) { s.Window.Position = mode })
}

// SetWindowSize changes the window dimensions.
func (m *Manager) SetWindowSize(width, height int) (*Settings, error) {
	return m.Update(func(s *Settings) {
		s.Window.Width = width
		s.Window.Height = height
	})
}

// SetShortcut changes one accelerator by its settings key.
func (m *Manager) SetShortcut(name, accelerator string) (*Settings, error) {
	if shortcutField(&Shortcuts{}, name) == nil {
		return nil, fmt.Errorf("%w: unknown shortcut %q", ErrInvalidSettings, name)
	}
	return m.Update(func(s *Settings) {
		*shortcutField(&s.Shortcuts, name) = accelerator
	})
}

func shortcutField(sc *Shortcuts, name string) *string {
	switch name {
	case "main":
		return &sc.Main
	case "paste":
		return &sc.Paste
	case "close":
		return &sc.Close
	case "historyNext":
		return &sc.HistoryNext
	case "historyPrev":
		return &sc.HistoryPrev
	case "search":
		return &sc.Search
	}
	return nil
}

// SetFileSearch enables file search with fs, or disables it when fs is nil.
// Disabling file search also disables symbol search.
func (m *Manager) SetFileSearch(fs *FileSearch) (*Settings, error) {
	return m.Update(func(s *Settings) {
		if fs == nil {
			s.FileSearch = nil
			s.SymbolSearch = nil
			return
		}
		c := *fs
		s.FileSearch = &c
	})
}

// SetSymbolSearch enables symbol search with ss, or disables it when nil.
func (m *Manager) SetSymbolSearch(ss *SymbolSearch) (*Settings, error) {
	return m.Update(func(s *Settings) {
		if ss == nil {
			s.SymbolSearch = nil
			return
		}
		c := *ss
		s.SymbolSearch = &c
	})
}

// AddSlashCommand appends or replaces a slash command source by name.
func (m *Manager) AddSlashCommand(cmd SlashCommandSetting) (*Settings, error) {
	return m.Update(func(s *Settings) {
		for i := range s.SlashCommands {
			if s.SlashCommands[i].Name == cmd.Name {
				s.SlashCommands[i] = cmd
				return
			}
		}
		s.SlashCommands = append(s.SlashCommands, cmd)
	})
}

func (m *Manager) set(s *Settings) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

func (m *Manager) persist(s *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked(s)
}

func (m *Manager) persistLocked(s *Settings) error {
	if err := fileutil.EnsureDir(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data := []byte(Render(s))
	if err := fileutil.WriteFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	m.lastHash = sha256.Sum256(data)
	return nil
}

func (m *Manager) notify(s *Settings) {
	m.listenersMu.Lock()
	listeners := append([]func(*Settings){}, m.listeners...)
	m.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(s.Clone())
	}
}

// reload re-reads the file after an external change. Content identical to
// the last write is ignored.
func (m *Manager) reload() (bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false, fmt.Errorf("read settings: %w", err)
	}
	hash := sha256.Sum256(data)

	m.mu.RLock()
	same := hash == m.lastHash
	m.mu.RUnlock()
	if same {
		return false, nil
	}

	s, err := Parse(data)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.current = s
	m.lastHash = hash
	m.mu.Unlock()

	m.notify(s)
	return true, nil
}
