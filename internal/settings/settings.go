// Package settings loads, renders and persists the user settings file
// (settings.yml in the data directory).
package settings

import (
	"errors"
	"fmt"
)

// Window position modes.
const (
	PositionCenter             = "center"
	PositionCursor             = "cursor"
	PositionActiveWindowCenter = "active-window-center"
	PositionActiveTextField    = "active-text-field"
)

// ErrInvalidSettings wraps validation failures.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the user settings document.
type Settings struct {
	Shortcuts     Shortcuts             `yaml:"shortcuts" json:"shortcuts"`
	Window        Window                `yaml:"window" json:"window"`
	FileOpener    FileOpener            `yaml:"fileOpener" json:"fileOpener"`
	FileSearch    *FileSearch           `yaml:"fileSearch,omitempty" json:"fileSearch,omitempty"`
	SymbolSearch  *SymbolSearch         `yaml:"symbolSearch,omitempty" json:"symbolSearch,omitempty"`
	Mentions      Mentions              `yaml:"mentions" json:"mentions"`
	SlashCommands []SlashCommandSetting `yaml:"slashCommands,omitempty" json:"slashCommands,omitempty"`
}

// Shortcuts holds accelerator strings.
type Shortcuts struct {
	Main        string `yaml:"main" json:"main"`
	Paste       string `yaml:"paste" json:"paste"`
	Close       string `yaml:"close" json:"close"`
	HistoryNext string `yaml:"historyNext" json:"historyNext"`
	HistoryPrev string `yaml:"historyPrev" json:"historyPrev"`
	Search      string `yaml:"search" json:"search"`
}

// Window holds input window geometry.
type Window struct {
	Position string `yaml:"position" json:"position"`
	Width    int    `yaml:"width" json:"width"`
	Height   int    `yaml:"height" json:"height"`
}

// FileOpener maps extensions to applications used to open mentioned files.
type FileOpener struct {
	DefaultEditor string            `yaml:"defaultEditor,omitempty" json:"defaultEditor,omitempty"`
	Extensions    map[string]string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// FileSearch configures the directory listing. A nil *FileSearch disables
// file search entirely.
type FileSearch struct {
	RespectGitignore bool     `yaml:"respectGitignore" json:"respectGitignore"`
	IncludeHidden    bool     `yaml:"includeHidden" json:"includeHidden"`
	MaxFiles         int      `yaml:"maxFiles" json:"maxFiles"`
	MaxDepth         int      `yaml:"maxDepth" json:"maxDepth"`
	FollowSymlinks   bool     `yaml:"followSymlinks" json:"followSymlinks"`
	FdPath           string   `yaml:"fdPath,omitempty" json:"fdPath,omitempty"`
	ExcludePatterns  []string `yaml:"excludePatterns,omitempty" json:"excludePatterns,omitempty"`
	IncludePatterns  []string `yaml:"includePatterns,omitempty" json:"includePatterns,omitempty"`
}

// SymbolSearch configures code symbol search. Requires file search.
type SymbolSearch struct {
	MaxSymbols int      `yaml:"maxSymbols" json:"maxSymbols"`
	TimeoutMs  int      `yaml:"timeout" json:"timeout"`
	RgPaths    []string `yaml:"rgPaths,omitempty" json:"rgPaths,omitempty"`
}

// Mentions toggles @-mention sources.
type Mentions struct {
	FileSearch     bool `yaml:"fileSearch" json:"fileSearch"`
	SymbolSearch   bool `yaml:"symbolSearch" json:"symbolSearch"`
	MaxSuggestions int  `yaml:"maxSuggestions" json:"maxSuggestions"`
}

// SlashCommandSetting points at a directory of markdown slash commands.
type SlashCommandSetting struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Path        string `yaml:"path" json:"path"`
}

// Default values.
const (
	DefaultWidth          = 600
	DefaultHeight         = 300
	DefaultMaxFiles       = 5000
	DefaultMaxDepth       = 0
	DefaultMaxSymbols     = 20000
	DefaultSymbolTimeout  = 5000
	DefaultMaxSuggestions = 20
)

// Defaults returns the settings written on first start.
func Defaults() *Settings {
	return &Settings{
		Shortcuts: Shortcuts{
			Main:        "Cmd+Shift+Space",
			Paste:       "Cmd+Enter",
			Close:       "Escape",
			HistoryNext: "Ctrl+j",
			HistoryPrev: "Ctrl+k",
			Search:      "Cmd+f",
		},
		Window: Window{
			Position: PositionActiveTextField,
			Width:    DefaultWidth,
			Height:   DefaultHeight,
		},
		Mentions: Mentions{
			MaxSuggestions: DefaultMaxSuggestions,
		},
	}
}

// DefaultFileSearch returns file search settings used when the section is
// enabled without values.
func DefaultFileSearch() *FileSearch {
	return &FileSearch{
		RespectGitignore: true,
		MaxFiles:         DefaultMaxFiles,
		MaxDepth:         DefaultMaxDepth,
		ExcludePatterns:  []string{"node_modules", ".git", "dist", "build"},
	}
}

// DefaultSymbolSearch returns symbol search defaults.
func DefaultSymbolSearch() *SymbolSearch {
	return &SymbolSearch{
		MaxSymbols: DefaultMaxSymbols,
		TimeoutMs:  DefaultSymbolTimeout,
	}
}

// FileSearchEnabled reports whether the file search section is present.
func (s *Settings) FileSearchEnabled() bool {
	return s.FileSearch != nil
}

// SymbolSearchEnabled reports whether symbol search can run.
func (s *Settings) SymbolSearchEnabled() bool {
	return s.FileSearch != nil && s.SymbolSearch != nil
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.FileOpener.Extensions != nil {
		c.FileOpener.Extensions = make(map[string]string, len(s.FileOpener.Extensions))
		for k, v := range s.FileOpener.Extensions {
			c.FileOpener.Extensions[k] = v
		}
	}
	if s.FileSearch != nil {
		fs := *s.FileSearch
		fs.ExcludePatterns = append([]string(nil), s.FileSearch.ExcludePatterns...)
		fs.IncludePatterns = append([]string(nil), s.FileSearch.IncludePatterns...)
		c.FileSearch = &fs
	}
	if s.SymbolSearch != nil {
		ss := *s.SymbolSearch
		ss.RgPaths = append([]string(nil), s.SymbolSearch.RgPaths...)
		c.SymbolSearch = &ss
	}
	c.SlashCommands = append([]SlashCommandSetting(nil), s.SlashCommands...)
	return &c
}

// normalize fills zero values left by partial documents.
func (s *Settings) normalize() {
	d := Defaults()
	if s.Shortcuts.Main == "" {
		s.Shortcuts.Main = d.Shortcuts.Main
	}
	if s.Shortcuts.Paste == "" {
		s.Shortcuts.Paste = d.Shortcuts.Paste
	}
	if s.Shortcuts.Close == "" {
		s.Shortcuts.Close = d.Shortcuts.Close
	}
	if s.Shortcuts.HistoryNext == "" {
		s.Shortcuts.HistoryNext = d.Shortcuts.HistoryNext
	}
	if s.Shortcuts.HistoryPrev == "" {
		s.Shortcuts.HistoryPrev = d.Shortcuts.HistoryPrev
	}
	if s.Shortcuts.Search == "" {
		s.Shortcuts.Search = d.Shortcuts.Search
	}
	if s.Window.Position == "" {
		s.Window.Position = d.Window.Position
	}
	if s.Window.Width == 0 {
		s.Window.Width = d.Window.Width
	}
	if s.Window.Height == 0 {
		s.Window.Height = d.Window.Height
	}
	if s.FileSearch != nil && s.FileSearch.MaxFiles == 0 {
		s.FileSearch.MaxFiles = DefaultMaxFiles
	}
	if s.SymbolSearch != nil {
		if s.SymbolSearch.MaxSymbols == 0 {
			s.SymbolSearch.MaxSymbols = DefaultMaxSymbols
		}
		if s.SymbolSearch.TimeoutMs == 0 {
			s.SymbolSearch.TimeoutMs = DefaultSymbolTimeout
		}
	}
	if s.Mentions.MaxSuggestions == 0 {
		s.Mentions.MaxSuggestions = d.Mentions.MaxSuggestions
	}

	// Empty collections decode as non-nil; keep a single representation
	if len(s.FileOpener.Extensions) == 0 {
		s.FileOpener.Extensions = nil
	}
	if s.FileSearch != nil {
		s.FileSearch.ExcludePatterns = nilIfEmpty(s.FileSearch.ExcludePatterns)
		s.FileSearch.IncludePatterns = nilIfEmpty(s.FileSearch.IncludePatterns)
	}
	if s.SymbolSearch != nil {
		s.SymbolSearch.RgPaths = nilIfEmpty(s.SymbolSearch.RgPaths)
	}
	if len(s.SlashCommands) == 0 {
		s.SlashCommands = nil
	}
}

func nilIfEmpty(v []string) []string {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if !ValidPosition(s.Window.Position) {
		return fmt.Errorf("%w: unknown window position %q", ErrInvalidSettings, s.Window.Position)
	}
	if s.Window.Width < 200 || s.Window.Width > 4000 {
		return fmt.Errorf("%w: window width %d out of range", ErrInvalidSettings, s.Window.Width)
	}
	if s.Window.Height < 100 || s.Window.Height > 4000 {
		return fmt.Errorf("%w: window height %d out of range", ErrInvalidSettings, s.Window.Height)
	}
	if s.FileSearch != nil && s.FileSearch.MaxFiles < 0 {
		return fmt.Errorf("%w: fileSearch.maxFiles must not be negative", ErrInvalidSettings)
	}
	if s.SymbolSearch != nil && s.FileSearch == nil {
		return fmt.Errorf("%w: symbolSearch requires fileSearch", ErrInvalidSettings)
	}
	for i, cmd := range s.SlashCommands {
		if cmd.Name == "" || cmd.Path == "" {
			return fmt.Errorf("%w: slashCommands[%d] needs name and path", ErrInvalidSettings, i)
		}
	}
	return nil
}

// ValidPosition reports whether mode is a known window position mode.
func ValidPosition(mode string) bool {
	switch mode {
	case PositionCenter, PositionCursor, PositionActiveWindowCenter, PositionActiveTextField:
		return true
	}
	return false
}
