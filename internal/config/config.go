// Package config provides configuration management for the promptline daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the daemon configuration. It is loaded once at start and
// handed to every component constructor.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Logging LoggingConfig `toml:"logging"`
	API     APIConfig     `toml:"api"`
	MCP     MCPConfig     `toml:"mcp"`
	Native  NativeConfig  `toml:"native"`
	Cache   CacheConfig   `toml:"cache"`
}

// ServiceConfig contains service-level settings.
type ServiceConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	DataDir string `toml:"data_dir"`
}

// LoggingConfig controls the arbor writers.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"` // "json" or "text"
	Output     []string `toml:"output"` // "console", "file", "both"
	TimeFormat string   `toml:"time_format"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// APIConfig contains renderer bridge settings.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
}

// MCPConfig contains MCP server settings.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// NativeConfig locates the native helper executables and bounds their runtime.
type NativeConfig struct {
	ToolsDir      string `toml:"tools_dir"`
	DetectTimeout string `toml:"detect_timeout"`
	AppTimeout    string `toml:"app_timeout"`
	BoundsTimeout string `toml:"bounds_timeout"`
	PasteTimeout  string `toml:"paste_timeout"`
}

// CacheConfig controls on-disk cache freshness.
type CacheConfig struct {
	FileTTL   string `toml:"file_ttl"`
	SymbolTTL string `toml:"symbol_ttl"`
}

// Default timeouts and TTLs.
const (
	DefaultDetectTimeout = "5s"
	DefaultAppTimeout    = "1.5s"
	DefaultBoundsTimeout = "1.5s"
	DefaultPasteTimeout  = "3s"
	DefaultFileTTL       = "24h"
	DefaultSymbolTTL     = "1h"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Service: ServiceConfig{
			Host:    "127.0.0.1",
			Port:    8437,
			DataDir: dataDir,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		API: APIConfig{
			Enabled: true,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Native: NativeConfig{
			ToolsDir:      filepath.Join(dataDir, "native"),
			DetectTimeout: DefaultDetectTimeout,
			AppTimeout:    DefaultAppTimeout,
			BoundsTimeout: DefaultBoundsTimeout,
			PasteTimeout:  DefaultPasteTimeout,
		},
		Cache: CacheConfig{
			FileTTL:   DefaultFileTTL,
			SymbolTTL: DefaultSymbolTTL,
		},
	}
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	if dir := os.Getenv("PROMPTLINE_HOME"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "prompt-line")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "prompt-line")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".prompt-line")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the config
	expanded := os.ExpandEnv(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.Service.DataDir = expandTilde(cfg.Service.DataDir)
	cfg.Native.ToolsDir = expandTilde(cfg.Native.ToolsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return nil
}

// Validate checks that every duration field parses.
func (c *Config) Validate() error {
	fields := map[string]string{
		"native.detect_timeout": c.Native.DetectTimeout,
		"native.app_timeout":    c.Native.AppTimeout,
		"native.bounds_timeout": c.Native.BoundsTimeout,
		"native.paste_timeout":  c.Native.PasteTimeout,
		"cache.file_ttl":        c.Cache.FileTTL,
		"cache.symbol_ttl":      c.Cache.SymbolTTL,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// Address returns the full address string for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// SettingsPath returns the path to the user settings YAML file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Service.DataDir, "settings.yml")
}

// CacheDir returns the root of the per-directory caches.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Service.DataDir, "cache", "projects")
}

// HistoryPath returns the path to the history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Service.DataDir, "history.db")
}

// LogsDir returns the directory holding log files.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Service.DataDir, "logs")
}

// PIDPath returns the path of the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Service.DataDir, "promptline.pid")
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Service.DataDir,
		c.CacheDir(),
		c.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DetectTimeout bounds one directory detector run.
func (c *Config) DetectTimeout() time.Duration {
	return parseDuration(c.Native.DetectTimeout, DefaultDetectTimeout)
}

// AppTimeout bounds a frontmost app probe.
func (c *Config) AppTimeout() time.Duration {
	return parseDuration(c.Native.AppTimeout, DefaultAppTimeout)
}

// BoundsTimeout bounds window and text field bounds probes.
func (c *Config) BoundsTimeout() time.Duration {
	return parseDuration(c.Native.BoundsTimeout, DefaultBoundsTimeout)
}

// PasteTimeout bounds the keyboard simulator.
func (c *Config) PasteTimeout() time.Duration {
	return parseDuration(c.Native.PasteTimeout, DefaultPasteTimeout)
}

// FileTTL is the freshness window of cached file listings.
func (c *Config) FileTTL() time.Duration {
	return parseDuration(c.Cache.FileTTL, DefaultFileTTL)
}

// SymbolTTL is the freshness window of cached symbol files.
func (c *Config) SymbolTTL() time.Duration {
	return parseDuration(c.Cache.SymbolTTL, DefaultSymbolTTL)
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
