package symbols

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/fileutil"
)

const (
	// CacheVersion is written to symbol-metadata.json; other versions are
	// treated as a miss.
	CacheVersion = "1"

	metadataFile  = "symbol-metadata.json"
	symbolsPrefix = "symbols-"
	symbolsSuffix = ".jsonl"
)

// LanguageStats counts what was indexed for one language.
type LanguageStats struct {
	SymbolCount int `json:"symbolCount"`
	FileCount   int `json:"fileCount"`
}

// Metadata describes the cached symbols of one directory. The Languages key
// set always matches the symbols-<language>.jsonl files beside it.
type Metadata struct {
	Version          string                   `json:"version"`
	Directory        string                   `json:"directory"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
	TTLSeconds       int64                    `json:"ttlSeconds"`
	Languages        map[string]LanguageStats `json:"languages"`
	TotalSymbolCount int                      `json:"totalSymbolCount"`
}

// Index is the result of extracting one directory, grouped by language.
type Index struct {
	Symbols map[string][]Symbol
	Files   map[string]int
}

// Cache stores symbol indexes on disk, one folder per directory.
type Cache struct {
	root   string
	ttl    time.Duration
	logger arbor.ILogger
	clock  func() time.Time
	mu     sync.Mutex
}

// NewCache creates a symbol cache rooted at root.
func NewCache(root string, ttl time.Duration, logger arbor.ILogger) *Cache {
	return &Cache{root: root, ttl: ttl, logger: logger, clock: time.Now}
}

// SetClock overrides the wall clock used for staleness.
func (c *Cache) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Dir returns the cache folder for a directory.
func (c *Cache) Dir(directory string) string {
	return filepath.Join(c.root, fileutil.EncodePath(directory))
}

func symbolsFile(lang string) string {
	return symbolsPrefix + lang + symbolsSuffix
}

// Load returns the metadata for directory, or nil when nothing usable is
// cached.
func (c *Cache) Load(directory string) (*Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(directory)
}

func (c *Cache) load(directory string) (*Metadata, error) {
	var meta Metadata
	if err := fileutil.ReadJSON(filepath.Join(c.Dir(directory), metadataFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read symbol metadata: %w", err)
	}
	if meta.Version != CacheVersion || meta.Directory != directory {
		return nil, nil
	}
	return &meta, nil
}

// LoadSymbols reads the cached symbols of one language.
func (c *Cache) LoadSymbols(directory, lang string) ([]Symbol, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	syms, err := fileutil.ReadJSONL[Symbol](filepath.Join(c.Dir(directory), symbolsFile(lang)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s symbols: %w", lang, err)
	}
	return syms, nil
}

// IsStale reports whether meta is older than the cache TTL.
func (c *Cache) IsStale(meta *Metadata) bool {
	if meta == nil {
		return true
	}
	return c.clock().Sub(meta.UpdatedAt) > c.ttl
}

// Save replaces the cached index for directory. Symbol files are written
// before the metadata so a crash leaves either the old metadata or a
// mismatch that Validate detects.
func (c *Cache) Save(directory string, idx Index) (*Metadata, error) {
	if directory == "" {
		return nil, errors.New("directory is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	meta := &Metadata{
		Version:    CacheVersion,
		Directory:  directory,
		CreatedAt:  now,
		UpdatedAt:  now,
		TTLSeconds: int64(c.ttl / time.Second),
		Languages:  make(map[string]LanguageStats, len(idx.Symbols)),
	}
	if previous, err := c.load(directory); err == nil && previous != nil {
		meta.CreatedAt = previous.CreatedAt
	}

	dir := c.Dir(directory)
	for lang, syms := range idx.Symbols {
		if err := fileutil.WriteJSONL(filepath.Join(dir, symbolsFile(lang)), syms); err != nil {
			return nil, fmt.Errorf("write %s symbols: %w", lang, err)
		}
		meta.Languages[lang] = LanguageStats{SymbolCount: len(syms), FileCount: idx.Files[lang]}
		meta.TotalSymbolCount += len(syms)
	}

	onDisk, err := c.languageFiles(directory)
	if err != nil {
		return nil, err
	}
	for _, lang := range onDisk {
		if _, ok := meta.Languages[lang]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, symbolsFile(lang))); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s symbols: %w", lang, err)
		}
	}

	if err := fileutil.WriteJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("write symbol metadata: %w", err)
	}

	c.logger.Debug().
		Str("directory", directory).
		Int("symbols", meta.TotalSymbolCount).
		Msg("Symbol cache saved")

	return meta, nil
}

// Validate checks that the metadata language set matches the symbol files
// on disk. A mismatched entry is invalidated by removing its metadata.
func (c *Cache) Validate(directory string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.load(directory)
	if err != nil || meta == nil {
		return false, err
	}

	onDisk, err := c.languageFiles(directory)
	if err != nil {
		return false, err
	}

	valid := len(onDisk) == len(meta.Languages)
	if valid {
		for _, lang := range onDisk {
			if _, ok := meta.Languages[lang]; !ok {
				valid = false
				break
			}
		}
	}
	if valid {
		return true, nil
	}

	c.logger.Warn().Str("directory", directory).Msg("Symbol cache metadata does not match symbol files, invalidating")
	if err := os.Remove(filepath.Join(c.Dir(directory), metadataFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return false, nil
}

// Clear removes every cached symbol file for directory.
func (c *Cache) Clear(directory string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	langs, err := c.languageFiles(directory)
	if err != nil {
		return err
	}
	dir := c.Dir(directory)
	for _, lang := range langs {
		if err := os.Remove(filepath.Join(dir, symbolsFile(lang))); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Remove(filepath.Join(dir, metadataFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// languageFiles lists the languages that have a symbols file on disk.
func (c *Cache) languageFiles(directory string) ([]string, error) {
	entries, err := os.ReadDir(c.Dir(directory))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, symbolsPrefix) || !strings.HasSuffix(name, symbolsSuffix) {
			continue
		}
		langs = append(langs, strings.TrimSuffix(strings.TrimPrefix(name, symbolsPrefix), symbolsSuffix))
	}
	sort.Strings(langs)
	return langs, nil
}
