// Package filecache persists per-directory file listings so the input window
// can offer file suggestions before fresh detection finishes.
//
// Layout: <root>/<encoded dir>/metadata.json and files.jsonl, where the
// encoded dir is the absolute path with "/" replaced by "-".
package filecache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/fileutil"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/model"
)

const (
	// Version is written to metadata.json; entries with a different version are ignored.
	Version = "1"

	metadataFile = "metadata.json"
	filesFile    = "files.jsonl"

	memoryTTL = 5 * time.Minute
)

// Metadata describes one cached listing.
type Metadata struct {
	Version    string    `json:"version"`
	Directory  string    `json:"directory"`
	FileCount  int       `json:"fileCount"`
	SearchMode string    `json:"searchMode,omitempty"`
	Partial    bool      `json:"partial,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	TTLSeconds int64     `json:"ttlSeconds"`
}

// Entry is a cached listing.
type Entry struct {
	Metadata Metadata
	Files    []string
}

type fileLine struct {
	Path string `json:"path"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Directories int   `json:"directories"`
	Files       int   `json:"files"`
	Bytes       int64 `json:"bytes"`
}

// Manager reads and writes cached listings. A process-local mutex serializes
// writers; concurrent app instances sharing the cache root are not supported.
type Manager struct {
	root   string
	ttl    time.Duration
	logger arbor.ILogger
	clock  func() time.Time
	memory *gocache.Cache
	mu     sync.Mutex
}

// NewManager creates a cache rooted at root.
func NewManager(root string, ttl time.Duration, logger arbor.ILogger) *Manager {
	return &Manager{
		root:   root,
		ttl:    ttl,
		logger: logger,
		clock:  time.Now,
		memory: gocache.New(memoryTTL, 10*time.Minute),
	}
}

// SetClock overrides the wall clock used for freshness.
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

// Dir returns the cache folder for a directory.
func (m *Manager) Dir(directory string) string {
	return filepath.Join(m.root, fileutil.EncodePath(directory))
}

// Load returns the cached listing for directory, or nil when there is none.
func (m *Manager) Load(directory string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.load(directory)
	if err != nil {
		metrics.RecordFileCache("miss")
		return nil, err
	}
	if entry == nil {
		metrics.RecordFileCache("miss")
		return nil, nil
	}
	if !m.isFresh(entry) {
		metrics.RecordFileCache("stale")
	} else {
		metrics.RecordFileCache("hit")
	}
	return entry, nil
}

// IsFresh reports whether an entry is younger than the cache TTL.
func (m *Manager) IsFresh(entry *Entry) bool {
	return m.isFresh(entry)
}

func (m *Manager) isFresh(entry *Entry) bool {
	if entry == nil {
		return false
	}
	return m.clock().Sub(entry.Metadata.UpdatedAt) <= m.ttl
}

func (m *Manager) load(directory string) (*Entry, error) {
	if cached, ok := m.memory.Get(directory); ok {
		return cached.(*Entry), nil
	}

	dir := m.Dir(directory)
	var meta Metadata
	if err := fileutil.ReadJSON(filepath.Join(dir, metadataFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache metadata: %w", err)
	}
	if meta.Version != Version || meta.Directory != directory {
		return nil, nil
	}

	lines, err := fileutil.ReadJSONL[fileLine](filepath.Join(dir, filesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached files: %w", err)
	}

	files := make([]string, len(lines))
	for i, l := range lines {
		files[i] = l.Path
	}

	entry := &Entry{Metadata: meta, Files: files}
	m.memory.SetDefault(directory, entry)
	return entry, nil
}

// Save writes the listing from info and reports whether the set of files
// differs from the previously cached one. Ordering is not significant.
func (m *Manager) Save(info model.DirectoryInfo) (bool, error) {
	if info.Directory == "" {
		return false, errors.New("directory is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous, err := m.load(info.Directory)
	if err != nil {
		m.logger.Debug().Err(err).Str("directory", info.Directory).Msg("Ignoring unreadable cache entry")
		previous = nil
	}

	changed := previous == nil || !sameFiles(previous.Files, info.Files)

	now := m.clock()
	meta := Metadata{
		Version:    Version,
		Directory:  info.Directory,
		FileCount:  len(info.Files),
		SearchMode: info.SearchMode,
		Partial:    info.Partial,
		CreatedAt:  now,
		UpdatedAt:  now,
		TTLSeconds: int64(m.ttl / time.Second),
	}
	if previous != nil {
		meta.CreatedAt = previous.Metadata.CreatedAt
	}

	dir := m.Dir(info.Directory)
	if changed {
		lines := make([]fileLine, len(info.Files))
		for i, f := range info.Files {
			lines[i] = fileLine{Path: f}
		}
		if err := fileutil.WriteJSONL(filepath.Join(dir, filesFile), lines); err != nil {
			return true, fmt.Errorf("write cached files: %w", err)
		}
	}
	// Metadata is always rewritten so UpdatedAt reflects the latest detection
	if err := fileutil.WriteJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return changed, fmt.Errorf("write cache metadata: %w", err)
	}

	files := append([]string(nil), info.Files...)
	m.memory.SetDefault(info.Directory, &Entry{Metadata: meta, Files: files})

	return changed, nil
}

// Clear removes the cached listing for directory.
func (m *Manager) Clear(directory string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.memory.Delete(directory)
	if err := os.Remove(filepath.Join(m.Dir(directory), filesFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(filepath.Join(m.Dir(directory), metadataFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ClearAll removes every cached listing, leaving other cache files alone.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.memory.Flush()
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, name := range []string{filesFile, metadataFile} {
			if err := os.Remove(filepath.Join(m.root, e.Name(), name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}

// Stats walks the cache root and counts cached listings.
func (m *Manager) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats Stats
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return stats, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta Metadata
		if err := fileutil.ReadJSON(filepath.Join(m.root, e.Name(), metadataFile), &meta); err != nil {
			continue
		}
		stats.Directories++
		stats.Files += meta.FileCount
		if info, err := os.Stat(filepath.Join(m.root, e.Name(), filesFile)); err == nil {
			stats.Bytes += info.Size()
		}
	}
	return stats, nil
}

func sameFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
