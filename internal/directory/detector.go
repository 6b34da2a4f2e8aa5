// Package directory detects the working directory of the frontmost app,
// lists its files through the native directory detector and keeps the file
// cache and saved directory in step with the result.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/filecache"
	"github.com/ternarybob/promptline/internal/ipc"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/native"
	"github.com/ternarybob/promptline/internal/settings"
)

// DefaultTimeout bounds one native detection.
const DefaultTimeout = 5 * time.Second

// FdHint is shown when file search is enabled but fd cannot be found.
const FdHint = "fd command not found. Install with: brew install fd"

// disabledPrefixes are root-owned trees where file search is never run.
var disabledPrefixes = []string{
	"/System",
	"/Library",
	"/usr",
	"/bin",
	"/sbin",
	"/var",
	"/etc",
	"/private",
	"/tmp",
	"/cores",
	"/opt",
	"/Applications",
}

// IsFileSearchDisabledDirectory reports whether path is "/" or lies in a
// root-owned system tree.
func IsFileSearchDisabledDirectory(path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range disabledPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Tool runs the native directory detector.
type Tool interface {
	DetectDirectory(ctx context.Context, opts native.DetectOptions, timeout time.Duration) native.Result[model.DirectoryInfo]
}

// FileCache is the listing cache consulted and updated by detection.
type FileCache interface {
	Load(directory string) (*filecache.Entry, error)
	Save(info model.DirectoryInfo) (bool, error)
}

// DraftStore persists the saved (draft) directory.
type DraftStore interface {
	SavedDirectory(ctx context.Context) (string, error)
	SetSavedDirectory(ctx context.Context, directory string) error
}

// SettingsSource returns the current user settings.
type SettingsSource interface {
	Get() *settings.Settings
}

// Notifier delivers renderer events.
type Notifier interface {
	Send(channel string, payload any) error
}

// Options configures a Detector.
type Options struct {
	Timeout  time.Duration
	LookPath func(name, override string) (string, bool)
}

// Detector runs and reconciles directory detections.
type Detector struct {
	tool     Tool
	cache    FileCache
	drafts   DraftStore
	settings SettingsSource
	logger   arbor.ILogger
	timeout  time.Duration
	lookPath func(name, override string) (string, bool)

	fdOnce      sync.Once
	fdAvailable bool
	fdPath      string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewDetector creates a detector.
func NewDetector(tool Tool, cache FileCache, drafts DraftStore, src SettingsSource, logger arbor.ILogger, opts Options) *Detector {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.LookPath == nil {
		opts.LookPath = native.LookPath
	}
	return &Detector{
		tool:     tool,
		cache:    cache,
		drafts:   drafts,
		settings: src,
		logger:   logger,
		timeout:  opts.Timeout,
		lookPath: opts.LookPath,
	}
}

// CheckFdCommandAvailability probes for fd once per process, honoring the
// fdPath setting.
func (d *Detector) CheckFdCommandAvailability() bool {
	d.fdOnce.Do(func() {
		override := ""
		if fs := d.settings.Get().FileSearch; fs != nil {
			override = fs.FdPath
		}
		d.fdPath, d.fdAvailable = d.lookPath("fd", override)
		if !d.fdAvailable {
			d.logger.Warn().Str("override", override).Msg("fd command not found, file search disabled")
		}
	})
	return d.fdAvailable
}

// fileSearch returns the persisted file search settings, nil when disabled.
func (d *Detector) fileSearch() *settings.FileSearch {
	return d.settings.Get().FileSearch
}

// detectOptions builds tool arguments from fs. The hint is set when file
// search is wanted but fd is missing.
func (d *Detector) detectOptions(fs *settings.FileSearch) (native.DetectOptions, string) {
	if fs == nil {
		return native.DetectOptions{}, ""
	}
	if !d.CheckFdCommandAvailability() {
		return native.DetectOptions{}, FdHint
	}
	return native.DetectOptions{
		FileSearch:       true,
		FdPath:           d.fdPath,
		MaxFiles:         fs.MaxFiles,
		MaxDepth:         fs.MaxDepth,
		IncludeHidden:    fs.IncludeHidden,
		RespectGitignore: fs.RespectGitignore,
		FollowSymlinks:   fs.FollowSymlinks,
		ExcludePatterns:  fs.ExcludePatterns,
		IncludePatterns:  fs.IncludePatterns,
	}, ""
}

// ExecuteDirectoryDetector runs the native tool once with a hard timeout,
// using the persisted file search settings.
func (d *Detector) ExecuteDirectoryDetector(ctx context.Context, timeout time.Duration) native.Result[model.DirectoryInfo] {
	return d.execute(ctx, timeout, d.fileSearch())
}

func (d *Detector) execute(ctx context.Context, timeout time.Duration, fs *settings.FileSearch) native.Result[model.DirectoryInfo] {
	if timeout <= 0 {
		timeout = d.timeout
	}
	opts, hint := d.detectOptions(fs)

	start := time.Now()
	result := d.tool.DetectDirectory(ctx, opts, timeout)
	if !result.IsOk() {
		d.logger.Warn().
			Str("reason", result.Reason()).
			Str("elapsed", time.Since(start).String()).
			Msg("Directory detection failed")
		return result
	}

	info := result.Value()
	if info.Directory == "" {
		return native.Err[model.DirectoryInfo]("no directory detected")
	}
	if info.Hint == "" {
		info.Hint = hint
	}
	return native.Ok(info)
}

// LoadCachedFiles is LoadCachedFilesForWindow with the persisted file
// search settings.
func (d *Detector) LoadCachedFiles(ctx context.Context) *model.DirectoryInfo {
	return d.LoadCachedFilesForWindow(ctx, d.fileSearch())
}

// LoadCachedFilesForWindow returns the cached listing for the saved
// directory, or nil when there is none or fs is nil. Stale entries are
// returned as well; background detection refreshes them.
func (d *Detector) LoadCachedFilesForWindow(ctx context.Context, fs *settings.FileSearch) *model.DirectoryInfo {
	if fs == nil {
		return nil
	}
	saved := d.savedDirectory(ctx)
	if saved == "" || IsFileSearchDisabledDirectory(saved) {
		return nil
	}

	entry, err := d.cache.Load(saved)
	if err != nil {
		d.logger.Warn().Err(err).Str("directory", saved).Msg("Failed to read file cache")
		return nil
	}
	if entry == nil {
		return nil
	}

	return &model.DirectoryInfo{
		Directory:  saved,
		Files:      entry.Files,
		FileCount:  len(entry.Files),
		Success:    true,
		Partial:    entry.Metadata.Partial,
		SearchMode: entry.Metadata.SearchMode,
		FromCache:  true,
	}
}

// SavedDirectory returns the saved (draft) directory, or "".
func (d *Detector) SavedDirectory(ctx context.Context) string {
	return d.savedDirectory(ctx)
}

func (d *Detector) savedDirectory(ctx context.Context) string {
	dir, err := d.drafts.SavedDirectory(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read saved directory")
		return ""
	}
	return dir
}

// Detect runs one detection and reconciles it without notifying. It is the
// synchronous form used by the CLI and tool servers.
func (d *Detector) Detect(ctx context.Context) (model.DirectoryInfo, error) {
	fs := d.fileSearch()
	saved := d.savedDirectory(ctx)
	result := d.execute(ctx, 0, fs)
	if !result.IsOk() {
		metrics.RecordDetection("failed")
		return model.DirectoryInfo{}, fmt.Errorf("detect directory: %s", result.Reason())
	}
	info, _ := d.reconcile(ctx, result.Value(), saved, fs)
	metrics.RecordDetection("ok")
	return info, nil
}

// ExecuteBackgroundDirectoryDetection detects the directory, updates the
// cache and saved directory, and notifies n when anything the renderer
// shows has changed. fs is the file search in effect for the window; nil
// detects the directory only. Failures produce exactly one
// detectionTimedOut notification. A newer call supersedes a running one;
// the older result is dropped.
func (d *Detector) ExecuteBackgroundDirectoryDetection(ctx context.Context, n Notifier, fs *settings.FileSearch) {
	ctx, gen := d.begin(ctx)
	defer d.end(gen)

	saved := ""
	notified := false
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Background directory detection panicked")
			metrics.RecordDetection("panic")
			if !notified && d.isCurrent(gen) {
				d.notifyFailure(n, saved, fmt.Sprintf("detection panicked: %v", r))
			}
		}
	}()

	saved = d.savedDirectory(ctx)
	result := d.execute(ctx, 0, fs)

	if !d.isCurrent(gen) {
		d.logger.Debug().Msg("Dropping superseded directory detection")
		metrics.RecordDetection("superseded")
		return
	}

	if !result.IsOk() {
		notified = true
		metrics.RecordDetection("failed")
		d.notifyFailure(n, saved, result.Reason())
		return
	}

	info, contentChanged := d.reconcile(ctx, result.Value(), saved, fs)
	if !contentChanged && !info.DirectoryChanged && info.Hint == "" {
		metrics.RecordDetection("unchanged")
		return
	}

	notified = true
	metrics.RecordDetection("ok")
	if err := n.Send(ipc.ChannelDirectoryDataUpdated, info); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to send directory update")
		return
	}
	d.logger.Debug().
		Str("directory", info.Directory).
		Str("previous", info.PreviousDirectory).
		Msg("Directory data updated")
}

// reconcile applies the disabled-directory policy, writes the listing
// through the cache and moves the saved directory. It reports whether the
// cached file list changed. With fs nil no listing is kept or cached.
func (d *Detector) reconcile(ctx context.Context, info model.DirectoryInfo, saved string, fs *settings.FileSearch) (model.DirectoryInfo, bool) {
	detected := info.Directory
	info.DirectoryChanged = saved != "" && detected != saved
	if info.DirectoryChanged {
		info.PreviousDirectory = saved
	}

	if IsFileSearchDisabledDirectory(detected) || info.FilesDisabled {
		info.FilesDisabled = true
		info.Files = nil
		info.FileCount = 0
	}
	if fs == nil {
		info.Files = nil
		info.FileCount = 0
	}

	contentChanged := false
	if !info.FilesDisabled && len(info.Files) > 0 {
		if info.FileCount == 0 {
			info.FileCount = len(info.Files)
		}
		changed, err := d.cache.Save(info)
		if err != nil {
			// Unknown cache state, let the renderer refresh
			d.logger.Warn().Err(err).Str("directory", detected).Msg("Failed to update file cache")
			contentChanged = true
		} else {
			contentChanged = changed
		}
	}

	if detected != saved {
		if err := d.drafts.SetSavedDirectory(context.WithoutCancel(ctx), detected); err != nil {
			d.logger.Warn().Err(err).Str("directory", detected).Msg("Failed to update saved directory")
		}
	}

	return info, contentChanged
}

func (d *Detector) notifyFailure(n Notifier, saved, reason string) {
	payload := model.DirectoryInfo{
		Directory:         saved,
		DetectionTimedOut: true,
		Error:             reason,
	}
	if err := n.Send(ipc.ChannelDirectoryDataUpdated, payload); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to send detection failure")
	}
}

// begin claims the single detection slot, cancelling any run in flight.
func (d *Detector) begin(ctx context.Context) (context.Context, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	return ctx, d.gen
}

func (d *Detector) end(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen && d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Detector) isCurrent(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen
}
