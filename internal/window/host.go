package window

import (
	"context"

	"github.com/ternarybob/promptline/internal/directory"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/native"
	"github.com/ternarybob/promptline/internal/settings"
)

// Host is the native window implementation.
type Host interface {
	Create(ctx context.Context, bounds model.Rect) error
	Destroy() error
	SetBounds(bounds model.Rect) error
	Show() error
	Hide() error
	Focus() error
	IsLoading() bool
	OnFinishLoad(fn func())
	WriteClipboard(text string) error
	Send(channel string, payload any) error
}

// NativeClient is the subset of native tools the window manager uses.
type NativeClient interface {
	CurrentApp(ctx context.Context) native.Result[model.AppInfo]
	ActiveWindowBounds(ctx context.Context) native.Result[model.Rect]
	TextFieldBounds(ctx context.Context) native.Result[model.Rect]
	Paste(ctx context.Context) native.Result[native.Ack]
	ActivateAndPaste(ctx context.Context, bundleID string) native.Result[native.Ack]
}

// Detector provides cached directory data and background detection.
type Detector interface {
	LoadCachedFilesForWindow(ctx context.Context, fs *settings.FileSearch) *model.DirectoryInfo
	SavedDirectory(ctx context.Context) string
	ExecuteBackgroundDirectoryDetection(ctx context.Context, n directory.Notifier, fs *settings.FileSearch)
}

// History stores pasted text and the draft.
type History interface {
	Add(ctx context.Context, text, appName, directory string) (*history.Item, error)
	Draft(ctx context.Context) (history.Draft, error)
	SaveDraftText(ctx context.Context, text string) error
	ClearDraftText(ctx context.Context) error
}

// SettingsSource returns the current user settings.
type SettingsSource interface {
	Get() *settings.Settings
}
