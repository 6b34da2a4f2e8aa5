package native

import (
	"context"
	"strconv"
	"time"

	"github.com/ternarybob/promptline/internal/model"
)

// Timeouts bounds each helper family.
type Timeouts struct {
	App    time.Duration
	Bounds time.Duration
	Paste  time.Duration
}

// Client exposes the helpers as typed calls.
type Client struct {
	exec     Executor
	timeouts Timeouts
}

// NewClient creates a client over an executor.
func NewClient(exec Executor, timeouts Timeouts) *Client {
	return &Client{exec: exec, timeouts: timeouts}
}

// Ack is the output of helpers that only report success.
type Ack struct {
	Success bool `json:"success"`
}

// DetectOptions maps file search settings onto directory-detector flags.
type DetectOptions struct {
	FileSearch       bool
	FdPath           string
	MaxFiles         int
	MaxDepth         int
	IncludeHidden    bool
	RespectGitignore bool
	FollowSymlinks   bool
	ExcludePatterns  []string
	IncludePatterns  []string
}

// Args renders the options as command line arguments after the subcommand.
func (o DetectOptions) Args() []string {
	var args []string
	if !o.FileSearch {
		return args
	}
	args = append(args, "--file-search")
	if o.FdPath != "" {
		args = append(args, "--fd-path", o.FdPath)
	}
	if o.MaxFiles > 0 {
		args = append(args, "--max-files", strconv.Itoa(o.MaxFiles))
	}
	if o.MaxDepth > 0 {
		args = append(args, "--max-depth", strconv.Itoa(o.MaxDepth))
	}
	if o.IncludeHidden {
		args = append(args, "--include-hidden")
	}
	if !o.RespectGitignore {
		args = append(args, "--no-gitignore")
	}
	if o.FollowSymlinks {
		args = append(args, "--follow-symlinks")
	}
	for _, p := range o.ExcludePatterns {
		args = append(args, "--exclude", p)
	}
	for _, p := range o.IncludePatterns {
		args = append(args, "--include", p)
	}
	return args
}

// CurrentApp returns the frontmost application.
func (c *Client) CurrentApp(ctx context.Context) Result[model.AppInfo] {
	return Call[model.AppInfo](ctx, c.exec, ToolWindowDetector, c.timeouts.App, "current-app")
}

// ActiveWindowBounds returns the frame of the frontmost window.
func (c *Client) ActiveWindowBounds(ctx context.Context) Result[model.Rect] {
	return Call[model.Rect](ctx, c.exec, ToolWindowDetector, c.timeouts.Bounds, "window-bounds")
}

// TextFieldBounds returns the frame of the focused text field.
func (c *Client) TextFieldBounds(ctx context.Context) Result[model.Rect] {
	return Call[model.Rect](ctx, c.exec, ToolTextFieldDetector, c.timeouts.Bounds, "text-field-bounds")
}

// DetectDirectory resolves the working directory of the frontmost app and,
// when file search is on, lists its files.
func (c *Client) DetectDirectory(ctx context.Context, opts DetectOptions, timeout time.Duration) Result[model.DirectoryInfo] {
	args := append([]string{"detect"}, opts.Args()...)
	return Call[model.DirectoryInfo](ctx, c.exec, ToolDirectoryDetector, timeout, args...)
}

// Paste simulates Cmd+V in the frontmost app.
func (c *Client) Paste(ctx context.Context) Result[Ack] {
	return Call[Ack](ctx, c.exec, ToolKeyboardSimulator, c.timeouts.Paste, "paste")
}

// ActivateAndPaste brings the app with bundleID to front, then pastes.
func (c *Client) ActivateAndPaste(ctx context.Context, bundleID string) Result[Ack] {
	return Call[Ack](ctx, c.exec, ToolKeyboardSimulator, c.timeouts.Paste, "activate-and-paste", bundleID)
}

// CheckAccessibility asks the keyboard simulator whether accessibility
// permission is granted.
func (c *Client) CheckAccessibility(ctx context.Context) (bool, error) {
	type status struct {
		HasPermission bool `json:"hasPermission"`
	}
	res := Call[status](ctx, c.exec, ToolKeyboardSimulator, c.timeouts.App, "check-accessibility")
	if !res.IsOk() {
		return false, &ToolError{Tool: ToolKeyboardSimulator, Reason: res.Reason()}
	}
	return res.Value().HasPermission, nil
}

// ToolError carries a failed result reason through an error return.
type ToolError struct {
	Tool   Tool
	Reason string
}

func (e *ToolError) Error() string {
	return string(e.Tool) + ": " + e.Reason
}
