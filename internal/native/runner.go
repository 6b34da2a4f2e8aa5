// Package native invokes the platform helper executables (window detector,
// directory detector, keyboard simulator, text field detector). Each helper
// is run as "path subcommand args..." and prints one JSON line on stdout.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/promptline/internal/metrics"
)

// Tool names a native helper executable.
type Tool string

const (
	ToolWindowDetector    Tool = "window-detector"
	ToolDirectoryDetector Tool = "directory-detector"
	ToolKeyboardSimulator Tool = "keyboard-simulator"
	ToolTextFieldDetector Tool = "text-field-detector"
)

// ErrTimeout is returned when a helper exceeds its deadline and is terminated.
var ErrTimeout = errors.New("native tool timed out")

// Executor runs a helper and returns its stdout.
type Executor interface {
	Exec(ctx context.Context, tool Tool, args []string, timeout time.Duration) ([]byte, error)
}

// Runner executes helpers from a tools directory with os/exec.
type Runner struct {
	toolsDir string
	logger   arbor.ILogger
}

// NewRunner creates a runner resolving helpers inside toolsDir.
func NewRunner(toolsDir string, logger arbor.ILogger) *Runner {
	return &Runner{toolsDir: toolsDir, logger: logger}
}

// Path returns the absolute path of a helper.
func (r *Runner) Path(tool Tool) string {
	return filepath.Join(r.toolsDir, string(tool))
}

// Exec runs the helper with a hard timeout. On expiry the process receives
// SIGTERM and the call returns ErrTimeout.
func (r *Runner) Exec(ctx context.Context, tool Tool, args []string, timeout time.Duration) ([]byte, error) {
	path := r.Path(tool)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s not available: %w", tool, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	// Escalate to SIGKILL if the helper ignores SIGTERM
	cmd.WaitDelay = 500 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	subcommand := ""
	if len(args) > 0 {
		subcommand = args[0]
	}

	if runCtx.Err() == context.DeadlineExceeded {
		metrics.ObserveNativeTool(string(tool), subcommand, "timeout", elapsed)
		r.logger.Warn().
			Str("tool", string(tool)).
			Str("subcommand", subcommand).
			Str("timeout", timeout.String()).
			Msg("Native tool timed out")
		return nil, fmt.Errorf("%s %s: %w", tool, subcommand, ErrTimeout)
	}
	if err != nil {
		metrics.ObserveNativeTool(string(tool), subcommand, "error", elapsed)
		msg := strings.TrimSpace(stderr.String())
		r.logger.Debug().
			Err(err).
			Str("tool", string(tool)).
			Str("subcommand", subcommand).
			Str("stderr", msg).
			Msg("Native tool failed")
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", tool, subcommand, err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", tool, subcommand, err)
	}

	metrics.ObserveNativeTool(string(tool), subcommand, "ok", elapsed)
	return stdout.Bytes(), nil
}

// Call runs a helper and decodes its output into a Result. Execution errors,
// timeouts and malformed output all become failed results.
func Call[T any](ctx context.Context, ex Executor, tool Tool, timeout time.Duration, args ...string) Result[T] {
	out, err := ex.Exec(ctx, tool, args, timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return Err[T]("timeout after " + timeout.String())
		}
		return Err[T](err.Error())
	}
	return Decode[T](out)
}

// searchDirs are checked after PATH; GUI launches on macOS get a minimal PATH.
var searchDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}

// LookPath resolves an external binary such as fd or rg. A non-empty override
// is used as-is when it points to an executable file.
func LookPath(name, override string) (string, bool) {
	if override != "" {
		if isExecutable(override) {
			return override, true
		}
		return "", false
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, true
	}
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
