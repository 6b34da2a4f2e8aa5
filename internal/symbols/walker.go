package symbols

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize skips generated or vendored blobs.
const DefaultMaxFileSize = 1 << 20

var defaultIgnores = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".venv":        true,
	".next":        true,
}

// WalkOptions controls which files are visited.
type WalkOptions struct {
	ExcludePatterns []string
	IncludeHidden   bool
	// MaxDepth limits directory depth below the root; 0 means unlimited.
	MaxDepth    int
	MaxFileSize int64
	// Extensions restricts visited files by extension (without dot). Empty
	// visits everything.
	Extensions map[string]bool
}

// Walker traverses a directory tree for source files.
type Walker struct {
	opts WalkOptions
}

// NewWalker creates a new directory walker.
func NewWalker(opts WalkOptions) *Walker {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Walker{opts: opts}
}

// WalkFunc is called for each file with its path relative to the root.
type WalkFunc func(path, relPath string, content []byte) error

// Walk traverses root and calls fn for each matching file. Unreadable entries
// are skipped.
func (w *Walker) Walk(ctx context.Context, root string, fn WalkFunc) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if w.skipDir(relPath, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !w.shouldInclude(relPath, d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > w.opts.MaxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil || isBinary(content) {
			return nil
		}

		return fn(path, relPath, content)
	})
}

func (w *Walker) skipDir(relPath, name string) bool {
	if defaultIgnores[name] {
		return true
	}
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if w.opts.MaxDepth > 0 && strings.Count(relPath, "/")+1 > w.opts.MaxDepth {
		return true
	}
	for _, pattern := range w.opts.ExcludePatterns {
		if matchGlob(relPath+"/", pattern) || matchGlob(name+"/", pattern) || matchGlob(name, pattern) {
			return true
		}
	}
	return false
}

func (w *Walker) shouldInclude(relPath, name string) bool {
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if len(w.opts.Extensions) > 0 {
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !w.opts.Extensions[ext] {
			return false
		}
	}
	for _, pattern := range w.opts.ExcludePatterns {
		if matchGlob(relPath, pattern) || matchGlob(name, pattern) {
			return false
		}
	}
	return true
}

// matchGlob matches a slash-separated path against a pattern supporting
// *, ? and **.
func matchGlob(path, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, "./")
	if strings.Contains(pattern, "**") {
		return matchDoubleGlob(path, pattern)
	}
	return matchSimpleGlob(path, pattern)
}

// matchSimpleGlob matches without **.
func matchSimpleGlob(path, pattern string) bool {
	pi, si := 0, 0

	for pi < len(pattern) && si < len(path) {
		switch pattern[pi] {
		case '*':
			pi++
			if pi >= len(pattern) {
				return !strings.Contains(path[si:], "/")
			}
			for si < len(path) && path[si] != '/' {
				if matchSimpleGlob(path[si:], pattern[pi:]) {
					return true
				}
				si++
			}
			return matchSimpleGlob(path[si:], pattern[pi:])
		case '?':
			if path[si] == '/' {
				return false
			}
			pi++
			si++
		default:
			if pattern[pi] != path[si] {
				return false
			}
			pi++
			si++
		}
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi >= len(pattern) && si >= len(path)
}

// matchDoubleGlob matches with ** spanning any number of segments.
func matchDoubleGlob(path, pattern string) bool {
	parts := strings.Split(pattern, "**")

	if parts[0] != "" {
		lead := strings.TrimSuffix(parts[0], "/")
		if !strings.HasPrefix(path, lead) && !matchSimpleGlob(path, parts[0]+"*") {
			return false
		}
	}

	if len(parts) > 1 && parts[len(parts)-1] != "" {
		trailing := strings.TrimPrefix(parts[len(parts)-1], "/")
		base := filepath.Base(strings.TrimSuffix(path, "/"))
		if !matchSimpleGlob(base, trailing) && !strings.HasSuffix(path, trailing) {
			return false
		}
	}

	return true
}

func isBinary(content []byte) bool {
	n := len(content)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}
