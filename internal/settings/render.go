package settings

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const header = `# Prompt Line settings
#
# This file is read on start and reloaded when it changes on disk.
# Sections that are commented out are disabled. Uncomment them to enable.
`

// Render produces the commented settings.yml document. Output is
// deterministic for a given Settings value.
func Render(s *Settings) string {
	b := &builder{}
	b.raw(header)

	b.blank()
	b.line(0, "shortcuts:")
	b.kv(1, "main", s.Shortcuts.Main)
	b.kv(1, "paste", s.Shortcuts.Paste)
	b.kv(1, "close", s.Shortcuts.Close)
	b.kv(1, "historyNext", s.Shortcuts.HistoryNext)
	b.kv(1, "historyPrev", s.Shortcuts.HistoryPrev)
	b.kv(1, "search", s.Shortcuts.Search)

	b.blank()
	b.line(0, "window:")
	b.line(1, "# center | cursor | active-window-center | active-text-field")
	b.kv(1, "position", s.Window.Position)
	b.kv(1, "width", s.Window.Width)
	b.kv(1, "height", s.Window.Height)

	b.blank()
	b.line(0, "fileOpener:")
	if s.FileOpener.DefaultEditor != "" {
		b.kv(1, "defaultEditor", s.FileOpener.DefaultEditor)
	} else {
		b.line(1, "# defaultEditor: Visual Studio Code")
	}
	b.stringMap(1, "extensions", s.FileOpener.Extensions)

	b.blank()
	b.line(0, "# File search lists the detected directory for @path mentions.")
	if s.FileSearch != nil {
		renderFileSearch(b, s.FileSearch)
	} else {
		b.commented(func(c *builder) { renderFileSearch(c, DefaultFileSearch()) })
	}

	b.blank()
	b.line(0, "# Symbol search indexes code symbols for @lang:query mentions.")
	b.line(0, "# Requires fileSearch.")
	if s.SymbolSearch != nil {
		renderSymbolSearch(b, s.SymbolSearch)
	} else {
		b.commented(func(c *builder) { renderSymbolSearch(c, DefaultSymbolSearch()) })
	}

	b.blank()
	b.line(0, "mentions:")
	b.kv(1, "fileSearch", s.Mentions.FileSearch)
	b.kv(1, "symbolSearch", s.Mentions.SymbolSearch)
	b.kv(1, "maxSuggestions", s.Mentions.MaxSuggestions)

	b.blank()
	if len(s.SlashCommands) == 0 {
		b.line(0, "# slashCommands:")
		b.line(0, "#   - name: commands")
		b.line(0, "#     description: Project commands")
		b.line(0, "#     path: ~/.claude/commands")
	} else {
		b.line(0, "slashCommands:")
		for _, cmd := range s.SlashCommands {
			b.line(1, "- name: "+scalar(cmd.Name))
			if cmd.Description != "" {
				b.line(2, "description: "+scalar(cmd.Description))
			}
			b.line(2, "path: "+scalar(cmd.Path))
		}
	}

	return b.String()
}

func renderFileSearch(b *builder, fs *FileSearch) {
	b.line(0, "fileSearch:")
	b.kv(1, "respectGitignore", fs.RespectGitignore)
	b.kv(1, "includeHidden", fs.IncludeHidden)
	b.kv(1, "maxFiles", fs.MaxFiles)
	b.line(1, "# 0 means unlimited")
	b.kv(1, "maxDepth", fs.MaxDepth)
	b.kv(1, "followSymlinks", fs.FollowSymlinks)
	if fs.FdPath != "" {
		b.kv(1, "fdPath", fs.FdPath)
	} else {
		b.line(1, "# fdPath: /opt/homebrew/bin/fd")
	}
	b.list(1, "excludePatterns", fs.ExcludePatterns)
	b.list(1, "includePatterns", fs.IncludePatterns)
}

func renderSymbolSearch(b *builder, ss *SymbolSearch) {
	b.line(0, "symbolSearch:")
	b.kv(1, "maxSymbols", ss.MaxSymbols)
	b.line(1, "# milliseconds")
	b.kv(1, "timeout", ss.TimeoutMs)
	b.list(1, "rgPaths", ss.RgPaths)
}

type builder struct {
	strings.Builder
	prefix string
}

func (b *builder) raw(s string) {
	b.WriteString(s)
}

func (b *builder) blank() {
	b.WriteString("\n")
}

func (b *builder) line(indent int, text string) {
	b.WriteString(b.prefix)
	b.WriteString(strings.Repeat("  ", indent))
	b.WriteString(text)
	b.WriteString("\n")
}

func (b *builder) kv(indent int, key string, value any) {
	b.line(indent, key+": "+scalar(value))
}

func (b *builder) list(indent int, key string, values []string) {
	if len(values) == 0 {
		b.line(indent, key+": []")
		return
	}
	b.line(indent, key+":")
	for _, v := range values {
		b.line(indent+1, "- "+scalar(v))
	}
}

func (b *builder) stringMap(indent int, key string, m map[string]string) {
	if len(m) == 0 {
		b.line(indent, key+": {}")
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.line(indent, key+":")
	for _, k := range keys {
		b.line(indent+1, scalar(k)+": "+scalar(m[k]))
	}
}

// commented renders fn with every line prefixed by "# ".
func (b *builder) commented(fn func(*builder)) {
	c := &builder{prefix: b.prefix + "# "}
	fn(c)
	b.WriteString(c.String())
}

// scalar formats a value with YAML quoting rules.
func scalar(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return strings.TrimSuffix(string(out), "\n")
}
