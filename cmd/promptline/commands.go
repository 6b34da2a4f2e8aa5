package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/promptline/internal/history"
	"github.com/ternarybob/promptline/internal/logger"
	"github.com/ternarybob/promptline/internal/mcp"
	"github.com/ternarybob/promptline/internal/settings"
)

var (
	flagSymbolsDir   string
	flagSymbolsLimit int
	flagHistoryLimit int
	flagForce        bool
)

func init() {
	symbolsCmd.Flags().StringVar(&flagSymbolsDir, "dir", "", "Directory to search (default: current directory)")
	symbolsCmd.Flags().IntVarP(&flagSymbolsLimit, "limit", "n", 50, "Maximum number of results")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Maximum number of items")
	settingsInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing settings file with defaults")

	settingsCmd.AddCommand(settingsInitCmd, settingsShowCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the working directory of the frontmost app once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		info, err := a.Detector.Detect(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagFormat == "json" {
			return printJSON(out, info)
		}
		fmt.Fprintf(out, "Directory: %s\n", info.Directory)
		if info.AppName != "" {
			fmt.Fprintf(out, "App: %s\n", info.AppName)
		}
		switch {
		case info.FilesDisabled:
			fmt.Fprintln(out, "Files: disabled for this directory")
		default:
			fmt.Fprintf(out, "Files: %d\n", len(info.Files))
		}
		if info.Hint != "" {
			fmt.Fprintf(out, "Hint: %s\n", info.Hint)
		}
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <language> [query]",
	Short: "Search code symbols",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		dir := flagSymbolsDir
		if dir == "" {
			if dir, err = os.Getwd(); err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
		}
		if dir, err = filepath.Abs(dir); err != nil {
			return err
		}

		query := ""
		if len(args) > 1 {
			query = args[1]
		}

		res, err := a.Symbols.Search(cmd.Context(), dir, args[0], query, flagSymbolsLimit)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprint(cmd.OutOrStdout(), mcp.FormatSymbols(res))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Show paste history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		var items []history.Item
		if len(args) == 1 {
			items, err = a.History.Search(cmd.Context(), args[0], flagHistoryLimit)
		} else {
			items, err = a.History.Recent(cmd.Context(), flagHistoryLimit)
		}
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), items)
		}
		fmt.Fprint(cmd.OutOrStdout(), mcp.FormatHistory(items))
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage settings.yml",
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create settings.yml with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m := settings.NewManager(cfg.SettingsPath(), logger.Discard())
		_, statErr := os.Stat(m.Path())
		existed := statErr == nil

		if existed && !flagForce {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists (use --force to reset)\n", m.Path())
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(m.Path()), 0755); err != nil {
			return err
		}
		if existed {
			// Load may fail on a broken file; reset regardless
			_, _ = m.Load()
			if _, err := m.ResetToDefaults(); err != nil {
				return err
			}
		} else if _, err := m.Load(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", m.Path())
		return nil
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(cfg.SettingsPath())
		s := settings.Defaults()
		switch {
		case err == nil:
			if s, err = settings.Parse(data); err != nil {
				return err
			}
		case !os.IsNotExist(err):
			return err
		}

		if flagFormat == "json" {
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprint(cmd.OutOrStdout(), strings.TrimLeft(settings.Render(s), "\n"))
		return nil
	},
}
