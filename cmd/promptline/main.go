// Package main provides the entry point for promptline.
//
// promptline is the background daemon behind the floating prompt window:
//   - HTTP bridge and event stream for the native window host
//   - directory detection with cached file listings
//   - code symbol search
//   - paste history
//   - MCP server exposing the same lookups as tools
//
// Usage:
//
//	promptline serve                 Start the daemon
//	promptline status                Show daemon status
//	promptline stop                  Stop the running daemon
//	promptline detect                Detect the current directory once
//	promptline symbols go Server     Search symbols
//	promptline settings init|show    Manage settings.yml
//	promptline history [query]       Show paste history
//	promptline mcp                   Start MCP server (stdio mode)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/promptline/internal/api"
	"github.com/ternarybob/promptline/internal/app"
	"github.com/ternarybob/promptline/internal/config"
	"github.com/ternarybob/promptline/internal/logger"
)

// version is set via -ldflags at build time
var version = "dev"

var (
	flagConfig string
	flagFormat string
)

var rootCmd = &cobra.Command{
	Use:           "promptline",
	Short:         "Floating prompt window daemon",
	Long:          "promptline runs the daemon behind the floating prompt window: directory detection, file and symbol search, paste history and an MCP tool server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default: "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "text", "Output format: text or json")

	rootCmd.AddCommand(serveCmd, statusCmd, stopCmd, detectCmd, symbolsCmd, settingsCmd, historyCmd, mcpCmd, versionCmd)
}

func main() {
	api.SetVersion(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "promptline version %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp builds the component graph for one-shot commands. Logs go to the
// file writer only so command output stays clean.
func openApp() (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.Logging.Output = []string{"file"}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, logger.SetupLogger(cfg))
	if err != nil {
		logger.Stop()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		logger.Stop()
	}, nil
}
