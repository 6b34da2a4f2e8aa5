package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/ternarybob/promptline/internal/app"
	"github.com/ternarybob/promptline/internal/logger"
	"github.com/ternarybob/promptline/internal/metrics"
	"github.com/ternarybob/promptline/internal/service"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if running, pid := service.IsRunning(cfg); running {
			return fmt.Errorf("promptline already running (PID %d)", pid)
		}

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		log := logger.SetupLogger(cfg)
		defer logger.Stop()

		a, err := app.New(cfg, log)
		if err != nil {
			return err
		}
		if err := a.Start(); err != nil {
			a.Close()
			return err
		}

		// without the bridge only metrics are served
		var handler http.Handler
		if cfg.API.Enabled {
			handler = a.APIServer().Handler()
		} else {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			handler = mux
		}

		daemon := service.NewDaemon(cfg, log)
		daemon.OnShutdown(a.Close)
		if err := daemon.Start(handler); err != nil {
			a.Close()
			return fmt.Errorf("start daemon: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "promptline %s started on %s\n", version, daemon.Addr())
		daemon.Wait()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if running, pid := service.IsRunning(cfg); running {
			fmt.Fprintf(out, "promptline: running (PID %d)\n", pid)
			fmt.Fprintf(out, "Address: %s\n", cfg.Address())
		} else {
			fmt.Fprintln(out, "promptline: stopped")
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		running, pid := service.IsRunning(cfg)
		if !running {
			fmt.Fprintln(out, "promptline is not running")
			return nil
		}

		fmt.Fprintf(out, "Stopping promptline (PID %d)...\n", pid)
		if err := service.StopRunning(cfg); err != nil {
			return err
		}
		fmt.Fprintln(out, "promptline stopped")
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Aliases: []string{"mcp-server"},
	Short:   "Start MCP server (stdio mode)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		if !a.Config.MCP.Enabled {
			return fmt.Errorf("mcp is disabled in config")
		}
		return a.MCPServer(version).ServeStdio()
	},
}
