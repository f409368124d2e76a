package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/config"
	"github.com/vitaehq/vitae/internal/home"
	"github.com/vitaehq/vitae/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Vitae server",
	Long: `Start the Vitae HTTP server.

This starts the HTTP API server and, when ocr.managed is enabled in the
config, the PaddleOCR service container. When the server shuts down (via
Ctrl+C or SIGTERM), a managed OCR container is also stopped.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes OCR and generation backends)
  - /v1/*   - Document, extraction, review, dataset and settings APIs
  - /       - Embedded review console

Examples:
  vitae serve                    # Start on the configured port (default 8080)
  vitae serve --port 3000        # Start on custom port
  vitae serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load config and enable hot-reload
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		cfg := mgr.Get()
		logger := buildLogger(cfg.Logging)

		// Flags override the configured bind address
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			HomePath:      homeDir,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// buildLogger constructs a slog.Logger from the logging config.
func buildLogger(cfg config.LoggingCfg) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides config)")

	rootCmd.AddCommand(serveCmd)
}
