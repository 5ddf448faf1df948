package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sailsonlabs/pulse/internal/config"
	"github.com/sailsonlabs/pulse/internal/home"
	"github.com/sailsonlabs/pulse/internal/server"
)

var (
	serveHost   string
	servePort   string
	serveMemory bool
	logLevel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Pulse server",
	Long: `Start the Pulse HTTP server.

This starts both the HTTP API server and the Postgres container.
When the server shuts down (via Ctrl+C or SIGTERM), Postgres is also
stopped.

The server provides:
  - /health  - Basic server health check
  - /ready   - Readiness check (includes Postgres status)
  - /metrics - Prometheus metrics

Examples:
  pulse serve                    # Start on default port 8080
  pulse serve --port 3000        # Start on custom port
  pulse serve --memory           # Run without Postgres (state is lost on exit)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(logLevel),
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			DataPath:      h.PostgresPath(),
			MemoryOnly:    serveMemory,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Run without Postgres")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
}
