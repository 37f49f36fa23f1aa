package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/server"
)

var (
	serveHost string
	servePort string
	serveRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction service",
	Long: `Start the meaning HTTP server.

The server extracts text from PDFs and stores per-user notes in
~/.meaning/data/notes.db (or notes.db_path). When the config file
changes, the log level is reloaded without a restart.

The server provides:
  - /health        - Liveness check
  - /status        - Extraction pool and note store status
  - /parse         - PDF text extraction
  - /api/notes     - Highlights and notes (bearer token required)
  - /swagger.json  - OpenAPI document

Examples:
  meaning serve                         # Start on the configured port (5050)
  meaning serve --port 3000             # Start on custom port
  meaning serve --root ~/Books          # Resolve relative paths against ~/Books`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := loadConfig()
		if err != nil {
			return err
		}

		level := new(slog.LevelVar)
		level.Set(cm.Get().Log.SlogLevel())
		logger := newLogger(os.Stdout, level)

		if file := cm.ConfigFile(); file != "" {
			cm.WatchConfig()
			logger.Info("watching config", "file", file)
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cm,
			Home:          h,
			Logger:        logger,
			LogLevel:      level,
			DocumentRoot:  serveRoot,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Directory relative document paths resolve against (default: extract.root)")

	rootCmd.AddCommand(serveCmd)
}
