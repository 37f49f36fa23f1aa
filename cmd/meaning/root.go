package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/config"
	"github.com/meaningapp/meaning/internal/home"
	"github.com/meaningapp/meaning/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "meaning",
	Short: "Read PDFs page by page with highlights and notes",
	Long: `Meaning turns PDFs into paged, annotatable reading sessions.

It includes:
  - An extraction service that turns PDFs into page-marked text
  - A terminal reader that pages through the extracted text
  - Per-user highlights and notes kept in a local SQLite database`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.meaning/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "meaning home directory (default: ~/.meaning)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
}

func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig reads --config, or the home directory's config.yaml when it
// exists, falling back to the default search path.
func loadConfig() (*config.Manager, error) {
	path := cfgFile
	if path == "" {
		h, err := getHome()
		if err != nil {
			return nil, err
		}
		if h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	return config.NewManager(path)
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
