// Package main provides the cvpublish command line tool: render a CV
// document into a static site, publish it to the hosting provider, and run
// the HTTP API that does the same for the editor.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/config"
)

var (
	configPath string
	verbose    bool

	// cfg is populated by loadConfig before any command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cvpublish",
	Short: "CV Publisher",
	Long: "cvpublish renders a structured CV into a self-contained static site and " +
		"publishes it to Vercel, following the build until the site is live.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Verbose = true
	}
	cfg = loaded

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
