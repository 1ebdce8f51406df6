package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/config"
	"github.com/jupierce/coverage-report/pkg/log"
)

var (
	// Global flags
	configFile string
	verbosity  string
	logDir     string
	historyDB  string
	manifest   string
	excludes   []string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "coverage-report [profile]",
		Short: "Turn Go function coverage into Markdown, HTML and PNG reports",
		Long: `coverage-report reads the output of 'go tool cover -func', keeps the
functions that belong to the current module and were exercised, and renders
them grouped by source file.

Without a subcommand it renders the HTML report, captures its main region
as assets/coverage.png with headless Chrome and removes the HTML file.`,
		Example: `  # Default profile (.cov/coverage.txt) to assets/coverage.png
  coverage-report

  # Explicit profile
  coverage-report build/coverage.txt

  # Markdown report in coverage.md
  coverage-report markdown

  # Keep a run history and export to BigQuery
  coverage-report --history-db .cov/history.db
  coverage-report bigquery --project my-project --dataset coverage`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScreenshot,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./.coverage-report.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "", "Log verbosity (error, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for log files (default: console only)")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "SQLite database recording every parsed run")
	rootCmd.PersistentFlags().StringVar(&manifest, "manifest", "", "Manifest holding the module path (default: go.mod)")
	rootCmd.PersistentFlags().StringArrayVar(&excludes, "exclude", nil, "Glob of source files to leave out (repeatable, doublestar syntax)")
}

// loadConfig reads the config file and environment, then applies any
// flags given on the command line.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(configFile, "")
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Profile = args[0]
	}
	if flags.Changed("verbosity") {
		cfg.Log.Level = verbosity
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = logDir
	}
	if flags.Changed("history-db") {
		cfg.History.DB = historyDB
	}
	if flags.Changed("manifest") {
		cfg.Manifest = manifest
	}
	if flags.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, excludes...)
	}

	return cfg, cfg.Validate()
}

// createLogger creates the logger described by cfg
func createLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(level, cfg.Log.Dir)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
