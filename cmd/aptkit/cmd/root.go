// Package cmd provides CLI command implementations
package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/config"
	"github.com/ChrisMcGann/aptkit/pkg/metrics"
)

var (
	// Global flags
	configFile  string
	verbose     bool
	cacheDir    string
	noCache     bool
	metricsFile string

	// Set up by the root command before any subcommand runs
	cfg    config.Config
	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "aptkit",
	Short: "aptkit - Atom probe POS toolkit",
	Long: `aptkit reads atom probe tomography POS files and derives data products from them.

Fast, cache-backed decoding with support for:
- Element identification against an isotope reference table
- XYZ export of ion positions
- Mass spectrum histograms stored in an SQLite spectrum library
- Radius neighbor analysis over ion positions
- 3D point clouds correlating three mass spectra`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsFile == "" {
			return nil
		}
		return metrics.WriteTextfile(metricsFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (defaults built in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Override the cache directory")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Always decode from the source file")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(neighborsCmd)
	rootCmd.AddCommand(cloudCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads the configuration, applies flag overrides, builds the logger
// and creates the workspace directories.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if cacheDir != "" {
		cfg.Paths.CacheDir = cacheDir
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	logger = newLogger(cmd.ErrOrStderr(), verbose)
	logger.Debug("configuration loaded", "config", configFile, "cache", cfg.Cache.Enabled, "cache_dir", cfg.Paths.CacheDir)

	return cfg.EnsureDirs()
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
