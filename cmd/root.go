package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmpatch/internal/config"
	"github.com/wegman-software/osmpatch/internal/logger"
	"github.com/wegman-software/osmpatch/internal/profile"
)

var (
	cfg         = config.DefaultConfig()
	verbose     bool
	logFile     string
	withMetrics bool
)

var rootCmd = &cobra.Command{
	Use:   "osmpatch",
	Short: "Reconcile OSM features with an authoritative table into a JOSM patch",
	Long: `osmpatch compares OpenStreetMap nodes and ways with an enrichment table
keyed by an external identifier and writes a minimal .osm patch holding only
the modified elements plus the vertices their ways need.

Features:
  - Overpass download with a local cache
  - YAML profiles for category, operator, join key and tracked tags
  - Existing names preserved in old_name when replaced
  - Optional Lua hook to normalize table values
  - GeoJSON and Parquet review exports`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg.Verbose = verbose
		cfg.LogFile = logFile
		cfg.Metrics = withMetrics

		// Initialize logger with optional file output
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().BoolVar(&withMetrics, "metrics", false, "Log a memory snapshot after each stage")
}

// loadProfile returns the profile named by cfg.ProfileFile, or the built-in
// default when none is set
func loadProfile() *profile.Profile {
	if cfg.ProfileFile == "" {
		return profile.Default()
	}
	p, err := profile.Load(cfg.ProfileFile)
	if err != nil {
		exitWithError("failed to load profile", err)
	}
	return p
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Get().Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
