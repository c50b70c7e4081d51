package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BadgerOps/sbomcheck/internal/config"
	"github.com/BadgerOps/sbomcheck/internal/engine"
	"github.com/BadgerOps/sbomcheck/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	logLevel  string
	logFormat string
	verbose   bool
	workers   int
	matchCase string
	noHistory bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalStore  *store.Store
	globalRunner *engine.Runner
)

// initializeComponents opens the history store when needed and builds the
// runner
func initializeComponents(group string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	wantStore := group == "history" || (globalCfg.History.Enabled && !noHistory)
	if wantStore {
		st, err := store.New(globalCfg.HistoryDBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		globalStore = st
	}

	globalRunner = engine.NewRunner(globalCfg, globalStore, logger)

	logger.Debug("components initialized", "history", globalStore != nil, "workers", globalCfg.Verify.Workers)
	return nil
}

// commandGroup returns the name of the top-level subcommand cmd belongs to
func commandGroup(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// shouldSkipComponentInit checks if a command group should skip component initialization
func shouldSkipComponentInit(group string) bool {
	skipInitCmds := map[string]bool{
		"help":       true,
		"version":    true,
		"config":     true,
		"completion": true,
	}
	return skipInitCmds[group]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
		globalStore = nil
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sbomcheck",
		Short: "Verify that installed software complies with its SBOM",
		Long: `sbomcheck verifies a deployed installation, either a directory or an
archive, against an SPDX 2.3 manifest. It resolves the packages that make up
the product from its root packages, then checks that every installed file is
declared by one of them with matching checksums.

Exit codes: 0 when verification passes, 1 when it fails, 2 on usage or
configuration errors.`,
		Example: `  sbomcheck verify --sbom sbom.spdx.json --path /opt/ide --root-package ide
  sbomcheck verify --sbom sbom.spdx.json --path ide.tar.zst -r ide -i "logs/**"
  sbomcheck verify-batch --sbom sbom.spdx.json --batch products.json
  sbomcheck history --product ide`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			group := commandGroup(cmd)
			if shouldSkipConfig(group) {
				return nil
			}

			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Override with command-line flags if provided
			if workers > 0 {
				globalCfg.Verify.Workers = workers
			}
			if matchCase != "" {
				globalCfg.Verify.MatchCase = matchCase
			}
			if err := globalCfg.Validate(); err != nil {
				return err
			}

			logger.Debug("config loaded", "path", cfgPath, "workers", globalCfg.Verify.Workers)

			if !shouldSkipComponentInit(group) {
				if err := initializeComponents(group); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write verbose logs (same as --log-level debug)")
	cmd.PersistentFlags().IntVar(&workers, "workers", 0, "number of files verified concurrently (overrides verify.workers)")
	cmd.PersistentFlags().StringVar(&matchCase, "match-case", "", "ignore pattern case policy: auto, sensitive or insensitive")
	cmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record this run in the history database")

	cmd.AddCommand(
		newVerifyCmd(),
		newVerifyBatchCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command group should skip config loading
func shouldSkipConfig(group string) bool {
	skipConfigCmds := map[string]bool{
		"help":       true,
		"version":    true,
		"completion": true,
	}
	return skipConfigCmds[group]
}
