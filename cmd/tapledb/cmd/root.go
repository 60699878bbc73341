/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/config"
	"github.com/opencanarias/taple-client-sub000/pkg/di"
	"github.com/opencanarias/taple-client-sub000/pkg/log"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

var container *di.Container

// SetContainer injects the dependency container used by all commands
func SetContainer(c *di.Container) {
	container = c
}

var errNoContainer = errors.New("dependency container not initialized")

type appKey struct{}

// app is the state the root command resolves before any subcommand runs
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("command context not initialized")
	}
	return a, nil
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tapledb",
		Short: "tapledb - hierarchical collections over an ordered KV store",
		Long: `tapledb stores JSON documents in named collections that can be nested
into partitions. Scanning a collection returns its own entries and every entry
of its partitions, in key order, in either direction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			logger, err := log.New(log.Options{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = log.WithLogger(ctx, logger)
			cmd.SetContext(context.WithValue(ctx, appKey{}, &app{cfg: cfg, configPath: configPath, logger: logger}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a, err := appFrom(cmd); err == nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: OS-specific location)")
	flags.StringP("data-dir", "d", "", "Data directory for the store")
	flags.String("backend", "", "Storage backend: pebble, bbolt or memory")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("legacy-root", false, "Store root collection names without a trailing separator")

	rootCmd.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newScanCmd(),
		newExplainCmd(),
		newInitCmd(),
		newServeCmd(),
		newUpCmd(),
		newServiceCmd(),
	)

	return rootCmd
}

// resolveConfig loads the config file if present and applies flag overrides
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}

	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("legacy-root") {
		cfg.Collections.LegacyRootPrefix, _ = flags.GetBool("legacy-root")
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// openStore opens the configured store through the container
func openStore(a *app) (*store.Store, error) {
	if container == nil {
		return nil, errNoContainer
	}
	st, err := container.GetStoreOpener()(store.FromConfig(a.cfg, a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// withStore runs fn with an open store and closes it afterwards
func withStore(cmd *cobra.Command, fn func(a *app, st *store.Store) error) error {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(a)
	if err != nil {
		return err
	}

	err = fn(a, st)
	if closeErr := st.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
