/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/api"
	"github.com/opencanarias/taple-client-sub000/pkg/config"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize tapledb for local development",
		Long: `Initialize tapledb: write a configuration file with generated keys if none
exists, then record the system API key in the reserved system collection.

This command will:
- Create the configuration file and data directory
- Generate the system key, system API key and client API key
- Store the system API key, sealed with the system key

Examples:
  tapledb init --data-dir=./data
  tapledb init --system-api-key=my-api-key --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			systemAPIKey, _ := cmd.Flags().GetString("system-api-key")
			force, _ := cmd.Flags().GetBool("force")

			a, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if systemAPIKey != "" {
				a.cfg.Security.SystemAPIKey = systemAPIKey
			}
			if err := ensureConfig(cmd, a); err != nil {
				return err
			}

			cmd.Printf("Initializing tapledb...\n")
			cmd.Printf("Data directory: %s\n", a.cfg.DataDir)
			cmd.Printf("Backend: %s\n", a.cfg.Backend)

			st, err := openStore(a)
			if err != nil {
				return err
			}
			defer st.Close()

			initialized, err := initializeSystem(st, a.cfg, force, a.logger)
			if err != nil {
				return err
			}
			if !initialized {
				cmd.Printf("System already initialized. Use --force to reinitialize.\n")
				return nil
			}

			cmd.Printf("✅ tapledb initialization completed successfully!\n")
			cmd.Printf("Configuration: %s\n", a.configPath)
			cmd.Printf("\nYou can now start the server with:\n")
			cmd.Printf("  tapledb serve --config %s\n", a.configPath)
			return nil
		},
	}

	initCmd.Flags().String("system-api-key", "",
		"System API key for administrative operations (optional, will be generated if not provided)")
	initCmd.Flags().Bool("force", false, "Force reinitialization even if system already exists")
	return initCmd
}

// ensureConfig generates missing keys and saves the configuration when it
// changed or does not exist yet.
func ensureConfig(cmd *cobra.Command, a *app) error {
	changed, err := a.cfg.ResolveKeys()
	if err != nil {
		return err
	}
	if !changed && config.ConfigExists(a.configPath) && !cmd.Flags().Changed("system-api-key") {
		return nil
	}

	if err := config.SaveConfig(a.cfg, a.configPath); err != nil {
		return err
	}
	cmd.Printf("✅ Configuration written to %s\n", a.configPath)
	return nil
}

// initializeSystem records the system API key unless the system collection
// already holds one. It reports whether it wrote anything.
func initializeSystem(st *store.Store, cfg *config.Config, force bool, logger *zap.Logger) (bool, error) {
	if container == nil {
		return false, errNoContainer
	}
	if !cfg.HasKeys() {
		return false, errors.New("security keys are not configured")
	}

	systemService, err := container.GetSystemServiceFactory().CreateSystemService(st, cfg.Security.SystemKey)
	if err != nil {
		return false, fmt.Errorf("failed to create system service: %w", err)
	}
	defer systemService.Close()

	_, err = systemService.GetAPIKey(api.RootAPIKeyID)
	switch {
	case err == nil && !force:
		return false, nil
	case err != nil && !errors.Is(err, api.ErrAPIKeyNotFound):
		return false, fmt.Errorf("failed to read system state (wrong system key?): %w", err)
	}

	if err := systemService.InitializeSystem(cfg.Security.SystemAPIKey); err != nil {
		return false, fmt.Errorf("failed to initialize system: %w", err)
	}
	logger.Info("initialized system collection", zap.String("collection", store.SystemCollection))
	return true, nil
}
