/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencanarias/taple-client-sub000/pkg/api"
	"github.com/opencanarias/taple-client-sub000/pkg/config"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the tapledb REST API server. Keys default to the ones in the
configuration file; run 'tapledb init' first to generate them.

Examples:
  tapledb serve
  tapledb serve --port=9000 --api-key=mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			applyServerFlags(cmd, a.cfg)

			st, err := openStore(a)
			if err != nil {
				return err
			}
			defer st.Close()

			return runServer(cmd, a, st)
		},
	}

	addServerFlags(serveCmd)
	serveCmd.Flags().String("api-key", "", "Client API key (default: from config)")
	serveCmd.Flags().String("system-api-key", "", "System API key for administrative routes (default: from config)")
	return serveCmd
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
}

// applyServerFlags overrides the configuration with explicitly set flags
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("bind") {
		cfg.Bind, _ = flags.GetString("bind")
	}
	if flags.Lookup("api-key") != nil && flags.Changed("api-key") {
		cfg.Security.ClientAPIKey, _ = flags.GetString("api-key")
	}
	if flags.Lookup("system-api-key") != nil && flags.Changed("system-api-key") {
		cfg.Security.SystemAPIKey, _ = flags.GetString("system-api-key")
	}
}

// serverConfig derives the API server options from the configuration
func serverConfig(cfg *config.Config) (api.ServerConfig, error) {
	if !cfg.HasKeys() {
		return api.ServerConfig{}, errors.New("security keys are not configured; run 'tapledb init' first")
	}
	return api.ServerConfig{
		Port:                cfg.Port,
		Bind:                cfg.Bind,
		APIKey:              cfg.Security.ClientAPIKey,
		SystemKey:           cfg.Security.SystemAPIKey,
		SystemEncryptionKey: cfg.Security.SystemKey,
	}, nil
}

// runServer serves st until interrupted
func runServer(cmd *cobra.Command, a *app, st *store.Store) error {
	sc, err := serverConfig(a.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("🚀 Starting tapledb server on %s:%d\n", a.cfg.Bind, a.cfg.Port)
	cmd.Printf("📁 Data directory: %s (%s)\n", a.cfg.DataDir, a.cfg.Backend)

	starter := container.GetServerFactory().CreateServerStarter()
	if err := starter.StartServer(ctx, st, sc, a.logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
