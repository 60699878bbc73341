/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

func newUpCmd() *cobra.Command {
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Bootstrap and start tapledb server",
		Long: `Bootstrap tapledb by creating configuration and keys if they don't exist,
then start the REST API server. This is the recommended way to get tapledb running.

The command will:
- Create configuration file with secure keys if missing
- Initialize the system collection
- Start the REST API server

Examples:
  tapledb up
  tapledb up --data-dir ./mydata --port 9000
  tapledb up --config ./custom-config.yaml --print-keys`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printKeys, _ := cmd.Flags().GetBool("print-keys")

			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if container == nil {
				return errNoContainer
			}

			applyServerFlags(cmd, a.cfg)
			if err := ensureConfig(cmd, a); err != nil {
				return err
			}

			if printKeys {
				cmd.Printf("\n🔑 Keys:\n")
				cmd.Printf("System Key: %s\n", a.cfg.Security.SystemKey)
				cmd.Printf("System API Key: %s\n", a.cfg.Security.SystemAPIKey)
				cmd.Printf("Client API Key: %s\n", a.cfg.Security.ClientAPIKey)
				cmd.Printf("\n⚠️  Store these keys securely! They are also saved in %s\n", a.configPath)
			}

			st, err := openStore(a)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := initializeSystem(st, a.cfg, false, a.logger); err != nil {
				return err
			}

			return runServer(cmd, a, st)
		},
	}

	addServerFlags(upCmd)
	upCmd.Flags().Bool("print-keys", false, "Print API keys to console")
	return upCmd
}
