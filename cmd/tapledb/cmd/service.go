/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/opencanarias/taple-client-sub000/pkg/config"
)

const (
	serviceName = "tapledb.service"
	unitPath    = "/etc/systemd/system/" + serviceName
)

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=tapledb Server
After=network-online.target
Wants=network-online.target

[Service]
User={{.User}}
Group={{.User}}
ExecStart={{.Binary}} up --config {{.ConfigPath}}
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths={{.DataDir}}
ReadWritePaths={{.ConfigDir}}

[Install]
WantedBy=multi-user.target
`))

// unitParams are the values substituted into the systemd unit
type unitParams struct {
	User       string
	Binary     string
	ConfigPath string
	ConfigDir  string
	DataDir    string
}

// renderSystemdUnit renders the unit file for a configuration
func renderSystemdUnit(cfg *config.Config, configPath, user, binary string) (string, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return "", fmt.Errorf("invalid data directory: %w", err)
	}

	var buf bytes.Buffer
	err = unitTemplate.Execute(&buf, unitParams{
		User:       user,
		Binary:     binary,
		ConfigPath: configPath,
		ConfigDir:  filepath.Dir(configPath),
		DataDir:    dataDir,
	})
	return buf.String(), err
}

func newServiceCmd() *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage tapledb as a systemd service",
		Long: `Manage tapledb as a systemd service. This command provides
native integration with systemd for production deployments.

The service will be installed with proper security settings and
automatic restart on failure.`,
	}

	serviceCmd.AddCommand(newInstallServiceCmd(), newLogsCmd(), newUninstallServiceCmd())
	for _, action := range []string{"start", "stop", "restart", "status"} {
		serviceCmd.AddCommand(newSystemctlCmd(action))
	}
	return serviceCmd
}

func newInstallServiceCmd() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install tapledb as a systemd service",
		Long: `Install tapledb as a systemd service with proper configuration.

This will:
- Create or update the configuration with generated keys
- Generate the systemd unit file
- Enable and optionally start the service

Examples:
  tapledb service install
  tapledb service install --data-dir /var/lib/tapledb --user tapledb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			binary, _ := cmd.Flags().GetString("binary")
			startNow, _ := cmd.Flags().GetBool("start")

			if os.Geteuid() != 0 {
				return fmt.Errorf("service install requires root privileges; run with: sudo tapledb service install")
			}

			a, err := appFrom(cmd)
			if err != nil {
				return err
			}

			cmd.Printf("🔧 Installing tapledb systemd service...\n")

			if !cmd.Flags().Changed("data-dir") && !config.ConfigExists(a.configPath) {
				a.cfg.DataDir = "/var/lib/tapledb"
			}
			if _, err := a.cfg.ResolveKeys(); err != nil {
				return err
			}
			if err := config.SaveConfig(a.cfg, a.configPath); err != nil {
				return err
			}

			unit, err := renderSystemdUnit(a.cfg, a.configPath, user, binary)
			if err != nil {
				return err
			}
			if err := os.WriteFile(unitPath, []byte(unit), 0600); err != nil {
				return fmt.Errorf("failed to write unit file: %w", err)
			}

			if err := runSystemctlCommand("daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}
			if err := runSystemctlCommand("enable", serviceName); err != nil {
				return fmt.Errorf("failed to enable service: %w", err)
			}
			cmd.Printf("✅ Service enabled successfully\n")

			if startNow {
				if err := runSystemctlCommand("start", serviceName); err != nil {
					return fmt.Errorf("failed to start service: %w", err)
				}
				cmd.Printf("✅ Service started successfully\n")
			}

			cmd.Printf("\n🎉 tapledb service installed!\n")
			cmd.Printf("Service: %s\n", serviceName)
			cmd.Printf("Config: %s\n", a.configPath)
			cmd.Printf("Data: %s\n", a.cfg.DataDir)
			cmd.Printf("To view logs: sudo journalctl -u %s -f\n", serviceName)
			return nil
		},
	}

	installCmd.Flags().String("user", "tapledb", "User to run the service as")
	installCmd.Flags().String("binary", "/usr/local/bin/tapledb", "Path of the installed tapledb binary")
	installCmd.Flags().Bool("start", true, "Start the service after installation")
	return installCmd
}

func newSystemctlCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("Run systemctl %s for the tapledb service", action),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystemctlCommand(action, serviceName)
		},
	}
}

func newLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show tapledb service logs",
		Long: `Show tapledb service logs using journalctl.

Examples:
  tapledb service logs
  tapledb service logs -f  # Follow logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			lines, _ := cmd.Flags().GetInt("lines")
			return runCommand("journalctl", journalArgs(follow, lines)...)
		},
	}

	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
	return logsCmd
}

func journalArgs(follow bool, lines int) []string {
	args := []string{"-u", serviceName}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, fmt.Sprintf("-n%d", lines))
	}
	return args
}

func newUninstallServiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the tapledb service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Geteuid() != 0 {
				return fmt.Errorf("service uninstall requires root privileges; run with: sudo tapledb service uninstall")
			}

			cmd.Printf("🗑️  Uninstalling tapledb service...\n")

			_ = runSystemctlCommand("stop", serviceName) // Ignore errors if already stopped
			if err := runSystemctlCommand("disable", serviceName); err != nil {
				cmd.Printf("Warning: could not disable service: %v\n", err)
			}

			if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove unit file: %w", err)
			}
			if err := runSystemctlCommand("daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}

			cmd.Printf("✅ tapledb service uninstalled\n")
			cmd.Printf("Note: Configuration and data files were not removed\n")
			return nil
		},
	}
}

// runSystemctlCommand runs a systemctl command
func runSystemctlCommand(args ...string) error {
	return runCommand("systemctl", args...)
}

// runCommand runs a system command and returns its error
func runCommand(command string, args ...string) error {
	cmd := exec.Command(command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
