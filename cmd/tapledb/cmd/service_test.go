package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanarias/taple-client-sub000/pkg/config"
)

func TestServiceCommands(t *testing.T) {
	t.Run("systemd unit content", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = "/var/lib/tapledb"
		configPath := "/etc/tapledb/config.yaml"

		unit, err := renderSystemdUnit(cfg, configPath, "tapledb", "/usr/local/bin/tapledb")
		require.NoError(t, err)

		for _, want := range []string{
			"[Unit]",
			"User=tapledb",
			"Group=tapledb",
			"ExecStart=/usr/local/bin/tapledb up --config /etc/tapledb/config.yaml",
			"Restart=on-failure",
			"NoNewPrivileges=true",
			"ReadWritePaths=/var/lib/tapledb",
			"ReadWritePaths=/etc/tapledb",
			"WantedBy=multi-user.target",
		} {
			assert.Contains(t, unit, want)
		}
	})

	t.Run("relative data directory is made absolute", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = "relative/data"

		unit, err := renderSystemdUnit(cfg, "/etc/tapledb/config.yaml", "tapledb", "tapledb")
		require.NoError(t, err)

		abs, err := filepath.Abs("relative/data")
		require.NoError(t, err)
		assert.Contains(t, unit, "ReadWritePaths="+abs)
	})

	t.Run("service command structure", func(t *testing.T) {
		serviceCmd := newServiceCmd()

		var names []string
		for _, sub := range serviceCmd.Commands() {
			names = append(names, sub.Name())
		}
		assert.ElementsMatch(t, []string{"install", "logs", "uninstall", "start", "stop", "restart", "status"}, names)
	})

	t.Run("install service command flags", func(t *testing.T) {
		installCmd := newInstallServiceCmd()

		for flag, def := range map[string]string{
			"user":   "tapledb",
			"binary": "/usr/local/bin/tapledb",
			"start":  "true",
		} {
			f := installCmd.Flags().Lookup(flag)
			require.NotNil(t, f, flag)
			assert.Equal(t, def, f.DefValue, flag)
		}
	})

	t.Run("logs arguments", func(t *testing.T) {
		assert.Equal(t, []string{"-u", serviceName}, journalArgs(false, 0))
		assert.Equal(t, []string{"-u", serviceName, "-f", "-n50"}, journalArgs(true, 50))
	})
}
