/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/log"
)

// Config represents the tapledb configuration
type Config struct {
	DataDir     string      `yaml:"data_dir"`
	Backend     string      `yaml:"backend"`
	Port        int         `yaml:"port"`
	Bind        string      `yaml:"bind"`
	Storage     Storage     `yaml:"storage"`
	Collections Collections `yaml:"collections"`
	Security    Security    `yaml:"security"`
	Logging     Logging     `yaml:"logging"`
}

// Storage contains backend engine tuning
type Storage struct {
	Sync           bool `yaml:"sync"`
	CacheSizeMB    int  `yaml:"cache_size_mb"`
	MemTableSizeMB int  `yaml:"memtable_size_mb"`
}

// Collections contains collection layout options
type Collections struct {
	// LegacyRootPrefix stores root collection names without a trailing
	// separator. Roots whose names prefix one another then overlap.
	LegacyRootPrefix bool `yaml:"legacy_root_prefix"`
}

// Security contains security-related configuration
type Security struct {
	SystemKey    string `yaml:"system_key"`
	SystemAPIKey string `yaml:"system_api_key"`
	ClientAPIKey string `yaml:"client_api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Backend: "pebble",
		Port:    8080,
		Bind:    "127.0.0.1",
		Storage: Storage{
			Sync:           true,
			CacheSizeMB:    64,
			MemTableSizeMB: 32,
		},
		Security: Security{
			SystemKey:    "auto",
			SystemAPIKey: "auto",
			ClientAPIKey: "auto",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path. Fields missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Keys are stored in the clear; keep the file private.
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks option values that would otherwise fail at open time.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case "pebble", "bbolt", "memory":
	default:
		errs = append(errs, fmt.Errorf("backend %q is not one of pebble, bbolt, memory", c.Backend))
	}
	if c.Backend == "bbolt" && c.DataDir == "" {
		errs = append(errs, errors.New("bbolt backend requires data_dir"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Storage.CacheSizeMB < 0 || c.Storage.MemTableSizeMB < 0 {
		errs = append(errs, errors.New("storage sizes must not be negative"))
	}
	if _, err := log.New(log.Options{Level: c.Logging.Level}); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// BackendConfig translates the configuration into driver options.
func (c *Config) BackendConfig() backend.Config {
	cfg := backend.Config{
		Driver:       c.Backend,
		Sync:         c.Storage.Sync,
		CacheSize:    int64(c.Storage.CacheSizeMB) << 20,
		MemTableSize: uint64(c.Storage.MemTableSizeMB) << 20,
	}

	if c.DataDir != "" {
		switch c.Backend {
		case "pebble":
			cfg.Path = filepath.Join(c.DataDir, "pebble")
		case "bbolt":
			cfg.Path = filepath.Join(c.DataDir, "tapledb.db")
		}
	}

	return cfg
}

// RootMode returns the configured root collection layout.
func (c *Config) RootMode() keys.RootMode {
	if c.Collections.LegacyRootPrefix {
		return keys.LegacyRoot
	}
	return keys.SeparatedRoot
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// autoKey marks a key to be generated on bootstrap
const autoKey = "auto"

// ResolveKeys replaces empty or "auto" security keys with generated ones. It
// reports whether any key changed.
func (c *Config) ResolveKeys() (bool, error) {
	changed := false
	for _, k := range []struct {
		name  string
		value *string
	}{
		{"system key", &c.Security.SystemKey},
		{"system API key", &c.Security.SystemAPIKey},
		{"client API key", &c.Security.ClientAPIKey},
	} {
		if *k.value != "" && *k.value != autoKey {
			continue
		}
		key, err := GenerateSecureKey(32) // 256 bits
		if err != nil {
			return changed, fmt.Errorf("failed to generate %s: %w", k.name, err)
		}
		*k.value = key
		changed = true
	}
	return changed, nil
}

// HasKeys reports whether all security keys are set.
func (c *Config) HasKeys() bool {
	for _, key := range []string{c.Security.SystemKey, c.Security.SystemAPIKey, c.Security.ClientAPIKey} {
		if key == "" || key == autoKey {
			return false
		}
	}
	return true
}

// BootstrapConfig creates a new configuration with generated keys and saves it
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	if _, err := config.ResolveKeys(); err != nil {
		return nil, err
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./tapledb.yaml"
	}

	// For Linux/macOS, use ~/.config/tapledb/config.yaml
	configDir := filepath.Join(homeDir, ".config", "tapledb")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
