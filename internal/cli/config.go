package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/visitor-kiosk/internal/db"
)

const defaultConfigFile = "formConfig.json"

// CLIConfig holds CLI preferences persisted to disk.
type CLIConfig struct {
	ConfigPath string `yaml:"config_path,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
}

// configPath returns the path to the CLI preferences file.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vk", "config.yaml"), nil
}

// loadConfig reads the CLI preferences from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI preferences to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// getConfigPath returns the kiosk document path from the flag, env var,
// preferences, or default.
func getConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if v := os.Getenv("VK_CONFIG"); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil && cfg.ConfigPath != "" {
		return cfg.ConfigPath
	}
	return defaultConfigFile
}

// getDBPath returns the revision archive path from the flag, env var,
// preferences, or default.
func getDBPath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if v := os.Getenv("VK_DB"); v != "" {
		return v, nil
	}
	cfg, err := loadConfig()
	if err == nil && cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return db.DefaultPath()
}
