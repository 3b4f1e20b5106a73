package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DROP_CONFIG_PATH: config file location (default: ~/.config/drop.toml)
//   - DROP_HOME: base directory for drop data (default: ~/.local/share/drop)
//
// log_dir and storage_root ("uploads") are always placed under the base directory.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"storage_root": filepath.Join(baseDir, "uploads"),
	}, nil
}

// getConfigPath returns the config file path, checking DROP_CONFIG_PATH env var first,
// then falling back to the default ~/.config/drop.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DROP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "drop.toml"), nil
}

// getBaseDir returns the base directory for drop data, checking DROP_HOME env var first,
// then falling back to the XDG default ~/.local/share/drop.
func getBaseDir() (string, error) {
	if path := os.Getenv("DROP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "drop"), nil
}
