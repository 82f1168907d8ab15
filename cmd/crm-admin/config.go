// ABOUTME: Configuration loading for the crm-admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Auth   AuthConfig   `toml:"auth"`
}

type ServerConfig struct {
	URL string `toml:"url"`
}

type AuthConfig struct {
	// JWTSecret is needed only for the token command; read-only commands
	// work without it.
	JWTSecret string `toml:"jwt_secret"`
}

// configPath returns the CLI config path.
// Priority: CRM_ADMIN_CONFIG env var > XDG_CONFIG_HOME/crm/admin.toml > ~/.config/crm/admin.toml
func configPath() string {
	if envPath := os.Getenv("CRM_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "crm", "admin.toml")
}

// loadConfig reads the TOML config, expanding ${VAR} references. A missing
// file yields defaults so read-only commands work out of the box.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{URL: "http://localhost:8080"},
	}

	data, err := os.ReadFile(configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = "http://localhost:8080"
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}
