package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all letterbox configuration.
type Config struct {
	Sync  SyncConfig  `toml:"sync"`
	Gmail GmailConfig `toml:"gmail"`
}

// GmailConfig holds Gmail OAuth credentials.
// Users can override the embedded defaults via config file or env vars.
type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SyncConfig holds mailbox synchronization settings.
type SyncConfig struct {
	AttachmentConcurrency int64 `toml:"attachment_concurrency"`
}

func defaults() Config {
	return Config{
		Sync: SyncConfig{
			AttachmentConcurrency: 5,
		},
	}
}

// Load reads config from path. If path is empty, returns defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ConfigDir returns the letterbox config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "letterbox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "letterbox")
}

// DataDir returns the letterbox data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "letterbox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "letterbox")
}
