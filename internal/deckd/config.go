// Package deckd holds the daemon plumbing shared by nowdeckd: config
// loading, logging, and the module supervisor.
package deckd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for nowdeckd.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines the connection to the media host.
type ServerConfig struct {
	URL          string `toml:"url"`
	IdleWindowMS int64  `toml:"idle_window_ms"`
}

// LogConfig describes daemon logging options.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	StateMQTT    StateMQTTConfig    `toml:"state_mqtt"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// StateMQTTConfig configures the MQTT state mirror.
type StateMQTTConfig struct {
	Enabled   bool   `toml:"enabled"`
	Broker    string `toml:"broker"`
	ClientID  string `toml:"client_id"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TopicBase string `toml:"topic_base"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "nowdeck", "nowdeckd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nowdeck", "nowdeckd.toml"), nil
}
