// Package core holds process-level concerns: configuration loading and the
// stored user identity.
package core

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the merged runtime configuration, read from .taskmirrorrc in the
// base path with defaults for every key.
type Config struct {
	ServerAddr string

	TriggerEndpoint string

	NotificationsEnabled bool
	NotificationWebhook  string

	// StorageBackend selects the durable snapshot store: "file" or "sqlite".
	StorageBackend string

	DigestEnabled bool
	DigestTime    string
}

// ConfigLoader reads the runtime configuration.
type ConfigLoader interface {
	Load() (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper for reading the
// YAML .taskmirrorrc file.
type viperConfigLoader struct {
	basePath string
}

// NewConfigLoader creates a ConfigLoader that reads .taskmirrorrc relative
// to basePath.
func NewConfigLoader(basePath string) ConfigLoader {
	return &viperConfigLoader{basePath: basePath}
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		ServerAddr:           "127.0.0.1:8787",
		TriggerEndpoint:      "",
		NotificationsEnabled: true,
		NotificationWebhook:  "",
		StorageBackend:       "file",
		DigestEnabled:        false,
		DigestTime:           "08:00",
	}
}

// Load reads the .taskmirrorrc file from the base path. A missing file
// returns defaults; a malformed file is an error.
func (cl *viperConfigLoader) Load() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName(".taskmirrorrc")
	v.SetConfigType("yaml")
	v.AddConfigPath(cl.basePath)

	v.SetDefault("server.addr", cfg.ServerAddr)
	v.SetDefault("trigger.endpoint", cfg.TriggerEndpoint)
	v.SetDefault("notifications.enabled", cfg.NotificationsEnabled)
	v.SetDefault("notifications.webhook", cfg.NotificationWebhook)
	v.SetDefault("storage.backend", cfg.StorageBackend)
	v.SetDefault("digest.enabled", cfg.DigestEnabled)
	v.SetDefault("digest.time", cfg.DigestTime)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .taskmirrorrc: %w", err)
	}

	cfg.ServerAddr = v.GetString("server.addr")
	cfg.TriggerEndpoint = v.GetString("trigger.endpoint")
	cfg.NotificationsEnabled = v.GetBool("notifications.enabled")
	cfg.NotificationWebhook = v.GetString("notifications.webhook")
	cfg.StorageBackend = v.GetString("storage.backend")
	cfg.DigestEnabled = v.GetBool("digest.enabled")
	cfg.DigestTime = v.GetString("digest.time")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("validating config: unknown storage backend %q", c.StorageBackend)
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("validating config: server.addr must not be empty")
	}
	return nil
}
