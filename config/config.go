// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "90s" or "5m" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration. Zero values fall back to defaults
// at load time, so a partial file is fine.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// CatalogPath optionally extends the built-in model catalog.
	CatalogPath string `yaml:"catalog_path"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MaxQueueDepth bounds pending requests per project.
	MaxQueueDepth int `yaml:"max_queue_depth"`

	// InactivityTimeout stops sessions that emit no events for this long.
	InactivityTimeout Duration `yaml:"inactivity_timeout"`

	// GracePeriod is the SIGTERM-to-SIGKILL window for agent processes.
	GracePeriod Duration `yaml:"grace_period"`

	// SubscriberBuffer is the per-subscriber broadcast buffer depth.
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// ClaudeBinary and CodexBinary override the agent binaries on PATH.
	ClaudeBinary string `yaml:"claude_binary"`
	CodexBinary  string `yaml:"codex_binary"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:            "127.0.0.1:8787",
		DBPath:            "agentdeck.db",
		LogLevel:          "info",
		MaxQueueDepth:     8,
		InactivityTimeout: Duration(5 * time.Minute),
		GracePeriod:       Duration(5 * time.Second),
		SubscriberBuffer:  256,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := Default()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = def.MaxQueueDepth
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = def.InactivityTimeout
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = def.GracePeriod
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = def.SubscriberBuffer
	}
	return c
}
