// Package config loads the daemon's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notifier  NotifierConfig  `yaml:"notifier"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file,omitempty"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
	// BusyTimeout is a Go duration string (e.g. "5s").
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	// Timezone is an IANA name; empty means the local zone.
	Timezone string `yaml:"timezone,omitempty"`
}

type NotifierConfig struct {
	Workers    int    `yaml:"workers,omitempty"`
	QueueSize  int    `yaml:"queue_size,omitempty"`
	RatePerSec int    `yaml:"rate_per_sec,omitempty"`
	// SendTimeout is a Go duration string bounding one delivery attempt.
	SendTimeout string `yaml:"send_timeout,omitempty"`

	Email   EmailConfig   `yaml:"email,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
}

type EmailConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

type GatewayConfig struct {
	SessionURL string `yaml:"session_url,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Console: true},
		Storage: StorageConfig{Path: "./data/vitaremind.db", BusyTimeout: "5s"},
	}
}

// Load reads the file at path, or returns Default() when path names a file
// that does not exist.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	for _, d := range []struct{ name, raw string }{
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"notifier.send_timeout", c.Notifier.SendTimeout},
		{"notifier.gateway.timeout", c.Notifier.Gateway.Timeout},
	} {
		if _, err := ParseDuration(d.raw, 0); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

// ParseDuration parses a Go duration string, mapping "" to def.
func ParseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
