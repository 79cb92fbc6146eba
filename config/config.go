// Package config loads the pagewatch configuration: the process settings
// (config.yml) and the list of watched pages (pages.yml). Both are validated
// before anything starts; an invalid file is fatal.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default file locations, relative to the working directory.
const (
	DefaultConfigPath = "config/config.yml"
	DefaultPagesPath  = "config/pages.yml"
)

// Config is the process configuration.
type Config struct {
	WebhookURL     string          `yaml:"webhook_url"`
	LogLevel       string          `yaml:"log_level"`
	LogDir         string          `yaml:"log_dir"`
	DriverPath     string          `yaml:"driver_path"`
	DBPath         string          `yaml:"db_path"`
	Store          string          `yaml:"store"`   // sqlite | memory
	Backend        string          `yaml:"backend"` // browser | http
	ExtractTimeout time.Duration   `yaml:"extract_timeout"`
	NotifyTimeout  time.Duration   `yaml:"notify_timeout"`
	Browser        BrowserConfig   `yaml:"browser"`
	Sinks          []SinkConfig    `yaml:"sinks"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
}

// BrowserConfig controls the Chrome backend.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headful          bool          `yaml:"headful"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	UserAgent        string        `yaml:"user_agent"`
	MemoryLimitMB    int64         `yaml:"memory_limit_mb"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
}

// SinkConfig defines a notification channel.
type SinkConfig struct {
	Type string `yaml:"type"` // discord | webhook | stdout
	URL  string `yaml:"url"`
}

// TelemetryConfig controls OpenTelemetry metrics export.
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Insecure bool          `yaml:"insecure"`
	Interval time.Duration `yaml:"interval"`
}

// LoadFile reads and validates a process configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a process configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogDir == "" {
		c.LogDir = "log"
	}
	if c.DBPath == "" {
		c.DBPath = "db/snapshots.db"
	}
	if c.Store == "" {
		c.Store = "sqlite"
	}
	if c.Backend == "" {
		c.Backend = "browser"
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 10 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 30 * time.Second
	}
	if c.Browser.MemoryLimitMB <= 0 {
		c.Browser.MemoryLimitMB = 1024
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = 30 * time.Second
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch c.Store {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	switch c.Backend {
	case "browser", "http":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "discord", "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: %s sink needs a url", i, s.Type)
			}
		case "stdout":
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// CheckPages reports the first page that polls faster than an extraction
// may take. Such a page would start its next poll before the previous one
// is allowed to finish.
func (c *Config) CheckPages(pages []Page) error {
	for _, p := range pages {
		if p.Interval.Duration() <= c.ExtractTimeout {
			return fmt.Errorf("config: page %q: refresh_time %v must exceed extract_timeout %v",
				p.ID, p.Interval.Duration(), c.ExtractTimeout)
		}
	}
	return nil
}

// NotifySinks returns the configured sinks. A top-level webhook_url is a
// Discord sink.
func (c *Config) NotifySinks() []SinkConfig {
	var out []SinkConfig
	if c.WebhookURL != "" {
		out = append(out, SinkConfig{Type: "discord", URL: c.WebhookURL})
	}
	return append(out, c.Sinks...)
}
