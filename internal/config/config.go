// Package config handles TOML configuration for tagaudit.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/yairfalse/tagaudit/internal/emitter"
	"github.com/yairfalse/tagaudit/internal/filter"
)

// Config is the root configuration structure.
type Config struct {
	AWS    AWSConfig    `toml:"aws"`
	Output OutputConfig `toml:"output"`
	Watch  WatchConfig  `toml:"watch"`
	OTEL   OTELConfig   `toml:"otel"`
	Log    LogConfig    `toml:"log"`
}

// AWSConfig holds the audit target. Credentials never come from the file.
type AWSConfig struct {
	Region    string   `toml:"region"`
	Profile   string   `toml:"profile"`
	Resources []string `toml:"resources"`
}

// OutputConfig holds report settings.
type OutputConfig struct {
	Format       string `toml:"format"`
	UntaggedOnly bool   `toml:"untagged_only"`
	MetricsFile  string `toml:"metrics_file"`
}

// WatchConfig holds settings for repeated audits.
type WatchConfig struct {
	IntervalStr string `toml:"interval"`
	Interval    time.Duration
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds push-metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseInterval(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
	}

	applyDefaults(cfg)

	if err := parseInterval(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Output.Format == "" {
		cfg.Output.Format = string(emitter.FormatTable)
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "tagaudit"
	}
	if cfg.OTEL.Traces.Enabled && cfg.OTEL.Traces.SampleRate == 0 {
		cfg.OTEL.Traces.SampleRate = 1.0
	}
	if cfg.Watch.IntervalStr == "" {
		cfg.Watch.IntervalStr = "1h"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseInterval(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Watch.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Watch.IntervalStr, err)
	}
	cfg.Watch.Interval = d
	return nil
}

// SetInterval overrides the watch interval.
func (c *Config) SetInterval(s string) error {
	c.Watch.IntervalStr = s
	return parseInterval(c)
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws: region required")
	}
	if _, err := filter.New(c.AWS.Resources, false); err != nil {
		return fmt.Errorf("aws: %w", err)
	}
	if _, err := emitter.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch: interval must be positive (got %s)", c.Watch.IntervalStr)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	return level, nil
}
