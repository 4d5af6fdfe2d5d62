// Package config loads the dashboard's YAML configuration file.
//
// Precedence, lowest first: built-in defaults, the YAML file, CINTEL_*
// environment variables, then command-line flags (applied by cmd/cintel).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

// DefaultPath is where `cintel init` writes the config and where the CLI
// looks when --config is not given.
const DefaultPath = "cintel.yaml"

const (
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 8050
	DefaultExportDir = "docs"
)

const defaultConfigYAML = `# cintel live dashboard configuration
title: "Continuous Intelligence: Live Data Example"

# environment (temperature/humidity/pressure) or stock (price ticks)
source: environment

# How often a new reading is produced. Leave empty for the source default
# (3s for environment, 1s for stock).
interval: 3s

# Number of recent readings kept in the table and chart.
window_size: 5

log_level: info

# Append every reading to this JSONL file. Empty disables recording.
record: ""

server:
  host: 127.0.0.1
  port: 8050

export:
  dir: docs

links:
  - label: GitHub Source
    url: https://github.com/katehuntsman/cintel-05-cintel
  - label: GitHub App
    url: https://katehuntsman.github.io/cintel-05-cintel/
  - label: PyShiny
    url: https://shiny.posit.co/py/
`

// Link is one sidebar link.
type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// ServerConfig is the HTTP bind address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ExportConfig controls the static site build.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Config models cintel.yaml.
type Config struct {
	Title      string        `yaml:"title"`
	Source     string        `yaml:"source"`
	Interval   time.Duration `yaml:"interval"`
	WindowSize int           `yaml:"window_size"`
	LogLevel   string        `yaml:"log_level"`
	Record     string        `yaml:"record"`
	Server     ServerConfig  `yaml:"server"`
	Export     ExportConfig  `yaml:"export"`
	Links      []Link        `yaml:"links"`
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Title:      "Continuous Intelligence: Live Data Example",
		Source:     "environment",
		WindowSize: monitor.DefaultWindowSize,
		LogLevel:   "info",
		Server:     ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Export:     ExportConfig{Dir: DefaultExportDir},
		Links: []Link{
			{Label: "GitHub Source", URL: "https://github.com/katehuntsman/cintel-05-cintel"},
			{Label: "GitHub App", URL: "https://katehuntsman.github.io/cintel-05-cintel/"},
			{Label: "PyShiny", URL: "https://shiny.posit.co/py/"},
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			monitor.Debugf("[config] %s not found; using defaults", path)
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv applies CINTEL_* overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("CINTEL_SOURCE")); v != "" {
		c.Source = v
	}
	if v := strings.TrimSpace(os.Getenv("CINTEL_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Interval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CINTEL_HOST")); v != "" {
		c.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("CINTEL_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && isValidPort(p) {
			c.Server.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("CINTEL_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
}

// Normalize fills blanks left by a partial file.
func (c *Config) Normalize() {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = "environment"
	}
	if c.Interval == 0 {
		c.Interval = monitor.DefaultInterval(c.Source)
	}
	if c.WindowSize == 0 {
		c.WindowSize = monitor.DefaultWindowSize
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if strings.TrimSpace(c.Export.Dir) == "" {
		c.Export.Dir = DefaultExportDir
	}
}

// Validate rejects settings the monitor or server cannot run with.
func (c Config) Validate() error {
	if _, err := monitor.NewSource(c.Source, 1); err != nil {
		return &ConfigError{Field: "source", Err: err}
	}
	if c.Interval <= 0 {
		return &ConfigError{Field: "interval", Err: fmt.Errorf("must be positive, got %s", c.Interval)}
	}
	if c.WindowSize < 1 {
		return &ConfigError{Field: "window_size", Err: fmt.Errorf("must be at least 1, got %d", c.WindowSize)}
	}
	if !isValidPort(c.Server.Port) {
		return &ConfigError{Field: "server.port", Err: fmt.Errorf("out of range: %d", c.Server.Port)}
	}
	for i, l := range c.Links {
		if strings.TrimSpace(l.URL) == "" {
			return &ConfigError{Field: fmt.Sprintf("links[%d].url", i), Err: errors.New("empty")}
		}
	}
	return nil
}

// WriteDefault writes the commented default file, refusing to overwrite an existing one.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
