package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML config files can use the usual
// Go duration syntax ("10s", "250ms").
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds server configuration. The relay core consumes only this
// struct; it reads no files and no environment variables itself.
type Config struct {
	ListenAddr       string   `yaml:"listen_addr"`       // TCP bind address (e.g. ":5000")
	WSAddr           string   `yaml:"ws_addr"`           // HTTP bind address for the /ws gateway (empty = disabled)
	MetricsAddr      string   `yaml:"metrics_addr"`      // HTTP bind address for /metrics (empty = disabled)
	MOTD             string   `yaml:"motd"`              // sys envelope sent to each new client (empty = disabled)
	HandshakeTimeout Duration `yaml:"handshake_timeout"` // max wait for the join line (0 = no deadline)
	MaxLineBytes     int      `yaml:"max_line_bytes"`    // upper bound for one envelope line
	LogLevel         string   `yaml:"log_level"`         // debug, info, warn, error
	LogFormat        string   `yaml:"log_format"`        // text or json
}

// DefaultConfig returns a config matching the bare wire contract: TCP
// on port 5000, no gateway, no metrics endpoint, no MOTD.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":5000",
		HandshakeTimeout: Duration(10 * time.Second),
		MaxLineBytes:     65536,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("config: max_line_bytes must be positive, got %d", c.MaxLineBytes)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("config: handshake_timeout must not be negative")
	}
	return nil
}
