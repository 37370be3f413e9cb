package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want :5000", cfg.ListenAddr)
	}
	if cfg.WSAddr != "" || cfg.MetricsAddr != "" || cfg.MOTD != "" {
		t.Errorf("optional surfaces must default to disabled: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr: ":6000"
ws_addr: ":6001"
metrics_addr: ":6002"
motd: "be kind"
handshake_timeout: 5s
max_line_bytes: 1024
log_level: debug
log_format: json
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":6000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.WSAddr != ":6001" || cfg.MetricsAddr != ":6002" {
		t.Errorf("addrs = %q, %q", cfg.WSAddr, cfg.MetricsAddr)
	}
	if cfg.MOTD != "be kind" {
		t.Errorf("MOTD = %q", cfg.MOTD)
	}
	if time.Duration(cfg.HandshakeTimeout) != 5*time.Second {
		t.Errorf("HandshakeTimeout = %v", time.Duration(cfg.HandshakeTimeout))
	}
	if cfg.MaxLineBytes != 1024 {
		t.Errorf("MaxLineBytes = %d", cfg.MaxLineBytes)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("logging = %q, %q", cfg.LogLevel, cfg.LogFormat)
	}
}

// Fields absent from the file keep their defaults.
func TestLoadConfigPartial(t *testing.T) {
	path := writeConfigFile(t, `motd: "hello"`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MOTD != "hello" {
		t.Errorf("MOTD = %q", cfg.MOTD)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
	if time.Duration(cfg.HandshakeTimeout) != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want default", time.Duration(cfg.HandshakeTimeout))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("LoadConfig(missing) = nil error")
	}

	path := writeConfigFile(t, `handshake_timeout: "not a duration"`)
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("LoadConfig(bad duration) = nil error")
	}

	path = writeConfigFile(t, `listen_addr: [broken`)
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("LoadConfig(bad yaml) = nil error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, true},
		{"zero max line", func(c *Config) { c.MaxLineBytes = 0 }, true},
		{"negative max line", func(c *Config) { c.MaxLineBytes = -1 }, true},
		{"negative timeout", func(c *Config) { c.HandshakeTimeout = Duration(-time.Second) }, true},
		{"zero timeout is allowed", func(c *Config) { c.HandshakeTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}
