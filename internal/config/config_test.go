package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/huestream/internal/stream"
)

const validYAML = `
bridge:
  address: 192.168.1.20
  username: streamer
  client_key: 0102030405060708090a0b0c0d0e0f10
stream:
  group: "5"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Stream.Port != 2100 {
		t.Errorf("Stream.Port = %d, want 2100", cfg.Stream.Port)
	}
	if cfg.Stream.Rate != stream.DefaultRate {
		t.Errorf("Stream.Rate = %v, want %v", cfg.Stream.Rate, stream.DefaultRate)
	}
	if cfg.ColorSpace() != stream.RGB {
		t.Errorf("ColorSpace() = %s, want rgb", cfg.ColorSpace())
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Database.Retention.Duration() != 30*24*time.Hour || cfg.Database.RetentionInterval.Duration() != time.Hour {
		t.Errorf("Database = %+v, want 720h retention every 1h", cfg.Database)
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout.Duration())
	}

	sc := cfg.SessionConfig()
	if sc.Identity != "streamer" || len(sc.PSK) != 16 || sc.PSK[0] != 0x01 {
		t.Errorf("SessionConfig() = %+v", sc)
	}
	if sc.HandshakeTimeout != stream.DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v", sc.HandshakeTimeout)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "missing_address",
			yaml:  "bridge: {username: u, client_key: aa}\nstream: {group: '1'}",
			field: "bridge.address",
		},
		{
			name:  "missing_username",
			yaml:  "bridge: {address: h, client_key: aa}\nstream: {group: '1'}",
			field: "bridge.username",
		},
		{
			name:  "missing_key",
			yaml:  "bridge: {address: h, username: u}\nstream: {group: '1'}",
			field: "bridge.client_key",
		},
		{
			name:  "non_hex_key",
			yaml:  "bridge: {address: h, username: u, client_key: zz}\nstream: {group: '1'}",
			field: "bridge.client_key",
		},
		{
			name:  "missing_group",
			yaml:  "bridge: {address: h, username: u, client_key: aa}",
			field: "stream.group",
		},
		{
			name:  "bad_color_space",
			yaml:  "bridge: {address: h, username: u, client_key: aa}\nstream: {group: '1', color_space: hsv}",
			field: "stream.color_space",
		},
		{
			name:  "negative_rate",
			yaml:  "bridge: {address: h, username: u, client_key: aa}\nstream: {group: '1', rate: -5}",
			field: "stream.rate",
		},
		{
			name:  "unknown_cipher",
			yaml:  "bridge: {address: h, username: u, client_key: aa}\nstream: {group: '1', cipher_suites: [TLS_NULL]}",
			field: "stream.cipher_suites",
		},
		{
			name:  "negative_retention",
			yaml:  "bridge: {address: h, username: u, client_key: aa}\nstream: {group: '1'}\ndatabase: {path: x.db, retention: -1h}",
			field: "database.retention",
		},
		{
			name:  "bad_log_level",
			yaml:  "bridge: {address: h, username: u, client_key: aa}\nstream: {group: '1'}\nlog: {level: loud}",
			field: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Parse() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HUESTREAM_TEST_KEY", "a0a1a2a3")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
bridge:
  address: ${HUESTREAM_TEST_ADDR:10.0.0.2}
  username: streamer
  client_key: ${HUESTREAM_TEST_KEY}
  timeout: 3s
stream:
  group: "7"
  color_space: xyb
  rate: 50
  handshake_timeout: 2s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bridge.Address != "10.0.0.2" {
		t.Errorf("Bridge.Address = %q, want default 10.0.0.2", cfg.Bridge.Address)
	}
	if cfg.Bridge.ClientKey != "a0a1a2a3" {
		t.Errorf("Bridge.ClientKey = %q", cfg.Bridge.ClientKey)
	}
	if cfg.Bridge.Timeout.Duration() != 3*time.Second {
		t.Errorf("Bridge.Timeout = %v", cfg.Bridge.Timeout.Duration())
	}
	if cfg.ColorSpace() != stream.XYB || cfg.Stream.Rate != 50 {
		t.Errorf("Stream = %+v", cfg.Stream)
	}
}

func TestSessionConfig_Identity(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "defaults_to_username",
			yaml: validYAML,
			want: "streamer",
		},
		{
			name: "client_name_overrides",
			yaml: "bridge: {address: h, username: streamer, client_name: huestream-livingroom, client_key: aa}\nstream: {group: '1'}",
			want: "huestream-livingroom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := cfg.SessionConfig().Identity; got != tt.want {
				t.Errorf("Identity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if got := redact("0102030405"); got != "0102******" {
		t.Errorf("redact() = %q", got)
	}
	if got := redact("ab"); got != "**" {
		t.Errorf("redact() = %q", got)
	}
}
