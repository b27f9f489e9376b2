package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/huestream/internal/stream"
)

// Config represents the application configuration
type Config struct {
	Bridge          BridgeConfig   `yaml:"bridge"`
	Stream          StreamConfig   `yaml:"stream"`
	Database        DatabaseConfig `yaml:"database"`
	Log             LogConfig      `yaml:"log"`
	Status          StatusConfig   `yaml:"status"`
	Effect          EffectConfig   `yaml:"effect"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // Bound for disabling streaming on exit
}

// BridgeConfig contains Hue bridge connection settings and streaming credentials
type BridgeConfig struct {
	Address   string   `yaml:"address"`
	Username   string   `yaml:"username"`    // Application key, the default DTLS PSK identity
	ClientName string   `yaml:"client_name"` // Overrides the PSK identity when set
	ClientKey  string   `yaml:"client_key"`  // Hex encoded PSK
	Timeout    Duration `yaml:"timeout"`     // HTTP timeout for configuration API requests
	CacheTTL   Duration `yaml:"cache_ttl"`   // Group inspection cache
}

// Identity returns the DTLS PSK identity. Bridges expect the application key,
// so client_name is only needed for peers that register a separate name.
func (b BridgeConfig) Identity() string {
	if b.ClientName != "" {
		return b.ClientName
	}
	return b.Username
}

// PSK returns the decoded pre-shared key.
func (b BridgeConfig) PSK() ([]byte, error) {
	return hex.DecodeString(b.ClientKey)
}

// MarshalZerologObject logs the bridge settings without the client key.
func (b BridgeConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("address", b.Address).
		Str("username", b.Username).
		Str("identity", b.Identity()).
		Str("client_key", redact(b.ClientKey))
}

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

// StreamConfig contains entertainment streaming settings
type StreamConfig struct {
	Group            string   `yaml:"group"`             // Entertainment group ID
	ColorSpace       string   `yaml:"color_space"`       // rgb or xyb
	Rate             float64  `yaml:"rate"`              // Frames per second
	Port             int      `yaml:"port"`              // DTLS port (default: 2100)
	HandshakeTimeout Duration `yaml:"handshake_timeout"` // DTLS handshake bound
	CipherSuites     []string `yaml:"cipher_suites"`     // IANA names, empty = default
	ValidateGroup    bool     `yaml:"validate_group"`    // Refuse non-entertainment groups before enabling
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path              string   `yaml:"path"`               // Empty disables the session ledger
	Retention         Duration `yaml:"retention"`          // Ledger entries older than this are purged
	RetentionInterval Duration `yaml:"retention_interval"` // How often the purge runs
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// StatusConfig contains the status HTTP server settings
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EffectConfig points at the Lua effect script driving the stream
type EffectConfig struct {
	Script string `yaml:"script"`
}

// ConfigError reports an invalid or missing configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads, parses and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses and validates configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Bridge defaults
	if cfg.Bridge.Timeout == 0 {
		cfg.Bridge.Timeout = Duration(10 * time.Second)
	}
	if cfg.Bridge.CacheTTL == 0 {
		cfg.Bridge.CacheTTL = Duration(time.Minute)
	}

	// Stream defaults
	if cfg.Stream.ColorSpace == "" {
		cfg.Stream.ColorSpace = "rgb"
	}
	if cfg.Stream.Rate == 0 {
		cfg.Stream.Rate = stream.DefaultRate
	}
	if cfg.Stream.Port == 0 {
		cfg.Stream.Port = stream.EntertainmentPort
	}
	if cfg.Stream.HandshakeTimeout == 0 {
		cfg.Stream.HandshakeTimeout = Duration(stream.DefaultHandshakeTimeout)
	}

	// Ledger retention defaults
	if cfg.Database.Retention == 0 {
		cfg.Database.Retention = Duration(30 * 24 * time.Hour)
	}
	if cfg.Database.RetentionInterval == 0 {
		cfg.Database.RetentionInterval = Duration(time.Hour)
	}

	// Status server defaults
	if cfg.Status.Port == 0 {
		cfg.Status.Port = 9090
	}
	if cfg.Status.Host == "" {
		cfg.Status.Host = "127.0.0.1"
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks required fields, failing on the first problem.
func (cfg *Config) Validate() error {
	if cfg.Bridge.Address == "" {
		return &ConfigError{Field: "bridge.address", Reason: "required"}
	}
	if cfg.Bridge.Username == "" {
		return &ConfigError{Field: "bridge.username", Reason: "required"}
	}
	if cfg.Bridge.ClientKey == "" {
		return &ConfigError{Field: "bridge.client_key", Reason: "required"}
	}
	if _, err := cfg.Bridge.PSK(); err != nil {
		return &ConfigError{Field: "bridge.client_key", Reason: "must be hex encoded"}
	}
	if cfg.Stream.Group == "" {
		return &ConfigError{Field: "stream.group", Reason: "required"}
	}
	if _, err := stream.ParseColorSpace(cfg.Stream.ColorSpace); err != nil {
		return &ConfigError{Field: "stream.color_space", Reason: err.Error()}
	}
	if cfg.Stream.Rate < 0 {
		return &ConfigError{Field: "stream.rate", Reason: "must be positive"}
	}
	if cfg.Stream.Port < 1 || cfg.Stream.Port > 65535 {
		return &ConfigError{Field: "stream.port", Reason: "out of range"}
	}
	if _, err := stream.ParseCipherSuites(cfg.Stream.CipherSuites); err != nil {
		return &ConfigError{Field: "stream.cipher_suites", Reason: err.Error()}
	}
	if cfg.Database.Retention < 0 {
		return &ConfigError{Field: "database.retention", Reason: "must be positive"}
	}
	if cfg.Database.RetentionInterval < 0 {
		return &ConfigError{Field: "database.retention_interval", Reason: "must be positive"}
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", cfg.Log.Level)}
	}
	return nil
}

// ColorSpace returns the parsed stream color space. Validate guarantees it parses.
func (cfg *Config) ColorSpace() stream.ColorSpace {
	cs, _ := stream.ParseColorSpace(cfg.Stream.ColorSpace)
	return cs
}

// SessionConfig builds the DTLS session parameters.
func (cfg *Config) SessionConfig() stream.SessionConfig {
	psk, _ := cfg.Bridge.PSK()
	suites, _ := stream.ParseCipherSuites(cfg.Stream.CipherSuites)
	return stream.SessionConfig{
		Address:          cfg.Bridge.Address,
		Port:             cfg.Stream.Port,
		Identity:         cfg.Bridge.Identity(),
		PSK:              psk,
		CipherSuites:     suites,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout.Duration(),
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
