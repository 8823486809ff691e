package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Instance InstanceConfig `toml:"instance"`
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	NATS     NATSConfig     `toml:"nats"`
	Server   ServerConfig   `toml:"server"`
	Timers   TimersConfig   `toml:"timers"`
	Log      LogConfig      `toml:"log"`
}

// InstanceConfig identifies the running instance and its persistence namespace.
type InstanceConfig struct {
	UserID           int    `toml:"user_id"`
	Namespace        string `toml:"namespace"`
	FeatureConstants string `toml:"feature_constants"`
	HidePrivate      bool   `toml:"hide_private"`
}

// StoreConfig selects the blob store driver (sqlite, redis or memory).
type StoreConfig struct {
	Driver string `toml:"driver"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains Redis connection settings for the redis store driver.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// NATSConfig contains the NATS connection and subject names.
//
// An empty URL disables the NATS transport.
type NATSConfig struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	UpdateSubject  string `toml:"update_subject"`
	ForwardSubject string `toml:"forward_subject"`
	EnableSubject  string `toml:"enable_subject"`
	ExpiredSubject string `toml:"expired_subject"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// TimersConfig selects the expiry alarm backend and clock-change detection.
type TimersConfig struct {
	Backend                string `toml:"backend"`
	TimeCheckIntervalSecs  int    `toml:"time_check_interval_secs"`
	TimeJumpThresholdMilli int    `toml:"time_jump_threshold_ms"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the URL CLI clients use to reach the server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// CheckInterval returns the clock-change polling interval.
func (t TimersConfig) CheckInterval() time.Duration {
	return time.Duration(t.TimeCheckIntervalSecs) * time.Second
}

// JumpThreshold returns the wall-clock drift treated as a clock change.
func (t TimersConfig) JumpThreshold() time.Duration {
	return time.Duration(t.TimeJumpThresholdMilli) * time.Millisecond
}

// Validate checks the fields that have no usable zero value.
func (c *Config) Validate() error {
	if c.Instance.Namespace == "" {
		return fmt.Errorf("%w: instance.namespace is required", ErrInvalidConfig)
	}
	if c.Instance.UserID < 0 {
		return fmt.Errorf("%w: instance.user_id must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}
	switch c.Timers.Backend {
	case "clock", "cron":
	default:
		return fmt.Errorf("%w: timers.backend must be clock or cron, got %q", ErrInvalidConfig, c.Timers.Backend)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig loads the config at path when it exists and falls back to defaults otherwise.
//
// Environment overrides are applied in both cases.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}
