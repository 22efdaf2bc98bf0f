package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "WORKSPACE"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Presence  PresenceConfig  `yaml:"presence" envconfig:"PRESENCE"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host        string `yaml:"host" envconfig:"HOST"`
	Port        int    `yaml:"port" envconfig:"PORT"`
	MetricsPort int    `yaml:"metrics_port" envconfig:"METRICS_PORT"` // Prometheus listener (0 to disable)
	// ConnectionTimeoutSeconds bounds the whole life of one connection,
	// from accept to the end of the response write.
	ConnectionTimeoutSeconds int        `yaml:"connection_timeout_seconds" envconfig:"CONNECTION_TIMEOUT_SECONDS"`
	MaxBodyBytes             int64      `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	CORS                     CORSConfig `yaml:"cors" envconfig:"CORS"`
}

// CORSConfig contains cross-origin settings. CORS is off when no origin is listed.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins" envconfig:"ALLOW_ORIGINS"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"TYPE"` // memory, sqlite, mongodb
	SQLite  SQLiteConfig  `yaml:"sqlite" envconfig:"SQLITE"`
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
}

// PresenceConfig contains presence tracking configuration
type PresenceConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" envconfig:"TTL_SECONDS"`
}

// TTL returns the presence window as a duration
func (c PresenceConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RateLimitConfig contains login rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" envconfig:"ENABLED"`
	MaxAttempts    int  `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	WindowSeconds  int  `yaml:"window_seconds" envconfig:"WINDOW_SECONDS"`
	LockoutSeconds int  `yaml:"lockout_seconds" envconfig:"LOCKOUT_SECONDS"`
}

// SetDefaults fills zero values with defaults
func (c *RateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file or environment
// variable overrides anything
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     8080,
			ConnectionTimeoutSeconds: 60,
			MaxBodyBytes:             1 << 20,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "server.db",
			},
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "workspace",
				Timeout:  10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Presence: PresenceConfig{
			TTLSeconds: 300,
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			MaxAttempts:    10,
			WindowSeconds:  60,
			LockoutSeconds: 300,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("metrics port must differ from server port")
	}

	if c.Server.ConnectionTimeoutSeconds <= 0 {
		return fmt.Errorf("connection_timeout_seconds must be positive")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	if c.Storage.Type != "memory" && c.Storage.Type != "sqlite" && c.Storage.Type != "mongodb" {
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or mongodb)", c.Storage.Type)
	}

	if c.Storage.Type == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required when using sqlite storage")
	}

	if c.Storage.Type == "mongodb" && c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("mongodb uri is required when using mongodb storage")
	}

	if c.Presence.TTLSeconds <= 0 {
		return fmt.Errorf("presence ttl_seconds must be positive")
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsAddress returns the metrics server address
func (c *ServerConfig) MetricsAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.MetricsPort))
}

// ConnectionTimeout returns the per-connection deadline
func (c *ServerConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSeconds) * time.Second
}
