// Package config provides configuration loading, validation, and hot
// reload for utapi.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Datastore DatastoreConfig `yaml:"datastore"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Workers   int             `yaml:"workers"`
	Component string          `yaml:"component"`
	Metrics   []string        `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// DatastoreConfig selects and configures the backing store adapter.
type DatastoreConfig struct {
	Driver string       `yaml:"driver"` // "memory" or "sqlite"
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig names the external key-value/sorted-set store utapi was
// designed against. It is accepted and defaulted, not validated, for forward
// compatibility with a networked adapter; the shipped adapters are
// memory and sqlite.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SQLiteConfig configures the durable single-file datastore adapter.
type SQLiteConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig configures AWS SigV4 request authentication.
type AuthConfig struct {
	Region  string `yaml:"region"`
	Service string `yaml:"service"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	DumpLevel string `yaml:"dumpLevel"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	UTAPI_COMPONENT             - component name (required)
//	UTAPI_DATASTORE_DRIVER      - memory or sqlite (default: memory)
//	UTAPI_DATASTORE_SQLITE_DSN  - sqlite file path (default: utapi.db)
//	UTAPI_SERVER_HOST           - server host (default: 0.0.0.0)
//	UTAPI_SERVER_PORT           - server port (default: 8100)
//	UTAPI_WORKERS               - read-path concurrency (default: 5)
//	UTAPI_LOG_LEVEL             - log level: debug, info, warn, error
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falling back to environment
// variables when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set UTAPI_COMPONENT")
}

// HasEnvConfig returns true if enough environment variables are set to
// run without a config file.
func HasEnvConfig() bool {
	return os.Getenv("UTAPI_COMPONENT") != ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UTAPI_COMPONENT"); v != "" {
		cfg.Component = v
	}
	if v := os.Getenv("UTAPI_METRICS"); v != "" {
		cfg.Metrics = strings.Split(v, ",")
	}
	if v := os.Getenv("UTAPI_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("UTAPI_DATASTORE_DRIVER"); v != "" {
		cfg.Datastore.Driver = v
	}
	if v := os.Getenv("UTAPI_DATASTORE_REDIS_HOST"); v != "" {
		cfg.Datastore.Redis.Host = v
	}
	if v := os.Getenv("UTAPI_DATASTORE_REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Datastore.Redis.Port = n
		}
	}
	if v := os.Getenv("UTAPI_DATASTORE_SQLITE_DSN"); v != "" {
		cfg.Datastore.SQLite.DSN = v
	}

	if v := os.Getenv("UTAPI_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("UTAPI_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("UTAPI_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("UTAPI_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("UTAPI_AUTH_REGION"); v != "" {
		cfg.Auth.Region = v
	}
	if v := os.Getenv("UTAPI_AUTH_SERVICE"); v != "" {
		cfg.Auth.Service = v
	}

	if v := os.Getenv("UTAPI_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("UTAPI_LOG_DUMP_LEVEL"); v != "" {
		cfg.Log.DumpLevel = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Datastore.Driver == "" {
		cfg.Datastore.Driver = "memory"
	}
	if cfg.Datastore.SQLite.DSN == "" {
		cfg.Datastore.SQLite.DSN = "utapi.db"
	}
	if cfg.Datastore.Redis.Host == "" {
		cfg.Datastore.Redis.Host = "127.0.0.1"
	}
	if cfg.Datastore.Redis.Port == 0 {
		cfg.Datastore.Redis.Port = 6379
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8100
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Auth.Region == "" {
		cfg.Auth.Region = "us-east-1"
	}
	if cfg.Auth.Service == "" {
		cfg.Auth.Service = "s3"
	}

	if cfg.Workers == 0 {
		cfg.Workers = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.DumpLevel == "" {
		cfg.Log.DumpLevel = "debug"
	}
}

func validate(cfg *Config) error {
	if cfg.Component == "" {
		return fmt.Errorf("component is required")
	}

	validDrivers := map[string]bool{"memory": true, "sqlite": true}
	if !validDrivers[cfg.Datastore.Driver] {
		return fmt.Errorf("datastore.driver must be 'memory' or 'sqlite', got %q", cfg.Datastore.Driver)
	}

	for _, m := range cfg.Metrics {
		switch m {
		case "bucket", "account", "service":
		default:
			return fmt.Errorf("metrics[]: unrecognized granularity %q", m)
		}
	}

	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	return nil
}
