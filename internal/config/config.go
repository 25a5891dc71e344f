// Package config loads and validates runtime configuration.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults
//  2. a YAML file (CONFIG_PATH, or config.yaml / config.yml in the working directory)
//  3. a .env file (ENV_FILE, default ".env"); variables already set in the
//     process environment are not overwritten
//  4. the process environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvFileEnvVar overrides the .env file location.
const EnvFileEnvVar = "ENV_FILE"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
}

// DatabaseConfig configures the PostGIS connection pool.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	CORSOrigins    []string      `koanf:"cors_origins"` // empty disables CORS
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
}

// MQTTConfig configures the optional MQTT ingestion bridge. An empty
// BrokerURL disables it.
type MQTTConfig struct {
	BrokerURL string `koanf:"broker_url"`
	Topic     string `koanf:"topic"`
	ClientID  string `koanf:"client_id"`
	QoS       int    `koanf:"qos"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.BrokerURL != "" }

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns: 20,
		},
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: 10 * time.Second,
			CORSOrigins:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		MQTT: MQTTConfig{
			Topic:    "samples/+/ingest",
			ClientID: "geosamples-ingest",
			QoS:      1,
		},
	}
}

// envKeys maps environment variable names (lower-cased) to config paths.
// Variables not listed, or set to an empty string, are ignored.
var envKeys = map[string]string{
	"database_url":    "database.url",
	"db_max_conns":    "database.max_conns",
	"port":            "server.port",
	"request_timeout": "server.request_timeout",
	"cors_origins":    "server.cors_origins",
	"log_level":       "logging.level",
	"log_format":      "logging.format",
	"mqtt_broker_url": "mqtt.broker_url",
	"mqtt_topic":      "mqtt.topic",
	"mqtt_client_id":  "mqtt.client_id",
	"mqtt_qos":        "mqtt.qos",
}

func envTransform(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	return envKeys[strings.ToLower(key)], value
}

// Load builds and validates the Config.
// Returns a ConfigError (possibly several, joined) for any missing or invalid value.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	// DB_DSN is the older name of DATABASE_URL.
	if k.String("database.url") == "" {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			if err := k.Set("database.url", dsn); err != nil {
				return nil, fmt.Errorf("config: set database.url: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, &ConfigError{Field: "DATABASE_URL", Message: "required but not set"})
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, &ConfigError{Field: "DB_MAX_CONNS", Message: "must be at least 1"})
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "REQUEST_TIMEOUT", Message: "must be a positive duration"})
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil || c.Logging.Level == "" {
		errs = append(errs, &ConfigError{Field: "LOG_LEVEL", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, &ConfigError{Field: "LOG_FORMAT", Message: "must be json or console"})
	}
	if c.MQTT.Enabled() {
		if c.MQTT.Topic == "" {
			errs = append(errs, &ConfigError{Field: "MQTT_TOPIC", Message: "required when MQTT_BROKER_URL is set"})
		}
		if c.MQTT.ClientID == "" {
			errs = append(errs, &ConfigError{Field: "MQTT_CLIENT_ID", Message: "required when MQTT_BROKER_URL is set"})
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, &ConfigError{Field: "MQTT_QOS", Message: "must be 0, 1 or 2"})
		}
	}
	return errors.Join(errs...)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadDotEnv copies a .env file into the process environment. A missing
// file is not an error.
func loadDotEnv() error {
	path := os.Getenv(EnvFileEnvVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
