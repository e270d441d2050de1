package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog backend identifiers.
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// Config is the root configuration structure for the runbook service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Database  DatabaseConfig  `yaml:"database"`
	Execution ExecutionConfig `yaml:"execution"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// CatalogConfig selects where the automation catalog is persisted.
type CatalogConfig struct {
	// Backend is "file" (single JSON document) or "bolt" (bbolt database).
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
// The database holds operator accounts and the audit log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ExecutionConfig bounds script execution.
type ExecutionConfig struct {
	// Timeout is the per-run limit in seconds.
	Timeout int    `yaml:"timeout"`
	Shell   string `yaml:"shell"`
	// MaxOutputBytes caps captured stdout and stderr individually.
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
	// AuthRequired gates add, update and execute behind a valid token.
	AuthRequired bool `yaml:"auth_required"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the token lifetime in hours.
	TokenTTL int `yaml:"token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RUNBOOK_SECTION_KEY
// For example: RUNBOOK_CATALOG_PATH, RUNBOOK_JWT_SECRET
//
// An empty path skips the file step entirely, so a deployment can be
// configured from the environment alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The JWT secret is intentionally left empty.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Backend: BackendFile,
			Path:    "./data/automations.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/runbook.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Execution: ExecutionConfig{
			Timeout:        60,
			Shell:          "/bin/sh",
			MaxOutputBytes: 1 << 20,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "runbook-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "runbook",
			Bucket:        "runbook",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 24,
			},
			AuthRequired: true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Catalog
	if v := os.Getenv("RUNBOOK_CATALOG_BACKEND"); v != "" {
		cfg.Catalog.Backend = v
	}
	if v := os.Getenv("RUNBOOK_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	// Database
	if v := os.Getenv("RUNBOOK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Execution
	if v := os.Getenv("RUNBOOK_EXECUTION_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Execution.Timeout = n
		}
	}

	// MQTT
	if v := os.Getenv("RUNBOOK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RUNBOOK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RUNBOOK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("RUNBOOK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("RUNBOOK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security
	if v := os.Getenv("RUNBOOK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("RUNBOOK_AUTH_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.AuthRequired = b
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	switch c.Catalog.Backend {
	case BackendFile, BackendBolt:
	default:
		errs = append(errs, fmt.Sprintf("catalog.backend must be %q or %q", BackendFile, BackendBolt))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, "catalog.path is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Execution.Timeout <= 0 {
		errs = append(errs, "execution.timeout must be positive")
	}
	if c.Execution.Shell == "" {
		errs = append(errs, "execution.shell is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Security.JWT.TokenTTL <= 0 {
		errs = append(errs, "security.jwt.token_ttl must be positive")
	}

	// Tokens signed with a short secret can be brute forced offline.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set RUNBOOK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}

	return nil
}

// ExecutionTimeout returns the per-run execution limit as a Duration.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Execution.Timeout) * time.Second
}

// TokenTTL returns the token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Hour
}
