// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. DATABASE_URL (single-variable override for PostgreSQL, common in cloud deployments)
//  2. Environment variables (POSTGRES_HOST, DB_POOL_MAX, PORT, ...)
//  3. Config file (./config.yaml)
//  4. Default values (sensible defaults for local development)
//
// Main configuration categories:
//   - Postgres: connection endpoint, credentials, timeouts, pool sizing (see storage.go)
//   - Server: HTTP listen port
//   - Log: level and format
//
// Security: the database password is never logged; see MarshalJSON.
// Validation: range checks in validation.go returning sentinel errors
// that can be matched with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidPoolSize indicates the connection pool bounds are invalid.
	ErrInvalidPoolSize = errors.New("invalid pool size")

	// ErrInvalidConnectTimeout indicates the connect timeout is out of range.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout")

	// ErrInvalidServerPort indicates the HTTP server port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// PostgreSQL configuration (see storage.go for DSN builders)
	PostgresHost           string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort           int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser           string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword       string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName         string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode        string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
	PostgresConnectTimeout int    `mapstructure:"postgres_connect_timeout" json:"postgres_connect_timeout"` // seconds
	PostgresAppName        string `mapstructure:"postgres_app_name" json:"postgres_app_name"`

	// Connection pool bounds
	PoolMinConns int `mapstructure:"pool_min_conns" json:"pool_min_conns"`
	PoolMaxConns int `mapstructure:"pool_max_conns" json:"pool_max_conns"`

	// HTTP server
	ServerPort int `mapstructure:"server_port" json:"server_port"`

	// Logging
	Debug   bool `mapstructure:"debug" json:"debug"`
	LogJSON bool `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: DATABASE_URL > environment variables > configuration file > default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "ruko_admin")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_connect_timeout", 5)
	v.SetDefault("postgres_app_name", "ruko-admin-dashboard")

	// Pool defaults
	v.SetDefault("pool_min_conns", 1)
	v.SetDefault("pool_max_conns", 10)

	// Server defaults
	v.SetDefault("server_port", 8080)

	// Logging defaults
	v.SetDefault("debug", false)
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
// The variable names match what the deployment environment already exports,
// so they are bound one by one instead of via SetEnvPrefix.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("postgres_host", "POSTGRES_HOST")
	mustBind("postgres_port", "POSTGRES_PORT")
	mustBind("postgres_user", "POSTGRES_USER")
	mustBind("postgres_password", "POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "POSTGRES_DB")
	mustBind("postgres_ssl_mode", "POSTGRES_SSL_MODE")
	mustBind("postgres_connect_timeout", "POSTGRES_CONNECT_TIMEOUT")
	mustBind("postgres_app_name", "POSTGRES_APP_NAME")

	mustBind("pool_min_conns", "DB_POOL_MIN")
	mustBind("pool_max_conns", "DB_POOL_MAX")

	mustBind("server_port", "PORT")
	mustBind("debug", "DEBUG")
	mustBind("log_json", "LOG_JSON")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// The password never appears in serialized configuration, e.g. in debug dumps.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // drop methods to avoid recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	return json.Marshal(masked)
}
