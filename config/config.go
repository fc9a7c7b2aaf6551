/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults below
  2. Config file given with --config (yaml, json or toml by extension)
  3. Environment, prefix MARGIN_ with dots as underscores
     (MARGIN_DB_DRIVER, MARGIN_DB_DSN, MARGIN_HTTP_PORT, ...)
  4. Command-line flags, applied by cmd/server

A .env file in the working directory is loaded into the environment first.
A missing .env is not an error.

KEYS:
  db.driver          sqlite3 | postgres            (sqlite3)
  db.dsn             file path or postgres URL      (margin.db)
  http.port                                         (8080)
  http.cors_origins  comma separated or list
  log.level          logrus level name              (info)
  log.format         json | text                    (json)
  scanner.enabled    periodic risk scan             (false)
  scanner.interval   Go duration                    (15m)

Risk thresholds are fixed in the margin package and are not configurable.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/warp/margin-engine/store/sqlstore"
)

const EnvPrefix = "MARGIN"

type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Scanner ScannerConfig `mapstructure:"scanner"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScannerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", string(sqlstore.SQLite))
	v.SetDefault("db.dsn", "margin.db")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scanner.enabled", false)
	v.SetDefault("scanner.interval", "15m")
}

// Load reads configuration from defaults, the optional file at path and the
// environment. It does not validate; call Validate after applying flags.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := sqlstore.ParseDialect(c.DB.Driver); err != nil {
		return &ConfigError{Field: "db.driver", Message: err.Error()}
	}
	if c.DB.DSN == "" {
		return &ConfigError{Field: "db.dsn", Message: "must not be empty"}
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return &ConfigError{Field: "http.port", Message: fmt.Sprintf("invalid port %d", c.HTTP.Port)}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return &ConfigError{Field: "log.level", Message: err.Error()}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return &ConfigError{Field: "log.format", Message: "must be json or text"}
	}
	if c.Scanner.Enabled && c.Scanner.Interval <= 0 {
		return &ConfigError{Field: "scanner.interval", Message: "must be positive when the scanner is enabled"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
