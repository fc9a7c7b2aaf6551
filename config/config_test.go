package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, "margin.db", cfg.DB.DSN)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.NotEmpty(t, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Scanner.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scanner.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: a config file and one environment override
	// WHEN: loading
	// THEN: the environment wins over the file, the file over defaults

	path := filepath.Join(t.TempDir(), "margin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: postgres
  dsn: postgres://localhost/margin?sslmode=disable
http:
  port: 9090
scanner:
  enabled: true
  interval: 5m
`), 0o644))
	t.Setenv("MARGIN_HTTP_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/margin?sslmode=disable", cfg.DB.DSN)
	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scanner.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DB:      DBConfig{Driver: "sqlite3", DSN: ":memory:"},
			HTTP:    HTTPConfig{Port: 8080},
			Log:     LogConfig{Level: "info", Format: "json"},
			Scanner: ScannerConfig{Enabled: true, Interval: time.Minute},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }, "db.driver"},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }, "db.dsn"},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero interval", func(c *Config) { c.Scanner.Interval = 0 }, "scanner.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	cfg := valid()
	cfg.Scanner = ScannerConfig{}
	assert.NoError(t, cfg.Validate(), "interval is ignored while the scanner is off")
}

func TestLogError_WritesModuleFields(t *testing.T) {
	var buf bytes.Buffer
	logg, err := newLogger(LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	LogError(logg, "api", "Query", "ad hoc query", map[string]string{"query_id": "q-1"}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, "Query", entry["funcName"])
	assert.NotNil(t, entry["data"])
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
