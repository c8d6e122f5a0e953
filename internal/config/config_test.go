package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/spec"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, spec.ProfileISO1987, cfg.Profile)
	assert.Empty(t, cfg.Storage.Postgres.Host)
	assert.Empty(t, cfg.Storage.ClickHouse.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port)
	assert.Equal(t, iso8583.CharsetASCII, cfg.CharsetValue())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_format: json
profile: acme
charset: ebcdic
sqlite_path: /tmp/archive.db
api:
  port: 9090
  auth_enabled: true
  api_keys: [k1, k2]
postgres:
  host: pg.internal
  database: ref
nats:
  subject: acquirer.raw
  flush_interval: 250ms
`)
	for _, k := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "ISO8583_PROFILE", "ISO8583_CHARSET", "NATS_SUBJECT", "NATS_BATCH_SIZE", "NATS_FLUSH_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "acme", cfg.Profile)
	assert.Equal(t, iso8583.CharsetEBCDIC, cfg.CharsetValue())
	assert.Equal(t, "/tmp/archive.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.APIKeys)
	assert.Equal(t, "pg.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port, "unset keys keep defaults")
	assert.Equal(t, "acquirer.raw", cfg.NATS.Subject)
	assert.Equal(t, 250*time.Millisecond, cfg.NATS.FlushInterval)
	assert.Equal(t, 100, cfg.NATS.BatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "profile: acme\napi:\n  port: 9090\n")
	t.Setenv("ISO8583_PROFILE", "other")
	t.Setenv("ISO8583_API_KEYS", "a, b,,c")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("NATS_BATCH_SIZE", "7")
	t.Setenv("NATS_FLUSH_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Profile)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.API.APIKeys)
	assert.Equal(t, "ch.internal", cfg.Storage.ClickHouse.Host)
	assert.Equal(t, 7, cfg.NATS.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.NATS.FlushInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour: blue\n"},
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"bad charset", "charset: utf-16\n"},
		{"bad port", "api:\n  port: 70000\n"},
		{"bad batch", "nats:\n  batch_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"

	var buf bytes.Buffer
	log := cfg.NewLogger(&buf)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.WithField("subject", "iso8583.raw").Warn("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "iso8583.raw", entry["subject"])
}
