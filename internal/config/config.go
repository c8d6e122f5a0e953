// Package config loads settings for the decoder binaries: defaults, then an
// optional YAML file, then environment variables. Command-line flags are
// applied by each binary on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/spec"
	"iso8583_parser/internal/storage"
)

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port        int      `yaml:"port"`
	AuthEnabled bool     `yaml:"auth_enabled"`
	APIKeys     []string `yaml:"api_keys"`
}

// NATSConfig configures the ingest worker.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	Queue         string        `yaml:"queue"`
	ResultSubject string        `yaml:"result_subject"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Config is the full configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Profile   string `yaml:"profile"`
	TablesDir string `yaml:"tables_dir"`
	Charset   string `yaml:"charset"`

	API     APIConfig      `yaml:"api"`
	Storage storage.Config `yaml:",inline"`
	NATS    NATSConfig     `yaml:"nats"`
}

// Default returns the built-in configuration. Database backends start
// disabled; setting a host enables them.
func Default() Config {
	st := storage.DefaultConfig()
	st.ClickHouse.Host = ""
	st.Postgres.Host = ""

	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Profile:   spec.ProfileISO1987,
		Charset:   "ascii",
		API: APIConfig{
			Port: 8081,
		},
		Storage: st,
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Subject:       "iso8583.raw",
			Queue:         "iso8583-decoders",
			ResultSubject: "iso8583.decoded",
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ISO8583_*, POSTGRES_*, CLICKHOUSE_* and
// NATS_* variables.
func (c *Config) ApplyEnv() {
	c.LogLevel = envOrDefault("ISO8583_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("ISO8583_LOG_FORMAT", c.LogFormat)
	c.Profile = envOrDefault("ISO8583_PROFILE", c.Profile)
	c.TablesDir = envOrDefault("ISO8583_TABLES_DIR", c.TablesDir)
	c.Charset = envOrDefault("ISO8583_CHARSET", c.Charset)

	c.API.Port = envOrDefaultInt("ISO8583_API_PORT", c.API.Port)
	c.API.AuthEnabled = envOrDefaultBool("ISO8583_API_AUTH", c.API.AuthEnabled)
	if v := os.Getenv("ISO8583_API_KEYS"); v != "" {
		c.API.APIKeys = SplitList(v)
	}

	c.Storage.SQLitePath = envOrDefault("ISO8583_SQLITE_PATH", c.Storage.SQLitePath)

	c.Storage.Postgres.Host = envOrDefault("POSTGRES_HOST", c.Storage.Postgres.Host)
	c.Storage.Postgres.Port = envOrDefaultInt("POSTGRES_PORT", c.Storage.Postgres.Port)
	c.Storage.Postgres.User = envOrDefault("POSTGRES_USER", c.Storage.Postgres.User)
	c.Storage.Postgres.Password = envOrDefault("POSTGRES_PASSWORD", c.Storage.Postgres.Password)
	c.Storage.Postgres.Database = envOrDefault("POSTGRES_DATABASE", c.Storage.Postgres.Database)

	c.Storage.ClickHouse.Host = envOrDefault("CLICKHOUSE_HOST", c.Storage.ClickHouse.Host)
	c.Storage.ClickHouse.Port = envOrDefaultInt("CLICKHOUSE_PORT", c.Storage.ClickHouse.Port)
	c.Storage.ClickHouse.User = envOrDefault("CLICKHOUSE_USER", c.Storage.ClickHouse.User)
	c.Storage.ClickHouse.Password = envOrDefault("CLICKHOUSE_PASSWORD", c.Storage.ClickHouse.Password)
	c.Storage.ClickHouse.Database = envOrDefault("CLICKHOUSE_DATABASE", c.Storage.ClickHouse.Database)

	c.NATS.URL = envOrDefault("NATS_URL", c.NATS.URL)
	c.NATS.Subject = envOrDefault("NATS_SUBJECT", c.NATS.Subject)
	c.NATS.Queue = envOrDefault("NATS_QUEUE", c.NATS.Queue)
	c.NATS.ResultSubject = envOrDefault("NATS_RESULT_SUBJECT", c.NATS.ResultSubject)
	c.NATS.BatchSize = envOrDefaultInt("NATS_BATCH_SIZE", c.NATS.BatchSize)
	if v := os.Getenv("NATS_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.NATS.FlushInterval = d
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	if _, err := iso8583.ParseCharset(c.Charset); err != nil {
		return fmt.Errorf("charset: %w", err)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", c.API.Port)
	}
	if c.NATS.BatchSize <= 0 {
		return fmt.Errorf("nats.batch_size: must be positive, got %d", c.NATS.BatchSize)
	}
	if c.NATS.FlushInterval <= 0 {
		return fmt.Errorf("nats.flush_interval: must be positive, got %s", c.NATS.FlushInterval)
	}
	return nil
}

// CharsetValue returns the parsed charset. Validate has already checked it.
func (c *Config) CharsetValue() iso8583.Charset {
	cs, _ := iso8583.ParseCharset(c.Charset)
	return cs
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
