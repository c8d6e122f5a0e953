package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config holds connection settings for every backend. Empty SQLitePath or
// empty hosts leave that backend disabled.
type Config struct {
	SQLitePath string           `yaml:"sqlite_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "iso8583",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "iso8583_ref",
			User:     "iso8583",
			Password: "iso8583",
		},
	}
}

// DB bundles whichever backends are configured.
type DB struct {
	Archive *SQLiteDB     // Local archive of decode results.
	CH      *ClickHouseDB // Analytics.
	PG      *PostgresDB   // Issuer ranges.
}

// Open connects every backend that has settings. A failure closes whatever
// was already opened.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	if cfg.SQLitePath != "" {
		a, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		d.Archive = a
	}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.CH = ch
	}

	if cfg.Postgres.Host != "" {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.PG = pg
	}

	return d, nil
}

// Close closes every open connection.
func (d *DB) Close() error {
	var errs []error
	if d.Archive != nil {
		if err := d.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return errors.Join(errs...)
}

// CreateSchemas creates the server side schemas. The SQLite schema is
// created on open.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// InsertBatch writes records to the archive and analytics backends that are
// open. It satisfies the ingest sink.
func (d *DB) InsertBatch(ctx context.Context, records []Record) error {
	var errs []error
	if d.Archive != nil {
		if err := d.Archive.InsertBatch(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.InsertBatch(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	return errors.Join(errs...)
}
