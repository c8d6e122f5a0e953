package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// PostgresDB wraps a PostgreSQL connection pool holding reference data.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Card issuer ranges keyed by PAN prefix.
	CREATE TABLE IF NOT EXISTS issuer_ranges (
		range_start     TEXT NOT NULL,
		range_end       TEXT NOT NULL,
		scheme          TEXT NOT NULL DEFAULT '',
		issuer          TEXT NOT NULL DEFAULT '',
		country         TEXT NOT NULL DEFAULT '',
		card_type       TEXT NOT NULL DEFAULT '',
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (range_start, range_end),
		CHECK (length(range_start) = length(range_end))
	);

	CREATE INDEX IF NOT EXISTS idx_issuer_ranges_scheme ON issuer_ranges(scheme);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// IssuerRange maps a span of PAN prefixes to the issuing institution.
// Start and End are digit strings of equal length; a PAN belongs to the
// range when its prefix of that length sorts between them inclusive.
type IssuerRange struct {
	Start     string    `json:"range_start"`
	End       string    `json:"range_end"`
	Scheme    string    `json:"scheme"`
	Issuer    string    `json:"issuer"`
	Country   string    `json:"country"`
	CardType  string    `json:"card_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether pan falls inside the range.
func (r IssuerRange) Contains(pan string) bool {
	n := len(r.Start)
	if n == 0 || len(pan) < n {
		return false
	}
	p := pan[:n]
	return p >= r.Start && p <= r.End
}

// UpsertIssuerRange inserts or updates an issuer range.
func (d *PostgresDB) UpsertIssuerRange(ctx context.Context, r IssuerRange) error {
	if len(r.Start) != len(r.End) || r.Start == "" {
		return fmt.Errorf("issuer range %q-%q: bounds must be non-empty and of equal length", r.Start, r.End)
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO issuer_ranges (range_start, range_end, scheme, issuer, country, card_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (range_start, range_end) DO UPDATE SET
			scheme = EXCLUDED.scheme,
			issuer = EXCLUDED.issuer,
			country = EXCLUDED.country,
			card_type = EXCLUDED.card_type,
			updated_at = NOW()
	`, r.Start, r.End, r.Scheme, r.Issuer, r.Country, r.CardType)
	return err
}

// GetIssuerRange returns the range with the given bounds, or nil.
func (d *PostgresDB) GetIssuerRange(ctx context.Context, start, end string) (*IssuerRange, error) {
	var r IssuerRange
	err := d.pool.QueryRow(ctx, `
		SELECT range_start, range_end, scheme, issuer, country, card_type, updated_at
		FROM issuer_ranges WHERE range_start = $1 AND range_end = $2
	`, start, end).Scan(&r.Start, &r.End, &r.Scheme, &r.Issuer, &r.Country, &r.CardType, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteIssuerRange removes a range.
func (d *PostgresDB) DeleteIssuerRange(ctx context.Context, start, end string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM issuer_ranges WHERE range_start = $1 AND range_end = $2`, start, end)
	return err
}

// ListIssuerRanges returns every range, most specific prefixes first.
func (d *PostgresDB) ListIssuerRanges(ctx context.Context) ([]IssuerRange, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT range_start, range_end, scheme, issuer, country, card_type, updated_at
		FROM issuer_ranges
		ORDER BY length(range_start) DESC, range_start
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []IssuerRange
	for rows.Next() {
		var r IssuerRange
		if err := rows.Scan(&r.Start, &r.End, &r.Scheme, &r.Issuer, &r.Country, &r.CardType, &r.UpdatedAt); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// LoadIssuerRanges satisfies the enrichment loader signature.
func (d *PostgresDB) LoadIssuerRanges(ctx context.Context) ([]IssuerRange, error) {
	ranges, err := d.ListIssuerRanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issuer ranges: %w", err)
	}
	return ranges, nil
}
