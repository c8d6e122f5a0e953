package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ClickHouseDB wraps a ClickHouse connection for decode analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS decoded_messages (
			received_at     DateTime64(3),
			source          LowCardinality(String),
			profile         LowCardinality(String),
			mti             LowCardinality(String),
			success         Bool,
			field_count     UInt16,
			error_count     UInt16,
			fields          Array(UInt8),
			error_codes     Array(LowCardinality(String)),
			raw_hex         String,
			result_json     String,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(received_at)
		ORDER BY (mti, received_at)
		SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func toUint8s(ns []int) []uint8 {
	out := make([]uint8, len(ns))
	for i, n := range ns {
		out[i] = uint8(n)
	}
	return out
}

// InsertBatch stores records in one ClickHouse batch.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO decoded_messages (received_at, source, profile, mti, success, field_count, error_count, fields, error_codes, raw_hex, result_json)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(r.ReceivedAt, r.Source, r.Profile, r.MTI, r.Success,
			uint16(r.FieldCount), uint16(r.ErrorCount), toUint8s(r.Fields), r.ErrorCodes, r.RawHex, r.ResultJSON)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CHQueryParams contains filtering options for querying records.
type CHQueryParams struct {
	MTI       string
	Source    string
	Success   *bool
	Since     time.Time
	Limit     int
	Offset    int
	OrderDesc bool
}

// buildCHQuery renders the SELECT for p.
func buildCHQuery(p CHQueryParams) (string, []any) {
	var conditions []string
	var args []any

	if p.MTI != "" {
		conditions = append(conditions, "mti = ?")
		args = append(args, p.MTI)
	}
	if p.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, p.Source)
	}
	if p.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *p.Success)
	}
	if !p.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, p.Since)
	}

	query := `SELECT received_at, source, profile, mti, success, field_count, error_count, fields, error_codes, raw_hex, result_json FROM decoded_messages`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY received_at %s LIMIT %d OFFSET %d", direction, limit, p.Offset)
	return query, args
}

// Query retrieves records matching the given parameters.
func (d *ClickHouseDB) Query(ctx context.Context, p CHQueryParams) ([]Record, error) {
	query, args := buildCHQuery(p)
	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var fieldCount, errorCount uint16
		var fields []uint8
		err := rows.Scan(&r.ReceivedAt, &r.Source, &r.Profile, &r.MTI, &r.Success,
			&fieldCount, &errorCount, &fields, &r.ErrorCodes, &r.RawHex, &r.ResultJSON)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.FieldCount = int(fieldCount)
		r.ErrorCount = int(errorCount)
		r.Fields = make([]int, len(fields))
		for i, f := range fields {
			r.Fields[i] = int(f)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// CHStats contains aggregate statistics about decoded messages.
type CHStats struct {
	Total         uint64            `json:"total"`
	Successful    uint64            `json:"successful"`
	ByMTI         map[string]uint64 `json:"by_mti"`
	TopErrorCodes map[string]uint64 `json:"top_error_codes"`
	TopFields     map[uint8]uint64  `json:"top_fields"`
}

// GetStats returns statistics about decoded messages.
func (d *ClickHouseDB) GetStats(ctx context.Context) (*CHStats, error) {
	stats := &CHStats{
		ByMTI:         make(map[string]uint64),
		TopErrorCodes: make(map[string]uint64),
		TopFields:     make(map[uint8]uint64),
	}

	row := d.conn.QueryRow(ctx, "SELECT count(), countIf(success) FROM decoded_messages")
	if err := row.Scan(&stats.Total, &stats.Successful); err != nil {
		return nil, err
	}

	if err := d.groupCount(ctx, "SELECT mti, count() FROM decoded_messages GROUP BY mti ORDER BY count() DESC LIMIT 20", func(rows driver.Rows) error {
		var mti string
		var count uint64
		if err := rows.Scan(&mti, &count); err != nil {
			return err
		}
		stats.ByMTI[mti] = count
		return nil
	}); err != nil {
		return nil, fmt.Errorf("mti stats: %w", err)
	}

	if err := d.groupCount(ctx, "SELECT code, count() FROM decoded_messages ARRAY JOIN error_codes AS code GROUP BY code ORDER BY count() DESC LIMIT 20", func(rows driver.Rows) error {
		var code string
		var count uint64
		if err := rows.Scan(&code, &count); err != nil {
			return err
		}
		stats.TopErrorCodes[code] = count
		return nil
	}); err != nil {
		return nil, fmt.Errorf("error code stats: %w", err)
	}

	if err := d.groupCount(ctx, "SELECT field, count() FROM decoded_messages ARRAY JOIN fields AS field GROUP BY field ORDER BY count() DESC LIMIT 40", func(rows driver.Rows) error {
		var field uint8
		var count uint64
		if err := rows.Scan(&field, &count); err != nil {
			return err
		}
		stats.TopFields[field] = count
		return nil
	}); err != nil {
		return nil, fmt.Errorf("field stats: %w", err)
	}

	return stats, nil
}

func (d *ClickHouseDB) groupCount(ctx context.Context, query string, scan func(driver.Rows) error) error {
	rows, err := d.conn.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
