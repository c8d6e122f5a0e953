package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDB is the local archive of decode results.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite archive at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the API read while the CLI or ingest worker writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS decoded_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		profile TEXT NOT NULL DEFAULT '',
		raw_hex TEXT NOT NULL,
		mti TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		field_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		fields TEXT NOT NULL DEFAULT '',
		error_codes TEXT NOT NULL DEFAULT '',
		result_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_decoded_mti ON decoded_messages(mti);
	CREATE INDEX IF NOT EXISTS idx_decoded_success ON decoded_messages(success);
	CREATE INDEX IF NOT EXISTS idx_decoded_received ON decoded_messages(received_at);
	`

	_, err := db.Exec(schema)
	return err
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return []int{}
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func splitCodes(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

const insertRecordSQL = `
	INSERT INTO decoded_messages (received_at, source, profile, raw_hex, mti, success, field_count, error_count, fields, error_codes, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func recordArgs(r Record) []any {
	return []any{
		r.ReceivedAt.UTC().Format(time.RFC3339Nano), r.Source, r.Profile, r.RawHex, r.MTI,
		r.Success, r.FieldCount, r.ErrorCount, joinInts(r.Fields), strings.Join(r.ErrorCodes, ","), r.ResultJSON,
	}
}

// Insert stores one record and returns its ID.
func (d *SQLiteDB) Insert(r Record) (int64, error) {
	result, err := d.db.Exec(insertRecordSQL, recordArgs(r)...)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return result.LastInsertId()
}

// InsertBatch stores records in one transaction.
func (d *SQLiteDB) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// QueryParams contains filtering options for querying records.
type QueryParams struct {
	MTI       string // Exact MTI match.
	Source    string // Exact source match.
	Success   *bool  // Filter on the success flag when set.
	ErrorCode string // Records carrying this error code.
	Limit     int    // Max results (default 100).
	Offset    int    // Pagination offset.
	OrderDesc bool   // Newest first.
}

const selectRecordSQL = `SELECT id, received_at, source, profile, raw_hex, mti, success, field_count, error_count, fields, error_codes, result_json FROM decoded_messages`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	var receivedAt, fields, codes string
	err := s.Scan(&r.ID, &receivedAt, &r.Source, &r.Profile, &r.RawHex, &r.MTI, &r.Success,
		&r.FieldCount, &r.ErrorCount, &fields, &codes, &r.ResultJSON)
	if err != nil {
		return r, err
	}
	r.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)
	r.Fields = splitInts(fields)
	r.ErrorCodes = splitCodes(codes)
	return r, nil
}

// Query retrieves records matching the given parameters.
func (d *SQLiteDB) Query(p QueryParams) ([]Record, error) {
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
	if p.ErrorCode != "" {
		conditions = append(conditions, "(',' || error_codes || ',') LIKE ?")
		args = append(args, "%,"+p.ErrorCode+",%")
	}

	query := selectRecordSQL
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
	query += fmt.Sprintf(" ORDER BY id %s LIMIT %d OFFSET %d", direction, limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetByID retrieves a single record, or nil when it does not exist.
func (d *SQLiteDB) GetByID(id int64) (*Record, error) {
	r, err := scanRecord(d.db.QueryRow(selectRecordSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Stats contains aggregate statistics about archived records.
type Stats struct {
	Total         int            `json:"total"`
	Successful    int            `json:"successful"`
	Failed        int            `json:"failed"`
	ByMTI         map[string]int `json:"by_mti"`
	TopErrorCodes map[string]int `json:"top_error_codes"`
}

// GetStats returns statistics about the archive.
func (d *SQLiteDB) GetStats() (*Stats, error) {
	stats := &Stats{
		ByMTI:         make(map[string]int),
		TopErrorCodes: make(map[string]int),
	}

	row := d.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(success), 0) FROM decoded_messages")
	if err := row.Scan(&stats.Total, &stats.Successful); err != nil {
		return nil, err
	}
	stats.Failed = stats.Total - stats.Successful

	rows, err := d.db.Query("SELECT mti, COUNT(*) FROM decoded_messages GROUP BY mti ORDER BY COUNT(*) DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var mti string
		var count int
		if err := rows.Scan(&mti, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByMTI[mti] = count
	}
	_ = rows.Close()

	// Codes are stored comma separated, so they are counted here.
	rows, err = d.db.Query("SELECT error_codes FROM decoded_messages WHERE error_codes != ''")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var codes string
		if err := rows.Scan(&codes); err != nil {
			_ = rows.Close()
			return nil, err
		}
		for _, c := range splitCodes(codes) {
			stats.TopErrorCodes[c]++
		}
	}
	_ = rows.Close()

	return stats, nil
}

// Distinct returns distinct values for a given column.
func (d *SQLiteDB) Distinct(column string) ([]string, error) {
	validColumns := map[string]bool{
		"mti":     true,
		"source":  true,
		"profile": true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM decoded_messages WHERE %s != '' ORDER BY %s", column, column, column)
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
