// Package storage persists decode results: a SQLite archive for the CLI and
// API, a ClickHouse table for analytics and a PostgreSQL issuer range table
// for presentation enrichment.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"iso8583_parser/internal/iso8583"
)

// Record is one decoded message as stored.
type Record struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"`
	Profile    string    `json:"profile"`
	RawHex     string    `json:"raw_hex"`
	MTI        string    `json:"mti"`
	Success    bool      `json:"success"`
	FieldCount int       `json:"field_count"`
	ErrorCount int       `json:"error_count"`
	Fields     []int     `json:"fields"`
	ErrorCodes []string  `json:"error_codes"`
	ResultJSON string    `json:"result_json,omitempty"`
}

// NewRecord flattens a decode result for storage.
func NewRecord(source, profile string, receivedAt time.Time, res *iso8583.ParseResult) (Record, error) {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return Record{}, fmt.Errorf("marshal result: %w", err)
	}

	r := Record{
		ReceivedAt: receivedAt.UTC(),
		Source:     source,
		Profile:    profile,
		RawHex:     res.Hex,
		Success:    res.Success,
		FieldCount: len(res.Fields),
		ErrorCount: len(res.Errors),
		Fields:     res.FieldNumbers(),
		ErrorCodes: make([]string, 0, len(res.Errors)),
		ResultJSON: string(resultJSON),
	}
	if res.MTI != nil {
		r.MTI = res.MTI.Raw
	}
	for _, e := range res.Errors {
		r.ErrorCodes = append(r.ErrorCodes, string(e.Code))
	}
	return r, nil
}

// Result decodes the stored JSON back into a ParseResult.
func (r *Record) Result() (*iso8583.ParseResult, error) {
	var res iso8583.ParseResult
	if err := json.Unmarshal([]byte(r.ResultJSON), &res); err != nil {
		return nil, fmt.Errorf("unmarshal result %d: %w", r.ID, err)
	}
	return &res, nil
}
