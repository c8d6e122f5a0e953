package storage

import (
	"context"
	"os"
	"strconv"
	"testing"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	cfg := DefaultConfig().Postgres
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database = v
	}

	ctx := context.Background()
	pg, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil
	}

	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		return nil
	}

	return pg
}

func TestIssuerRange_Contains(t *testing.T) {
	r := IssuerRange{Start: "411100", End: "411199"}

	tests := []struct {
		pan  string
		want bool
	}{
		{"4111111111111111", true},
		{"4111001234567890", true},
		{"4112001234567890", false},
		{"41110", false},
		{"5500000000000004", false},
	}
	for _, tt := range tests {
		t.Run(tt.pan, func(t *testing.T) {
			if got := r.Contains(tt.pan); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.pan, got, tt.want)
			}
		})
	}

	if (IssuerRange{}).Contains("4111") {
		t.Error("empty range should not match")
	}
}

func TestUpsertIssuerRange(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	cleanup := func() {
		_ = pg.DeleteIssuerRange(ctx, "999900", "999999")
	}
	cleanup()
	defer cleanup()

	err := pg.UpsertIssuerRange(ctx, IssuerRange{Start: "999900", End: "999999", Scheme: "TEST", Issuer: "First Test Bank"})
	if err != nil {
		t.Fatalf("UpsertIssuerRange failed: %v", err)
	}
	err = pg.UpsertIssuerRange(ctx, IssuerRange{Start: "999900", End: "999999", Scheme: "TEST", Issuer: "Renamed Bank", Country: "AU"})
	if err != nil {
		t.Fatalf("second UpsertIssuerRange failed: %v", err)
	}

	got, err := pg.GetIssuerRange(ctx, "999900", "999999")
	if err != nil {
		t.Fatalf("GetIssuerRange failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected range, got nil")
	}
	if got.Issuer != "Renamed Bank" || got.Country != "AU" {
		t.Errorf("got %+v, want updated issuer and country", got)
	}

	ranges, err := pg.LoadIssuerRanges(ctx)
	if err != nil {
		t.Fatalf("LoadIssuerRanges failed: %v", err)
	}
	found := false
	for _, r := range ranges {
		if r.Start == "999900" {
			found = true
		}
	}
	if !found {
		t.Error("loaded ranges missing test range")
	}
}

func TestUpsertIssuerRange_RejectsUnevenBounds(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	if err := pg.UpsertIssuerRange(context.Background(), IssuerRange{Start: "41", End: "4199"}); err == nil {
		t.Error("expected error for uneven bounds")
	}
}

func TestGetIssuerRange_Missing(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	got, err := pg.GetIssuerRange(context.Background(), "000000", "000001")
	if err != nil {
		t.Fatalf("GetIssuerRange failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
