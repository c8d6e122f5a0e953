// Package main provides the decode-api server.
//
// This is a standalone REST API server that decodes ISO 8583 hex messages,
// optionally archives the results in SQLite and annotates card numbers with
// issuer ranges held in PostgreSQL.
//
// Usage:
//
//	decode-api [options]
//
// Options:
//
//	-config FILE        YAML configuration file
//	-port N             HTTP port (default: 8081, env: ISO8583_API_PORT)
//	-auth               Enable API key authentication (env: ISO8583_API_AUTH)
//	-api-keys KEYS      Comma-separated list of valid API keys (env: ISO8583_API_KEYS)
//	-tables DIR         Directory of YAML field tables (env: ISO8583_TABLES_DIR)
//	-db FILE            SQLite archive (env: ISO8583_SQLITE_PATH)
//	-archive-decodes    Store every /decode result in the archive
//
// Issuer lookups are enabled when POSTGRES_HOST (or postgres.host) is set,
// the analytics endpoints when CLICKHOUSE_HOST (or clickhouse.host) is set.
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/profiles
//	    Names of the loaded field table profiles.
//
//	POST /api/v1/decode[?profile=NAME]
//	    Decode a message. Body: raw hex or {"hex": "...", "profile": "...", "source": "..."}.
//
//	POST /api/v1/report[?profile=NAME]
//	    Same input as /decode, returns the text report with annotations.
//
//	GET /api/v1/messages?mti=&source=&success=&error_code=&limit=&offset=&order=
//	    List archived decodes.
//
//	GET /api/v1/messages/{id}
//	    One archived decode with its full result.
//
//	GET /api/v1/stats
//	    Archive totals, MTI counts and top error codes.
//
//	GET /api/v1/analytics/messages?mti=&source=&success=&since=&limit=&offset=&order=
//	    List decodes written to ClickHouse by decode-ingest. since is RFC 3339.
//
//	GET /api/v1/analytics/stats
//	    ClickHouse totals, MTI counts, top error codes and top fields.
//
//	GET /api/v1/issuers/{pan}
//	    Issuer range lookup for a card number.
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"iso8583_parser/internal/api"
	"iso8583_parser/internal/config"
	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 8081, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")
	tables := flag.String("tables", "", "Directory of YAML field tables")
	dbPath := flag.String("db", "", "SQLite archive path")
	archiveDecodes := flag.Bool("archive-decodes", false, "Store every /decode result in the archive")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.API.Port = *port
		case "auth":
			cfg.API.AuthEnabled = *authEnabled
		case "api-keys":
			cfg.API.APIKeys = config.SplitList(*apiKeys)
		case "tables":
			cfg.TablesDir = *tables
		case "db":
			cfg.Storage.SQLitePath = *dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles := registry.New()
	if cfg.TablesDir != "" {
		names, err := profiles.LoadDir(cfg.TablesDir)
		if err != nil {
			log.WithError(err).Fatal("load field tables")
		}
		log.WithField("profiles", names).Info("loaded field tables")
	}

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("open storage")
	}
	defer db.Close()

	if err := db.CreateSchemas(ctx); err != nil {
		log.WithError(err).Fatal("create schemas")
	}

	opts := []api.Option{api.WithLogger(log)}
	if db.Archive != nil {
		opts = append(opts, api.WithArchive(db.Archive))
	}
	if db.CH != nil {
		opts = append(opts, api.WithAnalytics(db.CH))
	}
	if db.PG != nil {
		issuers := enrichment.NewIssuerCache(db.PG)
		issuers.Acquire()
		defer issuers.Release()
		opts = append(opts, api.WithIssuers(issuers))
	}

	server := api.NewServer(profiles, api.Config{
		Port:           cfg.API.Port,
		AuthEnabled:    cfg.API.AuthEnabled,
		APIKeys:        cfg.API.APIKeys,
		Charset:        cfg.CharsetValue(),
		ArchiveDecodes: *archiveDecodes,
	}, opts...)

	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("server error")
		os.Exit(1)
	}
}
