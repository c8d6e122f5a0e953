// Package api provides REST endpoints for decoding ISO 8583 messages and
// browsing the decode archive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"iso8583_parser/internal/enrichment"
	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/storage"
)

// maxBodyBytes bounds a decode request body.
const maxBodyBytes = 1 << 20

// Archive is the subset of the SQLite archive the server reads and writes.
type Archive interface {
	Insert(r storage.Record) (int64, error)
	Query(p storage.QueryParams) ([]storage.Record, error)
	GetByID(id int64) (*storage.Record, error)
	GetStats() (*storage.Stats, error)
}

// Analytics is the ClickHouse read side.
type Analytics interface {
	Query(ctx context.Context, p storage.CHQueryParams) ([]storage.Record, error)
	GetStats(ctx context.Context) (*storage.CHStats, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
	Charset     iso8583.Charset
	// ArchiveDecodes stores every /decode result when an archive is set.
	ArchiveDecodes bool
}

// Server serves the decode API.
type Server struct {
	profiles  *registry.Registry
	archive   Archive
	analytics Analytics
	issuers   *enrichment.IssuerCache
	log       logrus.FieldLogger

	port           int
	charset        iso8583.Charset
	archiveDecodes bool
	authEnabled    bool
	apiKeys        map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithArchive enables the /messages endpoints.
func WithArchive(a Archive) Option {
	return func(s *Server) { s.archive = a }
}

// WithAnalytics enables the /analytics endpoints.
func WithAnalytics(a Analytics) Option {
	return func(s *Server) { s.analytics = a }
}

// WithIssuers enables /issuers and issuer notes in /report. The caller owns
// the cache and must hold a reference while the server runs.
func WithIssuers(c *enrichment.IssuerCache) Option {
	return func(s *Server) { s.issuers = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a new API server.
func NewServer(profiles *registry.Registry, cfg Config, opts ...Option) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	s := &Server{
		profiles:       profiles,
		log:            logrus.StandardLogger(),
		port:           cfg.Port,
		charset:        cfg.Charset,
		archiveDecodes: cfg.ArchiveDecodes,
		authEnabled:    cfg.AuthEnabled,
		apiKeys:        keys,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full HTTP handler with middleware and the /api/v1
// prefix.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())
	return r
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/profiles", s.handleProfiles)
	r.Post("/decode", s.handleDecode)
	r.Post("/report", s.handleReport)
	r.Get("/messages", s.handleListMessages)
	r.Get("/messages/{id}", s.handleGetMessage)
	r.Get("/stats", s.handleStats)
	r.Get("/analytics/messages", s.handleAnalyticsMessages)
	r.Get("/analytics/stats", s.handleAnalyticsStats)
	r.Get("/issuers/{pan}", s.handleIssuer)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"addr":      srv.Addr,
		"auth":      s.authEnabled,
		"archive":   s.archive != nil,
		"analytics": s.analytics != nil,
		"issuers":   s.issuers != nil,
		"profiles":  s.profiles.Count(),
	}).Info("decode API starting")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication. Health checks are open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"profiles": s.profiles.Count(),
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": s.profiles.Names()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
