// Package main provides the decode-ingest worker.
//
// It joins a NATS queue group, decodes every ISO 8583 message published on
// the raw subject, publishes the JSON result and writes batches of results
// to the SQLite archive and ClickHouse, whichever are configured.
//
// Usage:
//
//	decode-ingest [-config FILE] [-nats-url URL] [-subject SUBJ] [-queue NAME]
//
// Everything else comes from the configuration file and the environment
// (NATS_*, CLICKHOUSE_*, ISO8583_*).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"iso8583_parser/internal/config"
	"iso8583_parser/internal/ingest"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/storage"
)

// statsInterval is how often the worker counters are logged.
const statsInterval = time.Minute

func main() {
	cfgPath := flag.String("config", "", "YAML configuration file")
	natsURL := flag.String("nats-url", "", "NATS server URL")
	subject := flag.String("subject", "", "Subject carrying raw messages")
	queue := flag.String("queue", "", "Queue group name")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nats-url":
			cfg.NATS.URL = *natsURL
		case "subject":
			cfg.NATS.Subject = *subject
		case "queue":
			cfg.NATS.Queue = *queue
		}
	})
	log := cfg.NewLogger(os.Stderr)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("ingest stopped")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles := registry.New()
	if cfg.TablesDir != "" {
		if _, err := profiles.LoadDir(cfg.TablesDir); err != nil {
			return err
		}
	}
	if _, err := profiles.Lookup(cfg.Profile); err != nil {
		return fmt.Errorf("profile %q: %w", cfg.Profile, err)
	}

	// Issuer ranges are not needed here.
	stCfg := cfg.Storage
	stCfg.Postgres.Host = ""
	db, err := storage.Open(ctx, stCfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.CreateSchemas(ctx); err != nil {
		return err
	}

	var sink ingest.Sink
	if db.Archive != nil || db.CH != nil {
		sink = db
	} else {
		log.Warn("no archive or ClickHouse configured, results are only published")
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("decode-ingest"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	sub, msgs, err := ingest.Subscribe(nc, cfg.NATS.Subject, cfg.NATS.Queue, cfg.NATS.BatchSize*4)
	if err != nil {
		return err
	}

	worker := ingest.NewWorker(profiles, nc, sink, ingest.Config{
		Profile:       cfg.Profile,
		Charset:       cfg.CharsetValue(),
		ResultSubject: cfg.NATS.ResultSubject,
		BatchSize:     cfg.NATS.BatchSize,
		FlushInterval: cfg.NATS.FlushInterval,
	}, log)

	go logStats(ctx, worker, log)

	log.WithFields(logrus.Fields{
		"subject": cfg.NATS.Subject,
		"queue":   cfg.NATS.Queue,
		"results": cfg.NATS.ResultSubject,
		"profile": cfg.Profile,
	}).Info("decode ingest starting")

	go func() {
		<-ctx.Done()
		// Stop deliveries; Run drains what is already queued.
		if err := sub.Unsubscribe(); err != nil {
			log.WithError(err).Warn("unsubscribe")
		}
	}()

	err = worker.Run(ctx, msgs)
	if ferr := nc.Flush(); ferr != nil {
		log.WithError(ferr).Warn("flush NATS")
	}
	log.WithField("stats", worker.Stats()).Info("decode ingest stopped")
	return err
}

func logStats(ctx context.Context, w *ingest.Worker, log logrus.FieldLogger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := w.Stats()
			log.WithFields(logrus.Fields{
				"received":     st.Received,
				"decoded":      st.Decoded,
				"unsuccessful": st.Unsuccessful,
				"failed":       st.Failed,
				"published":    st.Published,
				"flushed":      st.Flushed,
				"dropped":      st.Dropped,
			}).Info("ingest stats")
		}
	}
}
