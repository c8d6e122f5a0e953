// Package ingest decodes ISO 8583 messages arriving on a NATS subject,
// publishes the decode results and batches archive records to a sink.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"iso8583_parser/internal/iso8583"
	"iso8583_parser/internal/registry"
	"iso8583_parser/internal/storage"
)

// flushTimeout bounds the final flush after the worker is cancelled.
const flushTimeout = 10 * time.Second

// Publisher sends decode results. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Sink stores batches of decode records. *storage.DB satisfies it.
type Sink interface {
	InsertBatch(ctx context.Context, records []storage.Record) error
}

// Envelope is the JSON form of an inbound message. Payloads that are not a
// JSON object are taken as raw hex.
type Envelope struct {
	Hex     string `json:"hex"`
	Source  string `json:"source,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// Config controls a Worker.
type Config struct {
	Profile       string
	Charset       iso8583.Charset
	ResultSubject string
	BatchSize     int
	FlushInterval time.Duration
}

// Stats is a point in time copy of the worker counters.
type Stats struct {
	Received     uint64 `json:"received"`
	Decoded      uint64 `json:"decoded"`
	Unsuccessful uint64 `json:"unsuccessful"`
	Failed       uint64 `json:"failed"`
	Published    uint64 `json:"published"`
	Flushed      uint64 `json:"flushed"`
	Dropped      uint64 `json:"dropped"`
}

type counters struct {
	received     *atomic.Uint64
	decoded      *atomic.Uint64
	unsuccessful *atomic.Uint64
	failed       *atomic.Uint64
	published    *atomic.Uint64
	flushed      *atomic.Uint64
	dropped      *atomic.Uint64
}

// Worker decodes messages read from a channel. Run owns the batch buffer, so
// a Worker must be driven by a single Run call.
type Worker struct {
	profiles *registry.Registry
	pub      Publisher
	sink     Sink
	cfg      Config
	log      logrus.FieldLogger

	buf   []storage.Record
	stats counters
}

// NewWorker creates a worker. pub and sink may be nil to skip publishing or
// storage.
func NewWorker(profiles *registry.Registry, pub Publisher, sink Sink, cfg Config, log logrus.FieldLogger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		profiles: profiles,
		pub:      pub,
		sink:     sink,
		cfg:      cfg,
		log:      log,
		buf:      make([]storage.Record, 0, cfg.BatchSize),
		stats: counters{
			received:     atomic.NewUint64(0),
			decoded:      atomic.NewUint64(0),
			unsuccessful: atomic.NewUint64(0),
			failed:       atomic.NewUint64(0),
			published:    atomic.NewUint64(0),
			flushed:      atomic.NewUint64(0),
			dropped:      atomic.NewUint64(0),
		},
	}
}

// Stats returns the current counters. It is safe to call while Run is
// active.
func (w *Worker) Stats() Stats {
	return Stats{
		Received:     w.stats.received.Load(),
		Decoded:      w.stats.decoded.Load(),
		Unsuccessful: w.stats.unsuccessful.Load(),
		Failed:       w.stats.failed.Load(),
		Published:    w.stats.published.Load(),
		Flushed:      w.stats.flushed.Load(),
		Dropped:      w.stats.dropped.Load(),
	}
}

// Subscribe joins the queue group on subject and returns the channel the
// subscription delivers to.
func Subscribe(nc *nats.Conn, subject, queue string, buffer int) (*nats.Subscription, <-chan *nats.Msg, error) {
	ch := make(chan *nats.Msg, buffer)
	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = nc.ChanSubscribe(subject, ch)
	} else {
		sub, err = nc.ChanQueueSubscribe(subject, queue, ch)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, ch, nil
}

// Run processes msgs until ctx is cancelled or msgs is closed. Records are
// flushed every BatchSize messages and every FlushInterval. On cancellation
// the messages already queued on msgs are processed and a final flush runs.
func (w *Worker) Run(ctx context.Context, msgs <-chan *nats.Msg) error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return w.finalFlush(ctx)
			}
			w.Handle(msg)
			if len(w.buf) >= w.cfg.BatchSize {
				w.logFlush(ctx)
			}
		case <-ticker.C:
			w.logFlush(ctx)
		case <-ctx.Done():
			w.drain(msgs)
			return w.finalFlush(ctx)
		}
	}
}

func (w *Worker) drain(msgs <-chan *nats.Msg) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			w.Handle(msg)
		default:
			return
		}
	}
}

func (w *Worker) finalFlush(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	return w.Flush(fctx)
}

func (w *Worker) logFlush(ctx context.Context) {
	if err := w.Flush(ctx); err != nil {
		w.log.WithError(err).Error("flush decode records")
	}
}

// Handle decodes one message, publishes its result and buffers its record.
func (w *Worker) Handle(msg *nats.Msg) {
	w.stats.received.Inc()
	log := w.log.WithField("subject", msg.Subject)

	env, err := parseEnvelope(msg.Data)
	if err != nil {
		w.stats.failed.Inc()
		log.WithError(err).Warn("unreadable payload")
		return
	}
	if env.Source == "" {
		env.Source = msg.Subject
	}
	if env.Profile == "" {
		env.Profile = w.cfg.Profile
	}

	profile, err := w.profiles.Lookup(env.Profile)
	if err != nil {
		w.stats.failed.Inc()
		log.WithError(err).Warn("decode profile")
		return
	}
	dec, err := w.profiles.Decoder(profile.Name, w.cfg.Charset)
	if err != nil {
		w.stats.failed.Inc()
		log.WithError(err).Warn("decode profile")
		return
	}

	res := dec.Decode(env.Hex)
	w.stats.decoded.Inc()
	if !res.Success {
		w.stats.unsuccessful.Inc()
		log.WithField("errors", len(res.Errors)).Debug("unsuccessful decode")
	}

	rec, err := storage.NewRecord(env.Source, profile.Name, time.Now(), res)
	if err != nil {
		w.stats.failed.Inc()
		log.WithError(err).Warn("build decode record")
		return
	}

	w.publish(msg, []byte(rec.ResultJSON), log)

	if w.sink != nil {
		w.buf = append(w.buf, rec)
	}
}

func (w *Worker) publish(msg *nats.Msg, data []byte, log logrus.FieldLogger) {
	if w.pub == nil {
		return
	}
	subject := msg.Reply
	if subject == "" {
		subject = w.cfg.ResultSubject
	}
	if subject == "" {
		return
	}
	if err := w.pub.Publish(subject, data); err != nil {
		log.WithError(err).WithField("result_subject", subject).Warn("publish decode result")
		return
	}
	w.stats.published.Inc()
}

// Flush writes the buffered records to the sink. A failed batch is dropped.
func (w *Worker) Flush(ctx context.Context) error {
	if len(w.buf) == 0 || w.sink == nil {
		return nil
	}
	n := uint64(len(w.buf))
	err := w.sink.InsertBatch(ctx, w.buf)
	w.buf = make([]storage.Record, 0, w.cfg.BatchSize)
	if err != nil {
		w.stats.dropped.Add(n)
		return fmt.Errorf("insert %d records: %w", n, err)
	}
	w.stats.flushed.Add(n)
	w.log.WithField("records", n).Debug("flushed decode records")
	return nil
}

func parseEnvelope(data []byte) (Envelope, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return Envelope{Hex: trimmed}, nil
	}
	var env Envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return env, fmt.Errorf("invalid JSON envelope: %w", err)
	}
	return env, nil
}
