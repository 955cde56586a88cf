// Package logship ships structured log records to a remote HTTP collector.
//
// Handler is an slog.Handler that tees every record to an inner handler and
// queues a compact copy for a background Shipper, which posts JSON batches to
// the collector with exponential backoff. Shipping never blocks logging: a
// full queue or an unreachable collector drops batches and counts them.
package logship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Entry is the wire form of one shipped log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Shipper batches entries and posts them to a collector endpoint.
type Shipper struct {
	endpoint      string
	httpClient    *http.Client
	batchSize     int
	flushInterval time.Duration
	maxRetries    uint64

	entries chan Entry
	done    chan struct{}
	stopped chan struct{}
	dropped atomic.Int64
}

// Option configures a Shipper.
type Option func(*Shipper)

// WithBatchSize sets how many entries are shipped per POST.
func WithBatchSize(n int) Option {
	return func(s *Shipper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait before shipping.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Shipper) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithHTTPClient replaces the HTTP client used for collector requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Shipper) {
		s.httpClient = c
	}
}

// WithMaxRetries caps delivery attempts per batch before it is dropped.
func WithMaxRetries(n uint64) Option {
	return func(s *Shipper) {
		s.maxRetries = n
	}
}

// NewShipper creates a Shipper posting to endpoint and starts its background
// delivery goroutine. Call Close to flush and stop it.
func NewShipper(endpoint string, opts ...Option) *Shipper {
	s := &Shipper{
		endpoint:      endpoint,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		batchSize:     64,
		flushInterval: 5 * time.Second,
		maxRetries:    3,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.entries = make(chan Entry, 4*s.batchSize)

	go s.run()

	return s
}

// Enqueue queues an entry for delivery; a full queue drops it.
func (s *Shipper) Enqueue(e Entry) {
	select {
	case s.entries <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of entries lost to a full queue or failed delivery.
func (s *Shipper) Dropped() int64 {
	return s.dropped.Load()
}

// Close flushes pending entries and stops the delivery goroutine.
func (s *Shipper) Close() {
	close(s.done)
	<-s.stopped
}

func (s *Shipper) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.ship(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.entries:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case e := <-s.entries:
					batch = append(batch, e)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Shipper) ship(batch []Entry) {
	body, err := json.Marshal(batch)
	if err != nil {
		s.dropped.Add(int64(len(batch)))
		return
	}

	post := func() error {
		resp, err := s.httpClient.Post(s.endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("collector returned status %d", resp.StatusCode)
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0

	if err := backoff.Retry(post, backoff.WithMaxRetries(b, s.maxRetries)); err != nil {
		s.dropped.Add(int64(len(batch)))
	}
}

// Handler tees slog records to an inner handler and a Shipper.
type Handler struct {
	inner   slog.Handler
	shipper *Shipper
	attrs   []slog.Attr
	group   string
}

// NewHandler wraps inner so every record it handles is also shipped.
func NewHandler(inner slog.Handler, shipper *Shipper) *Handler {
	return &Handler{
		inner:   inner,
		shipper: shipper,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		putAttr(attrs, h.group, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		putAttr(attrs, h.group, a)
		return true
	})

	h.shipper.Enqueue(Entry{
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: rec.Message,
		Attrs:   attrs,
	})

	return h.inner.Handle(ctx, rec)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithAttrs(attrs)
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *Handler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithGroup(name)
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group = cp.group + "." + name
	}
	return &cp
}

func putAttr(dst map[string]any, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			putAttr(dst, key, ga)
		}
		return
	}

	dst[key] = v.Any()
}
