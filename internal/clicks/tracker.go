// Package clicks moves click recording off the redirect path. Handlers submit
// lightweight events onto a buffered channel; worker goroutines resolve the
// requester location and record the click into the registry.
package clicks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shortly-app/shortly/internal/models"
	"github.com/shortly-app/shortly/internal/registry"
)

// Event is a raw click observed by a redirect handler.
type Event struct {
	ShortCode string
	IP        string
	UserAgent string
	Referrer  string
}

// Recorder is the slice of the registry the tracker writes to.
type Recorder interface {
	RecordClick(shortCode string, info registry.ClickInfo) *models.Click
}

// Locator resolves an IP to a location string.
type Locator interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// Tracker fans click events out to a pool of recording workers. Submit never
// blocks; when the buffer is full the event is dropped and counted, because a
// redirect must not wait on analytics.
type Tracker struct {
	events        chan Event
	recorder      Recorder
	locator       Locator
	lookupTimeout time.Duration
	logger        *slog.Logger

	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewTracker creates a Tracker with the given buffer size.
func NewTracker(recorder Recorder, locator Locator, bufferSize int, lookupTimeout time.Duration, logger *slog.Logger) *Tracker {
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	return &Tracker{
		events:        make(chan Event, bufferSize),
		recorder:      recorder,
		locator:       locator,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Start launches workerCount recording goroutines.
func (t *Tracker) Start(workerCount int) {
	if workerCount <= 0 {
		workerCount = 1
	}

	t.logger.Info("starting click workers", slog.Int("workers", workerCount))

	for i := 0; i < workerCount; i++ {
		t.wg.Add(1)
		go t.worker()
	}
}

// Submit queues an event for recording. It reports false when the buffer is
// full and the event was dropped.
func (t *Tracker) Submit(e Event) bool {
	select {
	case t.events <- e:
		return true
	default:
		t.dropped.Add(1)
		t.logger.Warn("click event dropped, buffer full", slog.String("short_code", e.ShortCode))
		return false
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Close stops accepting events and waits for the workers to drain the buffer.
func (t *Tracker) Close() {
	close(t.events)
	t.wg.Wait()
}

func (t *Tracker) worker() {
	defer t.wg.Done()

	for e := range t.events {
		location := t.locate(e.IP)

		t.recorder.RecordClick(e.ShortCode, registry.ClickInfo{
			IP:        e.IP,
			UserAgent: e.UserAgent,
			Referrer:  e.Referrer,
			Location:  location,
		})
	}
}

func (t *Tracker) locate(ip string) string {
	const op = "clicks.Tracker.locate"

	ctx, cancel := context.WithTimeout(context.Background(), t.lookupTimeout)
	defer cancel()

	location, err := t.locator.Lookup(ctx, ip)
	if err != nil {
		t.logger.Debug("location lookup failed", slog.Group(op, slog.Any("err", err)))
	}

	return location
}
