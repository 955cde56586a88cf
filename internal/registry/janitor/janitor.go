// Package janitor runs the periodic cleanup pass over the URL registry.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

// Store is the slice of the registry the janitor needs.
type Store interface {
	// CleanupExpired removes expired records and returns the number removed.
	CleanupExpired() int
}

// Janitor periodically sweeps expired records out of the store. One instance
// drives one store; runs never overlap because the loop is single-threaded.
type Janitor struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Janitor sweeping store every interval.
func New(store Store, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps immediately, then on every tick until ctx is cancelled. A failing
// sweep is logged and swallowed; the registry state is untouched by a failed
// pass, so the next tick simply retries.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("starting cleanup janitor", slog.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup janitor stopped")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	const op = "janitor.Janitor.sweep"

	defer func() {
		if err := recover(); err != nil {
			j.logger.Error("cleanup pass panicked", slog.Group(op, slog.Any("err", err)))
		}
	}()

	removed := j.store.CleanupExpired()
	if removed > 0 {
		j.logger.Info("cleanup pass removed expired urls", slog.Int("removed", removed))
	}
}
