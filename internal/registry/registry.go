// Package registry implements the in-memory URL registry and click tracking
// store. A single Registry instance owns the short code map and the click
// lists; every operation takes the registry mutex, so creation stays
// check-then-insert atomic and cleanup never interleaves with reads.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shortly-app/shortly/internal/models"
)

const (
	// DefaultValidityMinutes applies when a creation request carries no validity.
	DefaultValidityMinutes = 30
	// MaxValidityMinutes is one year, the longest accepted validity period.
	MaxValidityMinutes = 525600
)

// ClickInfo carries the requester metadata attached to a recorded click.
type ClickInfo struct {
	IP        string
	UserAgent string
	Referrer  string
	Location  string
}

// Registry is the in-memory store mapping short codes to URL records and
// their click histories. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	urls   map[string]*models.ShortURL
	clicks map[string][]models.Click

	gen             *Generator
	defaultValidity int
	now             func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the registry's time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithDefaultValidity overrides the validity period applied when a creation
// request carries none.
func WithDefaultValidity(minutes int) Option {
	return func(r *Registry) {
		if minutes > 0 {
			r.defaultValidity = minutes
		}
	}
}

// New creates an empty Registry using gen for short code generation.
func New(gen *Generator, opts ...Option) *Registry {
	r := &Registry{
		urls:            make(map[string]*models.ShortURL),
		clicks:          make(map[string][]models.Click),
		gen:             gen,
		defaultValidity: DefaultValidityMinutes,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CreateShortURL registers originalURL under a new short code and returns the
// created record. When customCode is non-empty it is used instead of a
// generated one; it must be well-formed (ErrInvalidShortCode) and not already
// taken (ErrShortCodeExists). A non-positive validityMinutes falls back to the
// default. URL format and validity range validation are the caller's
// responsibility.
func (r *Registry) CreateShortURL(originalURL string, validityMinutes int, customCode string) (*models.ShortURL, error) {
	const op = "registry.Registry.CreateShortURL"

	r.mu.Lock()
	defer r.mu.Unlock()

	if validityMinutes <= 0 {
		validityMinutes = r.defaultValidity
	}

	code := customCode
	if code != "" {
		if !ValidShortCode(code) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
		}
		if _, ok := r.urls[code]; ok {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeExists)
		}
	} else {
		var err error

		code, err = r.gen.GenerateUnique(func(c string) bool {
			_, ok := r.urls[c]
			return ok
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}
	}

	now := r.now()
	url := &models.ShortURL{
		ID:              uuid.NewString(),
		ShortCode:       code,
		OriginalURL:     originalURL,
		ValidityMinutes: validityMinutes,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(validityMinutes) * time.Minute),
		IsActive:        true,
	}

	r.urls[code] = url
	r.clicks[code] = []models.Click{}

	return copyURL(url), nil
}

// GetURLData resolves a short code to its record. Expired records are treated
// as absent without being deleted; cleanup removes them later.
func (r *Registry) GetURLData(shortCode string) (*models.ShortURL, error) {
	const op = "registry.Registry.GetURLData"

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.urls[shortCode]
	if !ok || url.Expired(r.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
	}

	return copyURL(url), nil
}

// RecordClick appends a click for the short code, creating the click list if
// missing. Liveness is not checked here; callers resolve before recording.
// Absent referrers default to "Direct" and absent locations to "Unknown".
func (r *Registry) RecordClick(shortCode string, info ClickInfo) *models.Click {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Referrer == "" {
		info.Referrer = "Direct"
	}
	if info.Location == "" {
		info.Location = "Unknown"
	}

	click := models.Click{
		ID:        uuid.NewString(),
		Timestamp: r.now(),
		IP:        info.IP,
		UserAgent: info.UserAgent,
		Referrer:  info.Referrer,
		Location:  info.Location,
	}

	r.clicks[shortCode] = append(r.clicks[shortCode], click)

	return &click
}

// GetStatistics aggregates the click history of a short code. Unlike
// GetURLData it keeps serving records past their expiry until a cleanup pass
// removes them, so final counts stay readable after a link dies. Only a short
// code with no record at all yields ErrURLNotFound.
func (r *Registry) GetStatistics(shortCode string) (*models.URLStats, error) {
	const op = "registry.Registry.GetStatistics"

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
	}

	clicks := r.clicks[shortCode]

	stats := &models.URLStats{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
		TotalClicks: len(clicks),
		Clicks:      make([]models.Click, len(clicks)),
	}
	copy(stats.Clicks, clicks)

	return stats, nil
}

// GetAllURLs lists every record with its click count, ordered by creation
// time. Expired-but-not-yet-cleaned records are skipped unless includeExpired
// is set; the flag makes the expiry policy the caller's explicit choice.
func (r *Registry) GetAllURLs(includeExpired bool) []models.URLSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	summaries := make([]models.URLSummary, 0, len(r.urls))
	for code, url := range r.urls {
		if !includeExpired && url.Expired(now) {
			continue
		}

		summaries = append(summaries, models.URLSummary{
			ShortURL:    *url,
			TotalClicks: len(r.clicks[code]),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ShortCode < summaries[j].ShortCode
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	return summaries
}

// CleanupExpired physically removes every expired record together with its
// click list and returns the number removed. A pure scan-and-delete, safe to
// repeat on the next tick.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	removed := 0
	for code, url := range r.urls {
		if url.Expired(now) {
			delete(r.urls, code)
			delete(r.clicks, code)
			removed++
		}
	}

	return removed
}

func copyURL(url *models.ShortURL) *models.ShortURL {
	cp := *url
	return &cp
}
