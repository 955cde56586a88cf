package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a controllable time source for expiry tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
	r := New(NewGenerator(6), WithClock(clock.Now))

	return r, clock
}

func TestRegistry_CreateShortURL(t *testing.T) {
	t.Run("generated code", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		url, err := r.CreateShortURL("https://example.com", 30, "")

		require.NoError(t, err)
		assert.NotEmpty(t, url.ID)
		assert.Len(t, url.ShortCode, 6)
		assert.Equal(t, "https://example.com", url.OriginalURL)
		assert.Equal(t, 30, url.ValidityMinutes)
		assert.Equal(t, clock.Now(), url.CreatedAt)
		assert.Equal(t, clock.Now().Add(30*time.Minute), url.ExpiresAt)
		assert.True(t, url.IsActive)
	})

	t.Run("default validity applied", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		url, err := r.CreateShortURL("https://example.com", 0, "")

		require.NoError(t, err)
		assert.Equal(t, DefaultValidityMinutes, url.ValidityMinutes)
		assert.Equal(t, clock.Now().Add(DefaultValidityMinutes*time.Minute), url.ExpiresAt)
	})

	t.Run("custom code accepted once", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		url, err := r.CreateShortURL("https://example.com", 30, "validCode123")
		require.NoError(t, err)
		assert.Equal(t, "validCode123", url.ShortCode)

		_, err = r.CreateShortURL("https://example.org", 30, "validCode123")
		assert.ErrorIs(t, err, ErrShortCodeExists)
	})

	t.Run("custom code too short", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		url, err := r.CreateShortURL("https://example.com", 30, "ab")

		assert.ErrorIs(t, err, ErrInvalidShortCode)
		assert.Nil(t, url)
	})

	t.Run("custom code bad characters", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		url, err := r.CreateShortURL("https://example.com", 30, "bad-code!")

		assert.ErrorIs(t, err, ErrInvalidShortCode)
		assert.Nil(t, url)
	})

	t.Run("generated codes never collide", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		seen := make(map[string]bool)

		for i := 0; i < 200; i++ {
			url, err := r.CreateShortURL("https://example.com", 30, "")

			require.NoError(t, err)
			require.False(t, seen[url.ShortCode], "short code %q issued twice", url.ShortCode)
			seen[url.ShortCode] = true
		}
	})
}

func TestRegistry_GetURLData(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 30, "")
		require.NoError(t, err)

		got, err := r.GetURLData(created.ShortCode)

		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("unknown code", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		got, err := r.GetURLData("missing")

		assert.ErrorIs(t, err, ErrURLNotFound)
		assert.Nil(t, got)
	})

	t.Run("expired record hidden but not deleted", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 1, "")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)

		got, err := r.GetURLData(created.ShortCode)
		assert.ErrorIs(t, err, ErrURLNotFound)
		assert.Nil(t, got)

		// still enumerable until cleanup runs
		stats, err := r.GetStatistics(created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, created.OriginalURL, stats.OriginalURL)

		all := r.GetAllURLs(true)
		require.Len(t, all, 1)
		assert.Equal(t, created.ShortCode, all[0].ShortCode)
	})

	t.Run("record alive at exact expiry", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 1, "")
		require.NoError(t, err)

		clock.Advance(time.Minute)

		got, err := r.GetURLData(created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, created.ShortCode, got.ShortCode)
	})
}

func TestRegistry_RecordClick(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 30, "")
		require.NoError(t, err)

		click := r.RecordClick(created.ShortCode, ClickInfo{
			IP:        "1.2.3.4",
			UserAgent: "ua",
		})

		assert.NotEmpty(t, click.ID)
		assert.Equal(t, clock.Now(), click.Timestamp)
		assert.Equal(t, "Direct", click.Referrer)
		assert.Equal(t, "Unknown", click.Location)
	})

	t.Run("accumulates in call order", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 30, "")
		require.NoError(t, err)

		for _, ref := range []string{"first", "second", "third"} {
			r.RecordClick(created.ShortCode, ClickInfo{Referrer: ref})
		}

		stats, err := r.GetStatistics(created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalClicks)
		require.Len(t, stats.Clicks, 3)
		assert.Equal(t, "first", stats.Clicks[0].Referrer)
		assert.Equal(t, "second", stats.Clicks[1].Referrer)
		assert.Equal(t, "third", stats.Clicks[2].Referrer)
	})

	t.Run("unknown code creates list implicitly", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		click := r.RecordClick("orphan", ClickInfo{IP: "1.2.3.4"})

		assert.NotEmpty(t, click.ID)
	})
}

func TestRegistry_GetStatistics(t *testing.T) {
	t.Run("aggregates clicks", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 30, "")
		require.NoError(t, err)

		r.RecordClick(created.ShortCode, ClickInfo{IP: "1.2.3.4", UserAgent: "ua", Location: "X"})

		stats, err := r.GetStatistics(created.ShortCode)

		require.NoError(t, err)
		assert.Equal(t, created.ShortCode, stats.ShortCode)
		assert.Equal(t, created.OriginalURL, stats.OriginalURL)
		assert.Equal(t, created.CreatedAt, stats.CreatedAt)
		assert.Equal(t, created.ExpiresAt, stats.ExpiresAt)
		assert.Equal(t, 1, stats.TotalClicks)
	})

	t.Run("unknown code", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		stats, err := r.GetStatistics("missing")

		assert.ErrorIs(t, err, ErrURLNotFound)
		assert.Nil(t, stats)
	})

	t.Run("returned clicks are a copy", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		created, err := r.CreateShortURL("https://example.com", 30, "")
		require.NoError(t, err)
		r.RecordClick(created.ShortCode, ClickInfo{Referrer: "a"})

		stats, err := r.GetStatistics(created.ShortCode)
		require.NoError(t, err)
		stats.Clicks[0].Referrer = "mutated"

		again, err := r.GetStatistics(created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "a", again.Clicks[0].Referrer)
	})
}

func TestRegistry_GetAllURLs(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		assert.Empty(t, r.GetAllURLs(false))
	})

	t.Run("ordered by creation with click counts", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		first, err := r.CreateShortURL("https://first.example.com", 30, "")
		require.NoError(t, err)
		clock.Advance(time.Second)
		second, err := r.CreateShortURL("https://second.example.com", 30, "")
		require.NoError(t, err)

		r.RecordClick(second.ShortCode, ClickInfo{})

		all := r.GetAllURLs(false)

		require.Len(t, all, 2)
		assert.Equal(t, first.ShortCode, all[0].ShortCode)
		assert.Zero(t, all[0].TotalClicks)
		assert.Equal(t, second.ShortCode, all[1].ShortCode)
		assert.Equal(t, 1, all[1].TotalClicks)
	})

	t.Run("expired filtering", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		_, err := r.CreateShortURL("https://short-lived.example.com", 1, "")
		require.NoError(t, err)
		live, err := r.CreateShortURL("https://long-lived.example.com", 60, "")
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)

		onlyLive := r.GetAllURLs(false)
		require.Len(t, onlyLive, 1)
		assert.Equal(t, live.ShortCode, onlyLive[0].ShortCode)

		assert.Len(t, r.GetAllURLs(true), 2)
	})
}

func TestRegistry_CleanupExpired(t *testing.T) {
	t.Run("removes expired records and clicks", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		expired, err := r.CreateShortURL("https://short-lived.example.com", 1, "")
		require.NoError(t, err)
		live, err := r.CreateShortURL("https://long-lived.example.com", 60, "")
		require.NoError(t, err)
		r.RecordClick(expired.ShortCode, ClickInfo{})

		clock.Advance(5 * time.Minute)

		removed := r.CleanupExpired()

		assert.Equal(t, 1, removed)

		_, err = r.GetStatistics(expired.ShortCode)
		assert.ErrorIs(t, err, ErrURLNotFound)

		_, err = r.GetURLData(live.ShortCode)
		assert.NoError(t, err)
	})

	t.Run("idempotent", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		_, err := r.CreateShortURL("https://example.com", 1, "")
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)

		assert.Equal(t, 1, r.CleanupExpired())
		assert.Equal(t, 0, r.CleanupExpired())
	})

	t.Run("frees the code for reuse", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		_, err := r.CreateShortURL("https://example.com", 1, "takenCode1")
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		r.CleanupExpired()

		url, err := r.CreateShortURL("https://example.org", 30, "takenCode1")
		require.NoError(t, err)
		assert.Equal(t, "https://example.org", url.OriginalURL)
	})
}

func TestRegistry_endToEnd(t *testing.T) {
	r, clock := newTestRegistry(t)

	created, err := r.CreateShortURL("https://example.com", 30, "")
	require.NoError(t, err)
	require.Len(t, created.ShortCode, 6)
	require.Equal(t, clock.Now().Add(30*time.Minute), created.ExpiresAt)

	resolved, err := r.GetURLData(created.ShortCode)
	require.NoError(t, err)
	require.Equal(t, created, resolved)

	click := r.RecordClick(created.ShortCode, ClickInfo{
		IP:        "1.2.3.4",
		UserAgent: "ua",
		Location:  "X",
	})
	require.Equal(t, "Direct", click.Referrer)

	stats, err := r.GetStatistics(created.ShortCode)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalClicks)
	require.Equal(t, "ua", stats.Clicks[0].UserAgent)
}
