package models

import "time"

// ShortURL represents a shortened URL and its associated metadata.
type ShortURL struct {
	// ID is the unique identifier for the shortened URL record.
	ID string
	// ShortCode is the short code or key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// ValidityMinutes is the number of minutes the record stays live after creation.
	ValidityMinutes int
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is CreatedAt plus the validity period; past it the record is dead.
	ExpiresAt time.Time
	// IsActive is set at creation; reserved for future soft-delete semantics.
	IsActive bool
}

// Expired reports whether the record is past its expiry at the given instant.
func (u *ShortURL) Expired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}
