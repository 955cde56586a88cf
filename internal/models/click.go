package models

import "time"

// Click represents one observed redirect of a shortened URL.
type Click struct {
	// ID is the unique identifier for the click record.
	ID string
	// Timestamp is the moment the redirect was served.
	Timestamp time.Time
	// IP is the requester's address. It is stored but never exposed in statistics.
	IP string
	// UserAgent is the requesting client's User-Agent header.
	UserAgent string
	// Referrer is the requesting page, or "Direct" when the request carried none.
	Referrer string
	// Location is the geolocation resolved from IP, or "Unknown".
	Location string
}

// URLStats is the aggregate statistics view for a single short code.
type URLStats struct {
	ShortCode   string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	TotalClicks int
	// Clicks holds the individual click records in insertion order.
	Clicks []Click
}

// URLSummary is one entry of the list-all view: the record plus its click count.
type URLSummary struct {
	ShortURL
	TotalClicks int
}
