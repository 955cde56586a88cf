// Package geoip resolves requester IPs to a coarse location for click
// analytics. Lookups go to an ip-api style JSON endpoint and are cached
// in-process; anything unresolvable comes back as "Unknown".
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// UnknownLocation is returned for private, malformed or unresolvable IPs.
const UnknownLocation = "Unknown"

// Client looks up IP geolocation over HTTP with an in-process cache.
type Client struct {
	endpoint   string
	httpClient *http.Client

	mu        sync.Mutex
	cache     map[string]string
	cacheSize int
}

// NewClient creates a Client querying the given endpoint. A lookup for IP x
// requests GET {endpoint}/{x} and expects an ip-api style JSON body.
func NewClient(endpoint string, timeout time.Duration, cacheSize int) *Client {
	if cacheSize <= 0 {
		cacheSize = 1024
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]string),
		cacheSize:  cacheSize,
	}
}

type lookupResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// Lookup resolves ip to a "City, Country" location string. Private and
// loopback addresses short-circuit to UnknownLocation without a network call.
// Failures return UnknownLocation together with the error, so callers can log
// and still record the click.
func (c *Client) Lookup(ctx context.Context, ip string) (string, error) {
	const op = "geoip.Client.Lookup"

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return UnknownLocation, nil
	}

	c.mu.Lock()
	if loc, ok := c.cache[ip]; ok {
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+ip, nil)
	if err != nil {
		return UnknownLocation, fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UnknownLocation, fmt.Errorf("%s: lookup request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UnknownLocation, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return UnknownLocation, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	loc := formatLocation(body)

	c.mu.Lock()
	if len(c.cache) >= c.cacheSize {
		// crude but sufficient at this scale: start over instead of tracking LRU
		c.cache = make(map[string]string)
	}
	c.cache[ip] = loc
	c.mu.Unlock()

	return loc, nil
}

func formatLocation(body lookupResponse) string {
	if body.Status != "success" || body.Country == "" {
		return UnknownLocation
	}

	if body.City == "" {
		return body.Country
	}

	return body.City + ", " + body.Country
}
