// Package ratelimit provides a per-client request rate limiting middleware.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/shortly-app/shortly/pkg/middleware"
	"github.com/shortly-app/shortly/pkg/render"
	"github.com/shortly-app/shortly/pkg/response"
	"golang.org/x/time/rate"
)

const (
	visitorTTL    = 3 * time.Minute
	pruneInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks a token bucket per client IP.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

// New creates a middleware allowing rps requests per second with the given
// burst per client IP. Requests over the limit receive 429.
func New(rps float64, burst int) middleware.Middleware {
	l := &Limiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				render.JSON(w, http.StatusTooManyRequests, response.TooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if now.Sub(l.lastPrune) > pruneInterval {
		for ip, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(l.visitors, ip)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.Allow()
}

// clientIP trusts RemoteAddr; chi's RealIP middleware rewrites it from
// forwarding headers before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
