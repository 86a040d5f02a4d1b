package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

type window struct {
	count int
	ends  time.Time
}

// IPRateLimiter allows limit requests per client IP in each fixed window.
// It tracks at most maxEntries addresses; when full, expired windows are
// swept and, failing that, the whole table is reset.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	entries    map[string]window
	now        func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, window, defaultMaxEntries)
}

func NewIPRateLimiterWithMaxEntries(limit int, win time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if win <= 0 {
		win = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &IPRateLimiter{
		limit:      limit,
		window:     win,
		maxEntries: maxEntries,
		entries:    map[string]window{},
		now:        time.Now,
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientIP(r.RemoteAddr)) {
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[ip]
	if !ok && len(rl.entries) >= rl.maxEntries {
		rl.sweep(now)
	}
	if entry.ends.Before(now) {
		entry = window{ends: now.Add(rl.window)}
	}
	entry.count++
	rl.entries[ip] = entry
	return entry.count <= rl.limit
}

func (rl *IPRateLimiter) sweep(now time.Time) {
	for ip, entry := range rl.entries {
		if entry.ends.Before(now) {
			delete(rl.entries, ip)
		}
	}
	if len(rl.entries) >= rl.maxEntries {
		rl.entries = map[string]window{}
	}
}

func (rl *IPRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
