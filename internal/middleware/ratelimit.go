package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// limiter tracks per-IP request windows. Expired buckets are swept at most
// once per window so the map does not grow with one entry per client IP for
// the process lifetime.
type limiter struct {
	mu        sync.Mutex
	limit     int
	per       time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(limit int, per time.Duration) *limiter {
	return &limiter{limit: limit, per: per, buckets: make(map[string]*bucket)}
}

// take admits or rejects one request for ip at the given instant.
func (l *limiter) take(ip string, now time.Time) (allowed bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.per {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[ip]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(l.per)}
		l.buckets[ip] = b
	}
	if b.count >= l.limit {
		return false, 0, b.until
	}
	b.count++
	return true, l.limit - b.count, b.until
}

func (l *limiter) sweepLocked(now time.Time) {
	for ip, b := range l.buckets {
		if now.After(b.until) {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit admits at most limit requests per client IP per window. Rejected
// requests receive 429 with remaining/reset hints so callers can back off.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := l.take(clientIPForRateLimit(r), time.Now())
			if !allowed {
				retryAfter := int(time.Until(reset).Seconds()) + 1
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":   "rate_limited",
					"message": "too many requests",
				})
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
